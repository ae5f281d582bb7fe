package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visa-checklist/internal/checklist/generator"
	"visa-checklist/internal/checklist/store"
	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApps struct {
	mu      sync.Mutex
	apps    map[string]models.ApplicationContext
	uploads map[string][]models.UploadedDocument
}

func newFakeApps() *fakeApps {
	return &fakeApps{
		apps: map[string]models.ApplicationContext{
			"app-1": {
				Meta: models.ApplicationMeta{
					ApplicationID: "app-1",
					CountryCode:   "US",
					CountryName:   "United States",
					VisaType:      "B1/B2 Visitor Visa",
					AppLanguage:   "en",
				},
				Questionnaire: models.Questionnaire{"employmentStatus": "employed"},
			},
		},
		uploads: map[string][]models.UploadedDocument{},
	}
}

func (f *fakeApps) Load(_ context.Context, applicationID string) (*models.ApplicationContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[applicationID]
	if !ok {
		return nil, apperrors.NewApplicationNotFoundError(applicationID)
	}
	return &app, nil
}

func (f *fakeApps) Uploads(_ context.Context, applicationID string) ([]models.UploadedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.UploadedDocument(nil), f.uploads[applicationID]...), nil
}

// switchableRules serves one rule set and its version; tests swap it to
// simulate a new approval.
type switchableRules struct {
	mu sync.Mutex
	rs *models.RuleSet
}

func (r *switchableRules) set(rs *models.RuleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rs = rs
}

func (r *switchableRules) Resolve(context.Context, string, string) (*models.RuleSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rs, nil
}

func (r *switchableRules) ApprovedVersion(context.Context, string, string) (*int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rs == nil {
		return nil, nil
	}
	v := r.rs.Version
	return &v, nil
}

type failingVersions struct{}

func (failingVersions) ApprovedVersion(context.Context, string, string) (*int, error) {
	return nil, errors.New("rule store down")
}

// countingCompleter blocks until release is closed and counts calls.
type countingCompleter struct {
	release chan struct{}
	reply   string
	calls   int32
}

func (c *countingCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	select {
	case <-c.release:
		return c.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *countingCompleter) count() int {
	return int(atomic.LoadInt32(&c.calls))
}

// gatedGenerator returns results[i] for the i-th call once gates[i] is
// closed.
type gatedGenerator struct {
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	results []*generator.Result
	errs    []error
}

func (g *gatedGenerator) Generate(ctx context.Context, _ models.ApplicantProfile) (*generator.Result, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()

	if i < len(g.gates) && g.gates[i] != nil {
		<-g.gates[i]
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	return g.results[i], nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc   *Service
	store *store.MemoryStore
	apps  *fakeApps
	clock *clock
}

func newTestEnv(t *testing.T, gen Generator, versions VersionSource) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemoryStore(),
		apps:  newFakeApps(),
		clock: &clock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)},
	}
	cfg := Config{
		GenerationTimeout: 5 * time.Second,
		FailedRetryAfter:  time.Minute,
		AbandonAfter:      90 * time.Second,
		PollInterval:      5 * time.Millisecond,
	}
	env.svc = New(cfg, Deps{
		Store:        env.store,
		Applications: env.apps,
		Generator:    gen,
		Versions:     versions,
		Logger:       logger.NewTestLogger(t),
	})
	env.svc.now = env.clock.Now

	var n int32
	env.svc.newID = func() string { return fmt.Sprintf("gen-%d", atomic.AddInt32(&n, 1)) }
	return env
}

func ruleSet(version int, docs ...string) *models.RuleSet {
	rs := &models.RuleSet{
		ID:           fmt.Sprintf("rs-us-tourist-%d", version),
		CountryCode:  "US",
		VisaTypeCode: "tourist",
		Version:      version,
		Status:       models.RuleSetApproved,
	}
	for _, d := range docs {
		rs.Documents = append(rs.Documents, models.DocumentRequirement{DocumentType: d, Category: models.DocumentRequired})
	}
	return rs
}

func realGenerator(t *testing.T, rules generator.RuleSource, completer *countingCompleter) *generator.Generator {
	cfg := generator.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	return generator.New(cfg, generator.Deps{
		Rules:  rules,
		LLM:    completer,
		Logger: logger.NewTestLogger(t),
	})
}

func result(version int, ids ...string) *generator.Result {
	res := &generator.Result{Mode: models.ModeHybrid, RuleSetVersion: &version}
	for i, id := range ids {
		res.Items = append(res.Items, models.ChecklistItem{ID: id, Status: models.DocumentRequired, Priority: i + 1})
	}
	return res
}

func TestGetChecklist_OneGenerationForConcurrentCallers(t *testing.T) {
	rules := &switchableRules{rs: ruleSet(1, "passport", "bank_statement")}
	llm := &countingCompleter{release: make(chan struct{}), reply: `{"items":[{"id":"passport","name":"Passport"}]}`}
	env := newTestEnv(t, realGenerator(t, rules, llm), rules)

	const callers = 8
	views := make([]*models.ChecklistView, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = env.svc.GetChecklist(context.Background(), "app-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.ChecklistProcessing, views[i].Status)
	}

	close(llm.release)
	env.svc.Wait()
	assert.Equal(t, 1, llm.count())

	env.apps.uploads["app-1"] = []models.UploadedDocument{{DocumentType: "passport", Status: models.UploadVerified}}
	view, err := env.svc.GetChecklist(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Passport", view.Items[0].Name)
	assert.Equal(t, models.UploadVerified, view.Items[0].UploadStatus)
	assert.Equal(t, models.UploadMissing, view.Items[1].UploadStatus)
	assert.Equal(t, models.Progress{Verified: 1, Total: 2, Percent: 50}, *view.Progress)
	assert.Equal(t, 1, llm.count(), "ready checklist is served from the store")
}

func TestGetChecklist_RegeneratesWhenNewRuleSetApproved(t *testing.T) {
	rules := &switchableRules{rs: ruleSet(1, "passport", "bank_statement")}
	llm := &countingCompleter{release: make(chan struct{}), reply: `{"items":[{"id":"passport"}]}`}
	close(llm.release)
	env := newTestEnv(t, realGenerator(t, rules, llm), rules)
	ctx := context.Background()

	_, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	env.svc.Wait()

	stored, err := env.store.Get(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, stored.SourceRuleSetVersion)
	assert.Equal(t, 1, *stored.SourceRuleSetVersion)

	view, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status, "not stale before a new approval")
	assert.Equal(t, 1, llm.count())

	before := testutil.ToFloat64(metrics.StaleRegenerations)
	rules.set(ruleSet(2, "passport", "bank_statement", "employment_letter"))

	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, view.Status)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StaleRegenerations))
	env.svc.Wait()

	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status)
	require.Len(t, view.Items, 3)
	assert.Equal(t, "employment_letter", view.Items[2].ID)
	assert.Equal(t, 2, llm.count())

	stored, _ = env.store.Get(ctx, "app-1")
	assert.Equal(t, 2, *stored.SourceRuleSetVersion)
}

func TestGetChecklist_LegacyChecklistStaleOnceRulesExist(t *testing.T) {
	legacy := &generator.Result{Mode: models.ModeFallback, AIFallbackUsed: true,
		Items: []models.ChecklistItem{{ID: "passport", Status: models.DocumentRequired, Priority: 1}}}
	gen := &gatedGenerator{results: []*generator.Result{legacy, result(1, "passport", "photo")}}
	rules := &switchableRules{}
	env := newTestEnv(t, gen, rules)
	ctx := context.Background()

	_, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	env.svc.Wait()

	view, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, view.AIFallbackUsed)

	rules.set(ruleSet(1, "passport", "photo"))
	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, view.Status)
	env.svc.Wait()

	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, view.AIFallbackUsed)
	assert.Len(t, view.Items, 2)
}

func TestGetChecklist_LateResultOfAbandonedRunIsDiscarded(t *testing.T) {
	first, second := make(chan struct{}), make(chan struct{})
	gen := &gatedGenerator{
		gates:   []chan struct{}{first, second},
		results: []*generator.Result{result(1, "photo"), result(2, "passport")},
	}
	env := newTestEnv(t, gen, nil)
	ctx := context.Background()
	discarded := testutil.ToFloat64(metrics.DiscardedResults)

	view, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, view.Status)

	// within the abandon window nothing new starts
	env.clock.Advance(30 * time.Second)
	_, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	_, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)

	stored, _ := env.store.Get(ctx, "app-1")
	assert.Equal(t, "gen-2", stored.GenerationID)

	close(second)
	require.Eventually(t, func() bool {
		cl, err := env.store.Get(ctx, "app-1")
		return err == nil && cl.Status == models.ChecklistReady
	}, time.Second, 5*time.Millisecond)

	close(first)
	env.svc.Wait()

	stored, _ = env.store.Get(ctx, "app-1")
	assert.Equal(t, "gen-2", stored.GenerationID)
	assert.Equal(t, 2, *stored.SourceRuleSetVersion)
	assert.Equal(t, "passport", stored.Items[0].ID)
	assert.Equal(t, discarded+1, testutil.ToFloat64(metrics.DiscardedResults))

	gen.mu.Lock()
	assert.Equal(t, 2, gen.calls)
	gen.mu.Unlock()
}

func TestGetChecklist_FailedThenRetried(t *testing.T) {
	gen := &gatedGenerator{
		errs:    []error{errors.New("generator unavailable"), nil},
		results: []*generator.Result{nil, result(1, "passport")},
	}
	env := newTestEnv(t, gen, nil)
	ctx := context.Background()

	_, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	env.svc.Wait()

	view, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistFailed, view.Status)
	assert.Equal(t, failedMessage, view.ErrorMessage)
	assert.Nil(t, view.Items)

	env.clock.Advance(30 * time.Second)
	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistFailed, view.Status, "failed is served until the retry window passes")

	env.clock.Advance(time.Minute)
	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, view.Status)
	env.svc.Wait()

	view, err = env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status)
}

func TestGetChecklist_GeneratorPanicMarksFailed(t *testing.T) {
	env := newTestEnv(t, &gatedGenerator{}, nil) // no results: index out of range
	ctx := context.Background()

	_, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	env.svc.Wait()

	stored, err := env.store.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistFailed, stored.Status)
}

func TestGetChecklist_UnknownApplication(t *testing.T) {
	env := newTestEnv(t, &gatedGenerator{}, nil)

	_, err := env.svc.GetChecklist(context.Background(), "missing")
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeApplicationNotFound, stdErr.Code)

	_, err = env.store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.svc.GetChecklist(context.Background(), "")
	stdErr, ok = apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestGetChecklist_VersionLookupFailureServesStored(t *testing.T) {
	gen := &gatedGenerator{results: []*generator.Result{result(1, "passport")}}
	env := newTestEnv(t, gen, failingVersions{})
	ctx := context.Background()

	_, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	env.svc.Wait()

	view, err := env.svc.GetChecklist(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status)
}

func TestAwait(t *testing.T) {
	gate := make(chan struct{})
	gen := &gatedGenerator{gates: []chan struct{}{gate}, results: []*generator.Result{result(1, "passport")}}
	env := newTestEnv(t, gen, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()

	view, err := env.svc.Await(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, view.Status)
	assert.Len(t, view.Items, 1)
}

func TestAwait_ReturnsProcessingWhenContextEnds(t *testing.T) {
	gate := make(chan struct{})
	gen := &gatedGenerator{gates: []chan struct{}{gate}, results: []*generator.Result{result(1, "passport")}}
	env := newTestEnv(t, gen, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	view, err := env.svc.Await(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, view.Status)

	close(gate)
	env.svc.Wait()
}
