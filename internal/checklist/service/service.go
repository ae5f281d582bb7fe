// Package service implements getChecklist: it serves the stored artifact,
// claims and starts a background generation when none is usable, and merges
// ready checklists with the applicant's uploads.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"visa-checklist/internal/checklist/applications"
	"visa-checklist/internal/checklist/generator"
	"visa-checklist/internal/checklist/merger"
	"visa-checklist/internal/checklist/profile"
	"visa-checklist/internal/checklist/store"
	"visa-checklist/internal/common/config"
	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/common/observability"
	"visa-checklist/internal/models"

	"github.com/google/uuid"
)

const (
	failedMessage  = "Checklist generation failed. Please try again later."
	persistTimeout = 10 * time.Second
)

type Generator interface {
	Generate(ctx context.Context, p models.ApplicantProfile) (*generator.Result, error)
}

// VersionSource reports the currently approved rule set version for a
// destination, nil when there is none.
type VersionSource interface {
	ApprovedVersion(ctx context.Context, countryCode, visaType string) (*int, error)
}

type Config struct {
	// GenerationTimeout is the ceiling for one background run.
	GenerationTimeout time.Duration
	// FailedRetryAfter is how long a failed artifact is served before a read
	// re-claims it.
	FailedRetryAfter time.Duration
	// AbandonAfter is how long a processing artifact may stay unfinished
	// before another request may take it over.
	AbandonAfter time.Duration
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		GenerationTimeout: 45 * time.Second,
		FailedRetryAfter:  time.Minute,
		AbandonAfter:      90 * time.Second,
		PollInterval:      500 * time.Millisecond,
	}
}

func ConfigFrom(c config.ChecklistConfig) Config {
	return Config{
		GenerationTimeout: config.GetDuration(c.GenerationTimeout),
		FailedRetryAfter:  config.GetDuration(c.FailedRetryAfter),
		AbandonAfter:      config.GetDuration(c.AbandonAfter),
		PollInterval:      config.GetDuration(c.PollInterval),
	}
}

type Deps struct {
	Store        store.Store
	Applications applications.Source
	Generator    Generator
	Versions     VersionSource
	// Notifier and Observability are optional.
	Notifier      Notifier
	Observability *observability.Observability
	Logger        logger.Logger
}

type Service struct {
	cfg       Config
	store     store.Store
	apps      applications.Source
	generator Generator
	versions  VersionSource
	notifier  Notifier
	obs       *observability.Observability
	logger    logger.Logger

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

func New(cfg Config, deps Deps) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		apps:      deps.Applications,
		generator: deps.Generator,
		versions:  deps.Versions,
		notifier:  deps.Notifier,
		obs:       deps.Observability,
		logger:    logger.Component(deps.Logger, "checklist-service"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// GetChecklist returns the current view of an application's checklist,
// starting a generation when there is no usable artifact. Repeated calls
// while a run is in flight return the processing view without starting
// another run.
func (s *Service) GetChecklist(ctx context.Context, applicationID string) (*models.ChecklistView, error) {
	if applicationID == "" {
		return nil, apperrors.NewInvalidInputError("applicationId is required")
	}

	app, err := s.apps.Load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Meta.ApplicationID == "" {
		app.Meta.ApplicationID = applicationID
	}

	cl, err := s.store.Get(ctx, applicationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cl, err = s.claim(ctx, app, nil, "new")
	case err != nil:
		return nil, apperrors.NewChecklistPersistFailedError(applicationID, err)
	default:
		if reason := s.regenerationReason(ctx, app, cl); reason != "" {
			cl, err = s.claim(ctx, app, cl, reason)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.view(ctx, cl)
}

// Await calls GetChecklist until the checklist leaves processing. When ctx
// ends first the last processing view is returned without an error.
func (s *Service) Await(ctx context.Context, applicationID string) (*models.ChecklistView, error) {
	view, err := s.GetChecklist(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for view.Status == models.ChecklistProcessing {
		select {
		case <-ctx.Done():
			return view, nil
		case <-ticker.C:
		}
		next, err := s.GetChecklist(ctx, applicationID)
		if err != nil {
			if ctx.Err() != nil {
				return view, nil
			}
			return nil, err
		}
		view = next
	}
	return view, nil
}

// Wait blocks until every background run started by this service ends.
func (s *Service) Wait() {
	s.wg.Wait()
}

// regenerationReason returns why an existing artifact must be replaced, or
// "" when it can be served as is.
func (s *Service) regenerationReason(ctx context.Context, app *models.ApplicationContext, cl *models.DocumentChecklist) string {
	now := s.now()
	switch cl.Status {
	case models.ChecklistProcessing:
		if s.cfg.AbandonAfter > 0 && now.Sub(cl.StartedAt) > s.cfg.AbandonAfter {
			return "abandoned"
		}
	case models.ChecklistFailed:
		if now.Sub(cl.UpdatedAt) >= s.cfg.FailedRetryAfter {
			return "retry_failed"
		}
	case models.ChecklistReady:
		if s.versions == nil {
			return ""
		}
		approved, err := s.versions.ApprovedVersion(ctx, app.Meta.CountryCode, app.Meta.VisaType)
		if err != nil {
			s.logger.Warn("approved version lookup failed, serving stored checklist", map[string]interface{}{
				"applicationId": cl.ApplicationID,
				"error":         err.Error(),
			})
			return ""
		}
		if store.IsStale(cl, approved) {
			metrics.StaleRegenerations.Inc()
			return "stale"
		}
	}
	return ""
}

// claim takes ownership of the artifact and starts a run. Losing the claim
// means another request owns it; the current artifact is returned instead.
func (s *Service) claim(ctx context.Context, app *models.ApplicationContext, prev *models.DocumentChecklist, reason string) (*models.DocumentChecklist, error) {
	applicationID := app.Meta.ApplicationID
	generationID := s.newID()
	now := s.now()

	var (
		claimed *models.DocumentChecklist
		err     error
	)
	if prev == nil {
		claimed, err = s.store.ClaimNew(ctx, applicationID, generationID, now)
	} else {
		claimed, err = s.store.ClaimRegeneration(ctx, applicationID, prev.GenerationID, generationID, now)
	}

	if errors.Is(err, store.ErrClaimLost) {
		metrics.ClaimsLost.Inc()
		s.logger.Debug("generation already claimed", map[string]interface{}{
			"applicationId": applicationID,
			"reason":        reason,
		})
		current, getErr := s.store.Get(ctx, applicationID)
		if getErr != nil {
			return nil, apperrors.NewChecklistPersistFailedError(applicationID, getErr)
		}
		return current, nil
	}
	if err != nil {
		return nil, apperrors.NewChecklistPersistFailedError(applicationID, err)
	}

	s.logger.Info("checklist generation started", map[string]interface{}{
		"applicationId": applicationID,
		"generationId":  generationID,
		"reason":        reason,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(*app, generationID)
	}()
	return claimed, nil
}

// run generates and persists one checklist. It is detached from the request
// that started it.
func (s *Service) run(app models.ApplicationContext, generationID string) {
	applicationID := app.Meta.ApplicationID
	log := s.logger.With(map[string]interface{}{
		"applicationId": applicationID,
		"generationId":  generationID,
	})

	ctx := context.Background()
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}
	finished := s.obs.RunStarted(ctx)

	res, err := s.generate(ctx, app)
	if err != nil {
		log.Error("checklist generation failed", map[string]interface{}{"error": err.Error()})
		s.fail(applicationID, generationID, log)
		finished("unknown", string(models.ChecklistFailed))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err = s.store.Complete(writeCtx, applicationID, generationID, store.Completion{
		Items:                res.Items,
		Mode:                 res.Mode,
		SourceRuleSetVersion: res.RuleSetVersion,
		AIFallbackUsed:       res.AIFallbackUsed,
	}, s.now())
	switch {
	case errors.Is(err, store.ErrStaleGeneration):
		metrics.DiscardedResults.Inc()
		log.Warn("discarding late generation result", map[string]interface{}{"mode": res.Mode})
		finished(string(res.Mode), "discarded")
		return
	case err != nil:
		log.Error("failed to persist checklist", map[string]interface{}{"error": err.Error()})
		s.fail(applicationID, generationID, log)
		finished(string(res.Mode), string(models.ChecklistFailed))
		return
	}

	finished(string(res.Mode), string(models.ChecklistReady))
	s.notify(writeCtx, applicationID, models.ChecklistReady, res.AIFallbackUsed, log)
}

// generate builds the profile and runs the generator, turning a panic into
// an error so the artifact cannot stay in processing.
func (s *Service) generate(ctx context.Context, app models.ApplicationContext) (res *generator.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	p := profile.BuildAt(app.Questionnaire, app.Meta, s.now())
	return s.generator.Generate(ctx, p)
}

func (s *Service) fail(applicationID, generationID string, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := s.store.Fail(ctx, applicationID, generationID, failedMessage, s.now())
	if errors.Is(err, store.ErrStaleGeneration) {
		metrics.DiscardedResults.Inc()
		log.Warn("discarding late generation failure", nil)
		return
	}
	if err != nil {
		log.Error("failed to mark checklist failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.notify(ctx, applicationID, models.ChecklistFailed, false, log)
}

func (s *Service) notify(ctx context.Context, applicationID string, status models.ChecklistStatus, aiFallbackUsed bool, log logger.Logger) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ChecklistFinished(ctx, applicationID, status, aiFallbackUsed); err != nil {
		log.Warn("checklist-ready message not published", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) view(ctx context.Context, cl *models.DocumentChecklist) (*models.ChecklistView, error) {
	var uploads []models.UploadedDocument
	if cl.Status == models.ChecklistReady {
		var err error
		uploads, err = s.apps.Uploads(ctx, cl.ApplicationID)
		if err != nil {
			return nil, err
		}
	}
	view := merger.Merge(cl, uploads)
	return &view, nil
}
