package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visa-checklist/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestIsStale(t *testing.T) {
	tests := []struct {
		name     string
		status   models.ChecklistStatus
		source   *int
		approved *int
		want     bool
	}{
		{"no rule set then or now", models.ChecklistReady, nil, nil, false},
		{"rule set appeared", models.ChecklistReady, nil, intPtr(1), true},
		{"same version", models.ChecklistReady, intPtr(1), intPtr(1), false},
		{"new version approved", models.ChecklistReady, intPtr(1), intPtr(2), true},
		{"rule set withdrawn", models.ChecklistReady, intPtr(2), nil, false},
		{"processing is never stale", models.ChecklistProcessing, nil, intPtr(1), false},
		{"failed is never stale", models.ChecklistFailed, intPtr(1), intPtr(2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := &models.DocumentChecklist{Status: tt.status, SourceRuleSetVersion: tt.source}
			assert.Equal(t, tt.want, IsStale(cl, tt.approved))
		})
	}
	assert.False(t, IsStale(nil, intPtr(1)))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "app-1")
	assert.ErrorIs(t, err, ErrNotFound)

	cl, err := s.ClaimNew(ctx, "app-1", "gen-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, cl.Status)
	assert.Equal(t, now, cl.StartedAt)

	_, err = s.ClaimNew(ctx, "app-1", "gen-2", now)
	assert.ErrorIs(t, err, ErrClaimLost)

	items := []models.ChecklistItem{{ID: "passport", Status: models.DocumentRequired, Priority: 1}}
	done := now.Add(3 * time.Second)
	require.NoError(t, s.Complete(ctx, "app-1", "gen-1", Completion{
		Items: items, Mode: models.ModeHybrid, SourceRuleSetVersion: intPtr(1),
	}, done))

	got, err := s.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, got.Status)
	assert.Equal(t, items, got.Items)
	assert.Equal(t, 1, *got.SourceRuleSetVersion)
	assert.Equal(t, done, *got.GeneratedAt)

	// ready does not go back to processing in place
	assert.ErrorIs(t, s.Complete(ctx, "app-1", "gen-1", Completion{}, done), ErrStaleGeneration)
	assert.ErrorIs(t, s.Fail(ctx, "app-1", "gen-1", "boom", done), ErrStaleGeneration)

	// returned values are copies
	got.Items[0].ID = "mutated"
	again, _ := s.Get(ctx, "app-1")
	assert.Equal(t, "passport", again.Items[0].ID)
}

func TestMemoryStore_RegenerationDiscardsLateResult(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	_, err := s.ClaimNew(ctx, "app-1", "gen-1", now)
	require.NoError(t, err)

	// gen-1 was abandoned and re-claimed by gen-2
	_, err = s.ClaimRegeneration(ctx, "app-1", "gen-1", "gen-2", now)
	require.NoError(t, err)
	_, err = s.ClaimRegeneration(ctx, "app-1", "gen-1", "gen-3", now)
	assert.ErrorIs(t, err, ErrClaimLost)

	require.NoError(t, s.Complete(ctx, "app-1", "gen-2", Completion{Mode: models.ModeHybrid, SourceRuleSetVersion: intPtr(2)}, now))
	err = s.Complete(ctx, "app-1", "gen-1", Completion{Mode: models.ModeHybrid, SourceRuleSetVersion: intPtr(1)}, now)
	assert.ErrorIs(t, err, ErrStaleGeneration)

	got, _ := s.Get(ctx, "app-1")
	assert.Equal(t, "gen-2", got.GenerationID)
	assert.Equal(t, 2, *got.SourceRuleSetVersion)
}

func TestMemoryStore_Fail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	_, err := s.ClaimNew(ctx, "app-1", "gen-1", now)
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, "app-1", "gen-1", "rule store unavailable", now))

	got, _ := s.Get(ctx, "app-1")
	assert.Equal(t, models.ChecklistFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "rule store unavailable", *got.ErrorMessage)

	_, err = s.ClaimRegeneration(ctx, "app-1", "gen-1", "gen-2", now)
	require.NoError(t, err)
	got, _ = s.Get(ctx, "app-1")
	assert.Equal(t, models.ChecklistProcessing, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func TestMemoryStore_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ClaimNew(ctx, "app-1", "gen", time.Now())
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

var checklistColumns = []string{
	"application_id", "generation_id", "status", "items", "mode", "generated_at",
	"source_rule_set_version", "ai_fallback_used", "error_message", "started_at", "updated_at",
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT application_id, generation_id, status, items").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows(checklistColumns).AddRow(
			"app-1", "gen-1", "ready",
			[]byte(`[{"id":"passport","status":"REQUIRED","priority":1,"isCoreRequired":true}]`),
			"hybrid", now, int64(3), false, nil, now, now,
		))

	cl, err := NewPostgresStore(db).Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistReady, cl.Status)
	assert.Equal(t, models.ModeHybrid, cl.Mode)
	require.Len(t, cl.Items, 1)
	assert.True(t, cl.Items[0].IsCoreRequired)
	assert.Equal(t, 3, *cl.SourceRuleSetVersion)
	assert.Equal(t, now, *cl.GeneratedAt)
	assert.Nil(t, cl.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT application_id").
		WillReturnRows(sqlmock.NewRows(checklistColumns).AddRow(
			"app-1", "gen-1", "processing", []byte(`[]`), nil, nil, nil, false, nil, now, now,
		))

	cl, err := NewPostgresStore(db).Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, cl.Status)
	assert.Empty(t, cl.Items)
	assert.Nil(t, cl.SourceRuleSetVersion)
	assert.Nil(t, cl.GeneratedAt)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT application_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(checklistColumns))

	_, err = NewPostgresStore(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_GetCorruptItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT application_id").
		WillReturnRows(sqlmock.NewRows(checklistColumns).AddRow(
			"app-1", "gen-1", "ready", []byte(`{not json`), "legacy", now, nil, false, nil, now, now,
		))

	_, err = NewPostgresStore(db).Get(context.Background(), "app-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode checklist app-1 items")
}

func TestPostgresStore_ClaimNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	s := NewPostgresStore(db)

	mock.ExpectExec("INSERT INTO document_checklists").
		WithArgs("app-1", "gen-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_checklists").
		WithArgs("app-1", "gen-2", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cl, err := s.ClaimNew(context.Background(), "app-1", "gen-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProcessing, cl.Status)
	assert.Equal(t, "gen-1", cl.GenerationID)

	_, err = s.ClaimNew(context.Background(), "app-1", "gen-2", now)
	assert.ErrorIs(t, err, ErrClaimLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimRegeneration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	s := NewPostgresStore(db)

	mock.ExpectExec("UPDATE document_checklists SET generation_id").
		WithArgs("app-1", "gen-1", "gen-2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE document_checklists SET generation_id").
		WithArgs("app-1", "gen-1", "gen-3", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = s.ClaimRegeneration(context.Background(), "app-1", "gen-1", "gen-2", now)
	require.NoError(t, err)
	_, err = s.ClaimRegeneration(context.Background(), "app-1", "gen-1", "gen-3", now)
	assert.ErrorIs(t, err, ErrClaimLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Complete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	s := NewPostgresStore(db)
	c := Completion{
		Items:                []models.ChecklistItem{{ID: "passport", Status: models.DocumentRequired}},
		Mode:                 models.ModeHybrid,
		SourceRuleSetVersion: intPtr(2),
	}

	mock.ExpectExec("UPDATE document_checklists SET status = 'ready'").
		WithArgs("app-1", "gen-2", sqlmock.AnyArg(), "hybrid", now, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE document_checklists SET status = 'ready'").
		WithArgs("app-1", "gen-1", sqlmock.AnyArg(), "hybrid", now, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Complete(context.Background(), "app-1", "gen-2", c, now))
	assert.ErrorIs(t, s.Complete(context.Background(), "app-1", "gen-1", c, now), ErrStaleGeneration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailAndErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	s := NewPostgresStore(db)

	mock.ExpectExec("UPDATE document_checklists SET status = 'failed'").
		WithArgs("app-1", "gen-1", "rule store unavailable", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE document_checklists SET status = 'failed'").
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, s.Fail(context.Background(), "app-1", "gen-1", "rule store unavailable", now))

	err = s.Fail(context.Background(), "app-1", "gen-1", "again", now)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleGeneration)
	assert.Contains(t, err.Error(), "connection reset")
}
