package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visa-checklist/internal/models"
)

const (
	getChecklistQuery = `
		SELECT application_id, generation_id, status, items, mode, generated_at,
			source_rule_set_version, ai_fallback_used, error_message, started_at, updated_at
		FROM document_checklists
		WHERE application_id = $1`

	claimNewQuery = `
		INSERT INTO document_checklists (application_id, generation_id, status, items, started_at, updated_at)
		VALUES ($1, $2, 'processing', '[]'::jsonb, $3, $3)
		ON CONFLICT (application_id) DO NOTHING`

	claimRegenerationQuery = `
		UPDATE document_checklists
		SET generation_id = $3, status = 'processing', items = '[]'::jsonb, mode = NULL,
			generated_at = NULL, source_rule_set_version = NULL, ai_fallback_used = FALSE,
			error_message = NULL, started_at = $4, updated_at = $4
		WHERE application_id = $1 AND generation_id = $2`

	completeQuery = `
		UPDATE document_checklists
		SET status = 'ready', items = $3, mode = $4, generated_at = $5,
			source_rule_set_version = $6, ai_fallback_used = $7, error_message = NULL, updated_at = $5
		WHERE application_id = $1 AND generation_id = $2 AND status = 'processing'`

	failQuery = `
		UPDATE document_checklists
		SET status = 'failed', error_message = $3, updated_at = $4
		WHERE application_id = $1 AND generation_id = $2 AND status = 'processing'`
)

// PostgresStore keeps artifacts in document_checklists. The conditional
// statements above are the only concurrency control; it holds across
// instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, applicationID string) (*models.DocumentChecklist, error) {
	var (
		cl           models.DocumentChecklist
		status       string
		items        []byte
		mode         sql.NullString
		generatedAt  sql.NullTime
		version      sql.NullInt64
		errorMessage sql.NullString
	)

	err := s.db.QueryRowContext(ctx, getChecklistQuery, applicationID).Scan(
		&cl.ApplicationID, &cl.GenerationID, &status, &items, &mode, &generatedAt,
		&version, &cl.AIFallbackUsed, &errorMessage, &cl.StartedAt, &cl.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist %s: %w", applicationID, err)
	}

	cl.Status = models.ChecklistStatus(status)
	cl.Mode = models.GenerationMode(mode.String)
	cl.Items = []models.ChecklistItem{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &cl.Items); err != nil {
			return nil, fmt.Errorf("decode checklist %s items: %w", applicationID, err)
		}
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		cl.GeneratedAt = &t
	}
	if version.Valid {
		v := int(version.Int64)
		cl.SourceRuleSetVersion = &v
	}
	if errorMessage.Valid {
		m := errorMessage.String
		cl.ErrorMessage = &m
	}
	return &cl, nil
}

func (s *PostgresStore) ClaimNew(ctx context.Context, applicationID, generationID string, now time.Time) (*models.DocumentChecklist, error) {
	res, err := s.db.ExecContext(ctx, claimNewQuery, applicationID, generationID, now)
	if err != nil {
		return nil, fmt.Errorf("claim checklist %s: %w", applicationID, err)
	}
	if err := expectOne(res, ErrClaimLost); err != nil {
		return nil, err
	}
	return newProcessing(applicationID, generationID, now), nil
}

func (s *PostgresStore) ClaimRegeneration(ctx context.Context, applicationID, prevGenerationID, generationID string, now time.Time) (*models.DocumentChecklist, error) {
	res, err := s.db.ExecContext(ctx, claimRegenerationQuery, applicationID, prevGenerationID, generationID, now)
	if err != nil {
		return nil, fmt.Errorf("reclaim checklist %s: %w", applicationID, err)
	}
	if err := expectOne(res, ErrClaimLost); err != nil {
		return nil, err
	}
	return newProcessing(applicationID, generationID, now), nil
}

func (s *PostgresStore) Complete(ctx context.Context, applicationID, generationID string, c Completion, now time.Time) error {
	items := c.Items
	if items == nil {
		items = []models.ChecklistItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode checklist %s items: %w", applicationID, err)
	}

	var version sql.NullInt64
	if c.SourceRuleSetVersion != nil {
		version = sql.NullInt64{Int64: int64(*c.SourceRuleSetVersion), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, completeQuery,
		applicationID, generationID, data, string(c.Mode), now, version, c.AIFallbackUsed)
	if err != nil {
		return fmt.Errorf("complete checklist %s: %w", applicationID, err)
	}
	return expectOne(res, ErrStaleGeneration)
}

func (s *PostgresStore) Fail(ctx context.Context, applicationID, generationID, message string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, failQuery, applicationID, generationID, message, now)
	if err != nil {
		return fmt.Errorf("fail checklist %s: %w", applicationID, err)
	}
	return expectOne(res, ErrStaleGeneration)
}

// expectOne maps "no row matched the condition" to lost.
func expectOne(res sql.Result, lost error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return lost
	}
	return nil
}
