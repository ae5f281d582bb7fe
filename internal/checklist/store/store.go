// Package store persists document checklists. One artifact exists per
// application; it moves processing -> ready|failed and is replaced wholesale
// on regeneration. Every write is conditional on the generation id, so the
// first claim wins and late results of superseded runs are rejected.
package store

import (
	"context"
	"errors"
	"time"

	"visa-checklist/internal/models"
)

var (
	ErrNotFound = errors.New("CHECKLIST_NOT_FOUND")
	// ErrClaimLost means another request created or replaced the artifact
	// first.
	ErrClaimLost = errors.New("CHECKLIST_CLAIM_LOST")
	// ErrStaleGeneration means the artifact now belongs to a newer
	// generation or has already left processing.
	ErrStaleGeneration = errors.New("CHECKLIST_STALE_GENERATION")
)

type Store interface {
	Get(ctx context.Context, applicationID string) (*models.DocumentChecklist, error)
	// ClaimNew creates a processing artifact when none exists.
	ClaimNew(ctx context.Context, applicationID, generationID string, now time.Time) (*models.DocumentChecklist, error)
	// ClaimRegeneration replaces the artifact owned by prevGenerationID with
	// a new processing one.
	ClaimRegeneration(ctx context.Context, applicationID, prevGenerationID, generationID string, now time.Time) (*models.DocumentChecklist, error)
	Complete(ctx context.Context, applicationID, generationID string, c Completion, now time.Time) error
	Fail(ctx context.Context, applicationID, generationID, message string, now time.Time) error
}

// Completion is what a successful generation run writes.
type Completion struct {
	Items                []models.ChecklistItem
	Mode                 models.GenerationMode
	SourceRuleSetVersion *int
	AIFallbackUsed       bool
}

// IsStale reports whether a ready artifact must be regenerated because an
// approved rule set exists that it was not built from. Staleness is never
// time-based.
func IsStale(cl *models.DocumentChecklist, approvedVersion *int) bool {
	if cl == nil || cl.Status != models.ChecklistReady || approvedVersion == nil {
		return false
	}
	return cl.SourceRuleSetVersion == nil || *cl.SourceRuleSetVersion != *approvedVersion
}

func newProcessing(applicationID, generationID string, now time.Time) *models.DocumentChecklist {
	return &models.DocumentChecklist{
		ApplicationID: applicationID,
		GenerationID:  generationID,
		Status:        models.ChecklistProcessing,
		Items:         []models.ChecklistItem{},
		StartedAt:     now,
		UpdatedAt:     now,
	}
}
