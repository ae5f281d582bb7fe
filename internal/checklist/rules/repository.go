package rules

import (
	"context"
	"errors"

	"visa-checklist/internal/models"
)

// ErrRuleSetNotFound is returned by Load when the requested version does not
// exist.
var ErrRuleSetNotFound = errors.New("RULESET_NOT_FOUND")

// Repository reads rule sets written by the embassy sync pipeline.
// Versions are immutable once written; only the approval pointer moves.
type Repository interface {
	// LatestApprovedVersion returns the highest approved version, or
	// ok=false when the pair has none.
	LatestApprovedVersion(ctx context.Context, countryCode, visaType string) (version int, ok bool, err error)
	Load(ctx context.Context, countryCode, visaType string, version int) (*models.RuleSet, error)
}
