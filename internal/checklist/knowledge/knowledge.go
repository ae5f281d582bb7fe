// Package knowledge retrieves visa-policy passages that give the model
// context when no rule set exists for a destination.
package knowledge

import (
	"context"
	"errors"

	"visa-checklist/internal/models"
)

var ErrSearchFailed = errors.New("KNOWLEDGE_SEARCH_FAILED")

// Base searches the knowledge base for a destination and visa type.
type Base interface {
	Search(ctx context.Context, countryCode, visaType string, limit int) ([]models.KnowledgeSnippet, error)
}
