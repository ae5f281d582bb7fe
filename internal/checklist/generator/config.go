package generator

import (
	"fmt"
	"strings"
	"time"

	"visa-checklist/internal/common/config"
	"visa-checklist/internal/models"
)

type Config struct {
	// Timeout bounds a whole Generate call, retries included.
	Timeout time.Duration
	// LLMRetries is the number of extra completion attempts shared by every
	// retry reason in one run.
	LLMRetries     int
	KnowledgeLimit int
	Legacy         LegacyPolicy
}

func DefaultConfig() Config {
	return Config{
		Timeout:        45 * time.Second,
		LLMRetries:     1,
		KnowledgeLimit: 10,
		Legacy:         DefaultLegacyPolicy(),
	}
}

// ConfigFrom converts the application configuration.
func ConfigFrom(c config.ChecklistConfig) Config {
	cfg := Config{
		Timeout:        config.GetDuration(c.GenerationTimeout),
		LLMRetries:     c.LLMRetries,
		KnowledgeLimit: c.KnowledgeBaseLimit,
		Legacy: LegacyPolicy{
			MinItems:            c.Legacy.MinItems,
			MaxItems:            c.Legacy.MaxItems,
			RequireTranslations: c.Legacy.RequireTranslations == nil || *c.Legacy.RequireTranslations,
		},
	}
	for _, s := range c.Legacy.RequiredStatuses {
		if st, ok := models.ParseDocumentStatus(s); ok {
			cfg.Legacy.RequiredStatuses = append(cfg.Legacy.RequiredStatuses, st)
		}
	}
	return cfg
}

// LegacyPolicy is the acceptance test for a model-chosen checklist.
type LegacyPolicy struct {
	MinItems            int
	MaxItems            int
	RequiredStatuses    []models.DocumentStatus
	RequireTranslations bool
}

func DefaultLegacyPolicy() LegacyPolicy {
	return LegacyPolicy{
		MinItems: 10,
		MaxItems: 16,
		RequiredStatuses: []models.DocumentStatus{
			models.DocumentRequired,
			models.DocumentHighlyRecommended,
			models.DocumentOptional,
		},
		RequireTranslations: true,
	}
}

// maxReportedItems caps per-item violations so the correction prompt stays
// short.
const maxReportedItems = 5

// Check returns the violated constraints in a form that can be fed back to
// the model. An empty result means items are acceptable.
func (p LegacyPolicy) Check(items []models.ChecklistItem) []string {
	var violations []string

	if n := len(items); n < p.MinItems || (p.MaxItems > 0 && n > p.MaxItems) {
		violations = append(violations,
			fmt.Sprintf("the checklist must contain between %d and %d items, got %d", p.MinItems, p.MaxItems, n))
	}

	seen := make(map[string]bool, len(items))
	present := make(map[models.DocumentStatus]bool)
	reported := 0
	for _, it := range items {
		switch {
		case it.ID == "":
			violations = append(violations, "every item needs a non-empty id")
			continue
		case seen[it.ID]:
			violations = append(violations, fmt.Sprintf("id %q appears more than once", it.ID))
		}
		seen[it.ID] = true

		if it.Status == "" {
			violations = append(violations, fmt.Sprintf("item %q has no valid status", it.ID))
		}
		present[it.Status] = true

		if p.RequireTranslations && reported < maxReportedItems {
			if missing := it.MissingLocales(); len(missing) > 0 {
				violations = append(violations,
					fmt.Sprintf("item %q is missing %s", it.ID, strings.Join(missing, ", ")))
				reported++
			}
		}
	}

	for _, st := range p.RequiredStatuses {
		if !present[st] {
			violations = append(violations, fmt.Sprintf("no item has status %s", st))
		}
	}
	return violations
}
