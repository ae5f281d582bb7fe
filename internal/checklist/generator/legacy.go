package generator

import (
	"context"
	"fmt"
	"strings"

	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/models"
)

// legacy lets the model choose the documents. The policy is checked on the
// answer with the core documents already added, so the stored checklist is
// the one that was accepted. An answer that fails is retried once with the
// violations spelled out; after that the deterministic fallback checklist is
// used.
func (g *Generator) legacy(ctx context.Context, p models.ApplicantProfile) *Result {
	res := &Result{Mode: models.ModeLegacy}

	snippets := g.search(ctx, p)
	system := legacySystemPrompt(p.AppLanguage)
	core := g.registry.CoreFor(p.CountryCode, p.VisaTypeCode)

	var violations []string
	for res.Attempts < g.maxAttempts() {
		res.Attempts++
		parsed, err := g.complete(ctx, models.ModeLegacy, system, legacyUserPrompt(p, snippets, g.cfg.Legacy, core, violations))
		if err != nil {
			res.FallbackReason = reasonFor(err)
			g.logger.Warn("legacy generation attempt failed", map[string]interface{}{
				"applicationId": p.ApplicationID,
				"attempt":       res.Attempts,
				"reason":        res.FallbackReason,
				"error":         err.Error(),
			})
			if !retryable(ctx, err) {
				break
			}
			violations = []string{"the answer was not a JSON object in the requested format"}
			continue
		}

		items := EnforceCore(parsed.Checklist.Items, core, g.catalog)
		violations = g.cfg.Legacy.Check(items)
		if len(violations) > 0 {
			violations = append(violations, missingCore(parsed.Checklist.Items, core)...)
		}
		if len(violations) == 0 {
			res.Items = g.finishLegacy(items)
			res.FallbackReason = ""
			if parsed.Legacy != nil {
				res.Notes = parsed.Legacy.Notes
			}
			return res
		}

		res.FallbackReason = ReasonValidation
		g.logger.Warn("legacy checklist rejected", map[string]interface{}{
			"applicationId": p.ApplicationID,
			"attempt":       res.Attempts,
			"items":         len(items),
			"violations":    strings.Join(violations, "; "),
		})
		if ctx.Err() != nil {
			break
		}
	}

	metrics.Fallbacks.WithLabelValues(string(models.ModeLegacy), res.FallbackReason).Inc()
	res.Mode = models.ModeFallback
	res.AIFallbackUsed = true
	res.Items = FallbackChecklist(p, g.registry, g.catalog)
	return res
}

// missingCore reports the core documents the model left out. They count
// toward the item limits once added.
func missingCore(items []models.ChecklistItem, core []string) []string {
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
	}
	var out []string
	for _, id := range core {
		if !present[id] {
			out = append(out, fmt.Sprintf("core document %q is missing and counts toward the item limit", id))
		}
	}
	return out
}

// finishLegacy renumbers priorities by position and fills fields the policy
// does not check.
func (g *Generator) finishLegacy(items []models.ChecklistItem) []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(items))
	for i, it := range items {
		it.Priority = i + 1
		it.IsCoreRequired = false
		g.catalog.Fill(&it)
		out[i] = it
	}
	return out
}

// search fetches policy passages for the prompt. Failures only cost context.
func (g *Generator) search(ctx context.Context, p models.ApplicantProfile) []models.KnowledgeSnippet {
	if g.kb == nil || g.cfg.KnowledgeLimit <= 0 {
		return nil
	}
	snippets, err := g.kb.Search(ctx, p.CountryCode, p.VisaTypeCode, g.cfg.KnowledgeLimit)
	if err != nil {
		g.logger.Warn("knowledge search failed, prompting without policy passages", map[string]interface{}{
			"applicationId": p.ApplicationID,
			"countryCode":   p.CountryCode,
			"error":         err.Error(),
		})
		return nil
	}
	return snippets
}
