package generator

import (
	"context"
	"strings"

	"visa-checklist/internal/checklist/rules"
	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/models"
)

// hybrid evaluates the rule set and asks the model to describe exactly the
// resulting documents. The id set and every status come from the rules; the
// model contributes text only.
func (g *Generator) hybrid(ctx context.Context, p models.ApplicantProfile, rs *models.RuleSet) *Result {
	version := rs.Version
	res := &Result{Mode: models.ModeHybrid, RuleSetVersion: &version}

	core := g.registry.CoreFor(p.CountryCode, p.VisaTypeCode)
	docs := withCore(rules.Evaluate(rs, p).Documents, core)
	user := hybridUserPrompt(p, docs)

	var enrichment map[string]models.ChecklistItem
	for res.Attempts < g.maxAttempts() {
		res.Attempts++
		parsed, err := g.complete(ctx, models.ModeHybrid, hybridSystemPrompt, user)
		if err == nil {
			enrichment = indexByID(parsed.Checklist.Items)
			break
		}
		res.FallbackReason = reasonFor(err)
		g.logger.Warn("hybrid enrichment attempt failed", map[string]interface{}{
			"applicationId": p.ApplicationID,
			"attempt":       res.Attempts,
			"reason":        res.FallbackReason,
			"error":         err.Error(),
		})
		if !retryable(ctx, err) {
			break
		}
	}

	if enrichment == nil {
		res.AIFallbackUsed = true
		metrics.Fallbacks.WithLabelValues(string(models.ModeHybrid), res.FallbackReason).Inc()
	} else {
		res.FallbackReason = ""
		g.reportMismatch(p, docs, enrichment)
	}

	isCore := make(map[string]bool, len(core))
	for _, id := range core {
		isCore[id] = true
	}

	res.Items = make([]models.ChecklistItem, 0, len(docs))
	for i, d := range docs {
		item := models.ChecklistItem{
			ID:                   d.ID,
			Status:               d.Status,
			Priority:             i + 1,
			IsCoreRequired:       isCore[d.ID],
			ConditionDescription: d.ConditionDescription,
		}
		if e, ok := enrichment[d.ID]; ok {
			applyText(&item, e)
		}
		if strings.TrimSpace(item.Description) == "" {
			item.Description = d.Description
		}
		g.catalog.Fill(&item)
		res.Items = append(res.Items, item)
	}
	return res
}

// withCore appends core documents the rules did not produce. Rule statuses
// are kept for core documents that are already present.
func withCore(docs []models.BaseDocument, core []string) []models.BaseDocument {
	out := append([]models.BaseDocument(nil), docs...)
	present := make(map[string]bool, len(out))
	for _, d := range out {
		present[d.ID] = true
	}
	for _, id := range core {
		if !present[id] {
			present[id] = true
			out = append(out, models.BaseDocument{ID: id, Status: models.DocumentRequired})
		}
	}
	return out
}

// indexByID keeps the first model item for each id.
func indexByID(items []models.ChecklistItem) map[string]models.ChecklistItem {
	m := make(map[string]models.ChecklistItem, len(items))
	for _, it := range items {
		if _, dup := m[it.ID]; !dup && it.ID != "" {
			m[it.ID] = it
		}
	}
	return m
}

// applyText copies the non-blank text fields of src into dst.
func applyText(dst *models.ChecklistItem, src models.ChecklistItem) {
	set := func(d *string, s string) {
		if strings.TrimSpace(s) != "" {
			*d = strings.TrimSpace(s)
		}
	}
	set(&dst.WhoNeedsIt, src.WhoNeedsIt)
	set(&dst.Name, src.Name)
	set(&dst.NameUz, src.NameUz)
	set(&dst.NameRu, src.NameRu)
	set(&dst.Description, src.Description)
	set(&dst.DescriptionUz, src.DescriptionUz)
	set(&dst.DescriptionRu, src.DescriptionRu)
	set(&dst.WhereToObtain, src.WhereToObtain)
	set(&dst.WhereToObtainUz, src.WhereToObtainUz)
	set(&dst.WhereToObtainRu, src.WhereToObtainRu)
}

func (g *Generator) reportMismatch(p models.ApplicantProfile, docs []models.BaseDocument, enrichment map[string]models.ChecklistItem) {
	want := make(map[string]bool, len(docs))
	var missing, extra []string
	for _, d := range docs {
		want[d.ID] = true
		if _, ok := enrichment[d.ID]; !ok {
			missing = append(missing, d.ID)
		}
	}
	for id := range enrichment {
		if !want[id] {
			extra = append(extra, id)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return
	}
	g.logger.Warn("model changed the document set; using catalogue text where needed", map[string]interface{}{
		"applicationId": p.ApplicationID,
		"missing":       missing,
		"dropped":       extra,
	})
}
