package generator

import (
	"visa-checklist/internal/checklist/catalog"
	"visa-checklist/internal/models"
	"visa-checklist/pkg/registry"
)

const visaStudent = "student"

// FallbackChecklist builds the deterministic checklist used when the model
// cannot produce an acceptable one: passport, the destination minimums and,
// for student visas, the student extras. Every item is REQUIRED.
func FallbackChecklist(p models.ApplicantProfile, reg *registry.TemplateRegistry, cat *catalog.Catalog) []models.ChecklistItem {
	ids := []string{"passport"}
	ids = append(ids, reg.MinimumFor(p.CountryCode, p.VisaTypeCode)...)
	if p.VisaTypeCode == visaStudent {
		ids = append(ids, reg.StudentExtras...)
	}

	seen := make(map[string]bool, len(ids))
	items := make([]models.ChecklistItem, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		item := cat.Item(id, models.DocumentRequired)
		item.Priority = len(items) + 1
		items = append(items, item)
	}
	return items
}

// EnforceCore marks core documents already present and appends the missing
// ones as REQUIRED. It returns a new slice and is idempotent.
func EnforceCore(items []models.ChecklistItem, core []string, cat *catalog.Catalog) []models.ChecklistItem {
	out := append([]models.ChecklistItem(nil), items...)

	index := make(map[string]int, len(out))
	maxPriority := 0
	for i, it := range out {
		index[it.ID] = i
		if it.Priority > maxPriority {
			maxPriority = it.Priority
		}
	}

	for _, id := range core {
		if i, ok := index[id]; ok {
			out[i].IsCoreRequired = true
			continue
		}
		item := cat.Item(id, models.DocumentRequired)
		item.IsCoreRequired = true
		maxPriority++
		item.Priority = maxPriority
		index[id] = len(out)
		out = append(out, item)
	}
	return out
}
