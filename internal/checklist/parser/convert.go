package parser

import (
	"strings"

	"visa-checklist/internal/checklist/rules"
	"visa-checklist/internal/models"
)

var universalDocuments = map[string]bool{
	"passport":         true,
	"application_form": true,
	"photo":            true,
	"bank_statement":   true,
}

// ToLegacy maps the canonical form to the legacy shape. Only the English
// text survives; the legacy shape has one locale.
func ToLegacy(cl *Checklist, country, visaType string, notes []string) *LegacyChecklist {
	l := &LegacyChecklist{
		Type:     "checklist",
		VisaType: visaType,
		Country:  country,
		Notes:    notes,
	}
	if cl == nil {
		return l
	}
	l.Checklist = make([]LegacyItem, 0, len(cl.Items))
	for _, it := range cl.Items {
		l.Checklist = append(l.Checklist, LegacyItem{
			ID:              it.ID,
			Type:            legacyType(it.Status),
			Name:            it.Name,
			Description:     it.Description,
			CountrySpecific: !universalDocuments[it.ID],
		})
	}
	return l
}

// ToCanonical maps the legacy shape to the canonical form. Legacy text
// fills the English fields; priority follows list order.
func ToCanonical(l *LegacyChecklist) *Checklist {
	cl := &Checklist{}
	if l == nil {
		return cl
	}
	cl.Items = make([]models.ChecklistItem, 0, len(l.Checklist))
	for i, it := range l.Checklist {
		status, ok := models.ParseDocumentStatus(it.Type)
		if !ok {
			status = models.DocumentRequired
		}
		cl.Items = append(cl.Items, models.ChecklistItem{
			ID:          rules.NormalizeDocumentID(it.ID),
			Status:      status,
			Name:        strings.TrimSpace(it.Name),
			Description: strings.TrimSpace(it.Description),
			Priority:    i + 1,
		})
	}
	return cl
}

func legacyType(s models.DocumentStatus) string {
	switch s {
	case models.DocumentHighlyRecommended:
		return "recommended"
	case models.DocumentOptional:
		return "optional"
	case models.DocumentConditional:
		return "conditional"
	default:
		return "required"
	}
}
