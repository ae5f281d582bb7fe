package models

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	DocumentRequired          DocumentStatus = "REQUIRED"
	DocumentHighlyRecommended DocumentStatus = "HIGHLY_RECOMMENDED"
	DocumentOptional          DocumentStatus = "OPTIONAL"
	DocumentConditional       DocumentStatus = "CONDITIONAL"
)

// ParseDocumentStatus accepts both canonical and legacy spellings
// ("required", "recommended", "highly-recommended", ...).
func ParseDocumentStatus(s string) (DocumentStatus, bool) {
	switch strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "REQUIRED", "MANDATORY":
		return DocumentRequired, true
	case "HIGHLY_RECOMMENDED", "RECOMMENDED":
		return DocumentHighlyRecommended, true
	case "OPTIONAL":
		return DocumentOptional, true
	case "CONDITIONAL":
		return DocumentConditional, true
	}
	return "", false
}

// ChecklistItem is the persisted, externally visible document requirement.
// Field names are a stability contract for mobile and web clients.
type ChecklistItem struct {
	ID                   string         `json:"id"`
	Status               DocumentStatus `json:"status"`
	WhoNeedsIt           string         `json:"whoNeedsIt"`
	Name                 string         `json:"name"`
	NameUz               string         `json:"nameUz"`
	NameRu               string         `json:"nameRu"`
	Description          string         `json:"description"`
	DescriptionUz        string         `json:"descriptionUz"`
	DescriptionRu        string         `json:"descriptionRu"`
	WhereToObtain        string         `json:"whereToObtain"`
	WhereToObtainUz      string         `json:"whereToObtainUz"`
	WhereToObtainRu      string         `json:"whereToObtainRu"`
	Priority             int            `json:"priority"`
	IsCoreRequired       bool           `json:"isCoreRequired"`
	ConditionDescription string         `json:"conditionDescription,omitempty"`
}

// MissingLocales returns the names of empty locale fields.
func (i ChecklistItem) MissingLocales() []string {
	var missing []string
	fields := []struct {
		name, value string
	}{
		{"name", i.Name}, {"nameUz", i.NameUz}, {"nameRu", i.NameRu},
		{"description", i.Description}, {"descriptionUz", i.DescriptionUz}, {"descriptionRu", i.DescriptionRu},
		{"whereToObtain", i.WhereToObtain}, {"whereToObtainUz", i.WhereToObtainUz}, {"whereToObtainRu", i.WhereToObtainRu},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

type ChecklistStatus string

const (
	ChecklistProcessing ChecklistStatus = "processing"
	ChecklistReady      ChecklistStatus = "ready"
	ChecklistFailed     ChecklistStatus = "failed"
)

type GenerationMode string

const (
	ModeHybrid   GenerationMode = "hybrid"
	ModeLegacy   GenerationMode = "legacy"
	ModeFallback GenerationMode = "fallback"
)

// DocumentChecklist is the persisted artifact, one per application.
// GenerationID identifies the logical artifact: every regeneration gets a
// new one and writes are conditional on it.
type DocumentChecklist struct {
	ApplicationID        string          `json:"applicationId"`
	GenerationID         string          `json:"generationId"`
	Status               ChecklistStatus `json:"status"`
	Items                []ChecklistItem `json:"items"`
	Mode                 GenerationMode  `json:"mode,omitempty"`
	GeneratedAt          *time.Time      `json:"generatedAt,omitempty"`
	SourceRuleSetVersion *int            `json:"sourceRuleSetVersion,omitempty"`
	AIFallbackUsed       bool            `json:"aiFallbackUsed"`
	ErrorMessage         *string         `json:"errorMessage,omitempty"`
	StartedAt            time.Time       `json:"startedAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
