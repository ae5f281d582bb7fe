// Package parser recovers checklist JSON from raw model output and
// normalises the two accepted shapes into one canonical form.
package parser

import (
	"encoding/json"
	"sort"
	"strings"

	"visa-checklist/internal/checklist/rules"
	"visa-checklist/internal/models"
)

type Format string

const (
	FormatCanonical    Format = "canonical"
	FormatLegacy       Format = "legacy"
	FormatUnrecognized Format = "unrecognized"
)

// Step names the repair step that produced a parse.
type Step string

const (
	StepDirect   Step = "direct"
	StepFence    Step = "fence"
	StepBalanced Step = "balanced"
	StepNone     Step = "none"
)

// Checklist is the canonical in-memory form.
type Checklist struct {
	Items []models.ChecklistItem `json:"items"`
}

// IDs returns item ids in order.
func (c *Checklist) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ID
	}
	return ids
}

type LegacyItem struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	CountrySpecific bool   `json:"countrySpecific"`
}

// LegacyChecklist is the response shape the public API was first built on.
type LegacyChecklist struct {
	Type      string       `json:"type"`
	VisaType  string       `json:"visaType"`
	Country   string       `json:"country"`
	Checklist []LegacyItem `json:"checklist"`
	Notes     []string     `json:"notes"`
}

// Result of Parse. Checklist is set for both recognised formats; Legacy is
// set only when the model answered in the legacy shape.
type Result struct {
	Format    Format
	Step      Step
	Checklist *Checklist
	Legacy    *LegacyChecklist
}

type candidate struct {
	step Step
	text string
}

// Parse applies the repair ladder (direct, fence strip, largest balanced
// object) and returns the first candidate in a recognised shape.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)

	candidates := []candidate{{StepDirect, text}}
	if s, ok := stripFence(text); ok {
		candidates = append(candidates, candidate{StepFence, s})
	}
	for _, s := range balancedObjects(text) {
		candidates = append(candidates, candidate{StepBalanced, s})
	}

	for _, c := range candidates {
		if res, ok := classify(c.text); ok {
			res.Step = c.step
			return res
		}
	}
	return Result{Format: FormatUnrecognized, Step: StepNone}
}

func classify(text string) (Result, bool) {
	if text == "" {
		return Result{}, false
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Result{}, false
	}

	if canonicalValidator.Validate(doc).Valid {
		cl, err := decodeCanonical([]byte(text))
		if err == nil {
			return Result{Format: FormatCanonical, Checklist: cl}, true
		}
	}
	if legacyValidator.Validate(doc).Valid {
		l, err := decodeLegacy([]byte(text))
		if err == nil {
			return Result{Format: FormatLegacy, Checklist: ToCanonical(l), Legacy: l}, true
		}
	}
	return Result{}, false
}

// rawItem tolerates fractional priorities and unknown status spellings.
type rawItem struct {
	ID                   string  `json:"id"`
	Status               string  `json:"status"`
	WhoNeedsIt           string  `json:"whoNeedsIt"`
	Name                 string  `json:"name"`
	NameUz               string  `json:"nameUz"`
	NameRu               string  `json:"nameRu"`
	Description          string  `json:"description"`
	DescriptionUz        string  `json:"descriptionUz"`
	DescriptionRu        string  `json:"descriptionRu"`
	WhereToObtain        string  `json:"whereToObtain"`
	WhereToObtainUz      string  `json:"whereToObtainUz"`
	WhereToObtainRu      string  `json:"whereToObtainRu"`
	Priority             float64 `json:"priority"`
	ConditionDescription string  `json:"conditionDescription"`
}

func decodeCanonical(data []byte) (*Checklist, error) {
	var doc struct {
		Items []rawItem `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	cl := &Checklist{Items: make([]models.ChecklistItem, 0, len(doc.Items))}
	for _, r := range doc.Items {
		status, _ := models.ParseDocumentStatus(r.Status)
		cl.Items = append(cl.Items, models.ChecklistItem{
			ID:                   rules.NormalizeDocumentID(r.ID),
			Status:               status,
			WhoNeedsIt:           strings.TrimSpace(r.WhoNeedsIt),
			Name:                 strings.TrimSpace(r.Name),
			NameUz:               strings.TrimSpace(r.NameUz),
			NameRu:               strings.TrimSpace(r.NameRu),
			Description:          strings.TrimSpace(r.Description),
			DescriptionUz:        strings.TrimSpace(r.DescriptionUz),
			DescriptionRu:        strings.TrimSpace(r.DescriptionRu),
			WhereToObtain:        strings.TrimSpace(r.WhereToObtain),
			WhereToObtainUz:      strings.TrimSpace(r.WhereToObtainUz),
			WhereToObtainRu:      strings.TrimSpace(r.WhereToObtainRu),
			Priority:             int(r.Priority),
			ConditionDescription: strings.TrimSpace(r.ConditionDescription),
		})
	}
	return cl, nil
}

func decodeLegacy(data []byte) (*LegacyChecklist, error) {
	var doc struct {
		Type      string          `json:"type"`
		VisaType  string          `json:"visaType"`
		Country   string          `json:"country"`
		Checklist []LegacyItem    `json:"checklist"`
		Notes     json.RawMessage `json:"notes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	l := &LegacyChecklist{
		Type:      doc.Type,
		VisaType:  doc.VisaType,
		Country:   doc.Country,
		Checklist: doc.Checklist,
	}
	if l.Type == "" {
		l.Type = "checklist"
	}
	if len(doc.Notes) > 0 {
		var many []string
		var one string
		switch {
		case json.Unmarshal(doc.Notes, &many) == nil:
			l.Notes = many
		case json.Unmarshal(doc.Notes, &one) == nil && one != "":
			l.Notes = []string{one}
		}
	}
	return l, nil
}

// stripFence returns the body of the first markdown code fence.
func stripFence(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	body := text[start+3:]
	// Drop the info string ("json", "JSON", ...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

// balancedObjects returns every top-level balanced {...} span in text,
// longest first. Braces inside JSON strings are ignored.
func balancedObjects(text string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
			}
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return len(spans[i]) > len(spans[j]) })
	return spans
}
