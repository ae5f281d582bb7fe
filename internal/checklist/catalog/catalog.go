// Package catalog holds the deterministic document texts used when the
// model's enrichment is missing or discarded.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"visa-checklist/internal/models"
)

//go:embed documents.json
var documentsJSON []byte

// Text is one string in the three supported locales.
type Text struct {
	En string `json:"en"`
	Uz string `json:"uz"`
	Ru string `json:"ru"`
}

func (t Text) complete() bool {
	return strings.TrimSpace(t.En) != "" && strings.TrimSpace(t.Uz) != "" && strings.TrimSpace(t.Ru) != ""
}

type Entry struct {
	WhoNeedsIt    string `json:"whoNeedsIt"`
	Name          Text   `json:"name"`
	Description   Text   `json:"description"`
	WhereToObtain Text   `json:"whereToObtain"`
}

type Catalog struct {
	entries map[string]Entry
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalogue.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(documentsJSON)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded documents.json: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse reads a catalogue keyed by document id. Every entry must carry all
// three locales for name, description and where-to-obtain.
func Parse(data []byte) (*Catalog, error) {
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for id, e := range entries {
		if !e.Name.complete() || !e.Description.complete() || !e.WhereToObtain.complete() {
			return nil, fmt.Errorf("catalog entry %q is missing a translation", id)
		}
	}
	return &Catalog{entries: entries}, nil
}

func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the catalogue entry for id, or generic boilerplate built
// from the humanised id when the type is unknown.
func (c *Catalog) Entry(id string) Entry {
	if e, ok := c.entries[id]; ok {
		return e
	}
	name := Humanize(id)
	return Entry{
		WhoNeedsIt: "All applicants",
		Name:       Text{En: name, Uz: name, Ru: name},
		Description: Text{
			En: fmt.Sprintf("%s required for your visa application.", name),
			Uz: fmt.Sprintf("Viza arizangiz uchun talab qilinadigan hujjat: %s.", name),
			Ru: fmt.Sprintf("Документ, необходимый для визового заявления: %s.", name),
		},
		WhereToObtain: Text{
			En: "Check the embassy website for the issuing authority.",
			Uz: "Hujjatni beruvchi idorani elchixona saytidan aniqlang.",
			Ru: "Уточните выдающий орган на сайте посольства.",
		},
	}
}

// Item builds a fully populated checklist item from the catalogue.
func (c *Catalog) Item(id string, status models.DocumentStatus) models.ChecklistItem {
	e := c.Entry(id)
	return models.ChecklistItem{
		ID:              id,
		Status:          status,
		WhoNeedsIt:      e.WhoNeedsIt,
		Name:            e.Name.En,
		NameUz:          e.Name.Uz,
		NameRu:          e.Name.Ru,
		Description:     e.Description.En,
		DescriptionUz:   e.Description.Uz,
		DescriptionRu:   e.Description.Ru,
		WhereToObtain:   e.WhereToObtain.En,
		WhereToObtainUz: e.WhereToObtain.Uz,
		WhereToObtainRu: e.WhereToObtain.Ru,
	}
}

// Fill replaces blank text fields of item with catalogue text. Non-blank
// fields are left alone.
func (c *Catalog) Fill(item *models.ChecklistItem) {
	e := c.Entry(item.ID)
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&item.WhoNeedsIt, e.WhoNeedsIt)
	fill(&item.Name, e.Name.En)
	fill(&item.NameUz, e.Name.Uz)
	fill(&item.NameRu, e.Name.Ru)
	fill(&item.Description, e.Description.En)
	fill(&item.DescriptionUz, e.Description.Uz)
	fill(&item.DescriptionRu, e.Description.Ru)
	fill(&item.WhereToObtain, e.WhereToObtain.En)
	fill(&item.WhereToObtainUz, e.WhereToObtain.Uz)
	fill(&item.WhereToObtainRu, e.WhereToObtain.Ru)
}

// Humanize turns a document id into a display name: "ds160_confirmation"
// becomes "Ds160 confirmation".
func Humanize(id string) string {
	s := strings.TrimSpace(strings.ReplaceAll(id, "_", " "))
	if s == "" {
		return "Document"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
