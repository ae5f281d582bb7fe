// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"visa-checklist/internal/common/validation"
)

//go:embed default_templates.json
var defaultTemplates []byte

var (
	schemaOnce sync.Once
	schema     *validation.Schema
)

func registrySchemaValidator() *validation.Schema {
	schemaOnce.Do(func() {
		schema = validation.MustCompile("template-registry", registrySchema)
	})
	return schema
}

// Default returns the registry compiled into the binary.
func Default() *TemplateRegistry {
	reg, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded template registry is invalid: %v", err))
	}
	return reg
}

// LoadRegistry reads and validates a registry file. An empty path yields the
// embedded default.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks raw registry JSON against the registry schema and for
// duplicate (country, visa type) keys.
func Validate(data []byte) error {
	res := registrySchemaValidator().ValidateBytes(data)
	if !res.Valid {
		return fmt.Errorf("template registry invalid: %s", strings.Join(res.GetErrorMessages(), "; "))
	}

	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return err
	}
	seen := make(map[string]bool, len(reg.Templates))
	for _, t := range reg.Templates {
		k := key(t.CountryCode, t.VisaType)
		if seen[k] {
			return fmt.Errorf("template registry invalid: duplicate template %s", k)
		}
		seen[k] = true
	}
	return nil
}

func Parse(data []byte) (*TemplateRegistry, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Save writes the registry as indented JSON after validating it.
func (r *TemplateRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func key(country, visaType string) string {
	return country + ":" + visaType
}

func (r *TemplateRegistry) find(country, visaType string) *Template {
	for i := range r.Templates {
		if r.Templates[i].CountryCode == country && r.Templates[i].VisaType == visaType {
			return &r.Templates[i]
		}
	}
	return nil
}

// candidates returns templates from most to least specific.
func (r *TemplateRegistry) candidates(country, visaType string) []*Template {
	var out []*Template
	for _, k := range [][2]string{
		{country, visaType},
		{country, Wildcard},
		{Wildcard, visaType},
		{Wildcard, Wildcard},
	} {
		if t := r.find(k[0], k[1]); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// CoreFor returns the union of core documents over every matching template,
// most specific first.
func (r *TemplateRegistry) CoreFor(country, visaType string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range r.candidates(country, visaType) {
		for _, id := range t.Core {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// MinimumFor returns the country's universally required documents, taken
// from the most specific template that declares any.
func (r *TemplateRegistry) MinimumFor(country, visaType string) []string {
	for _, t := range r.candidates(country, visaType) {
		if len(t.Minimum) > 0 {
			return append([]string(nil), t.Minimum...)
		}
	}
	return nil
}

// Upsert replaces the template with the same key or appends it.
func (r *TemplateRegistry) Upsert(t Template) {
	if existing := r.find(t.CountryCode, t.VisaType); existing != nil {
		*existing = t
		return
	}
	r.Templates = append(r.Templates, t)
}
