// pkg/registry/schema.go
package registry

// TemplateRegistry lists the must-have document types per destination and
// visa type. "*" matches any country or visa type.
type TemplateRegistry struct {
	Version       string     `json:"version"`
	LastUpdated   string     `json:"lastUpdated"`
	StudentExtras []string   `json:"studentExtras"`
	Templates     []Template `json:"templates"`
}

// Template holds two lists. Core documents are always enforced into a
// generated checklist. Minimum documents are the country's universally
// required papers, used only to build the deterministic fallback.
type Template struct {
	CountryCode string   `json:"countryCode"`
	VisaType    string   `json:"visaType"`
	Core        []string `json:"core,omitempty"`
	Minimum     []string `json:"minimum,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

const Wildcard = "*"

const registrySchema = `{
  "type": "object",
  "required": ["version", "templates"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "studentExtras": {"type": "array", "items": {"$ref": "#/definitions/docId"}},
    "templates": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["countryCode", "visaType"],
        "properties": {
          "countryCode": {"type": "string", "pattern": "^([A-Z]{2}|\\*)$"},
          "visaType": {"type": "string", "pattern": "^([a-z_]+|\\*)$"},
          "core": {"type": "array", "items": {"$ref": "#/definitions/docId"}, "uniqueItems": true},
          "minimum": {"type": "array", "items": {"$ref": "#/definitions/docId"}, "uniqueItems": true},
          "notes": {"type": "string"}
        }
      }
    }
  },
  "definitions": {
    "docId": {"type": "string", "pattern": "^[a-z0-9_]+$"}
  }
}`
