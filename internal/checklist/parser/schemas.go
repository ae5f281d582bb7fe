package parser

import "visa-checklist/internal/common/validation"

// canonicalSchema matches {"items": [{"id": ..., ...}]}. Status is optional
// because enrichment responses take status from the rule set.
const canonicalSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "status": {"type": "string"},
          "whoNeedsIt": {"type": "string"},
          "name": {"type": "string"},
          "nameUz": {"type": "string"},
          "nameRu": {"type": "string"},
          "description": {"type": "string"},
          "descriptionUz": {"type": "string"},
          "descriptionRu": {"type": "string"},
          "whereToObtain": {"type": "string"},
          "whereToObtainUz": {"type": "string"},
          "whereToObtainRu": {"type": "string"},
          "priority": {"type": "number"},
          "conditionDescription": {"type": "string"}
        }
      }
    }
  }
}`

// legacySchema matches the original single-language response:
// {"type": "checklist", "checklist": [{"id", "type", "name", "description"}], "notes": [...]}.
const legacySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["checklist"],
  "properties": {
    "type": {"type": "string"},
    "visaType": {"type": "string"},
    "country": {"type": "string"},
    "checklist": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "name": {"type": "string"},
          "description": {"type": "string"},
          "countrySpecific": {"type": "boolean"}
        }
      }
    },
    "notes": {"type": ["array", "string"]}
  }
}`

var (
	canonicalValidator = validation.MustCompile("checklist-canonical", canonicalSchema)
	legacyValidator    = validation.MustCompile("checklist-legacy", legacySchema)
)
