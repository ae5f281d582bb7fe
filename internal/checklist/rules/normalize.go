package rules

import (
	"strings"
)

var countryAliases = map[string]string{
	"UK":  "GB",
	"USA": "US",
	"UAE": "AE",
}

// NormalizeCountryCode upper-cases and trims an ISO 3166 alpha-2 code and
// maps the common non-ISO spellings.
func NormalizeCountryCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := countryAliases[code]; ok {
		return alias
	}
	return code
}

// visaAliases maps UI-facing visa labels to canonical rule keys per
// destination. Keys are already case-folded, trimmed and stripped of a
// trailing "visa" token.
var visaAliases = map[string]map[string]string{
	"US": {
		"b1/b2 visitor": "tourist",
		"b1/b2":         "tourist",
		"b-1/b-2":       "tourist",
		"b2":            "tourist",
		"b-2":           "tourist",
		"b1":            "business",
		"b-1":           "business",
		"f1":            "student",
		"f-1":           "student",
		"m1":            "student",
		"m-1":           "student",
		"j1":            "exchange",
		"j-1":           "exchange",
		"h1b":           "work",
		"h-1b":          "work",
	},
	"GB": {
		"standard visitor": "tourist",
		"student route":    "student",
		"tier 4":           "student",
		"tier 4 student":   "student",
		"skilled worker":   "work",
	},
	"CA": {
		"trv":                "tourist",
		"temporary resident": "tourist",
		"visitor visa (trv)": "tourist",
		"study permit":       "student",
		"work permit":        "work",
	},
	"AU": {
		"subclass 600":           "tourist",
		"visitor (subclass 600)": "tourist",
		"subclass 500":           "student",
		"student (subclass 500)": "student",
	},
}

var globalVisaAliases = map[string]string{
	"tourism":    "tourist",
	"visitor":    "tourist",
	"travel":     "tourist",
	"schengen":   "tourist",
	"short stay": "tourist",
	"type c":     "tourist",
	"study":      "student",
	"education":  "student",
	"employment": "work",
	"worker":     "work",
}

// NormalizeVisaType maps a visa label to its canonical rule key: case-fold,
// collapse whitespace, strip a trailing "visa" token, then apply the
// destination alias table and the global one. Unknown labels become a slug.
func NormalizeVisaType(countryCode, raw string) string {
	v := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	v = strings.TrimSuffix(v, " visa")
	if v == "visa" {
		v = ""
	}
	if v == "" {
		return ""
	}

	if aliases, ok := visaAliases[NormalizeCountryCode(countryCode)]; ok {
		if canonical, ok := aliases[v]; ok {
			return canonical
		}
	}
	if canonical, ok := globalVisaAliases[v]; ok {
		return canonical
	}
	return slug(v)
}

// NormalizeDocumentID turns a document type label into its stable slug id.
func NormalizeDocumentID(raw string) string {
	return slug(strings.ToLower(strings.TrimSpace(raw)))
}

func slug(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
