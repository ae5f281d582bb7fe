// Package profile turns raw questionnaire answers into an ApplicantProfile.
package profile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"visa-checklist/internal/checklist/rules"
	"visa-checklist/internal/models"
)

// Questionnaire keys accepted for each fact, in lookup order. Dotted keys
// address nested objects.
var (
	ageKeys          = []string{"age", "personal.age", "personalInfo.age"}
	ageRangeKeys     = []string{"ageRange", "personal.ageRange"}
	birthDateKeys    = []string{"dateOfBirth", "birthDate", "personal.dateOfBirth", "personalInfo.dateOfBirth"}
	maritalKeys      = []string{"maritalStatus", "personal.maritalStatus", "personalInfo.maritalStatus"}
	employmentKeys   = []string{"employmentStatus", "employment.status", "currentStatus", "occupation"}
	sponsorKeys      = []string{"sponsorType", "sponsor", "finances.sponsor", "finances.sponsorType", "whoPays"}
	incomeBandKeys   = []string{"incomeBand", "finances.incomeBand"}
	incomeKeys       = []string{"monthlyIncome", "finances.monthlyIncome", "income", "finances.income"}
	bankKeys         = []string{"hasBankStatement", "finances.hasBankStatement", "bankStatement"}
	propertyKeys     = []string{"hasProperty", "ties.hasProperty", "ownsProperty"}
	businessKeys     = []string{"hasBusiness", "ties.hasBusiness", "ownsBusiness"}
	familyKeys       = []string{"familyInHomeCountry", "familyInUzbekistan", "ties.familyInHomeCountry", "ties.family"}
	priorTravelKeys  = []string{"hasPriorTravel", "hasTraveledBefore", "travelHistory.hasTraveled", "travelHistory"}
	priorRefusalKeys = []string{"hasPriorRefusals", "previousRefusals", "hasVisaRefusals", "travelHistory.refusals"}
)

// countryExtensions lists the destination-specific identifiers kept on the
// profile for each country.
var countryExtensions = map[string][]string{
	"US": {"sevisId", "i20Number", "ds160Confirmation"},
	"GB": {"casNumber"},
	"AU": {"coeNumber"},
	"CA": {"dliNumber", "loaNumber"},
}

// Monthly income thresholds in USD for the income bands.
const (
	lowIncomeBelow    = 500
	mediumIncomeBelow = 2000
)

// Build derives the applicant profile. It never fails: unknown or missing
// answers fall back to defaults (sponsor "self", "unknown" enums, false
// flags).
func Build(q models.Questionnaire, meta models.ApplicationMeta) models.ApplicantProfile {
	return BuildAt(q, meta, time.Now().UTC())
}

// BuildAt is Build with an explicit clock for age computation.
func BuildAt(q models.Questionnaire, meta models.ApplicationMeta, now time.Time) models.ApplicantProfile {
	country := rules.NormalizeCountryCode(meta.CountryCode)
	lang := normalizeLanguage(meta.AppLanguage)

	p := models.ApplicantProfile{
		ApplicationID:       meta.ApplicationID,
		CountryCode:         country,
		CountryName:         strings.TrimSpace(meta.CountryName),
		VisaTypeCode:        rules.NormalizeVisaType(country, meta.VisaType),
		VisaTypeLabel:       strings.TrimSpace(meta.VisaType),
		AppLanguage:         lang,
		MaritalStatus:       maritalStatus(q),
		EmploymentStatus:    employmentStatus(q),
		SponsorType:         sponsorType(q),
		IncomeBand:          incomeBand(q),
		HasBankStatement:    flag(q, bankKeys),
		HasProperty:         flag(q, propertyKeys),
		HasBusiness:         flag(q, businessKeys),
		FamilyInHomeCountry: flag(q, familyKeys),
		HasPriorTravel:      flag(q, priorTravelKeys),
		HasPriorRefusals:    flag(q, priorRefusalKeys),
	}
	if p.CountryName == "" {
		p.CountryName = country
	}

	p.AgeRange = ageRange(q, now)
	p.IsMinor = p.AgeRange == models.AgeUnder18
	p.Extensions = extensions(q, country)

	return p
}

func normalizeLanguage(lang string) string {
	switch l := strings.ToLower(strings.TrimSpace(lang)); l {
	case "uz", "ru", "en":
		return l
	default:
		return "en"
	}
}

// lookup finds the first present key. Dotted keys walk nested maps.
func lookup(q models.Questionnaire, keys []string) (interface{}, bool) {
	for _, key := range keys {
		var cur interface{} = map[string]interface{}(q)
		found := true
		for _, part := range strings.Split(key, ".") {
			m, ok := cur.(map[string]interface{})
			if !ok {
				found = false
				break
			}
			if cur, ok = m[part]; !ok {
				found = false
				break
			}
		}
		if found && cur != nil {
			return cur, true
		}
	}
	return nil, false
}

func text(q models.Questionnaire, keys []string) string {
	v, ok := lookup(q, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(t.String()))
	case map[string]interface{}, []interface{}:
		return ""
	default:
		return strings.ToLower(fmt.Sprint(t))
	}
}

func number(q models.Questionnaire, keys []string) (float64, bool) {
	v, ok := lookup(q, keys)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// flag reads a yes/no answer. Non-empty lists and objects count as yes.
func flag(q models.Questionnaire, keys []string) bool {
	v, ok := lookup(q, keys)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "ha", "да":
			return true
		}
		return false
	case float64:
		return t > 0
	case int:
		return t > 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return false
}

func ageRange(q models.Questionnaire, now time.Time) string {
	if r := text(q, ageRangeKeys); r != "" {
		for _, known := range models.OrdinalEnums["ageRange"] {
			if r == known {
				return r
			}
		}
	}
	if age, ok := number(q, ageKeys); ok && age > 0 {
		return bucketAge(int(age))
	}
	if v, ok := lookup(q, birthDateKeys); ok {
		dob, _ := v.(string)
		for _, layout := range []string{"2006-01-02", "02.01.2006", time.RFC3339} {
			if t, err := time.Parse(layout, dob); err == nil {
				return bucketAge(yearsBetween(t, now))
			}
		}
	}
	return models.AgeUnknown
}

func yearsBetween(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func bucketAge(age int) string {
	switch {
	case age < 0:
		return models.AgeUnknown
	case age < 18:
		return models.AgeUnder18
	case age <= 25:
		return models.Age18To25
	case age <= 35:
		return models.Age26To35
	case age <= 50:
		return models.Age36To50
	default:
		return models.Age51Plus
	}
}

func maritalStatus(q models.Questionnaire) string {
	switch text(q, maritalKeys) {
	case "single", "never_married", "unmarried":
		return models.MaritalSingle
	case "married":
		return models.MaritalMarried
	case "divorced", "separated":
		return models.MaritalDivorced
	case "widowed", "widow", "widower":
		return models.MaritalWidowed
	default:
		return models.MaritalUnknown
	}
}

func employmentStatus(q models.Questionnaire) string {
	switch strings.ReplaceAll(text(q, employmentKeys), "-", "_") {
	case "employed", "employee", "working", "full_time", "part_time":
		return models.EmploymentEmployed
	case "self_employed", "business_owner", "entrepreneur", "freelancer":
		return models.EmploymentSelfEmployed
	case "student", "studying":
		return models.EmploymentStudent
	case "unemployed", "not_working", "homemaker":
		return models.EmploymentUnemployed
	case "retired", "pensioner":
		return models.EmploymentRetired
	default:
		return models.EmploymentUnknown
	}
}

func sponsorType(q models.Questionnaire) string {
	switch text(q, sponsorKeys) {
	case "family", "parents", "parent", "relative", "spouse":
		return models.SponsorFamily
	case "employer", "company":
		return models.SponsorEmployer
	case "government", "scholarship", "grant":
		return models.SponsorGovernment
	case "other", "third_party", "friend", "university":
		return models.SponsorOther
	default:
		return models.SponsorSelf
	}
}

func incomeBand(q models.Questionnaire) string {
	switch b := text(q, incomeBandKeys); b {
	case models.IncomeLow, models.IncomeMedium, models.IncomeHigh:
		return b
	}
	income, ok := number(q, incomeKeys)
	if !ok || income < 0 {
		return models.IncomeUnknown
	}
	switch {
	case income < lowIncomeBelow:
		return models.IncomeLow
	case income < mediumIncomeBelow:
		return models.IncomeMedium
	default:
		return models.IncomeHigh
	}
}

// extensions keeps only the identifiers defined for the destination. Values
// are read from the top level or from an "extensions" object.
func extensions(q models.Questionnaire, country string) map[string]string {
	keys := countryExtensions[country]
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := lookup(q, []string{k, "extensions." + k})
		if !ok {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
