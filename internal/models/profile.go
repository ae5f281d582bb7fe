package models

import "strconv"

const (
	SponsorSelf       = "self"
	SponsorFamily     = "family"
	SponsorEmployer   = "employer"
	SponsorGovernment = "government"
	SponsorOther      = "other"
)

const (
	EmploymentEmployed     = "employed"
	EmploymentSelfEmployed = "self_employed"
	EmploymentStudent      = "student"
	EmploymentUnemployed   = "unemployed"
	EmploymentRetired      = "retired"
	EmploymentUnknown      = "unknown"
)

const (
	MaritalSingle   = "single"
	MaritalMarried  = "married"
	MaritalDivorced = "divorced"
	MaritalWidowed  = "widowed"
	MaritalUnknown  = "unknown"
)

const (
	IncomeLow     = "low"
	IncomeMedium  = "medium"
	IncomeHigh    = "high"
	IncomeUnknown = "unknown"
)

const (
	AgeUnder18 = "under_18"
	Age18To25  = "18_25"
	Age26To35  = "26_35"
	Age36To50  = "36_50"
	Age51Plus  = "51_plus"
	AgeUnknown = "unknown"
)

// OrdinalEnums lists the profile fields whose values are ordered, lowest
// first. Only these fields accept gt/gte/lt/lte predicates.
var OrdinalEnums = map[string][]string{
	"incomeBand": {IncomeLow, IncomeMedium, IncomeHigh},
	"ageRange":   {AgeUnder18, Age18To25, Age26To35, Age36To50, Age51Plus},
}

// ApplicantProfile is an immutable snapshot of the applicant facts used by
// rule evaluation and prompt construction.
type ApplicantProfile struct {
	ApplicationID string `json:"applicationId"`

	CountryCode   string `json:"countryCode"`
	CountryName   string `json:"countryName"`
	VisaTypeCode  string `json:"visaTypeCode"`
	VisaTypeLabel string `json:"visaTypeLabel"`
	AppLanguage   string `json:"appLanguage"`

	AgeRange      string `json:"ageRange"`
	MaritalStatus string `json:"maritalStatus"`
	IsMinor       bool   `json:"isMinor"`

	EmploymentStatus string `json:"employmentStatus"`
	SponsorType      string `json:"sponsorType"`
	IncomeBand       string `json:"incomeBand"`
	HasBankStatement bool   `json:"hasBankStatement"`

	HasProperty         bool `json:"hasProperty"`
	HasBusiness         bool `json:"hasBusiness"`
	FamilyInHomeCountry bool `json:"familyInHomeCountry"`

	HasPriorTravel   bool `json:"hasPriorTravel"`
	HasPriorRefusals bool `json:"hasPriorRefusals"`

	// Extensions holds destination-specific identifiers (sevisId, casNumber,
	// coeNumber, ...). Only keys relevant to CountryCode are kept.
	Extensions map[string]string `json:"extensions,omitempty"`
}

// Field returns the string form of a named profile field. Booleans render as
// "true"/"false". Extension fields are addressed as "ext.<key>".
func (p ApplicantProfile) Field(name string) (string, bool) {
	switch name {
	case "countryCode":
		return p.CountryCode, true
	case "visaType", "visaTypeCode":
		return p.VisaTypeCode, true
	case "appLanguage":
		return p.AppLanguage, true
	case "ageRange":
		return p.AgeRange, true
	case "maritalStatus":
		return p.MaritalStatus, true
	case "isMinor":
		return strconv.FormatBool(p.IsMinor), true
	case "employmentStatus":
		return p.EmploymentStatus, true
	case "sponsorType":
		return p.SponsorType, true
	case "incomeBand":
		return p.IncomeBand, true
	case "hasBankStatement":
		return strconv.FormatBool(p.HasBankStatement), true
	case "hasProperty":
		return strconv.FormatBool(p.HasProperty), true
	case "hasBusiness":
		return strconv.FormatBool(p.HasBusiness), true
	case "familyInHomeCountry":
		return strconv.FormatBool(p.FamilyInHomeCountry), true
	case "hasPriorTravel":
		return strconv.FormatBool(p.HasPriorTravel), true
	case "hasPriorRefusals":
		return strconv.FormatBool(p.HasPriorRefusals), true
	}
	if len(name) > 4 && name[:4] == "ext." {
		v, ok := p.Extensions[name[4:]]
		return v, ok
	}
	return "", false
}
