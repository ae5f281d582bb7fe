package models

// Questionnaire is the raw questionnaire answers as stored by the application
// collaborator. Keys are not guaranteed; the profile builder reads them
// leniently.
type Questionnaire map[string]interface{}

// ApplicationMeta describes the visa application a checklist belongs to.
type ApplicationMeta struct {
	ApplicationID string `json:"applicationId"`
	UserID        string `json:"userId"`
	CountryCode   string `json:"countryCode"`
	CountryName   string `json:"countryName"`
	VisaType      string `json:"visaType"` // UI label, normalised by the rule resolver
	AppLanguage   string `json:"appLanguage"`
}

type ApplicationContext struct {
	Meta          ApplicationMeta `json:"meta"`
	Questionnaire Questionnaire   `json:"questionnaire"`
}
