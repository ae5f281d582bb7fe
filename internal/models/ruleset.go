package models

import "time"

type RuleSetStatus string

const (
	RuleSetDraft      RuleSetStatus = "draft"
	RuleSetApproved   RuleSetStatus = "approved"
	RuleSetSuperseded RuleSetStatus = "superseded"
)

// RuleSet is the authoritative, versioned document requirement set for one
// country and visa type. It is produced by the embassy sync pipeline and is
// read-only here.
type RuleSet struct {
	ID            string                    `json:"id"`
	CountryCode   string                    `json:"countryCode"`
	VisaTypeCode  string                    `json:"visaTypeCode"`
	Version       int                       `json:"version"`
	Status        RuleSetStatus             `json:"status"`
	Documents     []DocumentRequirement     `json:"documents"`
	Financial     *FinancialRequirement     `json:"financial,omitempty"`
	Insurance     *InsuranceRequirement     `json:"insurance,omitempty"`
	Accommodation *AccommodationRequirement `json:"accommodation,omitempty"`
	Source        Provenance                `json:"source"`
	ApprovedAt    *time.Time                `json:"approvedAt,omitempty"`
}

type DocumentRequirement struct {
	DocumentType         string         `json:"documentType"`
	Category             DocumentStatus `json:"category,omitempty"`
	Description          string         `json:"description,omitempty"`
	Condition            *Condition     `json:"condition,omitempty"`
	ConditionExpr        string         `json:"conditionExpr,omitempty"` // shorthand, e.g. "sponsorType != self"
	ConditionDescription string         `json:"conditionDescription,omitempty"`
}

// Condition is a predicate over ApplicantProfile fields. Exactly one of
// All, Any, Not or Field is expected to be set.
type Condition struct {
	All    []Condition `json:"all,omitempty"`
	Any    []Condition `json:"any,omitempty"`
	Not    *Condition  `json:"not,omitempty"`
	Field  string      `json:"field,omitempty"`
	Op     string      `json:"op,omitempty"`
	Value  string      `json:"value,omitempty"`
	Values []string    `json:"values,omitempty"`
}

type FinancialRequirement struct {
	MinimumBalance  float64 `json:"minimumBalance,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	StatementMonths int     `json:"statementMonths,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

type InsuranceRequirement struct {
	Required        bool    `json:"required"`
	MinimumCoverage float64 `json:"minimumCoverage,omitempty"`
	Currency        string  `json:"currency,omitempty"`
}

type AccommodationRequirement struct {
	ProofRequired bool     `json:"proofRequired"`
	AcceptedForms []string `json:"acceptedForms,omitempty"`
}

type Provenance struct {
	URL         string    `json:"url,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	ExtractedAt time.Time `json:"extractedAt,omitempty"`
}

// BaseDocument is one entry of a BaseDocumentSet.
type BaseDocument struct {
	ID                   string         `json:"id"`
	Status               DocumentStatus `json:"status"`
	Description          string         `json:"description,omitempty"`
	ConditionDescription string         `json:"conditionDescription,omitempty"`
}

// BaseDocumentSet is the deterministic, ordered and deduplicated result of
// evaluating a RuleSet against a profile.
type BaseDocumentSet struct {
	RuleSetVersion int            `json:"ruleSetVersion"`
	Documents      []BaseDocument `json:"documents"`
}

func (b BaseDocumentSet) IDs() []string {
	ids := make([]string, 0, len(b.Documents))
	for _, d := range b.Documents {
		ids = append(ids, d.ID)
	}
	return ids
}

func (b BaseDocumentSet) Contains(id string) bool {
	for _, d := range b.Documents {
		if d.ID == id {
			return true
		}
	}
	return false
}
