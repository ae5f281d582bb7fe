package rules

import (
	"fmt"
	"strings"

	"visa-checklist/internal/models"
)

// Derived document ids appended for rule-set sub-requirements.
const (
	DocBankStatement      = "bank_statement"
	DocTravelInsurance    = "travel_insurance"
	DocAccommodationProof = "accommodation_proof"
)

// Applies reports whether a document requirement applies to the profile.
// The structured condition and the shorthand expression must both hold when
// both are present. An unparsable expression never applies.
func Applies(doc models.DocumentRequirement, p models.ApplicantProfile) bool {
	if !EvalCondition(doc.Condition, p) {
		return false
	}
	if strings.TrimSpace(doc.ConditionExpr) == "" {
		return true
	}
	c, err := ParseCondition(doc.ConditionExpr)
	if err != nil {
		return false
	}
	return EvalCondition(c, p)
}

// Evaluate produces the BaseDocumentSet for a profile. Documents are visited
// in declaration order, the first occurrence of an id wins, and derived
// sub-requirement documents follow the declared ones. The result depends only
// on its inputs.
func Evaluate(rs *models.RuleSet, p models.ApplicantProfile) models.BaseDocumentSet {
	out := models.BaseDocumentSet{}
	if rs == nil {
		return out
	}
	out.RuleSetVersion = rs.Version

	seen := make(map[string]bool, len(rs.Documents)+3)
	add := func(doc models.BaseDocument) {
		if doc.ID == "" || seen[doc.ID] {
			return
		}
		seen[doc.ID] = true
		out.Documents = append(out.Documents, doc)
	}

	for _, d := range rs.Documents {
		if !Applies(d, p) {
			continue
		}
		status, ok := models.ParseDocumentStatus(string(d.Category))
		if !ok {
			status = models.DocumentRequired
		}
		add(models.BaseDocument{
			ID:                   NormalizeDocumentID(d.DocumentType),
			Status:               status,
			Description:          d.Description,
			ConditionDescription: d.ConditionDescription,
		})
	}

	if f := rs.Financial; f != nil {
		add(models.BaseDocument{
			ID:          DocBankStatement,
			Status:      models.DocumentRequired,
			Description: financialDescription(f),
		})
	}
	if ins := rs.Insurance; ins != nil && ins.Required {
		desc := "Travel medical insurance valid for the whole stay"
		if ins.MinimumCoverage > 0 {
			desc = fmt.Sprintf("%s with coverage of at least %.0f %s", desc, ins.MinimumCoverage, ins.Currency)
		}
		add(models.BaseDocument{
			ID:          DocTravelInsurance,
			Status:      models.DocumentRequired,
			Description: desc,
		})
	}
	if acc := rs.Accommodation; acc != nil && acc.ProofRequired {
		desc := "Proof of accommodation for the whole stay"
		if len(acc.AcceptedForms) > 0 {
			desc = fmt.Sprintf("%s (%s)", desc, strings.Join(acc.AcceptedForms, ", "))
		}
		add(models.BaseDocument{
			ID:          DocAccommodationProof,
			Status:      models.DocumentHighlyRecommended,
			Description: desc,
		})
	}

	return out
}

func financialDescription(f *models.FinancialRequirement) string {
	months := f.StatementMonths
	if months <= 0 {
		months = 3
	}
	desc := fmt.Sprintf("Bank statements for the last %d months", months)
	if f.MinimumBalance > 0 {
		desc = fmt.Sprintf("%s showing a balance of at least %.0f %s", desc, f.MinimumBalance, f.Currency)
	}
	if f.Notes != "" {
		desc += ". " + f.Notes
	}
	return desc
}
