package rules

import (
	"context"
	"errors"

	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"
)

// Resolver looks up the authoritative rule set for a destination and visa
// type. Only approved versions are visible.
type Resolver struct {
	repo   Repository
	logger logger.Logger
}

func NewResolver(repo Repository, log logger.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger.Component(log, "rule-resolver")}
}

// Resolve returns the highest approved rule set, or nil when none exists.
// A missing rule set is not an error.
func (r *Resolver) Resolve(ctx context.Context, countryCode, visaType string) (*models.RuleSet, error) {
	country := NormalizeCountryCode(countryCode)
	visa := NormalizeVisaType(country, visaType)
	if country == "" || visa == "" {
		return nil, nil
	}

	version, ok, err := r.repo.LatestApprovedVersion(ctx, country, visa)
	if err != nil {
		return nil, apperrors.NewRuleSetLookupFailedError(country, visa, err)
	}
	if !ok {
		return nil, nil
	}

	rs, err := r.repo.Load(ctx, country, visa, version)
	if errors.Is(err, ErrRuleSetNotFound) {
		r.logger.Warn("approved rule set disappeared between lookups", map[string]interface{}{
			"countryCode": country,
			"visaType":    visa,
			"version":     version,
		})
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewRuleSetLookupFailedError(country, visa, err)
	}
	if rs.Status == models.RuleSetDraft {
		return nil, nil
	}

	r.checkConditions(rs)
	return rs, nil
}

// ApprovedVersion returns the current approved version number, or nil.
// Used to decide whether a persisted checklist is stale.
func (r *Resolver) ApprovedVersion(ctx context.Context, countryCode, visaType string) (*int, error) {
	country := NormalizeCountryCode(countryCode)
	visa := NormalizeVisaType(country, visaType)
	if country == "" || visa == "" {
		return nil, nil
	}

	version, ok, err := r.repo.LatestApprovedVersion(ctx, country, visa)
	if err != nil {
		return nil, apperrors.NewRuleSetLookupFailedError(country, visa, err)
	}
	if !ok {
		return nil, nil
	}
	return &version, nil
}

// checkConditions logs shorthand conditions that will never match because
// they do not parse.
func (r *Resolver) checkConditions(rs *models.RuleSet) {
	for _, d := range rs.Documents {
		if d.ConditionExpr == "" {
			continue
		}
		if _, err := ParseCondition(d.ConditionExpr); err != nil {
			r.logger.Warn("rule set has an unparsable condition", map[string]interface{}{
				"ruleSetId":    rs.ID,
				"version":      rs.Version,
				"documentType": d.DocumentType,
				"condition":    d.ConditionExpr,
				"error":        err.Error(),
			})
		}
	}
}
