package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"visa-checklist/internal/models"
)

const (
	latestApprovedVersionQuery = `
		SELECT version
		FROM rule_sets
		WHERE country_code = $1 AND visa_type = $2 AND status = 'approved'
		ORDER BY version DESC
		LIMIT 1`

	loadRuleSetQuery = `
		SELECT id, status, requirements, source_url, source_confidence, extracted_at, approved_at
		FROM rule_sets
		WHERE country_code = $1 AND visa_type = $2 AND version = $3`
)

// requirementsDocument is the JSONB payload of rule_sets.requirements.
type requirementsDocument struct {
	Documents     []models.DocumentRequirement     `json:"documents"`
	Financial     *models.FinancialRequirement     `json:"financial,omitempty"`
	Insurance     *models.InsuranceRequirement     `json:"insurance,omitempty"`
	Accommodation *models.AccommodationRequirement `json:"accommodation,omitempty"`
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LatestApprovedVersion(ctx context.Context, countryCode, visaType string) (int, bool, error) {
	var version int
	err := r.db.QueryRowContext(ctx, latestApprovedVersionQuery, countryCode, visaType).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query approved rule set version: %w", err)
	}
	return version, true, nil
}

func (r *PostgresRepository) Load(ctx context.Context, countryCode, visaType string, version int) (*models.RuleSet, error) {
	var (
		id           string
		status       string
		requirements []byte
		sourceURL    sql.NullString
		confidence   sql.NullFloat64
		extractedAt  sql.NullTime
		approvedAt   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, loadRuleSetQuery, countryCode, visaType, version).
		Scan(&id, &status, &requirements, &sourceURL, &confidence, &extractedAt, &approvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s v%d", ErrRuleSetNotFound, countryCode, visaType, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set: %w", err)
	}

	var doc requirementsDocument
	if len(requirements) > 0 {
		if err := json.Unmarshal(requirements, &doc); err != nil {
			return nil, fmt.Errorf("decode rule set %s requirements: %w", id, err)
		}
	}

	rs := &models.RuleSet{
		ID:            id,
		CountryCode:   countryCode,
		VisaTypeCode:  visaType,
		Version:       version,
		Status:        models.RuleSetStatus(status),
		Documents:     doc.Documents,
		Financial:     doc.Financial,
		Insurance:     doc.Insurance,
		Accommodation: doc.Accommodation,
		Source: models.Provenance{
			URL:        sourceURL.String,
			Confidence: confidence.Float64,
		},
	}
	if extractedAt.Valid {
		rs.Source.ExtractedAt = extractedAt.Time
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		rs.ApprovedAt = &t
	}
	return rs, nil
}
