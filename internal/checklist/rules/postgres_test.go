package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"visa-checklist/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_LatestApprovedVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT version FROM rule_sets").
		WithArgs("US", "tourist").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	version, ok, err := repo.LatestApprovedVersion(context.Background(), "US", "tourist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_LatestApprovedVersion_None(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT version FROM rule_sets").
		WithArgs("JP", "student").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	_, ok, err := NewPostgresRepository(db).LatestApprovedVersion(context.Background(), "JP", "student")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresRepository_LatestApprovedVersion_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT version FROM rule_sets").
		WillReturnError(errors.New("connection refused"))

	_, _, err = NewPostgresRepository(db).LatestApprovedVersion(context.Background(), "US", "tourist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresRepository_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	extracted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	approved := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	requirements := `{
		"documents": [
			{"documentType": "passport", "category": "REQUIRED"},
			{"documentType": "sponsor_letter", "category": "REQUIRED", "conditionExpr": "sponsorType != self"}
		],
		"financial": {"minimumBalance": 5000, "currency": "USD", "statementMonths": 3}
	}`

	mock.ExpectQuery("SELECT id, status, requirements").
		WithArgs("US", "tourist", 4).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "status", "requirements", "source_url", "source_confidence", "extracted_at", "approved_at",
		}).AddRow("rs-1", "approved", []byte(requirements), "https://travel.state.gov", 0.92, extracted, approved))

	rs, err := NewPostgresRepository(db).Load(context.Background(), "US", "tourist", 4)
	require.NoError(t, err)

	assert.Equal(t, "rs-1", rs.ID)
	assert.Equal(t, 4, rs.Version)
	assert.Equal(t, models.RuleSetApproved, rs.Status)
	require.Len(t, rs.Documents, 2)
	assert.Equal(t, "sponsorType != self", rs.Documents[1].ConditionExpr)
	require.NotNil(t, rs.Financial)
	assert.Equal(t, 5000.0, rs.Financial.MinimumBalance)
	assert.Nil(t, rs.Insurance)
	assert.Equal(t, "https://travel.state.gov", rs.Source.URL)
	assert.Equal(t, extracted, rs.Source.ExtractedAt)
	require.NotNil(t, rs.ApprovedAt)
	assert.Equal(t, approved, *rs.ApprovedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Load_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, status, requirements").
		WithArgs("US", "tourist", 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewPostgresRepository(db).Load(context.Background(), "US", "tourist", 9)
	assert.ErrorIs(t, err, ErrRuleSetNotFound)
}

func TestPostgresRepository_Load_BadJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, status, requirements").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "status", "requirements", "source_url", "source_confidence", "extracted_at", "approved_at",
		}).AddRow("rs-2", "approved", []byte(`{"documents": [`), nil, nil, nil, nil))

	_, err = NewPostgresRepository(db).Load(context.Background(), "US", "tourist", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode rule set rs-2")
}
