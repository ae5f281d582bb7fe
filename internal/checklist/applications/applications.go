// Package applications reads the visa application and its uploaded
// documents. Both tables belong to other services; nothing here writes.
package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/models"
)

type Source interface {
	Load(ctx context.Context, applicationID string) (*models.ApplicationContext, error)
	Uploads(ctx context.Context, applicationID string) ([]models.UploadedDocument, error)
}

const (
	loadApplicationQuery = `
		SELECT id, user_id, country_code, country_name, visa_type, app_language, questionnaire
		FROM applications
		WHERE id = $1`

	listUploadsQuery = `
		SELECT id, application_id, document_type, status, uploaded_at
		FROM user_documents
		WHERE application_id = $1
		ORDER BY uploaded_at`
)

type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context, applicationID string) (*models.ApplicationContext, error) {
	var (
		meta          models.ApplicationMeta
		countryName   sql.NullString
		appLanguage   sql.NullString
		questionnaire []byte
	)
	err := s.db.QueryRowContext(ctx, loadApplicationQuery, applicationID).Scan(
		&meta.ApplicationID, &meta.UserID, &meta.CountryCode, &countryName,
		&meta.VisaType, &appLanguage, &questionnaire,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewApplicationNotFoundError(applicationID)
	}
	if err != nil {
		return nil, apperrors.NewApplicationLoadFailedError(applicationID, err)
	}
	meta.CountryName = countryName.String
	meta.AppLanguage = appLanguage.String

	q := models.Questionnaire{}
	if len(questionnaire) > 0 {
		if err := json.Unmarshal(questionnaire, &q); err != nil {
			return nil, apperrors.NewApplicationLoadFailedError(applicationID,
				fmt.Errorf("decode questionnaire: %w", err))
		}
	}
	return &models.ApplicationContext{Meta: meta, Questionnaire: q}, nil
}

func (s *PostgresSource) Uploads(ctx context.Context, applicationID string) ([]models.UploadedDocument, error) {
	rows, err := s.db.QueryContext(ctx, listUploadsQuery, applicationID)
	if err != nil {
		return nil, apperrors.NewUploadsLoadFailedError(applicationID, err)
	}
	defer rows.Close()

	var uploads []models.UploadedDocument
	for rows.Next() {
		var (
			u      models.UploadedDocument
			status string
		)
		if err := rows.Scan(&u.ID, &u.ApplicationID, &u.DocumentType, &status, &u.UploadedAt); err != nil {
			return nil, apperrors.NewUploadsLoadFailedError(applicationID, err)
		}
		u.Status = UploadStatus(status)
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUploadsLoadFailedError(applicationID, err)
	}
	return uploads, nil
}

// UploadStatus maps the upload service's review states. Anything not yet
// reviewed counts as pending.
func UploadStatus(raw string) models.UploadStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "verified", "approved", "accepted":
		return models.UploadVerified
	case "rejected", "declined":
		return models.UploadRejected
	default:
		return models.UploadPending
	}
}
