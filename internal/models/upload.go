package models

import "time"

type UploadStatus string

const (
	UploadMissing  UploadStatus = "missing"
	UploadPending  UploadStatus = "pending"
	UploadVerified UploadStatus = "verified"
	UploadRejected UploadStatus = "rejected"
)

// UploadedDocument is a user-submitted file, owned by the upload
// collaborator. Never written by this service.
type UploadedDocument struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"applicationId"`
	DocumentType  string       `json:"documentType"`
	Status        UploadStatus `json:"status"`
	UploadedAt    time.Time    `json:"uploadedAt"`
}
