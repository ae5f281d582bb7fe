package models

import "time"

type ChecklistViewItem struct {
	ChecklistItem
	UploadStatus UploadStatus `json:"uploadStatus"`
}

type Progress struct {
	Verified int `json:"verified"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// ChecklistView is the response of getChecklist.
type ChecklistView struct {
	ApplicationID  string              `json:"applicationId"`
	Status         ChecklistStatus     `json:"status"`
	Items          []ChecklistViewItem `json:"items,omitempty"`
	Progress       *Progress           `json:"progress,omitempty"`
	AIFallbackUsed bool                `json:"aiFallbackUsed"`
	GeneratedAt    *time.Time          `json:"generatedAt,omitempty"`
	ErrorMessage   string              `json:"errorMessage,omitempty"`
}
