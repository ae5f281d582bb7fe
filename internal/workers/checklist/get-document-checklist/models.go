package getdocumentchecklist

import "visa-checklist/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
	// Wait makes the job poll until the checklist leaves processing or the
	// job timeout is reached.
	Wait bool `json:"wait"`
}

type Output struct {
	ChecklistStatus string               `json:"checklistStatus"`
	Checklist       models.ChecklistView `json:"checklist"`
}

const inputSchema = `{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"wait": {"type": "boolean"}
	}
}`
