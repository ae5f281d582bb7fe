// Package merger joins a checklist with the applicant's uploads. It is pure
// and runs on every read; nothing is written back.
package merger

import (
	"math"
	"strings"

	"visa-checklist/internal/models"
)

// uploadRank orders upload statuses when several files match one item.
var uploadRank = map[models.UploadStatus]int{
	models.UploadVerified: 3,
	models.UploadPending:  2,
	models.UploadRejected: 1,
}

// Merge annotates each item with its upload status and computes progress as
// verified items over REQUIRED and HIGHLY_RECOMMENDED items.
func Merge(cl *models.DocumentChecklist, uploads []models.UploadedDocument) models.ChecklistView {
	if cl == nil {
		return models.ChecklistView{}
	}

	view := models.ChecklistView{
		ApplicationID:  cl.ApplicationID,
		Status:         cl.Status,
		AIFallbackUsed: cl.AIFallbackUsed,
		GeneratedAt:    cl.GeneratedAt,
	}
	if cl.ErrorMessage != nil {
		view.ErrorMessage = *cl.ErrorMessage
	}
	if cl.Status != models.ChecklistReady {
		return view
	}

	byType := BestUploads(uploads)
	progress := &models.Progress{}
	view.Items = make([]models.ChecklistViewItem, 0, len(cl.Items))
	for _, item := range cl.Items {
		status := models.UploadMissing
		if u, ok := byType[matchKey(item.ID)]; ok {
			status = u
		}
		view.Items = append(view.Items, models.ChecklistViewItem{ChecklistItem: item, UploadStatus: status})

		if counts(item.Status) {
			progress.Total++
			if status == models.UploadVerified {
				progress.Verified++
			}
		}
	}
	if progress.Total > 0 {
		progress.Percent = int(math.Round(float64(progress.Verified) * 100 / float64(progress.Total)))
	}
	view.Progress = progress
	return view
}

// BestUploads returns the strongest upload status per normalised document
// type: verified over pending over rejected.
func BestUploads(uploads []models.UploadedDocument) map[string]models.UploadStatus {
	best := make(map[string]models.UploadStatus, len(uploads))
	for _, u := range uploads {
		rank, ok := uploadRank[u.Status]
		if !ok {
			continue
		}
		key := matchKey(u.DocumentType)
		if key == "" {
			continue
		}
		if current, seen := best[key]; !seen || rank > uploadRank[current] {
			best[key] = u.Status
		}
	}
	return best
}

func matchKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func counts(s models.DocumentStatus) bool {
	return s == models.DocumentRequired || s == models.DocumentHighlyRecommended
}
