package store

import (
	"context"
	"sync"
	"time"

	"visa-checklist/internal/models"
)

// MemoryStore is an in-process Store for tests and single-instance runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*models.DocumentChecklist
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*models.DocumentChecklist)}
}

func (s *MemoryStore) Get(_ context.Context, applicationID string) (*models.DocumentChecklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, ok := s.items[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(cl), nil
}

func (s *MemoryStore) ClaimNew(_ context.Context, applicationID, generationID string, now time.Time) (*models.DocumentChecklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[applicationID]; exists {
		return nil, ErrClaimLost
	}
	cl := newProcessing(applicationID, generationID, now)
	s.items[applicationID] = cl
	return clone(cl), nil
}

func (s *MemoryStore) ClaimRegeneration(_ context.Context, applicationID, prevGenerationID, generationID string, now time.Time) (*models.DocumentChecklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[applicationID]
	if !ok || current.GenerationID != prevGenerationID {
		return nil, ErrClaimLost
	}
	cl := newProcessing(applicationID, generationID, now)
	s.items[applicationID] = cl
	return clone(cl), nil
}

func (s *MemoryStore) Complete(_ context.Context, applicationID, generationID string, c Completion, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, err := s.owned(applicationID, generationID)
	if err != nil {
		return err
	}
	generatedAt := now
	cl.Status = models.ChecklistReady
	cl.Items = append([]models.ChecklistItem(nil), c.Items...)
	cl.Mode = c.Mode
	cl.SourceRuleSetVersion = copyInt(c.SourceRuleSetVersion)
	cl.AIFallbackUsed = c.AIFallbackUsed
	cl.GeneratedAt = &generatedAt
	cl.ErrorMessage = nil
	cl.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, applicationID, generationID, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, err := s.owned(applicationID, generationID)
	if err != nil {
		return err
	}
	msg := message
	cl.Status = models.ChecklistFailed
	cl.ErrorMessage = &msg
	cl.UpdatedAt = now
	return nil
}

// owned returns the processing artifact held by generationID. Callers hold
// the lock.
func (s *MemoryStore) owned(applicationID, generationID string) (*models.DocumentChecklist, error) {
	cl, ok := s.items[applicationID]
	if !ok || cl.GenerationID != generationID || cl.Status != models.ChecklistProcessing {
		return nil, ErrStaleGeneration
	}
	return cl, nil
}

func clone(cl *models.DocumentChecklist) *models.DocumentChecklist {
	out := *cl
	out.Items = append(make([]models.ChecklistItem, 0, len(cl.Items)), cl.Items...)
	out.SourceRuleSetVersion = copyInt(cl.SourceRuleSetVersion)
	if cl.GeneratedAt != nil {
		t := *cl.GeneratedAt
		out.GeneratedAt = &t
	}
	if cl.ErrorMessage != nil {
		m := *cl.ErrorMessage
		out.ErrorMessage = &m
	}
	return &out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
