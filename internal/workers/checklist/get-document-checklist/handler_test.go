package getdocumentchecklist

import (
	"context"
	"testing"
	"time"

	"visa-checklist/internal/common/config"
	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) GetChecklist(ctx context.Context, applicationID string) (*models.ChecklistView, error) {
	args := m.Called(ctx, applicationID)
	view, _ := args.Get(0).(*models.ChecklistView)
	return view, args.Error(1)
}

func (m *mockService) Await(ctx context.Context, applicationID string) (*models.ChecklistView, error) {
	args := m.Called(ctx, applicationID)
	view, _ := args.Get(0).(*models.ChecklistView)
	return view, args.Error(1)
}

func readyView() *models.ChecklistView {
	return &models.ChecklistView{
		ApplicationID: "app-1",
		Status:        models.ChecklistReady,
		Items: []models.ChecklistViewItem{
			{ChecklistItem: models.ChecklistItem{ID: "passport", Status: models.DocumentRequired}, UploadStatus: models.UploadVerified},
		},
		Progress: &models.Progress{Verified: 1, Total: 1, Percent: 100},
	}
}

func TestParseInput(t *testing.T) {
	input, err := ParseInput(`{"applicationId":" app-1 ","wait":true}`)
	require.NoError(t, err)
	assert.Equal(t, "app-1", input.ApplicationID)
	assert.True(t, input.Wait)

	input, err = ParseInput(`{"applicationId":"app-1","other":1}`)
	require.NoError(t, err)
	assert.False(t, input.Wait)

	for _, raw := range []string{`{}`, `{"applicationId":""}`, `{"applicationId":42}`, `{"applicationId":"a","wait":"yes"}`} {
		_, err := ParseInput(raw)
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok, raw)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code, raw)
	}
}

func TestHandler_Execute(t *testing.T) {
	svc := new(mockService)
	svc.On("GetChecklist", mock.Anything, "app-1").Return(readyView(), nil).Once()

	h := NewHandler(DefaultConfig(), svc, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.NoError(t, err)
	assert.Equal(t, "ready", out.ChecklistStatus)
	assert.Equal(t, 100, out.Checklist.Progress.Percent)
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Await", mock.Anything, mock.Anything)
}

func TestHandler_Execute_WaitAwaits(t *testing.T) {
	svc := new(mockService)
	processing := &models.ChecklistView{ApplicationID: "app-1", Status: models.ChecklistProcessing}
	svc.On("Await", mock.Anything, "app-1").Return(processing, nil).Once()

	h := NewHandler(nil, svc, logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Wait: true})

	require.NoError(t, err)
	assert.Equal(t, "processing", out.ChecklistStatus)
	assert.Nil(t, out.Checklist.Items)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_PropagatesServiceError(t *testing.T) {
	svc := new(mockService)
	svc.On("GetChecklist", mock.Anything, "missing").
		Return(nil, apperrors.NewApplicationNotFoundError("missing")).Once()

	h := NewHandler(DefaultConfig(), svc, logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "missing"})

	assert.Nil(t, out)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeApplicationNotFound, stdErr.Code)
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 12, Timeout: 60000},
	}}
	c := ConfigFrom(cfg)
	assert.False(t, c.Enabled)
	assert.Equal(t, 12, c.MaxJobsActive)
	assert.Equal(t, time.Minute, c.Timeout)
	assert.NoError(t, c.Validate())

	c = ConfigFrom(&config.Config{})
	assert.True(t, c.Enabled)
	assert.Equal(t, 5, c.MaxJobsActive)
	assert.Equal(t, 30*time.Second, c.Timeout)

	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
}
