package generator

import (
	"testing"

	"visa-checklist/internal/checklist/catalog"
	"visa-checklist/internal/common/config"
	"visa-checklist/internal/models"
	"visa-checklist/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackChecklist(t *testing.T) {
	reg := registry.Default()
	cat := catalog.Default()

	tests := []struct {
		name    string
		country string
		visa    string
		want    []string
	}{
		{"us student", "US", "student", []string{"passport", "ds160_confirmation", "photo", "sevis_fee_receipt", "acceptance_letter"}},
		{"fr student", "FR", "student", []string{"passport", "application_form", "photo", "travel_insurance", "acceptance_letter"}},
		{"unknown destination", "ZZ", "tourist", []string{"passport", "application_form", "photo", "bank_statement"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := FallbackChecklist(models.ApplicantProfile{CountryCode: tt.country, VisaTypeCode: tt.visa}, reg, cat)
			assert.Equal(t, tt.want, itemIDs(items))
			for i, it := range items {
				assert.Equal(t, models.DocumentRequired, it.Status)
				assert.Equal(t, i+1, it.Priority)
				assert.Empty(t, it.MissingLocales())
			}
		})
	}
}

func TestEnforceCore(t *testing.T) {
	cat := catalog.Default()
	items := []models.ChecklistItem{
		{ID: "bank_statement", Status: models.DocumentOptional, Priority: 1},
		{ID: "passport", Status: models.DocumentHighlyRecommended, Priority: 2},
	}

	out := EnforceCore(items, []string{"passport", "i20_form"}, cat)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"bank_statement", "passport", "i20_form"}, itemIDs(out))
	assert.True(t, out[1].IsCoreRequired)
	assert.Equal(t, models.DocumentHighlyRecommended, out[1].Status, "present items keep their status")
	assert.Equal(t, models.DocumentRequired, out[2].Status)
	assert.True(t, out[2].IsCoreRequired)
	assert.Equal(t, 3, out[2].Priority)
	assert.Empty(t, out[2].MissingLocales())

	assert.False(t, items[1].IsCoreRequired, "input is not modified")

	again := EnforceCore(out, []string{"passport", "i20_form"}, cat)
	assert.Equal(t, out, again)
}

func TestEnforceCore_Empty(t *testing.T) {
	out := EnforceCore(nil, []string{"passport"}, catalog.Default())
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Priority)
}

func fullItem(id string, status models.DocumentStatus) models.ChecklistItem {
	return catalog.Default().Item(id, status)
}

func TestLegacyPolicy_Check(t *testing.T) {
	policy := LegacyPolicy{
		MinItems:            3,
		MaxItems:            4,
		RequiredStatuses:    []models.DocumentStatus{models.DocumentRequired, models.DocumentOptional},
		RequireTranslations: true,
	}

	valid := []models.ChecklistItem{
		fullItem("passport", models.DocumentRequired),
		fullItem("photo", models.DocumentRequired),
		fullItem("travel_insurance", models.DocumentOptional),
	}
	assert.Empty(t, policy.Check(valid))

	tooFew := valid[:2]
	assert.Contains(t, policy.Check(tooFew), "the checklist must contain between 3 and 4 items, got 2")
	assert.Contains(t, policy.Check(tooFew), "no item has status OPTIONAL")

	dup := append(append([]models.ChecklistItem(nil), valid...), fullItem("photo", models.DocumentOptional))
	assert.Equal(t, []string{`id "photo" appears more than once`}, policy.Check(dup))

	untranslated := append([]models.ChecklistItem(nil), valid...)
	untranslated[0].NameUz = ""
	untranslated[0].DescriptionRu = " "
	assert.Equal(t, []string{`item "passport" is missing nameUz, descriptionRu`}, policy.Check(untranslated))

	policy.RequireTranslations = false
	assert.Empty(t, policy.Check(untranslated))

	noStatus := append([]models.ChecklistItem(nil), valid...)
	noStatus[1].Status = ""
	assert.Equal(t, []string{`item "photo" has no valid status`}, policy.Check(noStatus))
}

func TestConfigFrom(t *testing.T) {
	off := false
	cfg := ConfigFrom(config.ChecklistConfig{
		GenerationTimeout:  30000,
		LLMRetries:         1,
		KnowledgeBaseLimit: 5,
		Legacy: config.LegacyConfig{
			MinItems:            8,
			MaxItems:            12,
			RequiredStatuses:    []string{"required", "recommended", "bogus"},
			RequireTranslations: &off,
		},
	})

	assert.Equal(t, int64(30000), cfg.Timeout.Milliseconds())
	assert.Equal(t, 5, cfg.KnowledgeLimit)
	assert.Equal(t, 8, cfg.Legacy.MinItems)
	assert.Equal(t, []models.DocumentStatus{models.DocumentRequired, models.DocumentHighlyRecommended}, cfg.Legacy.RequiredStatuses)
	assert.False(t, cfg.Legacy.RequireTranslations)
}
