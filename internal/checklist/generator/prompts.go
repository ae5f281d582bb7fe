package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"visa-checklist/internal/models"
)

const itemShape = `{"items": [{"id": "...", "status": "REQUIRED|HIGHLY_RECOMMENDED|OPTIONAL|CONDITIONAL", "whoNeedsIt": "...", "name": "...", "nameUz": "...", "nameRu": "...", "description": "...", "descriptionUz": "...", "descriptionRu": "...", "whereToObtain": "...", "whereToObtainUz": "...", "whereToObtainRu": "...", "priority": 1}]}`

const hybridSystemPrompt = `You are VisaBuddy, an assistant that explains visa documents to applicants from Uzbekistan.
You receive a FIXED list of documents decided by official embassy rules. You only write the explanatory text.
Never add, remove, rename or reorder documents and never change a status.
Every text field must be filled in English, Uzbek (Latin script) and Russian.
Respond with a single JSON object and nothing else.`

var legacySystemPrompts = map[string]string{
	"en": `You are VisaBuddy. Create a FULL, precise visa document checklist for this applicant.
Respond with a single JSON object and nothing else.`,
	"uz": `Siz VisaBuddy'siz. Ushbu ariza beruvchi uchun TO'LIQ, aniq hujjatlar ro'yxatini yarating.
Faqat bitta JSON obyekt bilan javob bering.`,
	"ru": `Вы - VisaBuddy. Создайте ПОЛНЫЙ, точный список документов для этого заявителя.
Отвечайте только одним JSON-объектом.`,
}

func legacySystemPrompt(lang string) string {
	if p, ok := legacySystemPrompts[lang]; ok {
		return p
	}
	return legacySystemPrompts["en"]
}

func profileJSON(p models.ApplicantProfile) string {
	data, _ := json.MarshalIndent(p, "", "  ")
	return string(data)
}

func hybridUserPrompt(p models.ApplicantProfile, docs []models.BaseDocument) string {
	var parts []string

	parts = append(parts, "APPLICANT PROFILE (JSON):")
	parts = append(parts, profileJSON(p))

	parts = append(parts, fmt.Sprintf("\nDOCUMENTS FOR A %s VISA TO %s:", strings.ToUpper(p.VisaTypeCode), p.CountryName))
	for _, d := range docs {
		line := fmt.Sprintf("- id=%s status=%s", d.ID, d.Status)
		if d.Description != "" {
			line += " rule: " + d.Description
		}
		if d.ConditionDescription != "" {
			line += " applies because: " + d.ConditionDescription
		}
		parts = append(parts, line)
	}

	parts = append(parts, "\nTASK:")
	parts = append(parts, "- Return exactly one item per document above, using the same id and status")
	parts = append(parts, "- Personalise whoNeedsIt and description to this applicant")
	parts = append(parts, "- whereToObtain should name the issuing authority in Uzbekistan or the destination")
	parts = append(parts, "- Fill every field in all three languages")

	parts = append(parts, "\nOUTPUT FORMAT:")
	parts = append(parts, itemShape)

	return strings.Join(parts, "\n")
}

func legacyUserPrompt(p models.ApplicantProfile, snippets []models.KnowledgeSnippet, policy LegacyPolicy, core, violations []string) string {
	var parts []string

	parts = append(parts, "USER CONTEXT (JSON):")
	parts = append(parts, profileJSON(p))

	parts = append(parts, "\nRELEVANT VISA RULES:")
	if len(snippets) == 0 {
		parts = append(parts, "No specific visa policy documents found in knowledge base.")
	}
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("**Source: %s**\n%s", s.Source, s.Content))
	}

	parts = append(parts, "\nTASK:")
	parts = append(parts, "Use age, employment, sponsor, finances, ties to Uzbekistan and travel history to build a personalised checklist.")
	parts = append(parts, fmt.Sprintf("- Return between %d and %d documents", policy.MinItems, policy.MaxItems))
	if len(policy.RequiredStatuses) > 0 {
		statuses := make([]string, len(policy.RequiredStatuses))
		for i, s := range policy.RequiredStatuses {
			statuses[i] = string(s)
		}
		parts = append(parts, "- Use each of these statuses at least once: "+strings.Join(statuses, ", "))
	}
	if len(core) > 0 {
		parts = append(parts, "- Always include these ids: "+strings.Join(core, ", "))
	}
	parts = append(parts, "- Use snake_case English ids such as passport, bank_statement, sponsor_letter")
	parts = append(parts, "- Include country-specific documents for "+p.CountryName)
	if policy.RequireTranslations {
		parts = append(parts, "- Fill every text field in English, Uzbek (Latin script) and Russian")
	}

	if len(violations) > 0 {
		parts = append(parts, "\nYOUR PREVIOUS ANSWER WAS REJECTED:")
		for _, v := range violations {
			parts = append(parts, "- "+v)
		}
		parts = append(parts, "Fix all of the problems above.")
	}

	parts = append(parts, "\nOUTPUT FORMAT:")
	parts = append(parts, itemShape)

	return strings.Join(parts, "\n")
}
