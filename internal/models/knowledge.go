package models

// KnowledgeSnippet is one knowledge-base passage used as Legacy-mode prompt
// context.
type KnowledgeSnippet struct {
	Source  string  `json:"source"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}
