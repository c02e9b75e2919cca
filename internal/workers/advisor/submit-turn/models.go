// internal/workers/advisor/submit-turn/models.go
package submitturn

import "protein-advisor/internal/models"

type Input struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type Output struct {
	Accepted        bool                    `json:"accepted"`
	AssistantTurn   *models.Turn            `json:"assistantTurn,omitempty"`
	Selection       *models.SelectionResult `json:"selection,omitempty"`
	ComparisonTable []models.ComparisonRow  `json:"comparisonTable,omitempty"`
}
