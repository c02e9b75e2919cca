// internal/models/turn.go
package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is an append-only history entry.
type Turn struct {
	Role        Role     `json:"role"`
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
	// ProductIDs are the products the assistant text references, in order.
	ProductIDs []string  `json:"productIds,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
