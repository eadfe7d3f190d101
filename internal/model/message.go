package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID          string    `json:"id"`
	WorkspaceID uint      `json:"ws_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Sources     []Source  `json:"sources,omitempty"`
}

type Source struct {
	ID      string `json:"source_id"`
	Summary string `json:"summary"`
	File    string `json:"file"`
	Page    *int   `json:"page,omitempty"`
}
