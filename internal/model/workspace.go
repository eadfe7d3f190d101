package model

import (
	"strings"
	"time"
)

type Workspace struct {
	ID        uint       `json:"ws_id"`
	Name      string     `json:"ws_name"`
	UserID    uint       `json:"user_id"`
	Active    bool       `json:"is_active"`
	SessionID string     `json:"session_id,omitempty"`
	CreatedAt string     `json:"ws_date,omitempty"`
	Documents []Document `json:"documents,omitempty"`
}

var creationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CreationTime parses the backend creation marker. The zero time is returned
// for markers in an unknown format.
func (w Workspace) CreationTime() time.Time {
	raw := strings.TrimSpace(w.CreatedAt)
	for _, layout := range creationLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

type Document struct {
	ID          uint   `json:"doc_id"`
	Name        string `json:"doc_name"`
	WorkspaceID uint   `json:"ws_id"`
	UserID      uint   `json:"user_id"`
	CreatedAt   string `json:"created_at,omitempty"`
}
