package model

type SessionType string

const (
	SessionEmpty SessionType = "empty"
	SessionPDF   SessionType = "pdf"
	SessionURL   SessionType = "url"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionEmpty, SessionPDF, SessionURL:
		return true
	}
	return false
}

type SessionRecord struct {
	SessionID string      `json:"session_id"`
	Type      SessionType `json:"session_type"`
	Documents []string    `json:"documents"`
}
