package model

// PromptRecord is one persisted question/answer exchange. PromptID increases
// monotonically within a session.
type PromptRecord struct {
	PromptID     uint     `json:"prompt_id,omitempty"`
	WorkspaceID  uint     `json:"ws_id"`
	UserID       uint     `json:"user_id"`
	SessionID    string   `json:"session_id"`
	PromptText   string   `json:"prompt_text"`
	ResponseText string   `json:"response_text"`
	Sources      []string `json:"sources"`
	ModelName    string   `json:"model_name"`
	Temperature  float64  `json:"temperature"`
	TokenUsage   int      `json:"token_usage"`
	ResponseTime string   `json:"resp_time"`
	Active       bool     `json:"is_active"`
}
