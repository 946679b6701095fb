package model

// TurnStatus is the state of the streaming turn owned by a session.
type TurnStatus string

const (
	StatusIdle       TurnStatus = "idle"
	StatusConnecting TurnStatus = "connecting"
	StatusStreaming  TurnStatus = "streaming"
	StatusDone       TurnStatus = "done"
	StatusError      TurnStatus = "error"
)

// Active reports whether a turn currently owns the connection.
func (s TurnStatus) Active() bool {
	return s == StatusConnecting || s == StatusStreaming
}

// StreamingResponse is the assistant turn under construction.
// ToolUses mirrors the tool-use content items by id for consumers that
// only need outcomes.
type StreamingResponse struct {
	Content  []ContentItem      `json:"content"`
	Text     string             `json:"text"`
	ToolUses map[string]ToolUse `json:"toolUses"`
}

// PageContext is the ambient location of the user, sent with every message.
type PageContext struct {
	Route string         `json:"route"`
	Query map[string]any `json:"query"`
}
