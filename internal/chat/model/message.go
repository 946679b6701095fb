package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PendingSequence marks an optimistic message the server has not confirmed yet.
const PendingSequence = -1

// Message is one turn of a conversation. Older messages carry a flat Text,
// newer ones an ordered Content list.
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Sequence  int           `json:"sequenceNumber"`
	CreatedAt time.Time     `json:"createdAt"`
	Text      string        `json:"text,omitempty"`
	Content   []ContentItem `json:"content,omitempty"`
}

// NewPendingUserMessage builds the optimistic placeholder shown while a turn is in flight.
// It is replaced wholesale by the authoritative transcript, never patched.
func NewPendingUserMessage(text string) Message {
	return Message{
		ID:        "pending-" + uuid.NewString(),
		Role:      RoleUser,
		Sequence:  PendingSequence,
		CreatedAt: time.Now().UTC(),
		Text:      text,
		Content:   []ContentItem{TextItem(text)},
	}
}

// IsPending reports whether the message is an unconfirmed optimistic placeholder.
func (m Message) IsPending() bool {
	return m.Sequence == PendingSequence
}

// Contents returns the ordered content list, converting the legacy flat text shape.
func (m Message) Contents() []ContentItem {
	if len(m.Content) > 0 {
		return m.Content
	}
	if m.Text == "" {
		return nil
	}
	return []ContentItem{TextItem(m.Text)}
}

// ContentType discriminates ContentItem.
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentToolUse ContentType = "toolUse"
)

// ContentItem is either a text run or a tool-use entry.
type ContentItem struct {
	Type    ContentType `json:"type"`
	Content string      `json:"content,omitempty"`
	ToolUse *ToolUse    `json:"toolUse,omitempty"`
}

func TextItem(s string) ContentItem {
	return ContentItem{Type: ContentText, Content: s}
}

func ToolUseItem(tu ToolUse) ContentItem {
	return ContentItem{Type: ContentToolUse, ToolUse: &tu}
}

// Clone returns a copy that shares no pointers with c.
func (c ContentItem) Clone() ContentItem {
	if c.ToolUse != nil {
		tu := *c.ToolUse
		c.ToolUse = &tu
	}
	return c
}

// ToolUseType is the lifecycle phase reported by a tool-use event.
type ToolUseType string

const (
	ToolUseRequest  ToolUseType = "request"
	ToolUseResponse ToolUseType = "response"
)

// ToolStatus is the outcome of a tool invocation.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// Terminal reports whether a response has resolved the invocation.
func (s ToolStatus) Terminal() bool {
	return s == ToolSuccess || s == ToolError
}

// Valid reports whether s is one of the known statuses.
func (s ToolStatus) Valid() bool {
	switch s {
	case ToolPending, ToolSuccess, ToolError:
		return true
	default:
		return false
	}
}

// ToolUse is one tool invocation; a request and its response share the ID.
type ToolUse struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Type   ToolUseType `json:"type"`
	Status ToolStatus  `json:"status"`
}
