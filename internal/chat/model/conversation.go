package model

import "time"

// Conversation is the cached conversations:detail partition value.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationSummary is one row of the conversations:list partition.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPending reports whether an optimistic placeholder is still present.
func (c *Conversation) HasPending() bool {
	for _, m := range c.Messages {
		if m.IsPending() {
			return true
		}
	}
	return false
}
