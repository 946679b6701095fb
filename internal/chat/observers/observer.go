package observers

import (
	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
)

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeError   Outcome = "error"
	OutcomeAborted Outcome = "aborted"
)

// Observer receives turn lifecycle notifications. Implementations must not
// block; every callback of a turn runs on the goroutine calling Send, in
// stream order.
type Observer interface {
	TurnStarted(conversationID string)
	ToolUpdated(conversationID string, tu model.ToolUse)
	MalformedLine(conversationID string, line int, raw string, err error)
	TurnFinished(conversationID string, outcome Outcome, resp model.StreamingResponse, err error)
	Invalidated(conversationID string, partitions []cache.Partition)
}

type multi []Observer

// Multi fans notifications out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multi) TurnStarted(id string) {
	for _, o := range m {
		o.TurnStarted(id)
	}
}

func (m multi) ToolUpdated(id string, tu model.ToolUse) {
	for _, o := range m {
		o.ToolUpdated(id, tu)
	}
}

func (m multi) MalformedLine(id string, line int, raw string, err error) {
	for _, o := range m {
		o.MalformedLine(id, line, raw, err)
	}
}

func (m multi) TurnFinished(id string, outcome Outcome, resp model.StreamingResponse, err error) {
	for _, o := range m {
		o.TurnFinished(id, outcome, resp, err)
	}
}

func (m multi) Invalidated(id string, partitions []cache.Partition) {
	for _, o := range m {
		o.Invalidated(id, partitions)
	}
}
