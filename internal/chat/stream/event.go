package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linksort/linksort-chat/internal/chat/model"
)

// Kind discriminates Event.
type Kind int

const (
	KindUnknown Kind = iota
	KindTextDelta
	KindToolUseDelta
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "textDelta"
	case KindToolUseDelta:
		return "toolUseDelta"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrNotObject is returned for lines that are valid JSON but not an object.
var ErrNotObject = errors.New("event is not a JSON object")

// ToolUseDelta is a tool-use lifecycle update. Status is empty when the
// server omitted it.
type ToolUseDelta struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Type   model.ToolUseType `json:"type"`
	Status model.ToolStatus  `json:"status,omitempty"`
}

// Malformed is a line that could not be decoded. Raw is truncated.
type Malformed struct {
	Line int
	Raw  string
	Err  error
}

// Event is one decoded line of the converse stream. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Event struct {
	Kind      Kind
	TextDelta string
	ToolUse   ToolUseDelta
	Malformed Malformed
}

func TextDelta(s string) Event {
	return Event{Kind: KindTextDelta, TextDelta: s}
}

func ToolUse(d ToolUseDelta) Event {
	return Event{Kind: KindToolUseDelta, ToolUse: d}
}

type wireEvent struct {
	TextDelta    *string       `json:"textDelta"`
	ToolUseDelta *ToolUseDelta `json:"toolUseDelta"`
}

// Decode parses one line into events. A line normally yields a single event;
// an object carrying both payloads yields the text delta first, then the
// tool-use delta. Objects with neither payload yield one KindUnknown event.
func Decode(line []byte) ([]Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, ErrNotObject
	}

	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var out []Event
	if w.TextDelta != nil {
		out = append(out, TextDelta(*w.TextDelta))
	}
	if w.ToolUseDelta != nil && w.ToolUseDelta.ID != "" {
		d := *w.ToolUseDelta
		if d.Status != "" && !d.Status.Valid() {
			d.Status = ""
		}
		out = append(out, ToolUse(d))
	}
	if len(out) == 0 {
		out = append(out, Event{Kind: KindUnknown})
	}
	return out, nil
}
