package assembler

import (
	"strings"

	"github.com/linksort/linksort-chat/internal/chat/model"
	"github.com/linksort/linksort-chat/internal/chat/stream"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

// Assembler folds stream events into the ordered content of one assistant turn.
// It is not safe for concurrent use; callers snapshot it to share state.
type Assembler struct {
	content  []model.ContentItem
	text     strings.Builder
	toolUses map[string]model.ToolUse
	finished bool
}

func New() *Assembler {
	return &Assembler{toolUses: map[string]model.ToolUse{}}
}

// Apply folds one event and reports whether the visible state changed.
func (a *Assembler) Apply(ev stream.Event) bool {
	if a.finished {
		return false
	}

	switch ev.Kind {
	case stream.KindTextDelta:
		return a.appendText(ev.TextDelta)
	case stream.KindToolUseDelta:
		return a.applyToolUse(ev.ToolUse)
	case stream.KindUnknown, stream.KindMalformed:
		return false
	default:
		return false
	}
}

func (a *Assembler) appendText(fragment string) bool {
	if fragment == "" {
		return false
	}
	a.text.WriteString(fragment)

	// A tool entry that was only updated in place does not split the run,
	// so two text items are never adjacent.
	if n := len(a.content); n > 0 && a.content[n-1].Type == model.ContentText {
		a.content[n-1].Content += fragment
		return true
	}

	a.content = append(a.content, model.TextItem(fragment))
	return true
}

func (a *Assembler) applyToolUse(d stream.ToolUseDelta) bool {
	for i := range a.content {
		item := &a.content[i]
		if item.Type != model.ContentToolUse || item.ToolUse == nil || item.ToolUse.ID != d.ID {
			continue
		}
		if d.Status == "" {
			return false
		}
		if item.ToolUse.Status.Terminal() && item.ToolUse.Status != d.Status {
			logx.Debug().
				Str("tool_use_id", d.ID).
				Str("tool", item.ToolUse.Name).
				Str("from", string(item.ToolUse.Status)).
				Str("to", string(d.Status)).
				Msg("overwriting resolved tool status")
		}
		item.ToolUse.Status = d.Status
		a.toolUses[d.ID] = *item.ToolUse
		return true
	}

	status := d.Status
	if status == "" {
		status = model.ToolPending
	}
	tu := model.ToolUse{ID: d.ID, Name: d.Name, Type: d.Type, Status: status}
	a.content = append(a.content, model.ToolUseItem(tu))
	a.toolUses[d.ID] = tu
	return true
}

// Finish finalizes the turn. Events applied afterwards are ignored.
func (a *Assembler) Finish() {
	a.finished = true
}

// Finished reports whether Finish has been called.
func (a *Assembler) Finished() bool {
	return a.finished
}

// ToolUses returns a copy of the tool outcomes keyed by id.
func (a *Assembler) ToolUses() map[string]model.ToolUse {
	out := make(map[string]model.ToolUse, len(a.toolUses))
	for id, tu := range a.toolUses {
		out[id] = tu
	}
	return out
}

// Snapshot returns a deep copy of the current turn.
func (a *Assembler) Snapshot() model.StreamingResponse {
	content := make([]model.ContentItem, len(a.content))
	for i, item := range a.content {
		content[i] = item.Clone()
	}
	return model.StreamingResponse{
		Content:  content,
		Text:     a.text.String(),
		ToolUses: a.ToolUses(),
	}
}
