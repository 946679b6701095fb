package observers

import (
	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

type logObserver struct{}

// NewLogObserver logs turn and tool lifecycle events through logx.
func NewLogObserver() Observer {
	return logObserver{}
}

func (logObserver) TurnStarted(id string) {
	logx.Debug().Str("conversation_id", id).Msg("chat turn started")
}

func (logObserver) ToolUpdated(id string, tu model.ToolUse) {
	logx.Debug().
		Str("conversation_id", id).
		Str("tool_use_id", tu.ID).
		Str("tool", tu.Name).
		Str("type", string(tu.Type)).
		Str("status", string(tu.Status)).
		Msg("tool use updated")
}

func (logObserver) MalformedLine(id string, line int, raw string, err error) {
	logx.Warn().Err(err).Str("conversation_id", id).Int("line", line).Str("data", raw).Msg("malformed chat event skipped")
}

func (logObserver) TurnFinished(id string, outcome Outcome, resp model.StreamingResponse, err error) {
	ev := logx.Info()
	if outcome == OutcomeError {
		ev = logx.Error().Err(err)
	}
	ev.Str("conversation_id", id).
		Str("outcome", string(outcome)).
		Int("content_items", len(resp.Content)).
		Int("tool_uses", len(resp.ToolUses)).
		Msg("chat turn finished")
}

func (logObserver) Invalidated(id string, partitions []cache.Partition) {
	names := make([]string, len(partitions))
	for i, p := range partitions {
		names[i] = p.String()
	}
	logx.Debug().Str("conversation_id", id).Strs("partitions", names).Msg("cache partitions invalidated")
}
