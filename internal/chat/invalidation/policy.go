package invalidation

import (
	"sort"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

// Policy decides which cache partitions a completed turn made stale.
type Policy struct {
	catalog Catalog
}

func NewPolicy(catalog Catalog) *Policy {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Policy{catalog: catalog}
}

// Plan returns the partitions to invalidate for a finished turn. It must only
// be called once the final status of every tool use is known. The
// conversation transcript is always included; a tool partition is included
// iff an effectful tool targeting it reached success.
func (p *Policy) Plan(conversationID string, toolUses map[string]model.ToolUse) []cache.Partition {
	stale := map[cache.Partition]struct{}{}
	if conversationID != "" {
		stale[cache.ConversationDetail(conversationID)] = struct{}{}
	}

	for id, tu := range toolUses {
		spec, ok := p.catalog.Lookup(tu.Name)
		if !ok {
			logx.Warn().
				Str("tool", tu.Name).
				Str("tool_use_id", id).
				Msg("unknown tool; no cache partitions invalidated")
			continue
		}
		if spec.Access != Effectful || tu.Status != model.ToolSuccess {
			continue
		}
		for _, part := range spec.Partitions {
			stale[part] = struct{}{}
		}
	}

	out := make([]cache.Partition, 0, len(stale))
	for part := range stale {
		out = append(out, part)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
