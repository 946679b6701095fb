package observers

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
)

const namespace = "linksort_chat"

// Metrics counts turn outcomes, tool updates, skipped lines and invalidations.
type Metrics struct {
	turns         *prometheus.CounterVec
	toolUpdates   *prometheus.CounterVec
	malformed     prometheus.Counter
	invalidations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		toolUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_updates_total",
			Help:      "Tool-use lifecycle updates by tool and status.",
		}, []string{"tool", "status"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_lines_total",
			Help:      "Stream lines skipped because they could not be decoded.",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache partitions invalidated after chat turns.",
		}, []string{"partition"}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.toolUpdates, m.malformed, m.invalidations)
	}
	return m
}

func (m *Metrics) TurnStarted(string) {}

func (m *Metrics) ToolUpdated(_ string, tu model.ToolUse) {
	m.toolUpdates.WithLabelValues(tu.Name, string(tu.Status)).Inc()
}

func (m *Metrics) MalformedLine(string, int, string, error) {
	m.malformed.Inc()
}

func (m *Metrics) TurnFinished(_ string, outcome Outcome, _ model.StreamingResponse, _ error) {
	m.turns.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) Invalidated(_ string, partitions []cache.Partition) {
	for _, p := range partitions {
		m.invalidations.WithLabelValues(partitionLabel(p)).Inc()
	}
}

// partitionLabel keeps label cardinality bounded by dropping per-conversation ids.
func partitionLabel(p cache.Partition) string {
	s := p.String()
	if strings.HasPrefix(s, "conversations:detail:") {
		return "conversations:detail"
	}
	return s
}

var _ Observer = (*Metrics)(nil)
