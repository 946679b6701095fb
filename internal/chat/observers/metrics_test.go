package observers

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
)

func TestMetricsCountLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	obs := Multi(NewLogObserver(), nil, m)

	obs.TurnStarted("c1")
	obs.ToolUpdated("c1", model.ToolUse{ID: "t1", Name: "create_folder", Status: model.ToolPending})
	obs.ToolUpdated("c1", model.ToolUse{ID: "t1", Name: "create_folder", Status: model.ToolSuccess})
	obs.MalformedLine("c1", 3, "{oops", errors.New("bad json"))
	obs.Invalidated("c1", []cache.Partition{cache.ConversationDetail("c1"), cache.PartitionUser})
	obs.TurnFinished("c1", OutcomeDone, model.StreamingResponse{}, nil)
	obs.TurnFinished("c2", OutcomeError, model.StreamingResponse{}, errors.New("reset"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolUpdates.WithLabelValues("create_folder", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.malformed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations.WithLabelValues("conversations:detail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations.WithLabelValues("user")))
}
