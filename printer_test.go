package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat"
	"github.com/linksort/linksort-chat/internal/chat/model"
)

func TestPrinterRendersOnlyNewOutput(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	tool := model.ToolUse{ID: "t1", Name: "create_folder", Type: model.ToolUseRequest, Status: model.ToolPending}
	p.Update(chat.Update{Status: model.StatusConnecting})
	p.Update(chat.Update{Status: model.StatusStreaming, Response: model.StreamingResponse{
		Content: []model.ContentItem{model.TextItem("Hi")},
	}})
	p.Update(chat.Update{Status: model.StatusStreaming, Response: model.StreamingResponse{
		Content: []model.ContentItem{model.TextItem("Hi there"), model.ToolUseItem(tool)},
	}})
	tool.Status = model.ToolSuccess
	p.Update(chat.Update{Status: model.StatusStreaming, Response: model.StreamingResponse{
		Content: []model.ContentItem{model.TextItem("Hi there"), model.ToolUseItem(tool)},
	}})
	p.Done(&chat.TurnResult{
		ConversationID: "c1",
		Invalidated:    []cache.Partition{cache.ConversationDetail("c1"), cache.PartitionUser},
	})

	assert.Equal(t, "Hi there\n  [create_folder: pending]\n\n  [create_folder: success]\n\n  (refreshed user)\n", buf.String())
}

func TestPrinterResetsBetweenTurns(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.Update(chat.Update{Status: model.StatusStreaming, Response: model.StreamingResponse{
		Content: []model.ContentItem{model.TextItem("first")},
	}})
	p.Update(chat.Update{Status: model.StatusConnecting})
	p.Update(chat.Update{Status: model.StatusStreaming, Response: model.StreamingResponse{
		Content: []model.ContentItem{model.TextItem("second")},
	}})

	assert.Equal(t, "firstsecond", buf.String())
}
