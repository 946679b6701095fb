package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linksort/linksort-chat/internal/chat/model"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Event
	}{
		{
			name: "text delta",
			line: `{"textDelta":"Hi "}`,
			want: []Event{TextDelta("Hi ")},
		},
		{
			name: "tool use request",
			line: `{"toolUseDelta":{"id":"t1","name":"create_folder","type":"request","status":"pending"}}`,
			want: []Event{ToolUse(ToolUseDelta{ID: "t1", Name: "create_folder", Type: model.ToolUseRequest, Status: model.ToolPending})},
		},
		{
			name: "tool use without status",
			line: `{"toolUseDelta":{"id":"t1","name":"get_links","type":"request"}}`,
			want: []Event{ToolUse(ToolUseDelta{ID: "t1", Name: "get_links", Type: model.ToolUseRequest})},
		},
		{
			name: "unknown status is dropped",
			line: `{"toolUseDelta":{"id":"t1","name":"get_links","type":"response","status":"running"}}`,
			want: []Event{ToolUse(ToolUseDelta{ID: "t1", Name: "get_links", Type: model.ToolUseResponse})},
		},
		{
			name: "tool use without id is unknown",
			line: `{"toolUseDelta":{"name":"get_links"}}`,
			want: []Event{{Kind: KindUnknown}},
		},
		{
			name: "unrecognised shape",
			line: `{"usage":{"tokens":12}}`,
			want: []Event{{Kind: KindUnknown}},
		},
		{
			name: "both payloads keep order",
			line: `{"textDelta":"a","toolUseDelta":{"id":"t2","name":"save_link","type":"request"}}`,
			want: []Event{TextDelta("a"), ToolUse(ToolUseDelta{ID: "t2", Name: "save_link", Type: model.ToolUseRequest})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, line := range []string{`"textDelta"`, `[1,2]`, `null`, `{"textDelta":`, `not json`} {
		_, err := Decode([]byte(line))
		assert.Error(t, err, line)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "textDelta", KindTextDelta.String())
	assert.Equal(t, "toolUseDelta", KindToolUseDelta.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "malformed", KindMalformed.String())
}
