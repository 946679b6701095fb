package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat"
	"github.com/linksort/linksort-chat/internal/chat/model"
	errx "github.com/linksort/linksort-chat/internal/core/error"
)

// printer renders turn updates incrementally: only text not printed yet and
// tool uses whose status changed.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	items []printed
}

type printed struct {
	text   int
	status model.ToolStatus
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Update(u chat.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.Status == model.StatusConnecting {
		p.items = p.items[:0]
		return
	}
	for i, item := range u.Response.Content {
		if i == len(p.items) {
			p.items = append(p.items, printed{})
		}
		seen := &p.items[i]
		switch item.Type {
		case model.ContentText:
			if len(item.Content) > seen.text {
				fmt.Fprint(p.w, item.Content[seen.text:])
				seen.text = len(item.Content)
			}
		case model.ContentToolUse:
			if item.ToolUse != nil && item.ToolUse.Status != seen.status {
				fmt.Fprintf(p.w, "\n  [%s: %s]\n", item.ToolUse.Name, item.ToolUse.Status)
				seen.status = item.ToolUse.Status
			}
		}
	}
}

func (p *printer) Done(res *chat.TurnResult) {
	fmt.Fprintln(p.w)
	var refreshed []string
	for _, part := range res.Invalidated {
		if part != cache.ConversationDetail(res.ConversationID) {
			refreshed = append(refreshed, part.String())
		}
	}
	if len(refreshed) > 0 {
		fmt.Fprintf(p.w, "  (refreshed %s)\n", strings.Join(refreshed, ", "))
	}
}

func (p *printer) Aborted() {
	fmt.Fprintln(p.w, "\n  (stopped)")
}

func (p *printer) Failed(err error) {
	if status := errx.StatusOf(err); status != 0 {
		fmt.Fprintf(p.w, "\n  error (%d): %v\n", status, err)
		return
	}
	fmt.Fprintf(p.w, "\n  error: %v\n", err)
}

func (p *printer) Message(m model.Message) {
	label := string(m.Role)
	if m.IsPending() {
		label += " (sending)"
	}
	fmt.Fprintf(p.w, "%s:\n", label)
	for _, item := range m.Contents() {
		switch item.Type {
		case model.ContentText:
			fmt.Fprintf(p.w, "  %s\n", item.Content)
		case model.ContentToolUse:
			if item.ToolUse != nil {
				fmt.Fprintf(p.w, "  [%s: %s]\n", item.ToolUse.Name, item.ToolUse.Status)
			}
		}
	}
}
