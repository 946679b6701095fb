package stream

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cloudwego/eino/schema"

	logx "github.com/linksort/linksort-chat/pkg/logger"
)

const (
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
	maxSnippet           = 120
)

// Reader turns a newline-delimited JSON body into events in arrival order.
// Bytes stay buffered until their line is complete, so multi-byte characters
// split across reads are decoded intact.
type Reader struct {
	scanner       *bufio.Scanner
	pending       []Event
	line          int
	emitMalformed bool
}

type Option func(*Reader)

// WithMalformedEvents makes Next return a KindMalformed event for every line
// that fails to decode instead of skipping it silently.
func WithMalformedEvents() Option {
	return func(r *Reader) {
		r.emitMalformed = true
	}
}

func NewReader(r io.Reader, opts ...Option) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	reader := &Reader{scanner: scanner}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Next returns the next event, or io.EOF once the body is exhausted. Lines
// that fail to decode are logged and skipped, or reported as KindMalformed
// events with WithMalformedEvents; read errors are returned as-is.
func (r *Reader) Next() (Event, error) {
	for len(r.pending) == 0 {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return Event{}, err
			}
			return Event{}, io.EOF
		}
		r.line++

		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		events, err := Decode(raw)
		if err != nil {
			if ev, ok := r.malformed(raw, err); ok {
				return ev, nil
			}
			continue
		}
		r.pending = events
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

func (r *Reader) malformed(raw []byte, err error) (Event, bool) {
	snippet := string(raw)
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	logx.Warn().Err(err).Int("line", r.line).Str("data", snippet).Msg("skipping malformed stream line")
	if !r.emitMalformed {
		return Event{}, false
	}
	return Event{Kind: KindMalformed, Malformed: Malformed{Line: r.line, Raw: snippet, Err: err}}, true
}

// Pump copies events from r into w until the body ends, a read fails, or the
// consuming side closes the pipe. w is always closed on return.
func Pump(r *Reader, w *schema.StreamWriter[Event]) {
	defer w.Close()
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			w.Send(Event{}, err)
			return
		}
		if closed := w.Send(ev, nil); closed {
			return
		}
	}
}
