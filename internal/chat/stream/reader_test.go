package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestReaderSplitsLines(t *testing.T) {
	body := "{\"textDelta\":\"Hi \"}\n\n{\"textDelta\":\"there\"}\r\n"
	got := readAll(t, NewReader(strings.NewReader(body)))
	assert.Equal(t, []Event{TextDelta("Hi "), TextDelta("there")}, got)
}

func TestReaderKeepsMultiByteCharactersAcrossReads(t *testing.T) {
	body := "{\"textDelta\":\"héllo 世界 🌍\"}\n{\"textDelta\":\"ü\"}\n"
	got := readAll(t, NewReader(iotest.OneByteReader(strings.NewReader(body))))
	assert.Equal(t, []Event{TextDelta("héllo 世界 🌍"), TextDelta("ü")}, got)
}

func TestReaderDecodesTrailingLineWithoutNewline(t *testing.T) {
	got := readAll(t, NewReader(strings.NewReader(`{"textDelta":"a"}`+"\n"+`{"textDelta":"b"}`)))
	assert.Equal(t, []Event{TextDelta("a"), TextDelta("b")}, got)
}

func TestReaderSkipsMalformedLines(t *testing.T) {
	body := "{\"textDelta\":\"Hi \"}\n{oops\n{\"textDelta\":\"there\"}\n"

	got := readAll(t, NewReader(strings.NewReader(body)))
	clean := readAll(t, NewReader(strings.NewReader("{\"textDelta\":\"Hi \"}\n{\"textDelta\":\"there\"}\n")))
	assert.Equal(t, clean, got)
}

func TestReaderReportsMalformedLinesInOrder(t *testing.T) {
	body := "{\"textDelta\":\"Hi \"}\n{oops\n[1]\n{\"textDelta\":\"there\"}\n"

	got := readAll(t, NewReader(strings.NewReader(body), WithMalformedEvents()))
	require.Len(t, got, 4)
	assert.Equal(t, TextDelta("Hi "), got[0])
	assert.Equal(t, KindMalformed, got[1].Kind)
	assert.Equal(t, 2, got[1].Malformed.Line)
	assert.Equal(t, "{oops", got[1].Malformed.Raw)
	assert.Error(t, got[1].Malformed.Err)
	assert.Equal(t, KindMalformed, got[2].Kind)
	assert.ErrorIs(t, got[2].Malformed.Err, ErrNotObject)
	assert.Equal(t, TextDelta("there"), got[3])
}

func TestReaderReturnsReadErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(strings.NewReader("{\"textDelta\":\"a\"}\n"), iotest.ErrReader(boom)))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TextDelta("a"), ev)

	_, err = r.Next()
	assert.ErrorIs(t, err, boom)
}

func TestPumpPreservesOrderAndCloses(t *testing.T) {
	body := "{\"textDelta\":\"1\"}\n{\"toolUseDelta\":{\"id\":\"t\",\"name\":\"get_links\",\"type\":\"request\"}}\n{\"textDelta\":\"2\"}\n"
	sr, sw := schema.Pipe[Event](1)
	go Pump(NewReader(strings.NewReader(body)), sw)
	defer sr.Close()

	var kinds []Kind
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{KindTextDelta, KindToolUseDelta, KindTextDelta}, kinds)
}

func TestPumpForwardsReadError(t *testing.T) {
	boom := errors.New("broken pipe")
	sr, sw := schema.Pipe[Event](1)
	go Pump(NewReader(iotest.ErrReader(boom)), sw)
	defer sr.Close()

	_, err := sr.Recv()
	assert.ErrorIs(t, err, boom)
}
