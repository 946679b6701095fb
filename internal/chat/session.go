package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/linksort/linksort-chat/internal/api"
	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/assembler"
	"github.com/linksort/linksort-chat/internal/chat/conversations"
	"github.com/linksort/linksort-chat/internal/chat/invalidation"
	"github.com/linksort/linksort-chat/internal/chat/model"
	"github.com/linksort/linksort-chat/internal/chat/observers"
	"github.com/linksort/linksort-chat/internal/chat/stream"
	errx "github.com/linksort/linksort-chat/internal/core/error"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

const pipeCapacity = 64

// Converser opens the event stream of one chat turn.
type Converser interface {
	Converse(ctx context.Context, conversationID string, req api.ConverseRequest) (io.ReadCloser, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	API           Converser
	Conversations *conversations.Manager
	Cache         *cache.QueryCache
	Policy        *invalidation.Policy
	Observer      observers.Observer
}

// Update is published after every state change of the active turn.
type Update struct {
	ConversationID string
	Status         model.TurnStatus
	Response       model.StreamingResponse
}

// TurnResult describes a turn that completed or was aborted.
type TurnResult struct {
	ConversationID string
	Response       model.StreamingResponse
	Aborted        bool
	Invalidated    []cache.Partition
}

type Option func(*Session)

// WithPageContext sets the source of the page context sent with each message.
func WithPageContext(fn func() model.PageContext) Option {
	return func(s *Session) {
		s.pageContext = fn
	}
}

// WithUpdates registers fn for incremental turn updates. fn runs on the
// goroutine calling Send, in event order.
func WithUpdates(fn func(Update)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// Session runs chat turns one at a time. Sending while a turn is connecting
// or streaming fails fast with errx.ErrTurnInProgress.
type Session struct {
	api           Converser
	conversations *conversations.Manager
	cache         *cache.QueryCache
	policy        *invalidation.Policy
	observer      observers.Observer
	pageContext   func() model.PageContext
	onUpdate      func(Update)

	mu             sync.Mutex
	status         model.TurnStatus
	err            error
	snapshot       model.StreamingResponse
	conversationID string
	// turn identifies the active turn; work from an aborted turn that is
	// still unwinding must not touch the state of a newer one.
	turn    uint64
	cancel  context.CancelFunc
	aborted bool
	closed  bool

	// placeholderMu orders placeholder writes against the cleanup of turns
	// that did not complete.
	placeholderMu sync.Mutex

	stopLifetime func() bool
}

// NewSession builds a session that closes itself, aborting any active turn,
// when lifetime is done.
func NewSession(lifetime context.Context, deps Deps, opts ...Option) *Session {
	s := &Session{
		api:           deps.API,
		conversations: deps.Conversations,
		cache:         deps.Cache,
		policy:        deps.Policy,
		observer:      deps.Observer,
		pageContext:   func() model.PageContext { return model.PageContext{Route: "/"} },
		status:        model.StatusIdle,
		snapshot:      emptyResponse(),
	}
	if s.policy == nil {
		s.policy = invalidation.NewPolicy(nil)
	}
	if s.observer == nil {
		s.observer = observers.NewLogObserver()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopLifetime = context.AfterFunc(lifetime, s.Close)
	return s
}

func emptyResponse() model.StreamingResponse {
	return model.StreamingResponse{Content: []model.ContentItem{}, ToolUses: map[string]model.ToolUse{}}
}

// Send runs one turn: bootstrap the conversation when conversationID is
// empty, stream the reply, then invalidate stale cache partitions. It blocks
// until the stream ends. An aborted turn returns a result with Aborted set
// and no error; on failure the partial reply stays available via Snapshot.
func (s *Session) Send(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errx.ErrEmptyMessage
	}

	conversationID = strings.TrimSpace(conversationID)
	turnCtx, turn, err := s.begin(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer s.release(turn)
	s.transition(turn, model.StatusConnecting, emptyResponse())

	id, _, err := s.conversations.Ensure(turnCtx, conversationID)
	if err != nil {
		return s.fail(ctx, turn, conversationID, emptyResponse(), err)
	}
	s.setConversation(turn, id)
	s.observer.TurnStarted(id)
	s.writePlaceholder(turnCtx, id, message)

	body, err := s.api.Converse(turnCtx, id, api.ConverseRequest{
		Message:     message,
		PageContext: s.pageContext(),
	})
	if err != nil {
		return s.fail(ctx, turn, id, emptyResponse(), err)
	}
	defer body.Close()

	asm := assembler.New()
	s.transition(turn, model.StatusStreaming, asm.Snapshot())

	sr, sw := schema.Pipe[stream.Event](pipeCapacity)
	go stream.Pump(stream.NewReader(body, stream.WithMalformedEvents()), sw)
	defer sr.Close()

	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			asm.Finish()
			return s.fail(ctx, turn, id, asm.Snapshot(), err)
		}
		if ev.Kind == stream.KindMalformed {
			s.observer.MalformedLine(id, ev.Malformed.Line, ev.Malformed.Raw, ev.Malformed.Err)
			continue
		}
		if !asm.Apply(ev) {
			continue
		}
		if ev.Kind == stream.KindToolUseDelta {
			if tu, ok := asm.ToolUses()[ev.ToolUse.ID]; ok {
				s.observer.ToolUpdated(id, tu)
			}
		}
		s.transition(turn, model.StatusStreaming, asm.Snapshot())
	}

	asm.Finish()
	return s.complete(ctx, turn, id, asm)
}

// begin claims the session for a new turn on conversationID, which is empty
// when the turn bootstraps a conversation.
func (s *Session) begin(ctx context.Context, conversationID string) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, errx.ErrSessionClosed
	}
	if s.status.Active() {
		return nil, 0, errx.ErrTurnInProgress
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.turn++
	s.cancel = cancel
	s.aborted = false
	s.status = model.StatusConnecting
	s.err = nil
	s.snapshot = emptyResponse()
	s.conversationID = conversationID
	return turnCtx, s.turn, nil
}

// release cancels the turn context once Send returns.
func (s *Session) release(turn uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn == turn && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) setConversation(turn uint64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn == turn {
		s.conversationID = id
	}
}

// transition records a status/snapshot for the active turn and publishes it.
// It is a no-op for a turn that was aborted or superseded.
func (s *Session) transition(turn uint64, status model.TurnStatus, resp model.StreamingResponse) {
	s.mu.Lock()
	if s.turn != turn || s.aborted {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.snapshot = resp
	u := Update{ConversationID: s.conversationID, Status: status, Response: resp}
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(u)
	}
}

func (s *Session) writePlaceholder(ctx context.Context, id, message string) {
	s.placeholderMu.Lock()
	defer s.placeholderMu.Unlock()
	if _, err := s.conversations.AppendPending(ctx, id, message); err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("failed to write optimistic message")
	}
}

// dropPlaceholder invalidates the conversation of a turn that did not
// complete, so its optimistic message gives way to the server transcript.
// A newer turn on the same conversation owns the partition and is left alone.
func (s *Session) dropPlaceholder(ctx context.Context, turn uint64, id string) {
	if id == "" {
		return
	}
	s.placeholderMu.Lock()
	defer s.placeholderMu.Unlock()

	s.mu.Lock()
	superseded := s.turn != turn && s.conversationID == id
	s.mu.Unlock()
	if superseded {
		logx.Debug().Str("conversation_id", id).Msg("conversation owned by a newer turn, keeping cache")
		return
	}
	if err := s.cache.Invalidate(ctx, cache.ConversationDetail(id)); err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("failed to invalidate conversation")
	}
}

func (s *Session) wasAborted(turn uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn != turn || s.aborted
}

// fail ends the turn after an error. Cancellation, by Abort or by the
// caller's context, ends it as idle instead. resp is what the turn assembled
// before it stopped.
func (s *Session) fail(ctx context.Context, turn uint64, id string, resp model.StreamingResponse, err error) (*TurnResult, error) {
	cancelled := s.wasAborted(turn) || errors.Is(ctx.Err(), context.Canceled)
	s.dropPlaceholder(context.WithoutCancel(ctx), turn, id)

	s.mu.Lock()
	current := s.turn == turn
	if current {
		s.snapshot = resp
		if cancelled {
			s.status = model.StatusIdle
			s.err = nil
		} else {
			s.status = model.StatusError
			s.err = err
		}
	}
	fn := s.onUpdate
	s.mu.Unlock()

	if cancelled {
		s.observer.TurnFinished(id, observers.OutcomeAborted, resp, nil)
		return &TurnResult{ConversationID: id, Response: resp, Aborted: true}, nil
	}

	s.observer.TurnFinished(id, observers.OutcomeError, resp, err)
	if current && fn != nil {
		fn(Update{ConversationID: id, Status: model.StatusError, Response: resp})
	}
	return nil, err
}

// complete runs the invalidation policy once over the final tool outcomes.
func (s *Session) complete(ctx context.Context, turn uint64, id string, asm *assembler.Assembler) (*TurnResult, error) {
	resp := asm.Snapshot()

	s.placeholderMu.Lock()
	if s.wasAborted(turn) {
		s.placeholderMu.Unlock()
		return s.fail(ctx, turn, id, resp, context.Canceled)
	}
	plan := s.policy.Plan(id, resp.ToolUses)
	err := s.cache.Invalidate(context.WithoutCancel(ctx), plan...)
	s.placeholderMu.Unlock()
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("failed to invalidate cache partitions")
	}
	s.observer.Invalidated(id, plan)

	s.transition(turn, model.StatusDone, resp)
	s.observer.TurnFinished(id, observers.OutcomeDone, resp, nil)
	return &TurnResult{ConversationID: id, Response: resp, Invalidated: plan}, nil
}

// Abort cancels the active turn: the body stops being read, the connection
// is released and the status returns to idle. Partial content stays in
// Snapshot. Safe to call at any time, any number of times.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *Session) abortLocked() {
	if !s.status.Active() || s.aborted {
		return
	}
	s.aborted = true
	s.status = model.StatusIdle
	s.err = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close aborts the active turn and rejects further sends.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.abortLocked()
	s.mu.Unlock()

	if s.stopLifetime != nil {
		s.stopLifetime()
	}
}

func (s *Session) Status() model.TurnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the failure of the last turn, if it failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the latest state of the current or last turn.
func (s *Session) Snapshot() model.StreamingResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// ConversationID returns the conversation of the current or last turn.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}
