package conversations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
	errx "github.com/linksort/linksort-chat/internal/core/error"
)

type stubAPI struct {
	createErr error
	gets      atomic.Int32
	messages  []model.Message
}

func (s *stubAPI) CreateConversation(context.Context) (*model.Conversation, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &model.Conversation{ID: "new-1", Messages: []model.Message{}}, nil
}

func (s *stubAPI) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	s.gets.Add(1)
	return &model.Conversation{ID: id, Messages: s.messages}, nil
}

func (s *stubAPI) ListConversations(context.Context, int) ([]model.ConversationSummary, error) {
	return []model.ConversationSummary{{ID: "c1"}}, nil
}

func newManager(api *stubAPI) (*Manager, *cache.QueryCache) {
	qc := cache.New(cache.NewMemoryStore())
	return NewManager(api, qc, model.SessionConfig{HistoryTurns: 2}), qc
}

func TestEnsureKeepsExistingID(t *testing.T) {
	m, _ := newManager(&stubAPI{})
	id, created, err := m.Ensure(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
	assert.False(t, created)
}

func TestEnsureCreatesAndInvalidatesList(t *testing.T) {
	ctx := context.Background()
	m, qc := newManager(&stubAPI{})
	require.NoError(t, qc.Put(ctx, cache.ConversationsListKey(), []model.ConversationSummary{}))

	id, created, err := m.Ensure(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)
	assert.True(t, created)

	var list []model.ConversationSummary
	ok, err := qc.Load(ctx, cache.ConversationsListKey(), &list)
	require.NoError(t, err)
	assert.False(t, ok)

	var conv model.Conversation
	ok, err = qc.Load(ctx, cache.ConversationDetailKey("new-1"), &conv)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsurePropagatesCreateFailure(t *testing.T) {
	m, _ := newManager(&stubAPI{createErr: errx.FromResponse(http.StatusForbidden, "csrf")})
	_, _, err := m.Ensure(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errx.ConversationCreateMessage)
	assert.Equal(t, http.StatusForbidden, errx.StatusOf(err))
}

func TestAppendPendingIsSupersededByInvalidation(t *testing.T) {
	ctx := context.Background()
	api := &stubAPI{messages: []model.Message{{ID: "m1", Role: model.RoleUser, Sequence: 0, Text: "hi"}}}
	m, qc := newManager(api)

	conv, err := m.Conversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)

	pending, err := m.AppendPending(ctx, "c1", "make a folder")
	require.NoError(t, err)
	assert.True(t, pending.IsPending())

	conv, err = m.Conversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.True(t, conv.HasPending())
	assert.Equal(t, int32(1), api.gets.Load())

	api.messages = append(api.messages,
		model.Message{ID: "m2", Role: model.RoleUser, Sequence: 1, Text: "make a folder"},
		model.Message{ID: "m3", Role: model.RoleAssistant, Sequence: 2, Content: []model.ContentItem{model.TextItem("Done")}},
	)
	require.NoError(t, qc.Invalidate(ctx, cache.ConversationDetail("c1")))

	conv, err = m.Conversation(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, conv.HasPending())
	assert.Len(t, conv.Messages, 3)
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestAppendPendingWithoutCachedConversation(t *testing.T) {
	ctx := context.Background()
	m, qc := newManager(&stubAPI{})

	_, err := m.AppendPending(ctx, "c9", "hello")
	require.NoError(t, err)

	var conv model.Conversation
	ok, err := qc.Load(ctx, cache.ConversationDetailKey("c9"), &conv)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.Messages[0].Text)
}

func TestAppendPendingReplacesEarlierPlaceholder(t *testing.T) {
	ctx := context.Background()
	m, qc := newManager(&stubAPI{})

	_, err := m.AppendPending(ctx, "c1", "first")
	require.NoError(t, err)
	second, err := m.AppendPending(ctx, "c1", "second")
	require.NoError(t, err)

	var conv model.Conversation
	ok, err := qc.Load(ctx, cache.ConversationDetailKey("c1"), &conv)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, second.ID, conv.Messages[0].ID)
	assert.Equal(t, "second", conv.Messages[0].Text)
}

func TestRecentMessagesTrimsToHistoryTurns(t *testing.T) {
	var msgs []model.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, model.Message{ID: fmt.Sprintf("m%d", i), Sequence: i})
	}
	m, _ := newManager(&stubAPI{messages: msgs})

	recent, err := m.RecentMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].ID)
	assert.Equal(t, "m4", recent[1].ID)
}

func TestListIsCached(t *testing.T) {
	m, _ := newManager(&stubAPI{})
	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ConversationSummary{{ID: "c1"}}, list)
}

func TestConversationFetchError(t *testing.T) {
	qc := cache.New(cache.NewMemoryStore())
	m := NewManager(failingAPI{}, qc, model.SessionConfig{})
	_, err := m.Conversation(context.Background(), "c1")
	assert.Error(t, err)
}

type failingAPI struct{}

func (failingAPI) CreateConversation(context.Context) (*model.Conversation, error) {
	return nil, errors.New("down")
}

func (failingAPI) GetConversation(context.Context, string) (*model.Conversation, error) {
	return nil, errors.New("down")
}

func (failingAPI) ListConversations(context.Context, int) ([]model.ConversationSummary, error) {
	return nil, errors.New("down")
}
