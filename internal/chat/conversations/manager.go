package conversations

import (
	"context"
	"strings"

	"github.com/linksort/linksort-chat/internal/cache"
	"github.com/linksort/linksort-chat/internal/chat/model"
	errx "github.com/linksort/linksort-chat/internal/core/error"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

const defaultHistoryTurns = 10

// API is the slice of the Linksort client the manager needs.
type API interface {
	CreateConversation(ctx context.Context) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, page int) ([]model.ConversationSummary, error)
}

// Manager reads conversations through the query cache and owns the
// optimistic placeholder written while a turn is in flight.
type Manager struct {
	api          API
	cache        *cache.QueryCache
	historyTurns int
}

func NewManager(api API, qc *cache.QueryCache, config model.SessionConfig) *Manager {
	turns := config.HistoryTurns
	if turns <= 0 {
		turns = defaultHistoryTurns
	}
	return &Manager{api: api, cache: qc, historyTurns: turns}
}

// Ensure returns id unchanged when set, otherwise creates a conversation.
// created reports whether a new conversation was made.
func (m *Manager) Ensure(ctx context.Context, id string) (string, bool, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, false, nil
	}

	conv, err := m.api.CreateConversation(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to create conversation")
		return "", false, errx.WrapConversationCreate(err)
	}

	if err := m.cache.Put(ctx, cache.ConversationDetailKey(conv.ID), conv); err != nil {
		logx.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to cache new conversation")
	}
	if err := m.cache.Invalidate(ctx, cache.PartitionConversationsList); err != nil {
		logx.Warn().Err(err).Msg("failed to invalidate conversation list")
	}
	return conv.ID, true, nil
}

// Conversation returns the transcript, fetching it when the partition is not cached.
func (m *Manager) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := m.cache.Fetch(ctx, cache.ConversationDetailKey(id), &conv, func(ctx context.Context) (any, error) {
		return m.api.GetConversation(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// List returns the first page of conversations.
func (m *Manager) List(ctx context.Context) ([]model.ConversationSummary, error) {
	var list []model.ConversationSummary
	err := m.cache.Fetch(ctx, cache.ConversationsListKey(), &list, func(ctx context.Context) (any, error) {
		return m.api.ListConversations(ctx, 0)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AppendPending writes the optimistic user message into the cached transcript.
// The whole partition value is replaced; invalidating the partition later
// discards the placeholder together with everything else. A placeholder left
// by an earlier unfinished turn is replaced by the new one.
func (m *Manager) AppendPending(ctx context.Context, id, text string) (model.Message, error) {
	msg := model.NewPendingUserMessage(text)
	key := cache.ConversationDetailKey(id)

	var conv model.Conversation
	ok, err := m.cache.Load(ctx, key, &conv)
	if err != nil {
		return msg, err
	}
	if !ok {
		conv = model.Conversation{ID: id}
	}

	messages := make([]model.Message, 0, len(conv.Messages)+1)
	for _, m := range conv.Messages {
		if !m.IsPending() {
			messages = append(messages, m)
		}
	}
	conv.Messages = append(messages, msg)

	if err := m.cache.Put(ctx, key, conv); err != nil {
		return msg, err
	}
	return msg, nil
}

// RecentMessages returns at most the configured number of trailing messages.
func (m *Manager) RecentMessages(ctx context.Context, id string) ([]model.Message, error) {
	conv, err := m.Conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return trimTail(conv.Messages, m.historyTurns), nil
}

// ====================== Helper function ======================
func trimTail(messages []model.Message, maxTurns int) []model.Message {
	if len(messages) <= maxTurns {
		result := make([]model.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]model.Message, len(source))
	copy(result, source)
	return result
}
