package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/linksort/linksort-chat/internal/chat/model"
	errx "github.com/linksort/linksort-chat/internal/core/error"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

const (
	defaultTimeout = 120 * time.Second
	sessionCookie  = "session_id"
	ndjsonMIME     = "application/x-ndjson"
)

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	SessionCookie string
}

// Client talks to the Linksort API. Mutating requests carry the CSRF token
// read from the TokenProvider at send time.
type Client struct {
	http   *resty.Client
	tokens TokenProvider
}

func NewClient(cfg Config, tokens TokenProvider) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if tokens == nil {
		tokens = NewTokenStore("")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.SessionCookie != "" {
		httpClient.SetCookie(&http.Cookie{Name: sessionCookie, Value: cfg.SessionCookie})
	}

	c := &Client{http: httpClient, tokens: tokens}
	httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if isMutating(r.Method) {
			r.SetHeader(CSRFHeader, c.tokens.Token())
		}
		return nil
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		c.tokens.Refresh(r.Header())
		logx.Debug().
			Str("method", r.Request.Method).
			Str("path", r.Request.URL).
			Int("status", r.StatusCode()).
			Dur("latency", r.Time()).
			Msg("linksort api request")
		return nil
	})
	return c
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// LoadToken initialises the token provider from the app page metadata.
func (c *Client) LoadToken(ctx context.Context, pagePath string) error {
	resp, err := c.http.R().SetContext(ctx).Get(pagePath)
	if err != nil {
		return errx.WrapTransport(err)
	}
	if resp.IsError() {
		return errx.FromResponse(resp.StatusCode(), resp.String())
	}
	token, err := TokenFromPage(bytes.NewReader(resp.Body()))
	if err != nil {
		return fmt.Errorf("read csrf token: %w", err)
	}
	c.tokens.Refresh(http.Header{CSRFHeader: []string{token}})
	return nil
}

type conversationEnvelope struct {
	Conversation model.Conversation `json:"conversation"`
}

type conversationsEnvelope struct {
	Conversations []model.ConversationSummary `json:"conversations"`
}

// CreateConversation starts a new, empty conversation.
func (c *Client) CreateConversation(ctx context.Context) (*model.Conversation, error) {
	var out conversationEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		SetResult(&out).
		Post("/api/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if out.Conversation.ID == "" {
		return nil, errx.New(fmt.Errorf("response has no conversation id"), http.StatusBadGateway, errx.TransportErrorMessage)
	}
	return &out.Conversation, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out conversationEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", id).
		Get("/api/conversations/{id}")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out.Conversation, nil
}

func (c *Client) ListConversations(ctx context.Context, page int) ([]model.ConversationSummary, error) {
	var out conversationsEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetQueryParam("page", fmt.Sprint(page)).
		Get("/api/conversations")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if out.Conversations == nil {
		out.Conversations = []model.ConversationSummary{}
	}
	return out.Conversations, nil
}

// ConverseRequest is the body of one chat turn.
type ConverseRequest struct {
	Message     string            `json:"message"`
	PageContext model.PageContext `json:"pageContext"`
}

// Converse sends a message and returns the unparsed newline-delimited JSON
// event stream. The caller must close it; cancelling ctx aborts the read.
func (c *Client) Converse(ctx context.Context, conversationID string, req ConverseRequest) (io.ReadCloser, error) {
	if req.PageContext.Query == nil {
		req.PageContext.Query = map[string]any{}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetHeader("Accept", ndjsonMIME).
		SetHeader("Accept-Encoding", "identity").
		SetDoNotParseResponse(true).
		Put("/api/conversations/" + url.PathEscape(conversationID) + "/converse")
	if err != nil {
		if resp != nil && resp.RawResponse != nil && resp.RawResponse.Body != nil {
			_ = resp.RawResponse.Body.Close()
		}
		return nil, errx.WrapTransport(err)
	}
	// Response hooks do not run for unparsed responses.
	c.tokens.Refresh(resp.Header())

	body := resp.RawBody()
	if resp.IsError() {
		var snippet []byte
		if body != nil {
			snippet, _ = io.ReadAll(io.LimitReader(body, 4096))
			_ = body.Close()
		}
		return nil, errx.FromResponse(resp.StatusCode(), string(snippet))
	}
	if body == nil || resp.StatusCode() == http.StatusNoContent {
		if body != nil {
			_ = body.Close()
		}
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return body, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errx.WrapTransport(err)
	}
	if resp.IsError() {
		return errx.FromResponse(resp.StatusCode(), resp.String())
	}
	return nil
}
