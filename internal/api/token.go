package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// CSRFHeader carries the anti-forgery token on requests and refreshed tokens on responses.
const CSRFHeader = "X-Csrf-Token"

// csrfMetaName is the <meta name> the app page renders the token under.
const csrfMetaName = "csrf"

var ErrTokenNotFound = errors.New("csrf token not found in page")

// TokenProvider supplies the anti-forgery token. Token is read on every
// request; Refresh is offered every response's headers.
type TokenProvider interface {
	Token() string
	Refresh(h http.Header)
}

// TokenStore is the process-wide TokenProvider.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore(initial string) *TokenStore {
	return &TokenStore{token: initial}
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token, e.g. after reading it from page metadata.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Refresh adopts the token from h when the header is present.
func (s *TokenStore) Refresh(h http.Header) {
	if h == nil {
		return
	}
	if token := strings.TrimSpace(h.Get(CSRFHeader)); token != "" {
		s.Set(token)
	}
}

var _ TokenProvider = (*TokenStore)(nil)

// TokenFromPage extracts the token from the app page's <meta name="csrf" content="...">.
func TokenFromPage(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return "", err
			}
			return "", ErrTokenNotFound
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, attr := range tok.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if name == csrfMetaName && content != "" {
				return content, nil
			}
		}
	}
}
