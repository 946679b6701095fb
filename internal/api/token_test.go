package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRefresh(t *testing.T) {
	s := NewTokenStore("initial")
	assert.Equal(t, "initial", s.Token())

	s.Refresh(http.Header{})
	assert.Equal(t, "initial", s.Token())

	s.Refresh(nil)
	assert.Equal(t, "initial", s.Token())

	h := http.Header{}
	h.Set(CSRFHeader, "rotated")
	s.Refresh(h)
	assert.Equal(t, "rotated", s.Token())
}

func TestTokenFromPage(t *testing.T) {
	page := `<!doctype html><html><head>
<meta charset="utf-8">
<meta name="description" content="Linksort">
<meta name="csrf" content="tok-123" />
</head><body></body></html>`

	token, err := TokenFromPage(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestTokenFromPageMissing(t *testing.T) {
	_, err := TokenFromPage(strings.NewReader(`<html><head><meta name="csrf"></head></html>`))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
