package giftcard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agrimatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssuer_LocalWhenNoBaseURL(t *testing.T) {
	issuer := NewIssuer(&config.GiftCardConfig{})
	card, err := issuer.Issue(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "local", card.Provider)
	assert.True(t, strings.HasPrefix(card.Code, "JD100"))
}

func TestHTTPIssuer_Issue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/issue", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req issueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(9), req.UserID)
		assert.Equal(t, int64(200), req.FaceValue)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"card_code":"CARD-XYZ"}}`))
	}))
	defer srv.Close()

	issuer := NewIssuer(&config.GiftCardConfig{BaseURL: srv.URL, APIKey: "secret", TimeoutSeconds: 2})
	card, err := issuer.Issue(context.Background(), 9, 200)
	require.NoError(t, err)
	assert.Equal(t, "CARD-XYZ", card.Code)
	assert.Equal(t, "http", card.Provider)
}

func TestHTTPIssuer_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":3001,"message":"库存不足"}`))
	}))
	defer srv.Close()

	issuer := NewHTTPIssuer(&config.GiftCardConfig{BaseURL: srv.URL, TimeoutSeconds: 2})
	_, err := issuer.Issue(context.Background(), 9, 200)
	assert.ErrorIs(t, err, ErrIssueFailed)
}
