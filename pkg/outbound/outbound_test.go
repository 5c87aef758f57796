package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "5511999999999", Number("5511999999999@s.whatsapp.net"))
	assert.Equal(t, "5511999999999", Number("5511999999999@c.us"))
	assert.Equal(t, "5511999999999", Number("5511999999999"))
}

func TestSend(t *testing.T) {
	var gotPath string
	var gotBody sendTextRequest
	var gotHeader http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	s := New(Config{BaseURL: server.URL + "/", APIKey: "evo-key"}, zaptest.NewLogger(t))
	err := s.Send(context.Background(), "123@s.whatsapp.net", "hello there", "")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/default", gotPath)
	assert.Equal(t, sendTextRequest{Number: "123", Text: "hello there"}, gotBody)
	assert.Equal(t, "evo-key", gotHeader.Get("apikey"))
	assert.Equal(t, "Bearer evo-key", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))

	require.NoError(t, s.Send(context.Background(), "123@c.us", "again", "sales"))
	assert.Equal(t, "/message/sendText/sales", gotPath)
}

func TestSendNotConfigured(t *testing.T) {
	s := New(Config{BaseURL: "http://evolution.local"}, zaptest.NewLogger(t))
	assert.False(t, s.Configured())
	assert.ErrorIs(t, s.Send(context.Background(), "1", "x", ""), ErrNotConfigured)

	s = New(Config{}, nil)
	assert.ErrorIs(t, s.Send(context.Background(), "1", "x", ""), ErrNotConfigured)
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not found", http.StatusNotFound)
	}))
	defer server.Close()

	s := New(Config{BaseURL: server.URL, APIKey: "k"}, zaptest.NewLogger(t))
	err := s.Send(context.Background(), "1", "x", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "instance not found")
}

func TestSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	s := New(Config{BaseURL: server.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
	start := time.Now()
	err := s.Send(context.Background(), "1", "x", "")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
