package inbound

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Message
	}{
		{
			name:    "flat",
			payload: `{"message":"hi","from":"123@s.whatsapp.net"}`,
			want:    Message{Text: "hi", SenderID: "123@s.whatsapp.net", Variant: "flat"},
		},
		{
			name:    "flat with remoteJid and id",
			payload: `{"message":"hi","remoteJid":"555@c.us","messageId":"m1","instance":"inst"}`,
			want:    Message{Text: "hi", SenderID: "555@c.us", CorrelationID: "m1", Instance: "inst", Variant: "flat"},
		},
		{
			name:    "nested conversation",
			payload: `{"instance":"prod","data":{"key":{"remoteJid":"X","id":"K1"},"message":{"conversation":"hello"}}}`,
			want:    Message{Text: "hello", SenderID: "X", CorrelationID: "K1", Instance: "prod", Variant: "nested"},
		},
		{
			name:    "nested extended text",
			payload: `{"data":{"key":{"remoteJid":"X"},"message":{"extendedTextMessage":{"text":"a link"}}}}`,
			want:    Message{Text: "a link", SenderID: "X", Variant: "nested"},
		},
		{
			name:    "event",
			payload: `{"event":"messages.upsert","data":{"messages":[{"key":{"remoteJid":"X"},"message":{"conversation":"hi"}}]}}`,
			want:    Message{Text: "hi", SenderID: "X", Variant: "event"},
		},
		{
			name:    "event extended text",
			payload: `{"event":"messages.upsert","instance":"i","data":{"messages":[{"key":{"remoteJid":"X","id":"E"},"message":{"extendedTextMessage":{"text":"yo"}}}]}}`,
			want:    Message{Text: "yo", SenderID: "X", CorrelationID: "E", Instance: "i", Variant: "event"},
		},
		{
			name:    "object message falls through to nested",
			payload: `{"message":{"conversation":"nope"},"from":"1","data":{"key":{"remoteJid":"Y"},"message":{"conversation":"yes"}}}`,
			want:    Message{Text: "yes", SenderID: "Y", Variant: "nested"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIncomplete(t *testing.T) {
	payloads := []string{
		`{}`,
		`not json`,
		`[]`,
		`null`,
		`{"message":"hi"}`,
		`{"from":"123"}`,
		`{"message":"","from":"123"}`,
		`{"event":"messages.update","data":{"messages":[{"key":{"remoteJid":"X"},"message":{"conversation":"hi"}}]}}`,
		`{"event":"messages.upsert","data":{"messages":[]}}`,
		`{"event":"messages.upsert","data":{"messages":"oops"}}`,
		`{"data":{"key":{"remoteJid":"X"},"message":{"imageMessage":{}}}}`,
	}

	for _, p := range payloads {
		_, err := Normalize([]byte(p))
		assert.ErrorIs(t, err, ErrIncomplete, p)
		assert.False(t, errors.Is(err, ErrGroupChat), p)
	}
}

func TestNormalizeGroupChat(t *testing.T) {
	payloads := []string{
		`{"message":"hi","from":"12036@g.us"}`,
		`{"data":{"key":{"remoteJid":"12036@g.us"},"message":{"conversation":"hi"}}}`,
		`{"event":"messages.upsert","data":{"messages":[{"key":{"remoteJid":"12036@g.us"},"message":{"conversation":"hi"}}]}}`,
	}

	for _, p := range payloads {
		msg, err := Normalize([]byte(p))
		assert.ErrorIs(t, err, ErrGroupChat, p)
		assert.ErrorIs(t, err, ErrIncomplete, p)
		assert.Equal(t, "12036@g.us", msg.SenderID)
	}
}
