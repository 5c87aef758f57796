package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/inbound"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/outbound"
	"github.com/xhad/docchat/pkg/prompt"
	"github.com/xhad/docchat/pkg/settings"
	"go.uber.org/zap/zaptest"
)

type fakeRetriever struct {
	items []models.ScoredItem
	query string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) []models.ScoredItem {
	f.query = query
	return f.items
}

type fakeCompleter struct {
	reply llm.Reply
	got   llm.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) llm.Reply {
	f.got = req
	return f.reply
}

type fakeSender struct {
	err      error
	target   string
	text     string
	instance string
}

func (f *fakeSender) Send(ctx context.Context, target, text, instance string) error {
	f.target, f.text, f.instance = target, text, instance
	return f.err
}

var testConfig = Config{
	SystemPrompt:          "default prompt",
	MessagingSystemPrompt: "whatsapp prompt",
}

func TestChatAssemblesPrompt(t *testing.T) {
	retriever := &fakeRetriever{items: []models.ScoredItem{{DocumentName: "a.txt", Content: "alpha"}}}
	completer := &fakeCompleter{reply: llm.Reply{Text: "answer", Status: llm.Answered}}
	o := New(retriever, completer, nil, nil, testConfig, zaptest.NewLogger(t))

	result := o.Chat(context.Background(), Request{
		Message:        "tell me about alpha",
		IncludeHistory: true,
		History:        []prompt.Turn{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}},
	})

	assert.Equal(t, "answer", result.Reply.Text)
	assert.Equal(t, "[a.txt]: alpha", result.Context)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "tell me about alpha", retriever.query)

	msgs := completer.got.Messages
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, "default prompt")
	assert.Contains(t, msgs[0].Content, "=== DOCUMENT CONTEXT ===")
	assert.Equal(t, "earlier", msgs[1].Content)
	assert.Equal(t, prompt.Message{Role: prompt.RoleUser, Content: "tell me about alpha"}, msgs[3])
	assert.Equal(t, "tell me about alpha", completer.got.UserMessage)
	assert.Equal(t, "[a.txt]: alpha", completer.got.ContextText)
}

func TestChatIgnoresHistoryUnlessRequested(t *testing.T) {
	completer := &fakeCompleter{}
	o := New(&fakeRetriever{}, completer, nil, nil, testConfig, zaptest.NewLogger(t))

	o.Chat(context.Background(), Request{
		Message: "hi",
		History: []prompt.Turn{{Role: "user", Content: "earlier"}},
	})

	require.Len(t, completer.got.Messages, 2)
	assert.Equal(t, "default prompt", completer.got.Messages[0].Content)
}

func TestChatConfigPrecedence(t *testing.T) {
	completer := &fakeCompleter{}
	store := settings.NewStore(settings.ChatConfig{OpenRouterKey: "sk-or-runtime", Model: "runtime/model", SystemPrompt: "runtime prompt"})
	o := New(nil, completer, nil, store, testConfig, zaptest.NewLogger(t))

	o.Chat(context.Background(), Request{Message: "hi"})
	assert.Equal(t, "sk-or-runtime", completer.got.APIKey)
	assert.Equal(t, "runtime/model", completer.got.Model)
	assert.Equal(t, "runtime prompt", completer.got.Messages[0].Content)

	o.Chat(context.Background(), Request{Message: "hi", Config: &settings.ChatConfig{SystemPrompt: "request prompt"}})
	assert.Equal(t, "sk-or-runtime", completer.got.APIKey)
	assert.Equal(t, "request prompt", completer.got.Messages[0].Content)
}

func TestHandleInboundDelivers(t *testing.T) {
	completer := &fakeCompleter{reply: llm.Reply{Text: "pong", Status: llm.Answered}}
	sender := &fakeSender{}
	o := New(&fakeRetriever{}, completer, sender, nil, testConfig, zaptest.NewLogger(t))

	msg := inbound.Message{Text: "ping", SenderID: "123@s.whatsapp.net", Instance: "prod"}
	result := o.HandleInbound(context.Background(), msg)

	assert.True(t, result.Delivered)
	assert.NoError(t, result.DeliveryErr)
	assert.Equal(t, "pong", result.Reply.Text)
	assert.Equal(t, msg, result.Message)
	assert.Equal(t, "123@s.whatsapp.net", sender.target)
	assert.Equal(t, "pong", sender.text)
	assert.Equal(t, "prod", sender.instance)
	assert.Equal(t, "whatsapp prompt", completer.got.Messages[0].Content)
}

func TestHandleInboundDeliveryFailureKeepsReply(t *testing.T) {
	completer := &fakeCompleter{reply: llm.Reply{Text: "pong", Status: llm.Answered}}
	sender := &fakeSender{err: errors.New("connection refused")}
	o := New(&fakeRetriever{}, completer, sender, nil, testConfig, zaptest.NewLogger(t))

	result := o.HandleInbound(context.Background(), inbound.Message{Text: "ping", SenderID: "1"})

	assert.False(t, result.Delivered)
	assert.Error(t, result.DeliveryErr)
	assert.Equal(t, "pong", result.Reply.Text)
	assert.Equal(t, llm.Answered, result.Reply.Status)
}

func TestHandleInboundWithoutSender(t *testing.T) {
	o := New(&fakeRetriever{}, &fakeCompleter{}, nil, nil, testConfig, zaptest.NewLogger(t))

	result := o.HandleInbound(context.Background(), inbound.Message{Text: "ping", SenderID: "1"})
	assert.False(t, result.Delivered)
	assert.ErrorIs(t, result.DeliveryErr, outbound.ErrNotConfigured)
}
