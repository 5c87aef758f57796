// Package llm talks to the chat completion provider. It never returns an
// error to its caller: every failure becomes a degraded reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/prompt"
	"github.com/xhad/docchat/pkg/settings"
	"go.uber.org/zap"
)

const (
	DefaultModel   = "openai/gpt-4"
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// KeyPrefix marks a usable OpenRouter key.
	KeyPrefix = "sk-or-"

	EmptyReply   = "Sorry, I could not generate a response."
	ApologyReply = "Sorry, I am having technical problems right now. Please try again in a few minutes."
)

// errCallerGone marks failures caused by the caller cancelling its request.
var errCallerGone = errors.New("caller cancelled")

type Status int

const (
	Answered Status = iota
	Degraded
)

func (s Status) String() string {
	switch s {
	case Answered:
		return "answered"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoAPIKey      Reason = "no_api_key"
	ReasonProviderError Reason = "provider_error"
	ReasonCircuitOpen   Reason = "circuit_open"
)

type Reply struct {
	Text   string
	Status Status
	Reason Reason
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64 // nil means 0.7
	MaxTokens   int
	Timeout     time.Duration
	Referer     string
	Title       string

	// circuit breaker
	MaxFailures   int
	ResetInterval time.Duration
}

// CompletionRequest carries an assembled prompt plus what the gateway needs
// to build a local reply when the provider cannot be used.
type CompletionRequest struct {
	Messages    []prompt.Message
	UserMessage string
	ContextText string
	Items       []models.ScoredItem

	// request-level overrides
	APIKey string
	Model  string
}

type Gateway struct {
	config      Config
	temperature float64
	settings    *settings.Store
	audit       types.ConversationLog
	breaker     *gobreaker.CircuitBreaker
	client      *http.Client
	logger      *zap.Logger
}

// NewGateway builds a Gateway. settings and audit may be nil.
func NewGateway(config Config, store *settings.Store, audit types.ConversationLog, logger *zap.Logger) *Gateway {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	temperature := 0.7
	if config.Temperature != nil {
		temperature = *config.Temperature
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetInterval <= 0 {
		config.ResetInterval = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("llm")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openrouter",
		MaxRequests: 1,
		Interval:    config.ResetInterval,
		Timeout:     config.ResetInterval,
		// a caller that went away says nothing about the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	headers := map[string]string{}
	if config.Referer != "" {
		headers["HTTP-Referer"] = config.Referer
	}
	if config.Title != "" {
		headers["X-Title"] = config.Title
	}

	return &Gateway{
		config:      config,
		temperature: temperature,
		settings:    store,
		audit:       audit,
		breaker:     breaker,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
		},
		logger: logger,
	}
}

// ResolveKey returns the first non-empty key of request, runtime settings
// and process configuration.
func (g *Gateway) ResolveKey(requestKey string) string {
	if key := strings.TrimSpace(requestKey); key != "" {
		return key
	}
	if g.settings != nil {
		if key := g.settings.Snapshot().OpenRouterKey; key != "" {
			return key
		}
	}
	return g.config.APIKey
}

// ResolveModel follows the same precedence as ResolveKey.
func (g *Gateway) ResolveModel(requestModel string) string {
	if model := strings.TrimSpace(requestModel); model != "" {
		return model
	}
	if g.settings != nil {
		if model := g.settings.Snapshot().Model; model != "" {
			return model
		}
	}
	return g.config.Model
}

// ValidKey reports whether key looks like an OpenRouter key.
func ValidKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}

// Complete answers the request. Without a usable key no network call is made.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) Reply {
	key := g.ResolveKey(req.APIKey)
	if !ValidKey(key) {
		g.logger.Info("no usable api key, replying locally", zap.Bool("key_present", key != ""))
		return Reply{
			Text:   noKeyReply(req),
			Status: Degraded,
			Reason: ReasonNoAPIKey,
		}
	}

	model := g.ResolveModel(req.Model)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		g.logger.Info("caller gone before completion", zap.Error(err))
		return Reply{
			Text:   failureReply(req),
			Status: Degraded,
			Reason: ReasonProviderError,
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		text, err := g.generate(ctx, key, model, req.Messages)
		if err != nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return text, err
	})
	if err != nil {
		reason := ReasonProviderError
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = ReasonCircuitOpen
		}
		g.logger.Error("completion failed",
			zap.Error(err),
			zap.String("model", model),
			zap.String("reason", string(reason)),
			zap.Duration("elapsed", time.Since(start)))
		return Reply{
			Text:   failureReply(req),
			Status: Degraded,
			Reason: reason,
		}
	}

	text := result.(string)
	if strings.TrimSpace(text) == "" {
		text = EmptyReply
	}
	g.logger.Debug("completion received",
		zap.String("model", model),
		zap.Int("length", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	g.record(ctx, req, text)

	return Reply{Text: text, Status: Answered}
}

func (g *Gateway) generate(ctx context.Context, key, model string, messages []prompt.Message) (string, error) {
	client, err := openai.New(
		openai.WithToken(key),
		openai.WithModel(model),
		openai.WithBaseURL(g.config.BaseURL),
		openai.WithHTTPClient(g.client),
	)
	if err != nil {
		return "", fmt.Errorf("failed to initialize LLM: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	resp, err := client.GenerateContent(ctx, toContent(messages),
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("chat error: no choices in response")
	}
	return resp.Choices[0].Content, nil
}

func (g *Gateway) record(ctx context.Context, req CompletionRequest, response string) {
	if g.audit == nil {
		return
	}
	err := g.audit.SaveConversation(ctx, models.Conversation{
		Message:     req.UserMessage,
		Response:    response,
		ContextUsed: req.ContextText,
	})
	if err != nil {
		g.logger.Warn("failed to save conversation", zap.Error(err))
	}
}

func toContent(messages []prompt.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case prompt.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case prompt.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}

func noKeyReply(req CompletionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I received your message: \"%s\".", req.UserMessage)

	if req.ContextText == "" {
		b.WriteString("\n\nConfigure a valid OpenRouter API key (sk-or-v1-...) to get AI answers.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nI found %d relevant excerpt(s) in %s. ", len(req.Items), documentNames(req.Items))
	b.WriteString("Configure a valid OpenRouter API key to get AI answers that use this context.\n\n")
	b.WriteString(excerpt(req.ContextText, 400))
	return b.String()
}

func failureReply(req CompletionRequest) string {
	if req.ContextText == "" {
		return ApologyReply
	}
	return fmt.Sprintf("Based on the available documents, I found information related to your question \"%s\": %s",
		req.UserMessage, excerpt(req.ContextText, 500))
}

func documentNames(items []models.ScoredItem) string {
	var names []string
	seen := make(map[string]bool)
	for _, item := range items {
		if item.DocumentName == "" || seen[item.DocumentName] {
			continue
		}
		seen[item.DocumentName] = true
		names = append(names, item.DocumentName)
	}
	if len(names) == 0 {
		return "the stored documents"
	}
	return strings.Join(names, ", ")
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s + "..."
	}
	return string(r[:n]) + "..."
}

// headerTransport adds the OpenRouter attribution headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
