// Package chat runs one conversation turn end to end: retrieve context,
// assemble the prompt, complete it, and for messaging traffic deliver the
// reply back to the sender.
package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/inbound"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/logging"
	"github.com/xhad/docchat/pkg/outbound"
	"github.com/xhad/docchat/pkg/prompt"
	"github.com/xhad/docchat/pkg/retrieval"
	"github.com/xhad/docchat/pkg/settings"
	"go.uber.org/zap"
)

type Stage string

const (
	StageReceived   Stage = "received"
	StageRetrieving Stage = "retrieving"
	StageAssembling Stage = "assembling"
	StageCompleting Stage = "completing"
	StageDelivering Stage = "delivering"
	StageDone       Stage = "done"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string) []models.ScoredItem
}

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) llm.Reply
}

type Sender interface {
	Send(ctx context.Context, target, text, instance string) error
}

type Config struct {
	SystemPrompt          string
	MessagingSystemPrompt string
}

type Request struct {
	Message        string
	Config         *settings.ChatConfig
	IncludeHistory bool
	History        []prompt.Turn
}

type Result struct {
	RunID   string
	Reply   llm.Reply
	Context string
	Items   []models.ScoredItem
}

type InboundResult struct {
	Result
	Message   inbound.Message
	Delivered bool
	// DeliveryErr is set when the reply could not be sent.
	DeliveryErr error
}

type Orchestrator struct {
	retriever Retriever
	completer Completer
	sender    Sender
	settings  *settings.Store
	config    Config
	logger    *zap.Logger
}

// New wires an Orchestrator. sender may be nil, in which case inbound
// replies are never delivered.
func New(retriever Retriever, completer Completer, sender Sender, store *settings.Store, config Config, logger *zap.Logger) *Orchestrator {
	if store == nil {
		store = settings.NewStore(settings.ChatConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		retriever: retriever,
		completer: completer,
		sender:    sender,
		settings:  store,
		config:    config,
		logger:    logger.Named("chat"),
	}
}

// Chat answers a direct chat request.
func (o *Orchestrator) Chat(ctx context.Context, req Request) Result {
	run := o.newRun()
	run.stage(StageReceived, zap.String("message", logging.Preview(req.Message, 80)))

	// one snapshot per run
	snapshot := o.settings.Snapshot()
	if req.Config != nil {
		snapshot = merge(*req.Config, snapshot)
	}

	systemPrompt := first(snapshot.SystemPrompt, o.config.SystemPrompt)

	var history []prompt.Turn
	if req.IncludeHistory {
		history = req.History
	}

	result := o.complete(ctx, run, req.Message, systemPrompt, history, snapshot)
	run.stage(StageDone, zap.Stringer("status", result.Reply.Status))
	return result
}

// HandleInbound answers a normalized messaging message and delivers the
// reply. Delivery failures never change the reply.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg inbound.Message) InboundResult {
	run := o.newRun()
	run.stage(StageReceived,
		zap.String("variant", msg.Variant),
		zap.String("instance", msg.Instance),
		zap.String("correlation_id", msg.CorrelationID),
		zap.String("message", logging.Preview(msg.Text, 80)))

	snapshot := o.settings.Snapshot()
	systemPrompt := first(o.config.MessagingSystemPrompt, snapshot.SystemPrompt, o.config.SystemPrompt)

	result := InboundResult{
		Result:  o.complete(ctx, run, msg.Text, systemPrompt, nil, snapshot),
		Message: msg,
	}

	run.stage(StageDelivering)
	if o.sender == nil {
		result.DeliveryErr = outbound.ErrNotConfigured
	} else {
		// the sender logs its own failures
		result.DeliveryErr = o.sender.Send(ctx, msg.SenderID, result.Reply.Text, msg.Instance)
	}
	result.Delivered = result.DeliveryErr == nil

	run.stage(StageDone,
		zap.Stringer("status", result.Reply.Status),
		zap.Bool("delivered", result.Delivered))
	return result
}

func (o *Orchestrator) complete(ctx context.Context, run *run, message, systemPrompt string, history []prompt.Turn, snapshot settings.ChatConfig) Result {
	run.stage(StageRetrieving)
	var items []models.ScoredItem
	if o.retriever != nil {
		items = o.retriever.Retrieve(ctx, message)
	}
	contextText := retrieval.FormatContext(items)

	run.stage(StageAssembling, zap.Int("items", len(items)), zap.Int("history", len(history)))
	messages := prompt.Assemble(systemPrompt, contextText, history, message)

	run.stage(StageCompleting, zap.Int("messages", len(messages)))
	reply := o.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		UserMessage: message,
		ContextText: contextText,
		Items:       items,
		APIKey:      snapshot.OpenRouterKey,
		Model:       snapshot.Model,
	})
	if reply.Status == llm.Degraded {
		run.logger.Info("degraded reply", zap.String("reason", string(reply.Reason)))
	}

	return Result{
		RunID:   run.id,
		Reply:   reply,
		Context: contextText,
		Items:   items,
	}
}

type run struct {
	id     string
	logger *zap.Logger
}

func (o *Orchestrator) newRun() *run {
	id := uuid.NewString()
	return &run{id: id, logger: o.logger.With(zap.String("run_id", id))}
}

func (r *run) stage(s Stage, fields ...zap.Field) {
	r.logger.Debug("stage", append([]zap.Field{zap.String("stage", string(s))}, fields...)...)
}

// merge overlays the non-empty fields of request on base.
func merge(request, base settings.ChatConfig) settings.ChatConfig {
	return settings.ChatConfig{
		OpenRouterKey: first(request.OpenRouterKey, base.OpenRouterKey),
		Model:         first(request.Model, base.Model),
		SystemPrompt:  first(request.SystemPrompt, base.SystemPrompt),
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
