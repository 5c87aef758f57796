package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/inbound"
	"github.com/xhad/docchat/pkg/prompt"
	"github.com/xhad/docchat/pkg/settings"
	"go.uber.org/zap"
)

const (
	contextPreviewLength = 300
	maxWebhookBody       = 1 << 20
	maxJSONBody          = 1 << 20
)

type chatRequest struct {
	Message        string               `json:"message" validate:"required"`
	Config         *settings.ChatConfig `json:"config"`
	IncludeHistory bool                 `json:"includeHistory"`
	History        []prompt.Turn        `json:"history"`
}

type chatResponse struct {
	Reply       string `json:"reply"`
	ContextUsed string `json:"context_used,omitempty"`
}

type webhookResponse struct {
	Success   bool                `json:"success"`
	Reply     string              `json:"reply"`
	Processed bool                `json:"processed"`
	From      string              `json:"from"`
	Instance  string              `json:"instance,omitempty"`
	Context   []models.ScoredItem `json:"context"`
	Delivered bool                `json:"delivered"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Env       Status `json:"env"`
	Documents int    `json:"documents"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result := s.chat.Chat(r.Context(), chat.Request{
		Message:        req.Message,
		Config:         req.Config,
		IncludeHistory: req.IncludeHistory,
		History:        req.History,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:       result.Reply.Text,
		ContextUsed: contextPreview(result.Context),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// faults here answer in the webhook's own shape
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("panic while handling webhook", zap.Any("panic", v), zap.Stack("stack"))
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "internal server error",
			})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.logger.Warn("failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "webhook received, incomplete data"})
		return
	}

	msg, err := inbound.Normalize(body)
	switch {
	case errors.Is(err, inbound.ErrGroupChat):
		s.logger.Debug("group message ignored", zap.String("from", msg.SenderID))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "group message ignored"})
		return
	case err != nil:
		s.logger.Debug("webhook without a usable message", zap.Int("bytes", len(body)))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "webhook received, incomplete data"})
		return
	}

	result := s.chat.HandleInbound(r.Context(), msg)

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		Reply:     result.Reply.Text,
		Processed: true,
		From:      msg.SenderID,
		Instance:  msg.Instance,
		Context:   result.Items,
		Delivered: result.Delivered,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"config": s.settings.Snapshot().Masked(),
	})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg settings.ChatConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.settings.Replace(cfg)
	s.logger.Info("chat settings replaced",
		zap.String("model", cfg.Model),
		zap.String("key", settings.MaskKey(cfg.OpenRouterKey)))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "settings saved",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountDocuments(r.Context())
	if err != nil {
		s.logger.Warn("failed to count documents", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Env:       s.config.Status,
		Documents: count,
	})
}

// contextPreview is the short form of the context returned to chat clients.
func contextPreview(contextText string) string {
	if contextText == "" {
		return ""
	}
	r := []rune(contextText)
	if len(r) > contextPreviewLength {
		r = r[:contextPreviewLength]
	}
	return string(r) + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
