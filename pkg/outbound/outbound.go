// Package outbound delivers replies through the Evolution messaging API.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrNotConfigured = errors.New("messaging API not configured")

const DefaultInstance = "default"

// transport suffixes the messaging API does not accept in "number"
var jidSuffixes = []string{"@s.whatsapp.net", "@c.us"}

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // sends per second
}

type Sender struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

func New(config Config, logger *zap.Logger) *Sender {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Sender{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger.Named("outbound"),
	}
}

// Configured reports whether both the API URL and key are set.
func (s *Sender) Configured() bool {
	return s.config.BaseURL != "" && s.config.APIKey != ""
}

// Number strips transport suffixes from a sender id.
func Number(target string) string {
	for _, suffix := range jidSuffixes {
		target = strings.ReplaceAll(target, suffix, "")
	}
	return target
}

// Send posts text to target. Failures are logged here and returned; callers
// treat delivery as best effort.
func (s *Sender) Send(ctx context.Context, target, text, instance string) error {
	if !s.Configured() {
		s.logger.Info("messaging API not configured, reply not sent")
		return ErrNotConfigured
	}
	if instance == "" {
		instance = DefaultInstance
	}

	err := s.send(ctx, Number(target), text, instance)
	if err != nil {
		s.logger.Error("failed to deliver reply",
			zap.Error(err),
			zap.String("instance", instance),
			zap.String("target", Number(target)))
		return err
	}

	s.logger.Info("reply delivered", zap.String("instance", instance), zap.Int("length", len(text)))
	return nil
}

func (s *Sender) send(ctx context.Context, number, text, instance string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", s.config.BaseURL, instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
