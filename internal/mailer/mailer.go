// Package mailer delivers transactional email.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/network"
)

// New returns the EmailSender selected by cfg.Provider.
func New(cfg config.EmailConfig, logger *zap.Logger) (schemas.EmailSender, error) {
	switch cfg.Provider {
	case "resend":
		return NewResend(cfg, logger)
	case "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// -- Resend --

// Resend sends through a Resend-compatible HTTP API: a bearer authenticated
// POST of {from,to,subject,html} answered with {id}.
type Resend struct {
	endpoint string
	apiKey   string
	client   *network.Client
	limiter  *rate.Limiter
	log      *zap.Logger
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewResend creates a Resend sender. cfg.RateLimit is in messages per second;
// zero or less disables limiting.
func NewResend(cfg config.EmailConfig, logger *zap.Logger) (*Resend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("email API key is required. Ensure ARI_EMAIL_API_KEY is set")
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	log := logger.Named("mailer")
	return &Resend{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   network.NewClientWithTimeout(cfg.Timeout, log),
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}, nil
}

// Send delivers one message and returns the provider's message id.
func (r *Resend) Send(ctx context.Context, msg schemas.EmailMessage) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("email rate limiter: %w", err)
	}

	body, err := json.Marshal(resendRequest{From: msg.From, To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read email API response: %w", err)
	}
	var out resendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := out.Message
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("email API returned status %d: %s", resp.StatusCode, detail)
	}
	if out.ID == "" {
		return "", errors.New("email API response did not include a message id")
	}
	r.log.Info("Email sent", zap.String("email_id", out.ID), zap.String("subject", msg.Subject))
	return out.ID, nil
}

// -- Log --

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{log: logger.Named("mailer")}
}

func (l *LogSender) Send(_ context.Context, msg schemas.EmailMessage) (string, error) {
	id := "log_" + uuid.NewString()
	l.log.Info("Email not delivered (log provider)",
		zap.String("email_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return id, nil
}
