package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/config"
)

// Provider sends one message over one channel. Invoked only after workflow
// completion, fire-and-forget, outside the transactional boundary.
type Provider interface {
	Send(ctx context.Context, recipient, message string) error
}

// Channels bundles the two delivery channels.
type Channels struct {
	SMS   Provider
	Email Provider
}

// NewChannels builds providers from configuration.
func NewChannels(cfg config.MessagingConfig, logger *zap.Logger) Channels {
	return Channels{
		SMS:   newProvider(cfg.SMSProvider, "sms", cfg.SMSWebhookURL, logger),
		Email: newProvider(cfg.EmailProvider, "email", cfg.EmailWebhookURL, logger),
	}
}

func newProvider(kind, channel, webhookURL string, logger *zap.Logger) Provider {
	switch kind {
	case "webhook":
		if webhookURL == "" {
			return logProvider{channel: channel, logger: logger}
		}
		return webhookProvider{channel: channel, url: webhookURL}
	case "noop":
		return noopProvider{}
	default:
		return logProvider{channel: channel, logger: logger}
	}
}

type logProvider struct {
	channel string
	logger  *zap.Logger
}

func (p logProvider) Send(ctx context.Context, recipient, message string) error {
	p.logger.Info("send notification",
		zap.String("channel", p.channel),
		zap.String("recipient", recipient),
		zap.String("message", message))
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, recipient, message string) error {
	return nil
}

type webhookProvider struct {
	channel string
	url     string
}

func (p webhookProvider) Send(ctx context.Context, recipient, message string) error {
	payload := map[string]string{
		"channel":   p.channel,
		"recipient": recipient,
		"message":   message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
