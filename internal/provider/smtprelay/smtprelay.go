// Package smtprelay implements a Provider that submits messages to an SMTP
// relay using the smtpclient session.
package smtprelay

import (
	"context"
	"time"

	"github.com/shineum/smtp-send-lite/internal/config"
	"github.com/shineum/smtp-send-lite/internal/email"
	"github.com/shineum/smtp-send-lite/internal/smtpclient"
)

// Provider submits messages over SMTP. Each Send opens its own session and
// closes it on return, so a Provider is safe for sequential reuse and holds
// no connection between calls.
type Provider struct {
	cfg smtpclient.Config
}

// New creates a relay Provider from the application configuration.
func New(cfg *config.Config) *Provider {
	return &Provider{
		cfg: smtpclient.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
			Timeout:  cfg.SMTP.Timeout.Std(),
		},
	}
}

// NewWithClientConfig creates a relay Provider from a raw session
// configuration, used by tests to point at stub servers.
func NewWithClientConfig(cfg smtpclient.Config) *Provider {
	return &Provider{cfg: cfg}
}

// Send connects to the relay, transmits the message, and closes the
// session. A context deadline earlier than the configured timeout bounds
// the whole exchange.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := p.cfg
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < cfg.Timeout {
			cfg.Timeout = remaining
		}
	}

	client := smtpclient.New(cfg)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	return client.Send(msg)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}
