package commands

import (
	"strings"
	"testing"

	"github.com/shineum/smtp-send-lite/internal/config"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SMTP.Host = "mail.example.com"
	cfg.SMTP.Port = 587
	cfg.SMTP.Timeout = config.Duration(1)
	cfg.Provider = "smtp"
	return cfg
}

func TestSelectProvider_SMTP(t *testing.T) {
	cfg := newTestConfig()

	prov, err := selectProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.Name() != "smtp" {
		t.Errorf("provider: got %q, want smtp", prov.Name())
	}
}

func TestSelectProvider_SMTPInvalidConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.SMTP.Host = ""

	if _, err := selectProvider(cfg); err == nil {
		t.Fatal("expected validation error for missing host")
	}
}

func TestSelectProvider_Stdout(t *testing.T) {
	cfg := newTestConfig()
	cfg.Provider = "stdout"

	prov, err := selectProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.Name() != "stdout" {
		t.Errorf("provider: got %q, want stdout", prov.Name())
	}
}

func TestSelectProvider_SESRequiresConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.Provider = "ses"

	_, err := selectProvider(cfg)
	if err == nil {
		t.Fatal("expected error for unconfigured ses provider")
	}
	if !strings.Contains(err.Error(), "SES_REGION") {
		t.Errorf("error should name the missing settings, got %v", err)
	}
}

func TestSelectProvider_Unknown(t *testing.T) {
	cfg := newTestConfig()
	cfg.Provider = "pigeon"

	_, err := selectProvider(cfg)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "pigeon") {
		t.Errorf("error should name the provider, got %v", err)
	}
}

func TestBuildMessage_HeaderFlagParsing(t *testing.T) {
	sendTo = []string{"a@example.com"}
	sendHeaders = []string{"X-Env=prod", "X-Team=infra"}
	t.Cleanup(resetSendFlags)

	msg, err := buildMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Headers["X-Env"] != "prod" || msg.Headers["X-Team"] != "infra" {
		t.Errorf("headers: got %v", msg.Headers)
	}
}

func TestBuildMessage_BadHeaderFlag(t *testing.T) {
	sendTo = []string{"a@example.com"}
	sendHeaders = []string{"not-a-pair"}
	t.Cleanup(resetSendFlags)

	if _, err := buildMessage(); err == nil {
		t.Fatal("expected error for malformed header flag")
	}
}

func TestBuildMessage_RequiresRecipient(t *testing.T) {
	resetSendFlags()
	t.Cleanup(resetSendFlags)

	if _, err := buildMessage(); err == nil {
		t.Fatal("expected error when no --to recipient is given")
	}
}

// resetSendFlags clears the package-level flag state between tests.
func resetSendFlags() {
	sendTo = nil
	sendCc = nil
	sendBcc = nil
	sendFrom = ""
	sendReplyTo = ""
	sendSubject = ""
	sendText = ""
	sendHTML = ""
	sendHeaders = nil
	sendAttach = nil
	sendProvider = ""
}
