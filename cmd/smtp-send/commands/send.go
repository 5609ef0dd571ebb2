package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/smtp-send-lite/internal/config"
	"github.com/shineum/smtp-send-lite/internal/email"
	"github.com/shineum/smtp-send-lite/internal/provider"
	"github.com/shineum/smtp-send-lite/internal/provider/ses"
	"github.com/shineum/smtp-send-lite/internal/provider/smtprelay"
	"github.com/shineum/smtp-send-lite/internal/provider/stdout"
)

var (
	sendTo       []string
	sendCc       []string
	sendBcc      []string
	sendFrom     string
	sendReplyTo  string
	sendSubject  string
	sendText     string
	sendHTML     string
	sendHeaders  []string
	sendAttach   []string
	sendProvider string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Compose and send one message",
	Long: `Compose a message from flags and deliver it through the configured
provider. At least one --to recipient is required.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringSliceVar(&sendTo, "to", nil, "recipient address (repeatable)")
	sendCmd.Flags().StringSliceVar(&sendCc, "cc", nil, "carbon-copy address (repeatable)")
	sendCmd.Flags().StringSliceVar(&sendBcc, "bcc", nil, "blind-carbon-copy address (repeatable)")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "originator address (defaults to the configured username)")
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "", "Reply-To address")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "message subject")
	sendCmd.Flags().StringVar(&sendText, "text", "", "plain-text body")
	sendCmd.Flags().StringVar(&sendHTML, "html", "", "HTML body")
	sendCmd.Flags().StringArrayVar(&sendHeaders, "header", nil, "extra header as key=value (repeatable)")
	sendCmd.Flags().StringArrayVar(&sendAttach, "attach", nil, "file to attach (repeatable)")
	sendCmd.Flags().StringVar(&sendProvider, "provider", "", "delivery provider: smtp, ses, or stdout (overrides config)")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if sendProvider != "" {
		cfg.Provider = strings.ToLower(sendProvider)
	}

	setupLogger(cfg.Logging.Level)

	msg, err := buildMessage()
	if err != nil {
		return err
	}

	prov, err := selectProvider(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("sending message",
		"provider", prov.Name(),
		"recipients", len(msg.Recipients()),
		"subject", msg.Subject,
	)

	if err := prov.Send(ctx, msg); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	slog.Info("message delivered", "provider", prov.Name())
	return nil
}

// buildMessage assembles the message from the send command's flags.
func buildMessage() (*email.Email, error) {
	builder := email.NewBuilder().
		To(sendTo...).
		Cc(sendCc...).
		Bcc(sendBcc...).
		From(sendFrom).
		ReplyTo(sendReplyTo).
		Subject(sendSubject).
		Text(sendText).
		HTML(sendHTML)

	for _, h := range sendHeaders {
		key, value, ok := strings.Cut(h, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", h)
		}
		builder.Header(key, value)
	}

	for _, path := range sendAttach {
		builder.Attach(path)
	}

	return builder.Build()
}

// selectProvider chooses the delivery backend based on configuration.
func selectProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "smtp":
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		slog.Info("using SMTP relay provider",
			"host", cfg.SMTP.Host,
			"port", cfg.SMTP.Port,
			"tls", cfg.SMTP.UseTLS,
			"auth_enabled", cfg.AuthEnabled(),
		)
		return smtprelay.New(cfg), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses provider selected but SES_REGION and SES_SENDER are required")
		}
		slog.Info("using AWS SES provider",
			"region", cfg.SES.Region,
			"sender", cfg.SES.Sender,
		)
		return ses.New(context.Background(), ses.ProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
