// Package smtpclient implements the client side of the SMTP protocol:
// connection establishment, STARTTLS upgrade, AUTH LOGIN, and message
// transmission over a single connection.
package smtpclient

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/shineum/smtp-send-lite/internal/email"
	"github.com/shineum/smtp-send-lite/internal/mime"
	"github.com/shineum/smtp-send-lite/internal/tlsconfig"
)

// localName is the client name announced in EHLO.
const localName = "localhost"

// Config holds the parameters for one SMTP session. It is not modified
// after being passed to New.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration

	// TLSConfig overrides the default STARTTLS client configuration.
	// When nil, certificates are verified against Host.
	TLSConfig *tls.Config
}

// Client drives the SMTP protocol over a single connection. A Client owns
// its connection exclusively and is not safe for concurrent use; callers
// needing parallel sends must create independent Clients.
type Client struct {
	cfg    Config
	conn   net.Conn
	reader *bufio.Reader
}

// New creates a Client for the given configuration. The connection is not
// opened until Connect.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Connect opens the connection and runs the SMTP handshake: greeting, EHLO,
// optional STARTTLS upgrade with a second EHLO, and optional AUTH LOGIN.
// On any handshake failure the connection is closed before returning, so a
// failed Connect leaves the Client in its initial state.
func (c *Client) Connect() error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.Timeout}

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if err := c.handshake(); err != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
		return err
	}

	slog.Debug("smtp session established",
		"host", c.cfg.Host,
		"port", c.cfg.Port,
		"tls", c.cfg.UseTLS,
		"auth", c.authEnabled(),
	)
	return nil
}

// handshake runs the post-dial protocol steps on the open connection.
func (c *Client) handshake() error {
	// The greeting is validated for format only; servers greet with
	// varying codes and text.
	if _, _, err := c.readResponse(); err != nil {
		return err
	}

	if err := c.ehlo(); err != nil {
		return err
	}

	if c.cfg.UseTLS {
		if err := c.startTLS(); err != nil {
			return err
		}
		if err := c.ehlo(); err != nil {
			return err
		}
	}

	if c.authEnabled() {
		if err := c.authLogin(); err != nil {
			return err
		}
	}

	return nil
}

// ehlo announces the client and expects a 250 capability response.
func (c *Client) ehlo() error {
	code, resp, err := c.command("EHLO " + localName)
	if err != nil {
		return err
	}
	if code != 250 {
		return &ProtocolError{Stage: StageEHLO, Code: code, Response: resp}
	}
	return nil
}

// startTLS upgrades the connection in place. The existing transport is
// wrapped, not replaced, so the server sees a TLS handshake on the same
// TCP stream.
func (c *Client) startTLS() error {
	code, resp, err := c.command("STARTTLS")
	if err != nil {
		return err
	}
	if code != 220 {
		return &ProtocolError{Stage: StageStartTLS, Code: code, Response: resp}
	}

	cfg := c.cfg.TLSConfig
	if cfg == nil {
		cfg = tlsconfig.Client(c.cfg.Host)
	}

	tlsConn := tls.Client(c.conn, cfg)
	if err := c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return err
	}
	if err := tlsConn.Handshake(); err != nil {
		return err
	}

	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)
	return nil
}

// authLogin runs the AUTH LOGIN exchange: the mechanism announcement, then
// the base64 username and password as successive raw lines. The encoded
// credentials are never logged.
func (c *Client) authLogin() error {
	code, resp, err := c.command("AUTH LOGIN")
	if err != nil {
		return err
	}
	if code != 334 {
		return &ProtocolError{Stage: StageAuth, Code: code, Response: resp}
	}

	code, resp, err = c.commandSensitive(base64.StdEncoding.EncodeToString([]byte(c.cfg.Username)))
	if err != nil {
		return err
	}
	if code != 334 {
		return &ProtocolError{Stage: StageAuth, Code: code, Response: resp}
	}

	code, resp, err = c.commandSensitive(base64.StdEncoding.EncodeToString([]byte(c.cfg.Password)))
	if err != nil {
		return err
	}
	if code != 235 {
		return &ProtocolError{Stage: StageAuth, Code: code, Response: resp}
	}

	return nil
}

// Send transmits one message over the connected session: MAIL FROM, one
// RCPT TO per recipient in To, Cc, Bcc order, then the serialized MIME
// document through the DATA phase. Send may be called repeatedly on one
// connected Client; each call is a full mail transaction.
func (c *Client) Send(msg *email.Email) error {
	from := msg.From
	if from == "" {
		from = c.cfg.Username
	}

	code, resp, err := c.command(fmt.Sprintf("MAIL FROM:<%s>", from))
	if err != nil {
		return err
	}
	if code != 250 {
		return &ProtocolError{Stage: StageMailFrom, Code: code, Response: resp}
	}

	for _, rcpt := range msg.Recipients() {
		code, resp, err = c.command(fmt.Sprintf("RCPT TO:<%s>", rcpt))
		if err != nil {
			return err
		}
		if code != 250 && code != 251 {
			return &ProtocolError{Stage: StageRcptTo, Recipient: rcpt, Code: code, Response: resp}
		}
	}

	code, resp, err = c.command("DATA")
	if err != nil {
		return err
	}
	if code != 354 {
		return &ProtocolError{Stage: StageData, Code: code, Response: resp}
	}

	payload, err := mime.Build(msg, c.cfg.Username)
	if err != nil {
		return err
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(dotStuff(payload)); err != nil {
		return err
	}

	code, resp, err = c.command(".")
	if err != nil {
		return err
	}
	if code != 250 {
		return &ProtocolError{Stage: StageSend, Code: code, Response: resp}
	}

	slog.Debug("message accepted",
		"from", from,
		"recipients", len(msg.Recipients()),
		"attachments", len(msg.Attachments),
	)
	return nil
}

// Close terminates the session with a best-effort QUIT and releases the
// connection. Failures during QUIT are swallowed; Close always returns nil
// and is safe to call on a never-connected or already-closed Client.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	// QUIT is a courtesy; the server may already be gone.
	if err := c.writeLine("QUIT"); err == nil {
		c.readResponse()
	}

	c.conn.Close()
	c.conn = nil
	c.reader = nil
	return nil
}

// authEnabled reports whether credentials are configured.
func (c *Client) authEnabled() bool {
	return c.cfg.Username != "" && c.cfg.Password != ""
}

// command writes one command line and reads its response.
func (c *Client) command(cmd string) (int, string, error) {
	slog.Debug("smtp command sent", "command", truncate(cmd, 50))
	if err := c.writeLine(cmd); err != nil {
		return 0, "", err
	}
	return c.readResponse()
}

// commandSensitive behaves like command but never logs the payload. Used
// for AUTH continuation lines carrying encoded credentials.
func (c *Client) commandSensitive(cmd string) (int, string, error) {
	slog.Debug("smtp command sent", "command", "[credentials]")
	if err := c.writeLine(cmd); err != nil {
		return 0, "", err
	}
	return c.readResponse()
}

// writeLine sends one CRLF-terminated line with the configured deadline.
func (c *Client) writeLine(line string) error {
	if err := c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(line + "\r\n"))
	return err
}

// readResponse reads one SMTP response with the configured deadline
// covering the whole exchange.
func (c *Client) readResponse() (int, string, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return 0, "", err
	}
	return readResponse(c.reader)
}

// readResponse reads one SMTP response, accumulating lines until the
// terminating line: at least 4 characters with a space as the 4th. The
// status code is parsed from the first 3 characters of the final line and
// the full text is the lines joined with newlines.
func readResponse(r *bufio.Reader) (int, string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, "", err
		}
		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)
		if len(line) >= 4 && line[3] == ' ' {
			break
		}
	}

	last := lines[len(lines)-1]
	code, err := strconv.Atoi(last[:3])
	if err != nil {
		return 0, "", fmt.Errorf("malformed response line %q", last)
	}
	return code, strings.Join(lines, "\n"), nil
}

// dotStuff prepares a message body for the DATA phase: lines are normalized
// to CRLF, any line beginning with a dot has the dot doubled so it cannot
// terminate the phase early, and the output always ends with CRLF so the
// terminating dot stands on its own line.
func dotStuff(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var b strings.Builder
	b.Grow(len(data) + len(lines))

	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		// Skip the empty remainder after a trailing newline.
		if i == len(lines)-1 && line == "" {
			break
		}
		if strings.HasPrefix(line, ".") {
			b.WriteString(".")
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}

// truncate shortens s for diagnostic output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
