package smtprelay

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shineum/smtp-send-lite/internal/config"
	"github.com/shineum/smtp-send-lite/internal/email"
	"github.com/shineum/smtp-send-lite/internal/provider"
	"github.com/shineum/smtp-send-lite/internal/smtpclient"
)

// permissiveRelay is a loopback server that accepts everything, recording
// the command verbs it sees.
type permissiveRelay struct {
	ln net.Listener

	mu    sync.Mutex
	verbs []string
}

func newPermissiveRelay(t *testing.T) *permissiveRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	r := &permissiveRelay{ln: ln}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *permissiveRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *permissiveRelay) handle(conn net.Conn) {
	defer conn.Close()

	conn.Write([]byte("220 Ready\r\n"))
	reader := bufio.NewReader(conn)
	inData := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		if inData {
			if line == "." {
				inData = false
				r.record(".")
				conn.Write([]byte("250 OK\r\n"))
			}
			continue
		}

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		verb = strings.SplitN(verb, ":", 2)[0]
		r.record(verb)

		switch verb {
		case "DATA":
			inData = true
			conn.Write([]byte("354 Go ahead\r\n"))
		case "QUIT":
			conn.Write([]byte("221 Bye\r\n"))
			return
		default:
			conn.Write([]byte("250 OK\r\n"))
		}
	}
}

func (r *permissiveRelay) record(verb string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbs = append(r.verbs, verb)
}

func (r *permissiveRelay) observed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.verbs...)
}

func (r *permissiveRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func testMessage() *email.Email {
	return &email.Email{
		From:     "sender@example.com",
		To:       []string{"a@b.com"},
		Subject:  "Hi",
		TextBody: "hello",
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClientConfig(smtpclient.Config{})
	if got := p.Name(); got != "smtp" {
		t.Errorf("Name(): got %q, want %q", got, "smtp")
	}
}

func TestProviderInterface(t *testing.T) {
	t.Parallel()
	var _ provider.Provider = NewWithClientConfig(smtpclient.Config{})
}

func TestNew_MapsConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.SMTP.Host = "relay.example.com"
	cfg.SMTP.Port = 2525
	cfg.SMTP.Username = "user"
	cfg.SMTP.Password = "pass"
	cfg.SMTP.UseTLS = true
	cfg.SMTP.Timeout = config.Duration(12 * time.Second)

	p := New(cfg)
	if p.cfg.Host != "relay.example.com" || p.cfg.Port != 2525 {
		t.Errorf("address: got %s:%d", p.cfg.Host, p.cfg.Port)
	}
	if p.cfg.Username != "user" || p.cfg.Password != "pass" {
		t.Error("credentials not carried over")
	}
	if !p.cfg.UseTLS {
		t.Error("UseTLS not carried over")
	}
	if p.cfg.Timeout != 12*time.Second {
		t.Errorf("timeout: got %v, want 12s", p.cfg.Timeout)
	}
}

func TestSend_FullSession(t *testing.T) {
	t.Parallel()

	relay := newPermissiveRelay(t)
	p := NewWithClientConfig(smtpclient.Config{
		Host:    "127.0.0.1",
		Port:    relay.port(),
		Timeout: 5 * time.Second,
	})

	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Each Send opens, transmits, and closes its own session.
	want := []string{"EHLO", "MAIL", "RCPT", "DATA", ".", "QUIT"}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(relay.observed()) >= len(want) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := relay.observed()
	if len(got) != len(want) {
		t.Fatalf("verbs: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("verb %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSend_SequentialReuse(t *testing.T) {
	t.Parallel()

	relay := newPermissiveRelay(t)
	p := NewWithClientConfig(smtpclient.Config{
		Host:    "127.0.0.1",
		Port:    relay.port(),
		Timeout: 5 * time.Second,
	})

	for i := 0; i < 2; i++ {
		if err := p.Send(context.Background(), testMessage()); err != nil {
			t.Fatalf("send %d: unexpected error: %v", i, err)
		}
	}
}

func TestSend_CancelledContext(t *testing.T) {
	t.Parallel()

	relay := newPermissiveRelay(t)
	p := NewWithClientConfig(smtpclient.Config{
		Host:    "127.0.0.1",
		Port:    relay.port(),
		Timeout: 5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Send(ctx, testMessage()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	p := NewWithClientConfig(smtpclient.Config{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: 2 * time.Second,
	})

	if err := p.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected connection error")
	}
}
