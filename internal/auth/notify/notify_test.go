package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type captureOutbox struct {
	msgs []Message
}

func (c *captureOutbox) Notify(_ context.Context, msg Message) { c.msgs = append(c.msgs, msg) }

func TestMailer(t *testing.T) {
	out := &captureOutbox{}
	m := &Mailer{Outbox: out, AppName: "Authify", FrontendURL: "http://localhost:3000/"}
	user := domain.User{Email: "ada@example.com"}

	m.VerificationRequested(context.Background(), user, "tok-1")
	m.PasswordResetRequested(context.Background(), user, "tok-2")
	require.Len(t, out.msgs, 2)

	verify := out.msgs[0]
	require.Equal(t, "ada@example.com", verify.To)
	require.Equal(t, "Authify - Verify your email address", verify.Subject)
	require.Contains(t, verify.Body, "http://localhost:3000/verify-email?token=tok-1\n")
	require.Contains(t, verify.Body, "expire in 24 hours")
	require.Equal(t, "tok-1", verify.Token)
	require.True(t, strings.HasSuffix(verify.Body, "Thanks,\nAuthify"))

	reset := out.msgs[1]
	require.Equal(t, "Authify - Reset your password", reset.Subject)
	require.Contains(t, reset.Body, "http://localhost:3000/reset-password?token=tok-2\n")
	require.Contains(t, reset.Body, "expire in 1 hour")
}

func TestDispatcher(t *testing.T) {
	t.Run("sends in background and close waits", func(t *testing.T) {
		release := make(chan struct{})
		var sent atomic.Int32
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			<-release
			sent.Add(1)
			return nil
		}), DispatcherOptions{})

		for range 3 {
			d.Notify(context.Background(), Message{To: "a@example.com"})
		}
		require.Zero(t, sent.Load(), "Notify must not block on the sink")

		close(release)
		require.NoError(t, d.Close(context.Background()))
		require.Equal(t, int32(3), sent.Load())
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}), DispatcherOptions{MaxConcurrent: 2})

		for range 10 {
			d.Notify(context.Background(), Message{})
		}
		require.NoError(t, d.Close(context.Background()))
		require.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("request cancellation does not abort the send", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			errc <- ctx.Err()
			return nil
		}), DispatcherOptions{})

		cancel()
		d.Notify(ctx, Message{})
		require.NoError(t, d.Close(context.Background()))
		require.NoError(t, <-errc)
	})

	t.Run("failures are logged without the token", func(t *testing.T) {
		var (
			mu  sync.Mutex
			buf bytes.Buffer
		)
		logger := slog.New(slog.NewJSONHandler(&lockedWriter{mu: &mu, w: &buf}, nil))
		ctx := slogx.WithContext(context.Background(), logger)

		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			return errors.New("connection refused")
		}), DispatcherOptions{})
		d.Notify(ctx, Message{
			To:      "ada@example.com",
			Subject: "hello",
			Body:    "http://localhost:3000/reset-password?token=secret-token-value",
			Token:   "secret-token-value",
		})
		require.NoError(t, d.Close(context.Background()))

		mu.Lock()
		defer mu.Unlock()
		out := buf.String()
		require.Contains(t, out, "notification failed")
		require.Contains(t, out, "ada@example.com")
		require.Contains(t, out, cryptox.ShortFingerprint("secret-token-value"))
		require.Contains(t, out, "connection refused")
		require.NotContains(t, out, "secret-token-value")
	})

	t.Run("timeout is applied", func(t *testing.T) {
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			<-ctx.Done()
			return ctx.Err()
		}), DispatcherOptions{Timeout: 10 * time.Millisecond})
		d.Notify(context.Background(), Message{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, d.Close(ctx))
	})

	t.Run("dropped after close", func(t *testing.T) {
		var sent atomic.Int32
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			sent.Add(1)
			return nil
		}), DispatcherOptions{})
		require.NoError(t, d.Close(context.Background()))
		d.Notify(context.Background(), Message{})
		require.Zero(t, sent.Load())
	})

	t.Run("notify racing close", func(t *testing.T) {
		var sent atomic.Int32
		d := NewDispatcher(SinkFunc(func(ctx context.Context, msg Message) error {
			sent.Add(1)
			return nil
		}), DispatcherOptions{})

		var wg sync.WaitGroup
		start := make(chan struct{})
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for range 50 {
					d.Notify(context.Background(), Message{})
				}
			}()
		}
		close(start)
		require.NoError(t, d.Close(context.Background()))
		wg.Wait()

		// Close waited for every accepted send; later ones were dropped
		after := sent.Load()
		require.NoError(t, d.Close(context.Background()))
		require.Equal(t, after, sent.Load())
		require.LessOrEqual(t, after, int32(400))
	})
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestNewSMTPSink(t *testing.T) {
	_, err := NewSMTPSink(SMTPConfig{From: "a@example.com"})
	require.Error(t, err)

	_, err = NewSMTPSink(SMTPConfig{Host: "localhost", From: "not an address"})
	require.Error(t, err)

	s, err := NewSMTPSink(SMTPConfig{Host: "localhost", From: "Authify <noreply@example.com>"})
	require.NoError(t, err)
	require.Equal(t, "localhost:587", s.addr())
}

func TestSMTPSinkSend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan fakeMail, 1)
	go serveOneSMTP(ln, received)

	addr := ln.Addr().(*net.TCPAddr)
	s, err := NewSMTPSink(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "Authify <noreply@example.com>"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, Message{To: "ada@example.com", Subject: "Hello", Body: "line one\nline two"}))

	got := <-received
	require.Equal(t, "<noreply@example.com>", got.from)
	require.Equal(t, "<ada@example.com>", got.rcpt)
	require.Contains(t, got.data, "Subject: Hello\r\n")
	require.Contains(t, got.data, "Content-Type: text/plain; charset=UTF-8\r\n")
	require.Contains(t, got.data, "line one\r\nline two")
}

type fakeMail struct {
	from, rcpt, data string
}

// serveOneSMTP speaks just enough SMTP for one message without extensions.
func serveOneSMTP(ln net.Listener, out chan<- fakeMail) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake ESMTP")

	var m fakeMail
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250 fake")
		case "MAIL":
			m.from = strings.TrimPrefix(arg, "FROM:")
			_ = tp.PrintfLine("250 ok")
		case "RCPT":
			m.rcpt = strings.TrimPrefix(arg, "TO:")
			_ = tp.PrintfLine("250 ok")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			m.data = strings.Join(lines, "\r\n")
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			out <- m
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}
