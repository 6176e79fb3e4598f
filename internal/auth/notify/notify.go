// Package notify delivers the out-of-band messages produced by the auth
// flows: email verification and password reset links.
//
// Delivery is best effort. A Dispatcher sends in the background so a slow or
// broken mail server never holds up a request. A failed send is logged with
// the recipient and the fingerprint of the token it carried.
package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/authify/pkg/slogx"
)

// Message is a rendered plain text email.
type Message struct {
	To      string
	Subject string
	Body    string

	// Token is the single-use token embedded in Body, if any. Only its
	// fingerprint is ever logged.
	Token string
}

// Sink delivers a single message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogSink writes messages, body included, to the log instead of sending
// them. It is the development default when no SMTP host is configured.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Info("email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
