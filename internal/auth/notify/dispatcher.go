package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultSendTimeout   = 10 * time.Second
	DefaultMaxConcurrent = 4
)

// DispatcherOptions tunes a Dispatcher. Zero values take the defaults.
type DispatcherOptions struct {
	Timeout       time.Duration // per message
	MaxConcurrent int64
}

// Dispatcher sends messages through a Sink in the background.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	sem     *semaphore.Weighted

	mu     sync.Mutex // guards closed and wg.Add against Close
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSendTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Dispatcher{
		sink:    sink,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Notify queues msg and returns immediately. The request-scoped logger in
// ctx is kept but its cancellation is not, so the send outlives the request.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	l := slogx.FromContext(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		l.Warn("notification dropped after shutdown", messageAttrs(msg)...)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.sink.Send(ctx, msg); err != nil {
			attrs := append(messageAttrs(msg), slog.Any("error", err))
			l.Error("notification failed", attrs...)
			return
		}
		l.Debug("notification sent",
			slog.String("to", msg.To),
			slog.Duration("took", time.Since(start)),
		)
	}()
}

// Close stops accepting messages and waits for in-flight sends, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// messageAttrs never includes the body: it carries a live single-use token.
func messageAttrs(msg Message) []any {
	attrs := []any{
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	}
	if msg.Token != "" {
		attrs = append(attrs, slog.String("token_fp", cryptox.ShortFingerprint(msg.Token)))
	}
	return attrs
}
