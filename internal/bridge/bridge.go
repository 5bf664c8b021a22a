package bridge

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/lsphost/internal/lsp"
)

// ErrNotBound indicates controller traffic before Bind supplied a channel.
var ErrNotBound = errors.New("bridge not bound to a channel")

// MessageSink receives each complete protocol message extracted from the
// engine's stdout stream.
type MessageSink func(msg []byte)

// Bridge adapts the engine's blocking stdio semantics onto a Channel and a
// frame decoder. The engine goroutine sees three ordinary streams; the
// controller sees Send for inbound traffic and a MessageSink for outbound.
//
// Stdin reads block indefinitely until Bind delivers the shared channel.
// That mirrors the startup handshake: no stdin traffic is possible before
// the configuration arrives.
type Bridge struct {
	log       *slog.Logger
	sessionID string
	sink      MessageSink
	onFatal   func(error)

	bindOnce sync.Once
	ready    chan struct{}
	ch       *Channel

	mu     sync.Mutex
	dec    *lsp.Decoder
	fatal  error
	stderr *LineWriter
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for stderr lines and framing failures.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// WithFatalHandler sets a callback invoked once when the outbound stream
// hits an unrecoverable framing error. The owner is expected to tear down
// this session and may start a fresh one.
func WithFatalHandler(fn func(error)) Option {
	return func(b *Bridge) {
		b.onFatal = fn
	}
}

// New creates a bridge delivering decoded messages to sink.
func New(sink MessageSink, opts ...Option) *Bridge {
	b := &Bridge{
		log:       slog.Default(),
		sessionID: uuid.New().String(),
		sink:      sink,
		ready:     make(chan struct{}),
		dec:       lsp.NewDecoder(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("session", b.sessionID)
	b.stderr = NewLineWriter(func(line string) {
		b.log.Info("engine stderr", "line", line)
	})
	return b
}

// SessionID returns the identifier attached to this bridge session's logs.
func (b *Bridge) SessionID() string {
	return b.sessionID
}

// Bind supplies the shared channel and unblocks pending stdin reads.
// Only the first call has any effect.
func (b *Bridge) Bind(ch *Channel) {
	b.bindOnce.Do(func() {
		b.ch = ch
		close(b.ready)
	})
}

// Send delivers controller bytes to the engine's stdin, fragmenting to the
// channel capacity so no single write can exceed it.
func (b *Bridge) Send(p []byte) error {
	select {
	case <-b.ready:
	default:
		return ErrNotBound
	}

	for len(p) > 0 {
		n := len(p)
		if max := b.ch.Cap(); n > max {
			n = max
		}
		if err := b.ch.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write implements io.Writer for the controller side, so the bridge can be
// handed directly to the protocol client as its outbound stream.
func (b *Bridge) Write(p []byte) (int, error) {
	if err := b.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Stdin returns the engine-facing read end. Reads park the engine goroutine
// until the controller has written bytes; this is the only suspension point
// between the two sides.
func (b *Bridge) Stdin() io.Reader {
	return &stdinReader{b: b}
}

// Stdout returns the engine-facing write end for protocol traffic.
func (b *Bridge) Stdout() io.Writer {
	return &stdoutWriter{b: b}
}

// Stderr returns the engine-facing write end for diagnostic output.
func (b *Bridge) Stderr() io.Writer {
	return b.stderr
}

// Close shuts the channel (unblocking a parked engine read) and flushes any
// retained stderr partial line. Closing an unbound bridge only flushes;
// the ready gate is the same publication edge Send relies on, so a Close
// racing Bind never observes a half-written channel field.
func (b *Bridge) Close() {
	select {
	case <-b.ready:
		b.ch.Close()
	default:
	}
	b.stderr.Flush()
}

type stdinReader struct {
	b *Bridge
}

func (r *stdinReader) Read(p []byte) (int, error) {
	<-r.b.ready
	data, err := r.b.ch.BlockingRead(len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

type stdoutWriter struct {
	b *Bridge
}

// Write feeds engine output through the frame decoder and dispatches every
// complete message. A framing error poisons the stream: it is reported once
// to the fatal handler and every later write fails with the same error.
func (w *stdoutWriter) Write(p []byte) (int, error) {
	b := w.b

	b.mu.Lock()
	if b.fatal != nil {
		err := b.fatal
		b.mu.Unlock()
		return 0, err
	}
	msgs, err := b.dec.Feed(p)
	if err != nil {
		b.fatal = err
	}
	b.mu.Unlock()

	// Frames completed before a failure in the same chunk still count.
	for _, msg := range msgs {
		if b.sink != nil {
			b.sink(msg)
		}
	}

	if err != nil {
		b.log.Error("fatal framing error on engine stdout", "error", err)
		if b.onFatal != nil {
			b.onFatal(err)
		}
		return 0, err
	}
	return len(p), nil
}
