package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrAlreadyStarted indicates a second Start on the same host.
var ErrAlreadyStarted = errors.New("engine already started")

// StdIO is the set of byte-stream endpoints the module sees. These are the
// only channels between the module and the host.
type StdIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Module is the sandboxed engine's entry point: a single blocking call that
// returns only when the module halts. The module may legitimately park its
// goroutine on Stdin reads; nothing else it does may touch the host.
type Module interface {
	Run(stdio StdIO) error
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(stdio StdIO) error

// Run implements Module.
func (f ModuleFunc) Run(stdio StdIO) error {
	return f(stdio)
}

// Host runs a module on its own goroutine, the separate scheduling unit the
// blocking-stdio discipline requires, and reports its exit.
type Host struct {
	log    *slog.Logger
	id     string
	module Module
	stdio  StdIO

	started atomic.Bool
	exitCh  chan error
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the host's logger.
func WithHostLogger(log *slog.Logger) HostOption {
	return func(h *Host) {
		h.log = log
	}
}

// NewHost creates a host for the given module and streams.
func NewHost(module Module, stdio StdIO, opts ...HostOption) *Host {
	h := &Host{
		log:    slog.Default(),
		id:     uuid.New().String(),
		module: module,
		stdio:  stdio,
		exitCh: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID returns the host instance identifier.
func (h *Host) ID() string {
	return h.id
}

// Start launches the module goroutine. A panic inside the module is
// recovered and reported as an exit error rather than taking down the
// controller.
func (h *Host) Start() error {
	if h.started.Swap(true) {
		return ErrAlreadyStarted
	}

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("engine panic: %v", r)
			}
			h.log.Info("engine exited", "host", h.id, "error", err)
			h.exitCh <- err
		}()
		err = h.module.Run(h.stdio)
	}()
	return nil
}

// ExitChannel receives the module's exit error (nil on clean halt) exactly
// once. A non-nil value means the bridge session it served is dead and the
// owner may start a replacement.
func (h *Host) ExitChannel() <-chan error {
	return h.exitCh
}

// Wait blocks until the module exits or ctx expires.
func (h *Host) Wait(ctx context.Context) error {
	select {
	case err := <-h.exitCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
