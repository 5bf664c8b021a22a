package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// State is the client's session lifecycle state.
type State int

// Session lifecycle states.
const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SubscriberFunc receives engine notifications. Subscribers are invoked in
// attachment order; a panicking subscriber does not stop delivery to the
// rest.
type SubscriberFunc func(method string, params json.RawMessage)

// Request is an outbound JSON-RPC request or notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an inbound JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Client is a JSON-RPC 2.0 client over the stdio bridge. It assigns request
// ids, correlates responses, dispatches notifications to subscribers and
// manages the initialize/shutdown lifecycle.
//
// Writes go to the configured io.Writer as framed bytes; inbound messages
// arrive through HandleMessage, typically wired as the bridge's sink.
type Client struct {
	log       *slog.Logger
	writer    io.Writer
	autoClose bool

	nextID atomic.Int64

	mu         sync.Mutex
	state      State
	closing    bool
	pending    map[int64]chan *Response
	subs       []*Subscription
	caps       ServerCapabilities
	serverInfo *ServerInfo

	opened chan struct{}
	done   chan struct{}

	writeMu sync.Mutex
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithAutoClose makes detaching the last subscriber trigger the shutdown
// sequence.
func WithAutoClose(enable bool) ClientOption {
	return func(c *Client) {
		c.autoClose = enable
	}
}

// NewClient creates a client writing framed messages to w.
func NewClient(w io.Writer, opts ...ClientOption) *Client {
	c := &Client{
		log:     slog.Default(),
		writer:  w,
		state:   StateUnopened,
		pending: make(map[int64]chan *Response),
		opened:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether the initialize handshake has completed.
func (c *Client) IsOpen() bool {
	return c.State() == StateOpen
}

// Capabilities returns the capability set recorded from the initialize
// response. Zero value before the session is open.
func (c *Client) Capabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// ServerInfo returns the engine identification from initialize, or nil.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Open performs the initialize handshake: sends the initialize request with
// the declared capabilities, records the engine's capabilities from the
// response, then sends the initialized notification. Blocks until the
// response arrives or ctx expires.
func (c *Client) Open(ctx context.Context, params InitializeParams) error {
	c.mu.Lock()
	switch c.state {
	case StateUnopened:
	case StateClosed:
		c.mu.Unlock()
		return ErrSessionClosed
	default:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateOpening
	c.mu.Unlock()

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	c.mu.Lock()
	if c.state != StateOpening {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("session state changed during initialize: %s", state)
	}
	c.caps = result.Capabilities
	c.serverInfo = result.ServerInfo
	c.state = StateOpen
	close(c.opened)
	c.mu.Unlock()

	if err := c.notify("initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// WhenOpen blocks until the initialize handshake completes, ctx expires or
// the session closes.
func (c *Client) WhenOpen(ctx context.Context) error {
	select {
	case <-c.opened:
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call sends a request and blocks until its response arrives. A remote error
// payload is returned as *RPCError. Fails with ErrNotOpen before the
// handshake completes and ErrSessionClosed afterward.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateOpen:
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrNotOpen
	}
	return c.call(ctx, method, params, result)
}

// Notify sends a fire-and-forget notification. No id is allocated and no
// pending entry is created.
func (c *Client) Notify(method string, params any) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateOpen:
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrNotOpen
	}
	return c.notify(method, params)
}

// call registers a pending request, sends it and waits for correlation.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan *Response, 1)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := &Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.send(req); err != nil {
		return fmt.Errorf("send request %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrSessionClosed
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
		}
		return nil
	}
}

func (c *Client) notify(method string, params any) error {
	req := &Request{JSONRPC: "2.0", Method: method, Params: params}
	if err := c.send(req); err != nil {
		return fmt.Errorf("send notification %s: %w", method, err)
	}
	return nil
}

// send serializes and frames a message onto the wire. The write mutex keeps
// concurrent frames from interleaving.
func (c *Client) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(EncodeFrame(data)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// HandleMessage classifies and dispatches one complete message body.
// Responses resolve their pending request; an unknown id is a logged
// protocol violation and dropped. Notifications fan out to subscribers in
// attachment order.
func (c *Client) HandleMessage(msg []byte) {
	if !gjson.ValidBytes(msg) {
		c.log.Warn("protocol violation: message is not valid JSON")
		return
	}

	id := gjson.GetBytes(msg, "id")
	hasResult := gjson.GetBytes(msg, "result").Exists()
	hasError := gjson.GetBytes(msg, "error").Exists()
	method := gjson.GetBytes(msg, "method")

	switch {
	case id.Exists() && (hasResult || hasError):
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.log.Warn("protocol violation: malformed response", "error", err)
			return
		}
		c.handleResponse(&resp)
	case method.Exists() && !id.Exists():
		c.fanOut(method.String(), json.RawMessage(gjson.GetBytes(msg, "params").Raw))
	case method.Exists():
		// Engine-to-host requests are not part of this surface.
		c.log.Warn("protocol violation: unsupported engine request dropped",
			"method", method.String(), "id", id.Raw)
	default:
		c.log.Warn("protocol violation: message has no id or method")
	}
}

func (c *Client) handleResponse(resp *Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("protocol violation: response with unknown id dropped", "id", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
		// Duplicate response for the same id; first one won.
	}
}

// fanOut delivers a notification to a snapshot of the subscriber list, so
// attaching during delivery is not observed by the in-progress fan-out.
func (c *Client) fanOut(method string, params json.RawMessage) {
	c.mu.Lock()
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		c.deliver(sub, method, params)
	}
}

func (c *Client) deliver(sub *Subscription, method string, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("subscriber panicked on notification", "method", method, "panic", r)
		}
	}()
	sub.fn(method, params)
}

// Subscription is an attached notification subscriber.
type Subscription struct {
	client *Client
	fn     SubscriberFunc
}

// Subscribe attaches a notification subscriber. Subscribers receive every
// engine notification in attachment order.
func (c *Client) Subscribe(fn SubscriberFunc) *Subscription {
	sub := &Subscription{client: c, fn: fn}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Cancel detaches the subscriber. If auto-close is configured, detaching
// the last subscriber from an open session triggers the shutdown sequence.
// Any request the subscriber still has outstanding is simply abandoned.
func (s *Subscription) Cancel() {
	c := s.client

	c.mu.Lock()
	for i, sub := range c.subs {
		if sub == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	last := len(c.subs) == 0
	shouldClose := last && c.autoClose && c.state == StateOpen
	c.mu.Unlock()

	if shouldClose {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Close(ctx); err != nil {
				c.log.Warn("auto-close shutdown failed", "error", err)
			}
		}()
	}
}

// Close runs the shutdown sequence: a shutdown request followed by an exit
// notification. Callers still pending afterward are failed with
// ErrSessionClosed and their ids logged. No further operations may be issued.
// Overlapping Close calls are safe; only the first runs the sequence, the
// rest return immediately.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	wasOpen := c.state == StateOpen
	c.mu.Unlock()

	var err error
	if wasOpen {
		if callErr := c.call(ctx, "shutdown", nil, nil); callErr != nil {
			err = fmt.Errorf("shutdown request: %w", callErr)
		}
		if notifyErr := c.notify("exit", nil); notifyErr != nil && err == nil {
			err = fmt.Errorf("exit notification: %w", notifyErr)
		}
	}

	c.mu.Lock()
	c.state = StateClosed
	leaked := make([]int64, 0, len(c.pending))
	for id := range c.pending {
		leaked = append(leaked, id)
	}
	c.pending = make(map[int64]chan *Response)
	c.mu.Unlock()

	close(c.done)

	if len(leaked) > 0 {
		c.log.Warn("pending requests abandoned at close", "ids", leaked)
	}
	return err
}
