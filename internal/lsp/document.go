package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Surface is the editor-supplied view of the text being edited. The host
// never owns the buffer; it reads snapshots and hands back offset edits.
type Surface interface {
	// Text returns the current full document content.
	Text() string

	// ApplyEdits applies (start, end, replacement) rune-offset edits.
	// Edits arrive sorted by descending start offset so earlier offsets
	// stay valid while later spans are replaced.
	ApplyEdits(edits []Edit) error
}

// Edit replaces the rune span [Start, End) with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// OpenState is the document session's lifecycle state.
type OpenState int

// Document session states.
const (
	DocClosed OpenState = iota
	DocOpening
	DocOpen
)

// Document tracks one open document's remote-visible state: a strictly
// increasing version counter and the synchronized content. One instance per
// open document per client.
type Document struct {
	log        *slog.Logger
	client     *Client
	uri        DocumentURI
	languageID string
	surface    Surface

	onDiagnostics   func(diags []OffsetDiagnostic)
	completionLimit int

	mu      sync.Mutex
	state   OpenState
	version int
	sub     *Subscription
	diags   []OffsetDiagnostic
}

// DocumentOption configures a document session.
type DocumentOption func(*Document)

// WithDocumentLogger sets the session's logger.
func WithDocumentLogger(log *slog.Logger) DocumentOption {
	return func(d *Document) {
		d.log = log
	}
}

// WithDiagnosticsCallback sets the callback invoked each time the displayed
// diagnostic set is replaced. The callback receives the full new set,
// already mapped and sorted.
func WithDiagnosticsCallback(fn func(diags []OffsetDiagnostic)) DocumentOption {
	return func(d *Document) {
		d.onDiagnostics = fn
	}
}

// WithCompletionLimit caps the number of completion options returned after
// ranking. Zero means no cap.
func WithCompletionLimit(n int) DocumentOption {
	return func(d *Document) {
		d.completionLimit = n
	}
}

// NewDocument creates a session for uri backed by the given surface.
func NewDocument(client *Client, uri DocumentURI, languageID string, surface Surface, opts ...DocumentOption) *Document {
	d := &Document{
		log:        slog.Default(),
		client:     client,
		uri:        uri,
		languageID: languageID,
		surface:    surface,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// URI returns the document identifier.
func (d *Document) URI() DocumentURI {
	return d.uri
}

// Version returns the version sent with the most recent notification.
func (d *Document) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// State returns the session's lifecycle state.
func (d *Document) State() OpenState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open waits for the client session to finish its handshake, then announces
// the document with version 0 and subscribes to published diagnostics.
func (d *Document) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.state != DocClosed {
		d.mu.Unlock()
		return ErrDocumentAlreadyOpen
	}
	d.state = DocOpening
	d.mu.Unlock()

	if err := d.client.WhenOpen(ctx); err != nil {
		d.mu.Lock()
		d.state = DocClosed
		d.mu.Unlock()
		return err
	}

	text := d.surface.Text()
	err := d.client.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        d.uri,
			LanguageID: d.languageID,
			Version:    0,
			Text:       text,
		},
	})
	if err != nil {
		d.mu.Lock()
		d.state = DocClosed
		d.mu.Unlock()
		return fmt.Errorf("open document %s: %w", d.uri, err)
	}

	sub := d.client.Subscribe(d.handleNotification)

	d.mu.Lock()
	d.state = DocOpen
	d.version = 0
	d.sub = sub
	d.mu.Unlock()
	return nil
}

// Change synchronizes the current surface content to the engine with the
// next version number. A session that is not open makes this a no-op, and a
// degraded remote never blocks editing: send failures are logged and
// swallowed.
func (d *Document) Change() {
	d.mu.Lock()
	if d.state != DocOpen {
		d.mu.Unlock()
		return
	}
	d.version++
	version := d.version
	d.mu.Unlock()

	text := d.surface.Text()
	err := d.client.Notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: d.uri, Version: version},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
	if err != nil {
		d.log.Warn("document change not delivered", "uri", d.uri, "version", version, "error", err)
	}
}

// Close detaches the session: sends the close notification, unsubscribes
// from diagnostics and clears the displayed set.
func (d *Document) Close() {
	d.mu.Lock()
	if d.state == DocClosed {
		d.mu.Unlock()
		return
	}
	d.state = DocClosed
	sub := d.sub
	d.sub = nil
	d.diags = nil
	d.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}

	err := d.client.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: d.uri},
	})
	if err != nil {
		d.log.Warn("document close not delivered", "uri", d.uri, "error", err)
	}

	if d.onDiagnostics != nil {
		d.onDiagnostics(nil)
	}
}

// Completion requests completions at the given rune offset and returns the
// filtered, ranked result for the token under the cursor.
func (d *Document) Completion(ctx context.Context, offset int) (*CompletionResult, error) {
	if d.State() != DocOpen {
		return nil, ErrDocumentNotOpen
	}

	text := d.surface.Text()
	pc := NewPositionConverter(text)
	pos, err := pc.OffsetToPosition(offset)
	if err != nil {
		return nil, err
	}

	var list CompletionList
	params := CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: d.uri},
			Position:     pos,
		},
		Context: &CompletionContext{TriggerKind: CompletionTriggerInvoked},
	}
	if err := d.callCompletion(ctx, params, &list); err != nil {
		return nil, err
	}

	result := RankCompletions(list.Items, text, offset)
	if d.completionLimit > 0 && len(result.Items) > d.completionLimit {
		result.Items = result.Items[:d.completionLimit]
	}
	return result, nil
}

// callCompletion tolerates both response shapes the protocol allows: a
// CompletionList object or a bare item array.
func (d *Document) callCompletion(ctx context.Context, params CompletionParams, list *CompletionList) error {
	var raw json.RawMessage
	if err := d.client.Call(ctx, "textDocument/completion", params, &raw); err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, &list.Items)
	}
	return json.Unmarshal(raw, list)
}

// Hover requests hover information at the given rune offset.
func (d *Document) Hover(ctx context.Context, offset int) (*Hover, error) {
	if d.State() != DocOpen {
		return nil, ErrDocumentNotOpen
	}

	pc := NewPositionConverter(d.surface.Text())
	pos, err := pc.OffsetToPosition(offset)
	if err != nil {
		return nil, err
	}

	var hover *Hover
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: d.uri},
		Position:     pos,
	}
	if err := d.client.Call(ctx, "textDocument/hover", params, &hover); err != nil {
		return nil, err
	}
	return hover, nil
}

// Format requests whole-document formatting, converts the remote edits to
// offset edits and applies them through the surface. The applied edits are
// returned sorted by descending start offset. An edit the current content
// cannot map fails the whole operation; formatting is all or nothing.
func (d *Document) Format(ctx context.Context, opts FormattingOptions) ([]Edit, error) {
	if d.State() != DocOpen {
		return nil, ErrDocumentNotOpen
	}

	var textEdits []TextEdit
	params := DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: d.uri},
		Options:      opts,
	}
	if err := d.client.Call(ctx, "textDocument/formatting", params, &textEdits); err != nil {
		return nil, err
	}
	if len(textEdits) == 0 {
		return nil, nil
	}

	pc := NewPositionConverter(d.surface.Text())
	edits := make([]Edit, 0, len(textEdits))
	for _, te := range textEdits {
		start, err := pc.PositionToOffset(te.Range.Start)
		if err != nil {
			return nil, fmt.Errorf("formatting edit at %d:%d: %w", te.Range.Start.Line, te.Range.Start.Character, err)
		}
		end, err := pc.PositionToOffset(te.Range.End)
		if err != nil {
			return nil, fmt.Errorf("formatting edit at %d:%d: %w", te.Range.End.Line, te.Range.End.Character, err)
		}
		edits = append(edits, Edit{Start: start, End: end, Text: te.NewText})
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].Start > edits[j].Start
	})

	if err := d.surface.ApplyEdits(edits); err != nil {
		return nil, fmt.Errorf("apply formatting edits: %w", err)
	}
	return edits, nil
}

// Diagnostics returns the currently displayed diagnostic set.
func (d *Document) Diagnostics() []OffsetDiagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]OffsetDiagnostic, len(d.diags))
	copy(out, d.diags)
	return out
}

// handleNotification reacts to engine notifications relevant to this
// document.
func (d *Document) handleNotification(method string, params json.RawMessage) {
	if method != "textDocument/publishDiagnostics" {
		return
	}

	var pub PublishDiagnosticsParams
	if err := json.Unmarshal(params, &pub); err != nil {
		d.log.Warn("malformed publishDiagnostics dropped", "error", err)
		return
	}
	if pub.URI != d.uri {
		return
	}

	mapped := MapDiagnostics(pub.Diagnostics, d.surface.Text())

	// Replace the displayed set atomically; readers never see a partial mix
	// of old and new entries. DocOpening counts: the subscription is attached
	// just before the state flips to DocOpen, and a publish landing in that
	// window must not be lost.
	d.mu.Lock()
	if d.state != DocOpen && d.state != DocOpening {
		d.mu.Unlock()
		return
	}
	d.diags = mapped
	d.mu.Unlock()

	if d.onDiagnostics != nil {
		d.onDiagnostics(mapped)
	}
}
