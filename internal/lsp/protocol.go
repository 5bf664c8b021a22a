package lsp

import "encoding/json"

// DocumentURI identifies a document on the wire.
type DocumentURI string

// Position is a zero-based line and character offset within a document.
// Characters count runes within the line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextDocumentItem describes a document being opened.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentIdentifier names a document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier names a document at a specific version.
type VersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version int         `json:"version"`
}

// TextDocumentPositionParams is the common document+position request shape.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DidOpenTextDocumentParams accompanies textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams accompanies textDocument/didChange.
// Changes always carry the full replacement text; the remote authoritative
// state is whatever the highest version number delivered.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent is a single change. A nil Range means full
// document replacement.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidCloseTextDocumentParams accompanies textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// ClientCapabilities is the capability set declared during initialize.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// TextDocumentClientCapabilities declares per-document features.
type TextDocumentClientCapabilities struct {
	Completion         *CompletionClientCapabilities `json:"completion,omitempty"`
	Hover              *HoverClientCapabilities      `json:"hover,omitempty"`
	PublishDiagnostics *PublishDiagnosticsClientCaps `json:"publishDiagnostics,omitempty"`
}

// CompletionClientCapabilities declares completion support.
type CompletionClientCapabilities struct {
	ContextSupport bool `json:"contextSupport,omitempty"`
}

// HoverClientCapabilities declares hover support.
type HoverClientCapabilities struct {
	ContentFormat []string `json:"contentFormat,omitempty"`
}

// PublishDiagnosticsClientCaps declares diagnostics support.
type PublishDiagnosticsClientCaps struct {
	VersionSupport bool `json:"versionSupport,omitempty"`
}

// InitializeParams is the initialize request payload.
type InitializeParams struct {
	ProcessID    *int               `json:"processId"`
	RootURI      *DocumentURI       `json:"rootUri"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo identifies the engine.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities records what the engine offers. Fields the host does
// not interpret stay raw.
type ServerCapabilities struct {
	TextDocumentSync           json.RawMessage    `json:"textDocumentSync,omitempty"`
	CompletionProvider         *CompletionOptions `json:"completionProvider,omitempty"`
	HoverProvider              bool               `json:"hoverProvider,omitempty"`
	DocumentFormattingProvider bool               `json:"documentFormattingProvider,omitempty"`
}

// CompletionOptions describes the engine's completion trigger configuration.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
	ResolveProvider   bool     `json:"resolveProvider,omitempty"`
}

// InitializedParams accompanies the initialized notification.
type InitializedParams struct{}

// CompletionParams requests completions at a position.
type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

// CompletionContext describes how completion was triggered.
type CompletionContext struct {
	TriggerKind      int    `json:"triggerKind"`
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

// Completion trigger kinds.
const (
	CompletionTriggerInvoked          = 1
	CompletionTriggerCharacter        = 2
	CompletionTriggerIncompleteResult = 3
)

// CompletionList is the engine's completion response.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionItem is one completion option.
type CompletionItem struct {
	Label         string             `json:"label"`
	Kind          CompletionItemKind `json:"kind,omitempty"`
	Detail        string             `json:"detail,omitempty"`
	Documentation string             `json:"documentation,omitempty"`
	SortText      string             `json:"sortText,omitempty"`
	FilterText    string             `json:"filterText,omitempty"`
	InsertText    string             `json:"insertText,omitempty"`
}

// CompletionItemKind categorizes a completion option.
type CompletionItemKind int

// Completion item kinds the host renders distinctly.
const (
	CompletionKindText     CompletionItemKind = 1
	CompletionKindMethod   CompletionItemKind = 2
	CompletionKindFunction CompletionItemKind = 3
	CompletionKindField    CompletionItemKind = 5
	CompletionKindVariable CompletionItemKind = 6
	CompletionKindModule   CompletionItemKind = 9
	CompletionKindKeyword  CompletionItemKind = 14
	CompletionKindSnippet  CompletionItemKind = 15
)

// Hover is the engine's hover response.
type Hover struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// MarkupContent is formatted documentation text.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// FormattingOptions configures a formatting request.
type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

// DocumentFormattingParams requests whole-document formatting.
type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// TextEdit is a single remote edit: replace Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// DiagnosticSeverity is the engine's four-level severity scale.
type DiagnosticSeverity int

// Remote severity levels.
const (
	RemoteSeverityError       DiagnosticSeverity = 1
	RemoteSeverityWarning     DiagnosticSeverity = 2
	RemoteSeverityInformation DiagnosticSeverity = 3
	RemoteSeverityHint        DiagnosticSeverity = 4
)

// Diagnostic is a remote diagnostic as published by the engine.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// PublishDiagnosticsParams accompanies textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
