// Package lsp implements the host's JSON-RPC 2.0 client and document
// synchronization layer for a sandboxed language-analysis engine.
//
// The engine speaks the LSP base protocol over the stdio bridge: messages
// framed with Content-Length headers, JSON-RPC 2.0 bodies. This package
// turns that byte stream into typed traffic and keeps one open document's
// remote view consistent with local edits.
//
// Core components:
//
//   - Encoder/Decoder: byte-exact Content-Length framing
//   - Client: request id allocation, response correlation, notification
//     fan-out to subscribers, session lifecycle
//   - Document: per-document version tracking and full-text change sync,
//     plus completion, hover and formatting entry points
//   - PositionConverter: flat rune offsets <-> line/character positions
//   - RankCompletions / MapDiagnostics: render remote results into
//     editor-native ordering and offsets
//
// Requests block the calling goroutine until their response arrives; the
// read side never blocks on callers. A remote that stops responding leaves
// requests pending until the caller's context expires or the session closes.
package lsp
