package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the client and document layers.
var (
	// ErrSessionClosed indicates an operation after shutdown.
	ErrSessionClosed = errors.New("session closed")

	// ErrAlreadyOpen indicates a second open attempt on the same client.
	ErrAlreadyOpen = errors.New("session already open")

	// ErrNotOpen indicates a request before the initialize handshake finished.
	ErrNotOpen = errors.New("session not open")

	// ErrDocumentNotOpen indicates a document operation before Open.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrDocumentAlreadyOpen indicates a second Open on the same document.
	ErrDocumentAlreadyOpen = errors.New("document already open")

	// ErrUnmappable indicates a remote position that cannot be translated
	// into a valid local offset for the current document content.
	ErrUnmappable = errors.New("position not mappable to document offset")

	// ErrInvalidResponse indicates a response body that cannot be decoded.
	ErrInvalidResponse = errors.New("invalid response from engine")
)

// FramingError is a malformed header or body on the engine's output stream.
// Framing errors are fatal to the stream: resynchronization is not
// attempted, the owning bridge session must be torn down.
type FramingError struct {
	Reason string
}

// Error implements the error interface.
func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %s", e.Reason)
}

// RPCError is an explicit error payload in a response, surfaced to the
// original caller.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)
