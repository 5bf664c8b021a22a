package lsp

import (
	"bytes"
	"fmt"
	"strconv"
)

// Base-protocol framing: each message is an ASCII header line of the exact
// form "Content-Length: <decimal>" terminated by a blank line, followed by
// exactly that many bytes of UTF-8 JSON.

const (
	headerPrefix     = "Content-Length: "
	headerTerminator = "\r\n\r\n"

	// maxHeaderBytes bounds the lookahead for the header terminator. A
	// buffer that grows past this without a terminator is not a framed
	// stream.
	maxHeaderBytes = 256
)

// EncodeFrame wraps body in a Content-Length header.
func EncodeFrame(body []byte) []byte {
	header := fmt.Sprintf("%s%d%s", headerPrefix, len(body), headerTerminator)
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// Decoder extracts complete framed messages from an arbitrarily chunked
// byte stream. Feed any split of the stream (mid-header, mid-body, many
// frames per chunk) and complete bodies come out in order.
//
// A malformed header is fatal: the decoder poisons itself and every later
// Feed returns the same error. Resynchronization is not attempted.
type Decoder struct {
	buf   []byte
	fatal error
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the accumulation buffer and returns every complete
// message body now available, in arrival order. Messages decoded before a
// framing failure in the same chunk are still returned alongside the error.
func (d *Decoder) Feed(p []byte) ([][]byte, error) {
	if d.fatal != nil {
		return nil, d.fatal
	}

	d.buf = append(d.buf, p...)

	var msgs [][]byte
	for {
		end := bytes.Index(d.buf, []byte(headerTerminator))
		if end < 0 {
			if len(d.buf) > maxHeaderBytes {
				d.fatal = &FramingError{Reason: "header terminator not found within lookahead"}
				return msgs, d.fatal
			}
			return msgs, nil
		}

		length, err := parseHeader(d.buf[:end])
		if err != nil {
			d.fatal = err
			return msgs, d.fatal
		}

		total := end + len(headerTerminator) + length
		if len(d.buf) < total {
			return msgs, nil
		}

		body := make([]byte, length)
		copy(body, d.buf[end+len(headerTerminator):total])
		msgs = append(msgs, body)

		d.buf = d.buf[total:]
	}
}

// Buffered returns the number of bytes awaiting a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// parseHeader validates the exact header form and returns the body length.
func parseHeader(header []byte) (int, error) {
	h := string(header)
	if len(h) < len(headerPrefix) || h[:len(headerPrefix)] != headerPrefix {
		return 0, &FramingError{Reason: fmt.Sprintf("malformed header %q", h)}
	}
	digits := h[len(headerPrefix):]
	if digits == "" {
		return 0, &FramingError{Reason: "empty content length"}
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, &FramingError{Reason: fmt.Sprintf("invalid content length %q", digits)}
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &FramingError{Reason: fmt.Sprintf("invalid content length %q", digits)}
	}
	return n, nil
}
