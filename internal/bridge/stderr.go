package bridge

import (
	"bytes"
	"sync"
)

// LineWriter is a write-only sink that buffers bytes until a line feed and
// emits each complete line. A trailing partial line is retained across
// writes and emitted on Flush. The engine's stderr is wired to one of these
// so its diagnostics land in the host log one line at a time.
type LineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(line string)
}

// NewLineWriter creates a line writer that calls emit for each complete line
// (without the trailing line feed).
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

// Write buffers p and emits every complete line it produces.
// It always reports full completion; a buffered partial line is not a
// partial write from the caller's perspective.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(w.buf[:i], []byte{'\r'}))
		w.buf = w.buf[i+1:]
		if w.emit != nil {
			w.emit(line)
		}
	}
	return len(p), nil
}

// Flush emits any retained partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		if w.emit != nil {
			w.emit(string(w.buf))
		}
		w.buf = nil
	}
}
