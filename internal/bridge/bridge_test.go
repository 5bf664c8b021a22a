package bridge

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dshills/lsphost/internal/lsp"
)

func TestBridge_SendRequiresBind(t *testing.T) {
	br := New(nil)
	if err := br.Send([]byte("early")); !errors.Is(err, ErrNotBound) {
		t.Errorf("Send() before Bind error = %v, want ErrNotBound", err)
	}
}

func TestBridge_StdinBlocksUntilBind(t *testing.T) {
	br := New(nil)
	stdin := br.Stdin()

	readDone := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := stdin.Read(buf)
		if err != nil {
			t.Errorf("stdin Read() error = %v", err)
		}
		readDone <- string(buf[:n])
	}()

	select {
	case <-readDone:
		t.Fatal("stdin read completed before bind")
	case <-time.After(20 * time.Millisecond):
	}

	ch := NewChannel(64)
	br.Bind(ch)
	if err := br.Send([]byte("config")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-readDone:
		if got != "config" {
			t.Errorf("stdin read %q, want %q", got, "config")
		}
	case <-time.After(time.Second):
		t.Fatal("stdin read did not complete after bind")
	}
}

func TestBridge_CloseBeforeBind(t *testing.T) {
	br := New(nil)
	br.Close()

	if err := br.Send([]byte("late")); !errors.Is(err, ErrNotBound) {
		t.Errorf("Send() after unbound close error = %v, want ErrNotBound", err)
	}

	// Binding afterward still yields a working channel.
	br.Bind(NewChannel(64))
	if err := br.Send([]byte("config")); err != nil {
		t.Fatalf("Send() after bind error = %v", err)
	}
	buf := make([]byte, 16)
	n, err := br.Stdin().Read(buf)
	if err != nil || string(buf[:n]) != "config" {
		t.Errorf("stdin read = %q, %v", buf[:n], err)
	}
}

func TestBridge_CloseBindRace(t *testing.T) {
	for i := 0; i < 100; i++ {
		br := New(nil)
		done := make(chan struct{}, 2)
		go func() {
			br.Bind(NewChannel(16))
			done <- struct{}{}
		}()
		go func() {
			br.Close()
			done <- struct{}{}
		}()
		<-done
		<-done
	}
}

func TestBridge_SendFragmentsToCapacity(t *testing.T) {
	br := New(nil)
	br.Bind(NewChannel(4))

	payload := []byte("a payload wider than four bytes")

	done := make(chan error, 1)
	go func() {
		done <- br.Send(payload)
	}()

	var got []byte
	stdin := br.Stdin()
	buf := make([]byte, 8)
	for len(got) < len(payload) {
		n, err := stdin.Read(buf)
		if err != nil {
			t.Fatalf("stdin Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}

	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("stdin drained %q, want %q", got, payload)
	}
}

func TestBridge_StdoutDispatchesFramedMessages(t *testing.T) {
	var msgs [][]byte
	br := New(func(msg []byte) { msgs = append(msgs, msg) })

	stdout := br.Stdout()
	first := lsp.EncodeFrame([]byte(`{"a":1}`))
	second := lsp.EncodeFrame([]byte(`{"b":2}`))

	// Two frames in one write, split at an arbitrary byte boundary.
	joined := append(append([]byte{}, first...), second...)
	if _, err := stdout.Write(joined[:10]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("message dispatched from partial frame: %q", msgs)
	}
	if _, err := stdout.Write(joined[10:]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("dispatched %d messages, want 2", len(msgs))
	}
	if string(msgs[0]) != `{"a":1}` || string(msgs[1]) != `{"b":2}` {
		t.Errorf("messages = %q, %q", msgs[0], msgs[1])
	}
}

func TestBridge_FramingErrorIsFatal(t *testing.T) {
	var fatal error
	br := New(nil, WithFatalHandler(func(err error) { fatal = err }))

	stdout := br.Stdout()
	if _, err := stdout.Write([]byte("Content-Length: nope\r\n\r\n")); err == nil {
		t.Fatal("malformed header accepted")
	}
	if fatal == nil {
		t.Fatal("fatal handler not invoked")
	}

	var fe *lsp.FramingError
	if !errors.As(fatal, &fe) {
		t.Errorf("fatal error = %T, want *lsp.FramingError", fatal)
	}

	// The stream stays poisoned even for well-formed frames.
	if _, err := stdout.Write(lsp.EncodeFrame([]byte(`{}`))); err == nil {
		t.Error("write after fatal framing error succeeded")
	}
}

func TestBridge_WriteImplementsWriter(t *testing.T) {
	br := New(nil)
	br.Bind(NewChannel(64))

	var w io.Writer = br
	n, err := w.Write([]byte("via io.Writer"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len("via io.Writer") {
		t.Errorf("Write() = %d, want %d", n, len("via io.Writer"))
	}
}

func TestBridge_CloseUnblocksEngineRead(t *testing.T) {
	br := New(nil)
	br.Bind(NewChannel(64))

	errCh := make(chan error, 1)
	go func() {
		_, err := br.Stdin().Read(make([]byte, 8))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	br.Close()

	select {
	case err := <-errCh:
		if err != io.EOF {
			t.Errorf("stdin Read() after close error = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine read not unblocked by close")
	}
}
