package bridge

import (
	"reflect"
	"testing"
)

func TestLineWriter_SplitsCompleteLines(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	if _, err := w.Write([]byte("one\ntwo\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := []string{"one", "two"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestLineWriter_RetainsPartialLine(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	w.Write([]byte("par"))
	if len(lines) != 0 {
		t.Fatalf("partial line emitted early: %v", lines)
	}

	w.Write([]byte("tial\nnext"))
	if !reflect.DeepEqual(lines, []string{"partial"}) {
		t.Errorf("lines = %v, want [partial]", lines)
	}

	w.Flush()
	if !reflect.DeepEqual(lines, []string{"partial", "next"}) {
		t.Errorf("after flush lines = %v, want [partial next]", lines)
	}
}

func TestLineWriter_TrimsCarriageReturn(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) { lines = append(lines, line) })

	w.Write([]byte("windows\r\n"))
	if !reflect.DeepEqual(lines, []string{"windows"}) {
		t.Errorf("lines = %v, want [windows]", lines)
	}
}

func TestLineWriter_ReportsFullCompletion(t *testing.T) {
	w := NewLineWriter(nil)
	n, err := w.Write([]byte("no newline yet"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len("no newline yet") {
		t.Errorf("Write() = %d, want %d", n, len("no newline yet"))
	}
}
