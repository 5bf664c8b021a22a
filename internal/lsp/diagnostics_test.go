package lsp

import "testing"

// diagText is 6 lines of 10 runes each (9 + newline); offsets are easy to
// compute as line*10+character.
const diagText = "aaaaaaaaa\nbbbbbbbbb\nccccccccc\nddddddddd\neeeeeeeee\nfffffffff"

func diagAt(line, char int, sev DiagnosticSeverity, msg string) Diagnostic {
	return Diagnostic{
		Range: Range{
			Start: Position{Line: line, Character: char},
			End:   Position{Line: line, Character: char + 2},
		},
		Severity: sev,
		Message:  msg,
	}
}

func TestMapDiagnostics_SortedByStartOffset(t *testing.T) {
	diags := []Diagnostic{
		diagAt(5, 0, RemoteSeverityError, "at 50"),
		diagAt(1, 0, RemoteSeverityError, "at 10"),
		diagAt(3, 0, RemoteSeverityError, "at 30"),
	}

	got := MapDiagnostics(diags, diagText)
	if len(got) != 3 {
		t.Fatalf("mapped %d diagnostics, want 3", len(got))
	}
	for i, want := range []int{10, 30, 50} {
		if got[i].Start != want {
			t.Errorf("entry %d start = %d, want %d", i, got[i].Start, want)
		}
	}
}

func TestMapDiagnostics_TiesKeepArrivalOrder(t *testing.T) {
	diags := []Diagnostic{
		diagAt(1, 0, RemoteSeverityError, "first"),
		diagAt(1, 0, RemoteSeverityWarning, "second"),
	}

	got := MapDiagnostics(diags, diagText)
	if len(got) != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Errorf("tie order = %v", got)
	}
}

func TestMapDiagnostics_UnmappableEntriesDropped(t *testing.T) {
	diags := []Diagnostic{
		diagAt(1, 0, RemoteSeverityError, "fine"),
		{
			// End position beyond document length.
			Range: Range{
				Start: Position{Line: 5, Character: 0},
				End:   Position{Line: 5, Character: 50},
			},
			Severity: RemoteSeverityError,
			Message:  "stale end",
		},
		{
			// Start line out of range.
			Range: Range{
				Start: Position{Line: 42, Character: 0},
				End:   Position{Line: 42, Character: 1},
			},
			Severity: RemoteSeverityError,
			Message:  "stale start",
		},
	}

	got := MapDiagnostics(diags, diagText)
	if len(got) != 1 {
		t.Fatalf("mapped %d diagnostics, want 1 (stale entries dropped)", len(got))
	}
	if got[0].Message != "fine" {
		t.Errorf("surviving entry = %q, want %q", got[0].Message, "fine")
	}
}

func TestMapDiagnostics_SeverityCollapse(t *testing.T) {
	tests := []struct {
		remote DiagnosticSeverity
		want   Severity
	}{
		{RemoteSeverityError, SeverityError},
		{RemoteSeverityWarning, SeverityWarning},
		{RemoteSeverityInformation, SeverityInfo},
		{RemoteSeverityHint, SeverityInfo},
		{0, SeverityInfo}, // unspecified
	}

	for _, tt := range tests {
		got := MapDiagnostics([]Diagnostic{diagAt(0, 0, tt.remote, "x")}, diagText)
		if len(got) != 1 {
			t.Fatalf("severity %d: mapped %d entries", tt.remote, len(got))
		}
		if got[0].Severity != tt.want {
			t.Errorf("severity %d mapped to %v, want %v", tt.remote, got[0].Severity, tt.want)
		}
	}
}

func TestMapDiagnostics_Empty(t *testing.T) {
	got := MapDiagnostics(nil, diagText)
	if len(got) != 0 {
		t.Errorf("mapped %d diagnostics from empty input", len(got))
	}
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityError, "error"},
		{SeverityWarning, "warning"},
		{SeverityInfo, "info"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}
