package lsp

import "sort"

// Severity is the host's three-level diagnostic scale.
type Severity int

// Local severity levels. The engine's Information and Hint both collapse to
// SeverityInfo.
const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// OffsetDiagnostic is a diagnostic mapped into local rune offsets, ready
// for display.
type OffsetDiagnostic struct {
	Start    int
	End      int
	Severity Severity
	Message  string
	Source   string
}

// MapDiagnostics converts published diagnostics into local offsets against
// the given document content. Entries whose start or end position cannot be
// mapped are stale and dropped, never shown with bogus bounds. The result
// is sorted by ascending start offset; ties keep arrival order.
func MapDiagnostics(diags []Diagnostic, text string) []OffsetDiagnostic {
	pc := NewPositionConverter(text)

	out := make([]OffsetDiagnostic, 0, len(diags))
	for _, diag := range diags {
		start, err := pc.PositionToOffset(diag.Range.Start)
		if err != nil {
			continue
		}
		end, err := pc.PositionToOffset(diag.Range.End)
		if err != nil {
			continue
		}
		out = append(out, OffsetDiagnostic{
			Start:    start,
			End:      end,
			Severity: mapSeverity(diag.Severity),
			Message:  diag.Message,
			Source:   diag.Source,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// mapSeverity collapses the engine's four levels onto the local three.
func mapSeverity(s DiagnosticSeverity) Severity {
	switch s {
	case RemoteSeverityError:
		return SeverityError
	case RemoteSeverityWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
