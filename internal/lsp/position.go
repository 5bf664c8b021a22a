package lsp

// PositionConverter translates between the editor's flat rune offsets and
// the wire protocol's zero-based line/character positions. Build one per
// document snapshot; it indexes line starts once and answers conversions in
// O(log lines).
type PositionConverter struct {
	lineStarts []int // rune offset of each line start
	total      int   // total rune count
}

// NewPositionConverter indexes text for conversion.
func NewPositionConverter(text string) *PositionConverter {
	pc := &PositionConverter{lineStarts: []int{0}}
	offset := 0
	for _, r := range text {
		offset++
		if r == '\n' {
			pc.lineStarts = append(pc.lineStarts, offset)
		}
	}
	pc.total = offset
	return pc
}

// Len returns the document length in runes.
func (pc *PositionConverter) Len() int {
	return pc.total
}

// LineCount returns the number of lines, counting a trailing newline's
// empty final line.
func (pc *PositionConverter) LineCount() int {
	return len(pc.lineStarts)
}

// OffsetToPosition converts a flat rune offset to a line/character
// position. Fails with ErrUnmappable when the offset lies outside the
// document.
func (pc *PositionConverter) OffsetToPosition(offset int) (Position, error) {
	if offset < 0 || offset > pc.total {
		return Position{}, ErrUnmappable
	}

	// Binary search for the last line start <= offset.
	lo, hi := 0, len(pc.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if pc.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return Position{Line: lo, Character: offset - pc.lineStarts[lo]}, nil
}

// PositionToOffset converts a line/character position to a flat rune
// offset. Fails with ErrUnmappable when the line index is out of range or
// the resulting offset would exceed the document length; a stale position
// is never turned into an out-of-bounds offset.
func (pc *PositionConverter) PositionToOffset(pos Position) (int, error) {
	if pos.Line < 0 || pos.Line >= len(pc.lineStarts) || pos.Character < 0 {
		return 0, ErrUnmappable
	}

	offset := pc.lineStarts[pos.Line] + pos.Character
	if offset > pc.total {
		return 0, ErrUnmappable
	}
	return offset, nil
}
