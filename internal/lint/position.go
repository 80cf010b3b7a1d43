package lint

import "strings"

// Position is a zero-based (line, column) location inside a document.
// The coordinate convention matches both the linter's report and the
// editor protocol, so positions travel through the pipeline unchanged.
type Position struct {
	Line   int
	Column int
}

// Before tells whether p is lexicographically before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Range is a possibly zero-width span between two positions, Start <= End.
type Range struct {
	Start Position
	End   Position
}

func (r Range) IsZero() bool {
	return r == Range{}
}

// TextIn returns the part of $text covered by the range. Out-of-bounds
// positions are clamped, an inverted or unresolvable range yields "".
func (r Range) TextIn(text string) string {
	if r.End.Before(r.Start) {
		return ""
	}

	lines := strings.Split(text, "\n")
	if r.Start.Line >= len(lines) {
		return ""
	}

	endLine := r.End.Line
	if endLine >= len(lines) {
		endLine = len(lines) - 1
	}

	if r.Start.Line == endLine {
		line := lines[r.Start.Line]
		start := min(r.Start.Column, len(line))
		end := min(r.End.Column, len(line))
		if end < start {
			end = start
		}
		return line[start:end]
	}

	var b strings.Builder
	for i := r.Start.Line; i <= endLine; i++ {
		line := lines[i]
		switch i {
		case r.Start.Line:
			b.WriteString(line[min(r.Start.Column, len(line)):])
		case endLine:
			b.WriteString("\n")
			b.WriteString(line[:min(r.End.Column, len(line))])
		default:
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
