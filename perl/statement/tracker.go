// Package statement finds statement boundaries in Perl source so that heredoc
// bodies can be located after the statement that declares them.
package statement

import (
	"strings"
)

type bracket byte

const (
	bracketParen  bracket = '('
	bracketSquare bracket = '['
	bracketCurly  bracket = '{'
)

// HeredocContext describes where a heredoc was declared and where its body
// is expected to start.
type HeredocContext struct {
	Line         int
	Depth        int
	Terminator   string
	StatementEnd int
	ContentStart int
}

// Tracker follows brackets and quotes character by character and reports
// statement boundaries. It also keeps the heredoc contexts noted by its
// callers.
type Tracker struct {
	brackets []bracket
	inString byte
	escape   bool

	contexts []HeredocContext
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Process feeds one character and reports whether it ends a statement.
// A statement ends at ';' or at a newline not preceded by ',' while no
// bracket is open.
func (t *Tracker) Process(ch, prev rune) bool {
	if t.escape {
		t.escape = false
		return false
	}
	if ch == '\\' {
		t.escape = true
		return false
	}

	if t.inString != 0 {
		if ch == rune(t.inString) {
			t.inString = 0
		}
		return false
	}

	switch ch {
	case '"', '\'', '`':
		t.inString = byte(ch)
		return false
	case '(', '[', '{':
		t.brackets = append(t.brackets, bracket(ch))
	case ')':
		t.pop(bracketParen)
	case ']':
		t.pop(bracketSquare)
	case '}':
		t.pop(bracketCurly)
	}

	if len(t.brackets) == 0 {
		switch ch {
		case ';':
			return true
		case '\n':
			return prev != ','
		}
	}
	return false
}

func (t *Tracker) pop(b bracket) {
	if n := len(t.brackets); n > 0 && t.brackets[n-1] == b {
		t.brackets = t.brackets[:n-1]
	}
}

// Balanced reports whether no bracket or quote is open.
func (t *Tracker) Balanced() bool {
	return len(t.brackets) == 0 && t.inString == 0
}

// Reset clears all state, including recorded heredoc contexts.
func (t *Tracker) Reset() {
	t.resetLexical()
	t.contexts = nil
}

func (t *Tracker) resetLexical() {
	t.brackets = t.brackets[:0]
	t.inString = 0
	t.escape = false
}

// NoteHeredoc records a heredoc declared on line, depth braces deep, whose
// statement ends on statementEnd.
func (t *Tracker) NoteHeredoc(line, depth int, terminator string, statementEnd int) {
	t.contexts = append(t.contexts, HeredocContext{
		Line:         line,
		Depth:        depth,
		Terminator:   terminator,
		StatementEnd: statementEnd,
		ContentStart: statementEnd + 1,
	})
}

func (t *Tracker) Contexts() []HeredocContext {
	return t.contexts
}

// FindEndLine returns the 1-based line on which the statement containing
// line ends. Lines outside the input are returned unchanged. When no
// boundary is found the last line is returned.
func FindEndLine(source string, line int) int {
	lines := SplitLines(source)
	if line <= 0 || line > len(lines) {
		return line
	}

	text := strings.TrimRight(lines[line-1], " \t\r\n\f\v")
	if strings.HasSuffix(text, ";") {
		return line
	}

	// The declaration sits inside a larger expression, so the bracket state
	// of the preceding lines matters.
	t := NewTracker()
	for _, l := range lines[:line-1] {
		var prev rune
		for _, ch := range l {
			if t.Process(ch, prev) {
				t.resetLexical()
			}
			prev = ch
		}
		if t.Process('\n', prev) {
			t.resetLexical()
		}
	}

	for idx := line - 1; idx < len(lines); idx++ {
		var prev rune
		for _, ch := range lines[idx] {
			if t.Process(ch, prev) {
				return idx + 1
			}
			prev = ch
		}
		if t.Process('\n', prev) {
			return idx + 1
		}
	}
	return len(lines)
}

// BlockDepth returns how many curly braces are open at the start of line,
// ignoring braces inside quotes.
func BlockDepth(source string, line int) int {
	lines := SplitLines(source)
	if line > len(lines)+1 {
		line = len(lines) + 1
	}
	depth := 0
	var quote rune
	escape := false
scan:
	for _, l := range lines[:max(line-1, 0)] {
		for _, ch := range l {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case quote != 0:
				if ch == quote {
					quote = 0
				}
			case ch == '"' || ch == '\'' || ch == '`':
				quote = ch
			case ch == '#':
				continue scan
			case ch == '{':
				depth++
			case ch == '}':
				if depth > 0 {
					depth--
				}
			}
		}
	}
	return depth
}

// SplitLines splits source into lines the way the heredoc passes count
// them: on '\n', dropping one trailing '\r' per line, with no empty final
// line when the source ends in a newline.
func SplitLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Oracle answers statement-end queries with FindEndLine.
type Oracle struct{}

func (Oracle) StatementEndLine(source string, line int) int {
	return FindEndLine(source, line)
}
