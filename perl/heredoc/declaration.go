// Package heredoc relocates Perl heredoc bodies.
//
// Parsing runs in three phases. The Scanner finds every heredoc declaration,
// drops the body lines from the text and puts a unique placeholder where each
// declaration was. The Collector reads the bodies from the unmodified source and
// stores them on the declarations. Integrate hands the placeholder text to the
// tokenizer, which resolves each placeholder back to its declaration.
//
// None of the phases return errors. An unterminated heredoc is a declaration
// with Collected set to false, and a heredoc past the depth limit or the
// deadline is not a declaration at all.
package heredoc

import (
	"strings"
)

// Declaration is one heredoc site.
type Declaration struct {
	Terminator string

	// Pos is the offset of "<<" and End the offset just past the
	// declaration, both in bytes.
	Pos int
	End int
	// Line is the 1-based line of Pos.
	Line int

	Interpolated bool
	Indented     bool
	Placeholder  string

	// Content is only meaningful when Collected is true.
	Content   string
	Collected bool

	// Dynamic is set when the terminator was resolved from an expression
	// such as <<$var. Expression holds its source text.
	Dynamic    bool
	Expression string
}

// Matches reports whether line terminates the heredoc.
func (d *Declaration) Matches(line string) bool {
	if d.Indented {
		return strings.TrimSpace(line) == d.Terminator
	}
	return line == d.Terminator
}

// BoundaryOracle finds the line on which a statement ends.
type BoundaryOracle interface {
	// StatementEndLine returns the 1-based line on which the statement
	// containing line ends.
	StatementEndLine(source string, line int) int
}

type OracleFunc func(source string, line int) int

func (f OracleFunc) StatementEndLine(source string, line int) int {
	return f(source, line)
}

// DelimiterResolver turns a dynamic delimiter such as <<$var into a literal
// terminator. start is the offset of "<<". On success it returns the
// terminator and the offset just past the expression.
//
// The input passed by a Scanner has the body lines of earlier heredocs
// replaced by blanks, so the code before start reads as it would to the
// tokenizer.
type DelimiterResolver interface {
	ResolveDelimiter(input string, start int) (delimiter string, end int, ok bool)
}

// ScanResetter is implemented by resolvers that keep state for one scan. A
// Scanner calls ResetScan before it looks for declarations.
type ScanResetter interface {
	ResetScan()
}
