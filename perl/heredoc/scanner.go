package heredoc

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/perlex/perl/statement"
)

var log = commonlog.GetLogger("perlex.heredoc")

const (
	// MaxDepth is the number of declarations tracked per scan. Later "<<"
	// sites are left as ordinary text.
	MaxDepth = 100

	// DefaultTimeout bounds detection and collection separately.
	DefaultTimeout = 5000 * time.Millisecond
)

type settings struct {
	oracle   BoundaryOracle
	resolver DelimiterResolver
	timeout  time.Duration
	maxDepth int
	now      func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		oracle:   statement.Oracle{},
		timeout:  DefaultTimeout,
		maxDepth: MaxDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Scanner, a Collector or Parse.
type Option func(*settings)

func WithOracle(o BoundaryOracle) Option {
	return func(s *settings) {
		if o != nil {
			s.oracle = o
		}
	}
}

// WithResolver enables dynamic delimiters. Without a resolver, <<$var is
// ordinary text.
func WithResolver(r DelimiterResolver) Option {
	return func(s *settings) {
		s.resolver = r
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxDepth(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner finds heredoc declarations and removes their bodies from the text.
// A Scanner is good for one Scan.
type Scanner struct {
	settings

	input string
	pos   int
	line  int

	counter   int
	decls     []Declaration
	skipLines map[int]bool
	tracker   *statement.Tracker
}

func NewScanner(input string, opts ...Option) *Scanner {
	return &Scanner{
		settings:  newSettings(opts),
		input:     input,
		line:      1,
		skipLines: make(map[int]bool),
		tracker:   statement.NewTracker(),
	}
}

// Scan returns the input with every declaration replaced by its placeholder
// and every body line removed, along with the declarations in source order.
// Content is not filled in.
func (s *Scanner) Scan() (string, []Declaration) {
	s.detect()
	return s.emit(), s.decls
}

// SkipLines returns the 1-based lines removed from the output, in order.
func (s *Scanner) SkipLines() []int {
	lines := make([]int, 0, len(s.skipLines))
	for n := range s.skipLines {
		lines = append(lines, n)
	}
	slices.Sort(lines)
	return lines
}

func (s *Scanner) Contexts() []statement.HeredocContext {
	return s.tracker.Contexts()
}

func (s *Scanner) detect() {
	deadline := s.now().Add(s.timeout)
	limited := false
	if r, ok := s.resolver.(ScanResetter); ok {
		r.ResetScan()
	}
	lines := statement.SplitLines(s.input)

	for s.pos < len(s.input) {
		if s.now().After(deadline) {
			log.Debugf("heredoc detection timed out at offset %d with %d declarations", s.pos, len(s.decls))
			return
		}

		ch := s.input[s.pos]
		if ch == '\n' {
			s.line++
			s.pos++
			// Body lines are not code.
			for s.skipLines[s.line] && s.pos < len(s.input) {
				nl := strings.IndexByte(s.input[s.pos:], '\n')
				if nl < 0 {
					s.pos = len(s.input)
					break
				}
				s.pos += nl + 1
				s.line++
			}
			continue
		}
		if ch != '<' || s.peekN(1) != '<' {
			s.pos++
			continue
		}

		start := s.pos
		if len(s.decls) >= s.maxDepth {
			if !limited {
				log.Debugf("heredoc depth limit %d reached on line %d", s.maxDepth, s.line)
				limited = true
			}
			s.pos = start + 1
			continue
		}

		decl, ok := s.declaration(start)
		if !ok {
			s.pos = start + 1
			continue
		}
		decl.Placeholder = s.nextPlaceholder()
		s.decls = append(s.decls, decl)
		s.markBody(lines, &s.decls[len(s.decls)-1])
		s.line += strings.Count(s.input[start:decl.End], "\n")
		s.pos = decl.End
	}
}

// nextPlaceholder skips ids that already occur in the input.
func (s *Scanner) nextPlaceholder() string {
	for {
		s.counter++
		id := fmt.Sprintf("__HEREDOC_%d__", s.counter)
		if !strings.Contains(s.input, id) {
			return id
		}
	}
}

func (s *Scanner) peekN(n int) byte {
	if s.pos+n >= len(s.input) {
		return 0
	}
	return s.input[s.pos+n]
}

// declaration parses the heredoc starting at the "<<" at start.
func (s *Scanner) declaration(start int) (Declaration, bool) {
	decl := Declaration{Pos: start, Line: s.line}
	i := start + 2
	if i < len(s.input) && s.input[i] == '~' {
		decl.Indented = true
		i++
	}
	for i < len(s.input) && (s.input[i] == ' ' || s.input[i] == '\t') {
		i++
	}
	if i >= len(s.input) {
		return decl, false
	}

	switch q := s.input[i]; q {
	case '\'', '"', '`':
		term, end, ok := quoted(s.input, i)
		if !ok {
			return decl, false
		}
		decl.Terminator = term
		decl.Interpolated = q != '\''
		decl.End = end
		return decl, true
	case '$', '(':
		// "1 << $n" and "$x <<$n" are shifts.
		if s.resolver == nil || (i > start+2 && s.input[i-1] != '~') || operandBefore(s.input, start) {
			return decl, false
		}
		term, end, ok := s.resolver.ResolveDelimiter(s.visible(), start)
		if !ok || end <= i {
			return decl, false
		}
		decl.Terminator = term
		decl.Interpolated = true
		decl.Dynamic = true
		decl.Expression = s.input[i:end]
		decl.End = end
		return decl, true
	}

	end := i
	for end < len(s.input) {
		r, size := utf8.DecodeRuneInString(s.input[end:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		end += size
	}
	if end == i {
		return decl, false
	}
	decl.Terminator = s.input[i:end]
	decl.Interpolated = true
	decl.End = end
	return decl, true
}

// quoted reads a quoted terminator whose opening quote is at i. Backslash
// escapes the next byte. A newline before the closing quote fails.
func quoted(input string, i int) (string, int, bool) {
	q := input[i]
	var b strings.Builder
	for j := i + 1; j < len(input); j++ {
		switch ch := input[j]; {
		case ch == q:
			return b.String(), j + 1, true
		case ch == '\n':
			return "", 0, false
		case ch == '\\' && j+1 < len(input) && input[j+1] != '\n':
			j++
			b.WriteByte(input[j])
		default:
			b.WriteByte(ch)
		}
	}
	return "", 0, false
}

// operandBefore reports whether the code before the "<<" at start ends with
// a value, which makes the "<<" a left shift.
func operandBefore(input string, start int) bool {
	i := start
	for i > 0 && (input[i-1] == ' ' || input[i-1] == '\t') {
		i--
	}
	if i == 0 {
		return false
	}
	switch c := input[i-1]; {
	case c == ')' || c == ']' || c == '}':
		return true
	case isWordByte(c):
		j := i
		for j > 0 && (isWordByte(input[j-1]) || input[j-1] == ':') {
			j--
		}
		if j > 0 && strings.IndexByte("$@%&", input[j-1]) >= 0 {
			return true
		}
		return input[j] >= '0' && input[j] <= '9'
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// visible returns the input with the body lines found so far blanked out.
// Offsets and line numbers are unchanged.
func (s *Scanner) visible() string {
	if len(s.skipLines) == 0 {
		return s.input
	}
	b := []byte(s.input)
	line := 1
	for i, ch := range b {
		if ch == '\n' {
			line++
		} else if s.skipLines[line] {
			b[i] = ' '
		}
	}
	return string(b)
}

// markBody marks the body and terminator lines of d. A heredoc without a
// terminator takes the rest of the input.
func (s *Scanner) markBody(lines []string, d *Declaration) {
	end := s.oracle.StatementEndLine(s.input, d.Line)
	s.tracker.NoteHeredoc(d.Line, statement.BlockDepth(s.input, d.Line), d.Terminator, end)

	for n := max(end+1, 1); n <= len(lines); n++ {
		s.skipLines[n] = true
		if d.Matches(lines[n-1]) {
			return
		}
	}
	log.Debugf("heredoc %q on line %d has no terminator", d.Terminator, d.Line)
}

func (s *Scanner) emit() string {
	var out strings.Builder
	out.Grow(len(s.input))

	line := 1
	next := 0
	pos := 0
	for pos < len(s.input) {
		if s.skipLines[line] {
			nl := strings.IndexByte(s.input[pos:], '\n')
			if nl < 0 {
				break
			}
			pos += nl + 1
			line++
			continue
		}

		// Declarations inside removed lines are never reached.
		for next < len(s.decls) && s.decls[next].Pos < pos {
			next++
		}
		if next < len(s.decls) && s.decls[next].Pos == pos {
			d := s.decls[next]
			out.WriteString(d.Placeholder)
			line += strings.Count(s.input[pos:d.End], "\n")
			pos = d.End
			next++
			continue
		}

		ch := s.input[pos]
		out.WriteByte(ch)
		pos++
		if ch == '\n' {
			line++
		}
	}
	return out.String()
}
