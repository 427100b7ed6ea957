// Package scorer guesses the runtime value of heredoc delimiter expressions
// from literal assignments found in the source. It is the default
// recovery.ContextScorer.
package scorer

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/perlex/perl/recovery"
)

var log = commonlog.GetLogger("perlex.scorer")

type Mode int

const (
	// Conservative never proposes a delimiter.
	Conservative Mode = iota
	// BestGuess resolves what it can and guesses the rest.
	BestGuess
)

var modeNames = map[Mode]string{
	Conservative: "conservative",
	BestGuess:    "best-guess",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown scorer mode %q", s)
}

// Source tells where a value came from.
type Source int

const (
	Literal Source = iota
	Concatenation
	FunctionReturn
	UserHint
	Heuristic
)

var sourceNames = map[Source]string{
	Literal:        "Literal",
	Concatenation:  "Concatenation",
	FunctionReturn: "FunctionReturn",
	UserHint:       "UserHint",
	Heuristic:      "Heuristic",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Value is one possible runtime value of a variable or expression.
type Value struct {
	Value      string
	Confidence float64
	Source     Source
}

// Common lists frequent delimiters, most frequent first.
var Common = []string{
	"EOF", "END", "EOT", "EOD", "DONE", "STOP", "HERE", "DATA",
	"TEXT", "SQL", "HTML", "XML", "PERL", "CODE", "SCRIPT", "TEMPLATE",
}

var delimiterNames = []string{"delimiter", "delim", "end", "eof", "marker", "tag", "label"}

var (
	scalarAssign = regexp.MustCompile(`(?m)^\s*(?:my|our|local|state)\s+[\$@%](\w+)\s*=\s*["']([^"']+)["']`)
	arrayAssign  = regexp.MustCompile(`(?m)^\s*(?:my|our|local|state)\s+@(\w+)\s*=\s*\(([^)]+)\)`)
	hashAssign   = regexp.MustCompile(`(?m)^\s*(?:my|our|local|state)\s+%(\w+)\s*=\s*\(([^)]+)\)`)
	hashPair     = regexp.MustCompile(`(\w+)\s*=>\s*["']([^"']+)["']`)

	stringFunc     = regexp.MustCompile(`^(uc|lc|ucfirst|lcfirst|reverse|chomp|chop)\s*\(\s*(.+?)\s*\)$`)
	stringify      = regexp.MustCompile(`^(.+?)->(?:to_string|as_string|stringify)\(\s*\)$`)
	subscript      = regexp.MustCompile(`^\$(\w+(?:::\w+)*)\s*[\[{]`)
	interpolated   = regexp.MustCompile(`\$\{?([a-zA-Z_]\w*)\}?`)
	repetitionMark = regexp.MustCompile(`\sx\s+\d`)
)

const (
	hintConfidence  = 0.9
	guessConfidence = 0.3
	envConfidence   = 0.3
)

// Scorer is not safe for concurrent use.
type Scorer struct {
	mode   Mode
	values map[string][]Value
}

func New(mode Mode) *Scorer {
	return &Scorer{
		mode:   mode,
		values: make(map[string][]Value),
	}
}

func (s *Scorer) Mode() Mode {
	return s.mode
}

// ScanAssignments records literal scalar, array and hash assignments
// declared with my, our, local or state. An array contributes its first
// quoted element and a hash every quoted value.
func (s *Scorer) ScanAssignments(code string) {
	for _, m := range scalarAssign.FindAllStringSubmatch(code, -1) {
		s.add(m[1], Value{Value: m[2], Confidence: nameConfidence(m[1], 0.8, 0.5)})
	}

	for _, m := range arrayAssign.FindAllStringSubmatch(code, -1) {
		for _, elem := range strings.Split(m[2], ",") {
			if v, ok := unquote(strings.TrimSpace(elem)); ok {
				s.add(m[1], Value{Value: v, Confidence: nameConfidence(m[1], 0.7, 0.4)})
				break
			}
		}
	}

	for _, m := range hashAssign.FindAllStringSubmatch(code, -1) {
		for _, pair := range hashPair.FindAllStringSubmatch(m[2], -1) {
			s.add(m[1], Value{Value: pair[2], Confidence: nameConfidence(m[1], 0.6, 0.3)})
		}
	}
}

// AddHint records that the variable name holds value.
func (s *Scorer) AddHint(name, value string) {
	s.add(name, Value{Value: value, Confidence: hintConfidence, Source: UserHint})
}

// Values returns what is known about the variable name, without sigil.
func (s *Scorer) Values(name string) []Value {
	return s.values[name]
}

func (s *Scorer) add(name string, v Value) {
	s.values[name] = append(s.values[name], v)
}

func nameConfidence(name string, delimiterLike, other float64) float64 {
	lower := strings.ToLower(name)
	for _, n := range delimiterNames {
		if strings.Contains(lower, n) {
			return delimiterLike
		}
	}
	return other
}

// Analyze implements recovery.ContextScorer.
func (s *Scorer) Analyze(expression string, ctx recovery.ParseContext) recovery.Analysis {
	var a recovery.Analysis

	switch s.mode {
	case Conservative:
		a.Warnings = append(a.Warnings, "Dynamic delimiter cannot be resolved without code execution")
		a.Strategy = "Marked as unparseable"
	case BestGuess:
		if v, ok := s.Resolve(expression, ctx); ok {
			a.Delimiter = v.Value
			a.Resolved = true
			a.Confidence = v.Confidence
			a.Strategy = "Resolved via " + v.Source.String()
			log.Debugf("scored %s as %q (%s, %.2f)", expression, v.Value, v.Source, v.Confidence)
		} else {
			a.Alternatives = guess(expression)
			a.Strategy = "Guessing from common patterns"
			if len(a.Alternatives) > 0 {
				a.Delimiter = a.Alternatives[0]
				a.Resolved = true
				a.Confidence = guessConfidence
			}
		}
	}

	if strings.Contains(expression, "$") {
		a.Warnings = append(a.Warnings, "Variable interpolation in delimiter makes static analysis unreliable")
	}
	if strings.ContainsAny(expression, "({") {
		a.Warnings = append(a.Warnings, "Complex expression in delimiter requires runtime evaluation")
	}
	return a
}

// Resolve computes the most likely value of expr from the recorded
// assignments.
func (s *Scorer) Resolve(expr string, ctx recovery.ParseContext) (Value, bool) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "$ENV{") && strings.HasSuffix(expr, "}") {
		return envValue(expr[len("$ENV{") : len(expr)-1]), true
	}

	if name, ok := strings.CutPrefix(expr, "$"); ok && !strings.ContainsAny(name, ".{[( \t") {
		return s.lookup(name, ctx)
	}

	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		inner := strings.TrimSpace(expr[2 : len(expr)-1])
		if !strings.ContainsAny(inner, "[{") {
			if v, ok := s.lookup(inner, ctx); ok {
				return v, true
			}
		}
		if i := strings.IndexAny(inner, "[{"); i > 0 {
			if v, ok := s.lookup(inner[:i], ctx); ok {
				return degrade(v, 0.6), true
			}
		}
	}

	if m := subscript.FindStringSubmatch(expr); m != nil && isSubscript(expr) {
		if v, ok := s.lookup(m[1], ctx); ok {
			return degrade(v, 0.5), true
		}
	}

	if m := stringFunc.FindStringSubmatch(expr); m != nil {
		if v, ok := s.Resolve(m[2], ctx); ok {
			return Value{Value: transform(m[1], v.Value), Confidence: v.Confidence * 0.8, Source: FunctionReturn}, true
		}
	}

	if m := stringify.FindStringSubmatch(expr); m != nil {
		if v, ok := s.Resolve(m[1], ctx); ok {
			return Value{Value: v.Value, Confidence: v.Confidence * 0.6, Source: FunctionReturn}, true
		}
	}

	if strings.Contains(expr, ".") || repetitionMark.MatchString(expr) {
		return s.concatenation(expr, ctx)
	}

	if isQuoted(expr, '"') || isQuoted(expr, '`') {
		return s.interpolate(expr[1:len(expr)-1], ctx)
	}
	return Value{}, false
}

// lookup returns the most confident value of name. A later value wins a
// tie. Names qualified with the current package or main fall back to the
// unqualified name.
func (s *Scorer) lookup(name string, ctx recovery.ParseContext) (Value, bool) {
	if values := s.values[name]; len(values) > 0 {
		best := values[0]
		for _, v := range values[1:] {
			if v.Confidence >= best.Confidence {
				best = v
			}
		}
		return best, true
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		if pkg := name[:i]; pkg == "main" || pkg == ctx.Namespace {
			return s.lookup(name[i+2:], ctx)
		}
	}
	return Value{}, false
}

// isSubscript reports whether expr is a single element access such as
// $x[0] or $h{key}.
func isSubscript(expr string) bool {
	open := strings.IndexAny(expr, "[{")
	if open < 0 {
		return false
	}
	closer := byte(']')
	if expr[open] == '{' {
		closer = '}'
	}
	return expr[len(expr)-1] == closer && !strings.Contains(expr, "->")
}

func degrade(v Value, factor float64) Value {
	v.Confidence *= factor
	v.Source = Heuristic
	return v
}

func transform(fn, s string) string {
	switch fn {
	case "uc":
		return strings.ToUpper(s)
	case "lc":
		return strings.ToLower(s)
	case "ucfirst", "lcfirst":
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 {
			return s
		}
		if fn == "ucfirst" {
			r = unicode.ToUpper(r)
		} else {
			r = unicode.ToLower(r)
		}
		return string(r) + s[size:]
	case "reverse":
		runes := []rune(s)
		slices.Reverse(runes)
		return string(runes)
	}
	// chomp and chop act on the variable, not on its use as a delimiter.
	return s
}

type part struct {
	text   string
	repeat bool
}

// concatenation joins the parts of an expression built with '.' and
// repeated with 'x N'. Its confidence is that of its weakest part.
func (s *Scorer) concatenation(expr string, ctx recovery.ParseContext) (Value, bool) {
	var parts []part
	for _, p := range strings.Split(expr, ".") {
		pieces := strings.Split(p, " x ")
		parts = append(parts, part{text: pieces[0]})
		for _, piece := range pieces[1:] {
			parts = append(parts, part{text: piece, repeat: true})
		}
	}

	var b strings.Builder
	confidence := 1.0
	for _, p := range parts {
		text := strings.TrimSpace(p.text)
		if text == "" {
			return Value{}, false
		}
		if p.repeat {
			n, err := strconv.Atoi(text)
			if err != nil || n <= 0 || n > 100 || b.Len() == 0 {
				return Value{}, false
			}
			repeated := strings.Repeat(b.String(), n)
			b.Reset()
			b.WriteString(repeated)
			confidence = min(confidence, 0.7)
			continue
		}

		switch {
		case isQuoted(text, '"') || isQuoted(text, '\''):
			b.WriteString(text[1 : len(text)-1])
		case strings.HasPrefix(text, "${") && strings.HasSuffix(text, "}"):
			v, ok := s.lookup(text[2:len(text)-1], ctx)
			if !ok {
				return Value{}, false
			}
			b.WriteString(v.Value)
			confidence = min(confidence, v.Confidence)
		case strings.HasPrefix(text, "$"):
			v, ok := s.lookup(text[1:], ctx)
			if !ok {
				return Value{}, false
			}
			b.WriteString(v.Value)
			confidence = min(confidence, v.Confidence)
		case isDigits(text):
			b.WriteString(text)
		default:
			return Value{}, false
		}
	}

	if b.Len() == 0 {
		return Value{}, false
	}
	return Value{Value: b.String(), Confidence: confidence, Source: Concatenation}, true
}

// interpolate substitutes known variables in the body of a double-quoted
// string. At least one variable must be known.
func (s *Scorer) interpolate(content string, ctx recovery.ParseContext) (Value, bool) {
	if strings.HasPrefix(content, "$") && !strings.Contains(content[1:], "$") {
		return s.Resolve(content, ctx)
	}

	resolved := content
	confidence := 1.0
	found := false
	for _, m := range interpolated.FindAllStringSubmatch(content, -1) {
		v, ok := s.lookup(m[1], ctx)
		if !ok {
			continue
		}
		resolved = strings.ReplaceAll(resolved, m[0], v.Value)
		confidence = min(confidence, v.Confidence)
		found = true
	}
	if !found {
		return Value{}, false
	}
	return Value{Value: resolved, Confidence: confidence * 0.8, Source: Concatenation}, true
}

// envValue guesses an environment variable from its name. The process
// environment is never consulted.
func envValue(name string) Value {
	name = strings.Trim(name, `"'`)
	lower := strings.ToLower(name)
	v := "value"
	switch {
	case strings.Contains(lower, "path"):
		v = "/usr/local/bin"
	case strings.Contains(lower, "url"):
		v = "http://localhost"
	case strings.Contains(lower, "port"):
		v = "8080"
	case strings.Contains(lower, "host"):
		v = "localhost"
	case strings.Contains(lower, "debug"):
		v = "1"
	}
	return Value{Value: v, Confidence: envConfidence, Source: Heuristic}
}

func guess(expr string) []string {
	var out []string
	add := func(d string) {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	lower := strings.ToLower(expr)
	if strings.Contains(lower, "sql") {
		add("SQL")
	}
	if strings.Contains(lower, "end") || strings.Contains(lower, "eof") {
		add("EOF")
		add("END")
	}
	for _, d := range Common[:5] {
		add(d)
	}
	return out
}

func unquote(s string) (string, bool) {
	if isQuoted(s, '"') || isQuoted(s, '\'') {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func isQuoted(s string, q byte) bool {
	return len(s) >= 2 && s[0] == q && s[len(s)-1] == q
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
