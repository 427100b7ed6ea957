// Package document runs the whole heredoc pipeline over one Perl source file
// and reports what it found.
package document

import (
	"fmt"
	"sort"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/perlex/perl/heredoc"
	"github.com/dhamidi/perlex/perl/lexer"
	"github.com/dhamidi/perlex/perl/recovery"
	"github.com/dhamidi/perlex/perl/scorer"
	"github.com/dhamidi/perlex/perl/statement"
)

var log = commonlog.GetLogger("perlex.document")

// Delimiters accepted below this confidence are reported as warnings.
const ConfidentDelimiter = 0.9

const (
	CodeUnterminated  = "unterminated-heredoc"
	CodeUnresolved    = "unresolved-dynamic-delimiter"
	CodeLowConfidence = "low-confidence-delimiter"
)

type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
)

var severityNames = map[Severity]string{
	SeverityError:       "error",
	SeverityWarning:     "warning",
	SeverityInformation: "information",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic positions refer to the source, not the placeholder text.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Start    lexer.Position
	End      lexer.Position
}

// Report holds everything learned about one source. Tokens are those of
// Text, the source with heredocs replaced by placeholders.
type Report struct {
	File         string
	Source       string
	Text         string
	Declarations []heredoc.Declaration
	Contexts     []statement.HeredocContext
	Recoveries   []recovery.Result
	Tokens       []lexer.Token
	Diagnostics  []Diagnostic
}

// HasErrors reports whether any diagnostic is an error.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

type settings struct {
	file     string
	recovery recovery.Config
	mode     scorer.Mode
	hints    map[string]string
	dynamic  bool
	heredoc  []heredoc.Option
}

type Option func(*settings)

func WithFile(path string) Option {
	return func(s *settings) {
		s.file = path
	}
}

func WithRecoveryConfig(cfg recovery.Config) Option {
	return func(s *settings) {
		s.recovery = cfg
	}
}

func WithScorerMode(m scorer.Mode) Option {
	return func(s *settings) {
		s.mode = m
	}
}

// WithHint tells recovery that the variable name holds delimiter.
func WithHint(name, delimiter string) Option {
	return func(s *settings) {
		s.hints[name] = delimiter
	}
}

// WithoutDynamicDelimiters leaves <<$expr as ordinary text.
func WithoutDynamicDelimiters() Option {
	return func(s *settings) {
		s.dynamic = false
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.heredoc = append(s.heredoc, heredoc.WithTimeout(d))
	}
}

func WithMaxDepth(n int) Option {
	return func(s *settings) {
		s.heredoc = append(s.heredoc, heredoc.WithMaxDepth(n))
	}
}

// Analyze finds, collects and recovers the heredocs of source, tokenizes the
// result and derives diagnostics.
func Analyze(source string, opts ...Option) *Report {
	s := settings{
		recovery: recovery.DefaultConfig(),
		mode:     scorer.BestGuess,
		hints:    make(map[string]string),
		dynamic:  true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.recovery.FileType == recovery.FileTypeUnknown && s.file != "" {
		s.recovery.FileType = recovery.FileTypeFromPath(s.file)
	}

	heredocOpts := []heredoc.Option{heredoc.WithOracle(statement.Oracle{})}
	var resolver *recovery.Resolver
	if s.dynamic {
		sc := scorer.New(s.mode)
		sc.ScanAssignments(source)
		engine := recovery.New(s.recovery, recovery.WithScorer(sc))
		for name, delimiter := range s.hints {
			sc.AddHint(name, delimiter)
			engine.AddHint(name, delimiter)
		}
		resolver = recovery.NewResolver(engine)
		heredocOpts = append(heredocOpts, heredoc.WithResolver(resolver))
	}
	heredocOpts = append(heredocOpts, s.heredoc...)

	parsed := heredoc.Parse(source, heredocOpts...)
	report := &Report{
		File:         s.file,
		Source:       source,
		Text:         parsed.Text,
		Declarations: parsed.Declarations,
		Contexts:     parsed.Contexts,
		Tokens: lexer.Tokenize(parsed.Text,
			lexer.WithFile(s.file),
			lexer.WithHeredocs(parsed.Declarations)),
	}
	if resolver != nil {
		report.Recoveries = resolver.Results()
	}

	report.diagnose()
	log.Debugf("analyzed %s: %d heredocs, %d diagnostics", s.file, len(report.Declarations), len(report.Diagnostics))
	return report
}

func (r *Report) diagnose() {
	for _, d := range r.Declarations {
		if d.Collected {
			continue
		}
		r.add(Diagnostic{
			Code:     CodeUnterminated,
			Severity: SeverityError,
			Message:  fmt.Sprintf("heredoc terminator %q not found", d.Terminator),
			Start:    r.position(d.Pos),
			End:      r.position(d.End),
		})
	}

	for _, res := range r.Recoveries {
		if res.ErrorNode {
			tok := recovery.GenerateErrorToken(r.Source, res.Start, res)
			r.add(Diagnostic{
				Code:     CodeUnresolved,
				Severity: SeverityError,
				Message:  tok.Message,
				Start:    r.withFile(tok.Span.Start),
				End:      r.withFile(tok.Span.End),
			})
			continue
		}
		if res.Confidence < ConfidentDelimiter {
			r.add(Diagnostic{
				Code:     CodeLowConfidence,
				Severity: SeverityWarning,
				Message:  res.Node().DiagnosticMessage(),
				Start:    r.position(res.Start),
				End:      r.position(res.End),
			})
		}
	}

	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		return r.Diagnostics[i].Start.Offset < r.Diagnostics[j].Start.Offset
	})
}

func (r *Report) add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

func (r *Report) position(offset int) lexer.Position {
	return r.withFile(lexer.PositionAt(r.Source, offset))
}

func (r *Report) withFile(p lexer.Position) lexer.Position {
	p.File = r.File
	return p
}
