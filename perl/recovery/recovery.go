// Package recovery resolves dynamic heredoc delimiters such as <<$marker or
// <<$obj->delimiter() to literal terminators.
//
// An Engine runs a fixed pipeline and stops at the first step whose
// confidence reaches the threshold: cached answers, user hints, static
// analysis of earlier assignments, patterns in the expression itself, a
// ContextScorer and finally a ranked guess that is never accepted. Every
// answer carries a confidence in [0,1].
package recovery

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/perlex/perl/lexer"
)

var log = commonlog.GetLogger("perlex.recovery")

const (
	DefaultConfidenceThreshold = 0.6
	DefaultCacheSize           = 256

	staticConfidence = 0.9
	hintConfidence   = 0.9
	cacheConfidence  = 1.0
)

type Config struct {
	EnableHeuristics      bool
	EnablePatternMatching bool
	EnableContextAnalysis bool
	ConfidenceThreshold   float64

	CacheSize int
	FileType  FileType
}

func DefaultConfig() Config {
	return Config{
		EnableHeuristics:      true,
		EnablePatternMatching: true,
		EnableContextAnalysis: true,
		ConfidenceThreshold:   DefaultConfidenceThreshold,
		CacheSize:             DefaultCacheSize,
	}
}

type Option func(*Engine)

// WithScorer sets the scorer used for context analysis. Without one the
// context step is skipped.
func WithScorer(s ContextScorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

type cacheEntry struct {
	delimiter string
	method    Method
}

// Engine resolves delimiter expressions. Its cache and hints belong to it
// alone; an Engine must not be shared between goroutines.
type Engine struct {
	cfg    Config
	scorer ContextScorer
	cache  *lru.Cache[string, cacheEntry]
	hints  map[string]string
}

func New(cfg Config, opts ...Option) *Engine {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, cacheEntry](cfg.CacheSize)
	e := &Engine{
		cfg:   cfg,
		cache: cache,
		hints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Reset forgets all cached answers. Hints are kept.
func (e *Engine) Reset() {
	e.cache.Purge()
}

// AddHint tells the engine that the variable name, given without sigil,
// holds delimiter.
func (e *Engine) AddHint(name, delimiter string) {
	e.hints[name] = delimiter
}

// Recover resolves the delimiter of the heredoc whose "<<" is at start.
// history holds the tokens before start.
func (e *Engine) Recover(input string, start int, history []lexer.Token) Result {
	exprStart := ExpressionStart(input, start)
	expr, end, ok := ParseDelimiterExpression(input, exprStart)
	res := Result{
		Method:     Fallback,
		ErrorNode:  true,
		Expression: expr,
		Start:      start,
		End:        end,
	}
	if !ok {
		res.End = exprStart
		res.Diagnostics = append(res.Diagnostics, "Missing delimiter expression")
		res.addAlternatives(ApplyHeuristics("")...)
		return res
	}
	res.Diagnostics = append(res.Diagnostics, "Attempting recovery for: "+expr)

	if entry, ok := e.cache.Get(expr); ok {
		res.accept(entry.delimiter, cacheConfidence, entry.method)
		res.Cached = true
		return res
	}

	if name, ok := variableName(expr); ok {
		if hint, ok := e.hints[name]; ok && hintConfidence >= e.cfg.ConfidenceThreshold {
			res.accept(hint, hintConfidence, UserHint)
			return res
		}
	}

	if e.cfg.EnableHeuristics {
		if v, ok := staticValue(expr, history); ok && staticConfidence >= e.cfg.ConfidenceThreshold {
			res.accept(v, staticConfidence, StaticAnalysis)
			e.remember(expr, res)
			return res
		}
	}

	if e.cfg.EnablePatternMatching {
		for _, c := range matchPatterns(expr) {
			if !res.Resolved && c.confidence >= e.cfg.ConfidenceThreshold {
				res.accept(c.delimiter, c.confidence, PatternMatch)
				continue
			}
			res.addAlternatives(c.delimiter)
		}
		if res.Resolved {
			res.addAlternatives(ApplyHeuristics(expr)...)
			e.remember(expr, res)
			return res
		}
	}

	if e.cfg.EnableContextAnalysis && e.scorer != nil {
		a := e.scorer.Analyze(expr, BuildContext(history, e.cfg.FileType))
		if a.Resolved && a.Confidence >= e.cfg.ConfidenceThreshold {
			res.accept(a.Delimiter, a.Confidence, ContextAnalysis)
			res.addAlternatives(a.Alternatives...)
			log.Debugf("context analysis resolved %s to %q at %.2f", expr, a.Delimiter, a.Confidence)
			return res
		}
		if a.Resolved {
			res.addAlternatives(a.Delimiter)
		}
		res.addAlternatives(a.Alternatives...)
		res.Diagnostics = append(res.Diagnostics, a.Warnings...)
	}

	res.addAlternatives(ApplyHeuristics(expr)...)
	log.Debugf("could not resolve heredoc delimiter %s", expr)
	return res
}

func (e *Engine) remember(expr string, res Result) {
	e.cache.Add(expr, cacheEntry{delimiter: res.Delimiter, method: res.Method})
	log.Debugf("resolved heredoc delimiter %s to %q by %s", expr, res.Delimiter, res.Method)
}

// GenerateErrorToken returns an error token spanning the unresolved heredoc
// at start. Its message lists the diagnostics and alternatives of res.
func GenerateErrorToken(input string, start int, res Result) lexer.Token {
	end := FindExpressionEnd(input, start)
	text := input[start:end]

	msg := "Unresolved dynamic heredoc delimiter: " + text
	if len(res.Diagnostics) > 0 {
		msg += " (" + strings.Join(res.Diagnostics, "; ") + ")"
	}
	if len(res.Alternatives) > 0 {
		quoted := make([]string, len(res.Alternatives))
		for i, alt := range res.Alternatives {
			quoted[i] = fmt.Sprintf("'%s'", alt)
		}
		msg += " - possible delimiters: " + strings.Join(quoted, ", ")
	}

	return lexer.Token{
		Kind: lexer.TokenError,
		Span: lexer.Span{
			Start: lexer.PositionAt(input, start),
			End:   lexer.PositionAt(input, end),
		},
		Literal: text,
		Message: msg,
	}
}
