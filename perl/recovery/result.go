package recovery

import (
	"fmt"
	"math"
)

// Method records which step of the pipeline produced a result.
type Method int

const (
	StaticAnalysis Method = iota
	PatternMatch
	ContextAnalysis
	UserHint
	Fallback
)

var methodNames = map[Method]string{
	StaticAnalysis:  "StaticAnalysis",
	PatternMatch:    "PatternMatch",
	ContextAnalysis: "ContextAnalysis",
	UserHint:        "UserHint",
	Fallback:        "Fallback",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "Unknown"
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Result is the outcome of one recovery attempt. Delimiter is only
// meaningful when Resolved is true, and ErrorNode is true unless a
// delimiter was accepted.
type Result struct {
	Delimiter    string
	Resolved     bool
	Confidence   float64
	Method       Method
	Alternatives []string
	Diagnostics  []string
	ErrorNode    bool

	// Expression is the delimiter expression without "<<". Start is the
	// offset of "<<" and End the offset just past the expression.
	Expression string
	Start      int
	End        int
	Cached     bool
}

func (r *Result) accept(delimiter string, confidence float64, method Method) {
	r.Delimiter = delimiter
	r.Resolved = true
	r.Confidence = confidence
	r.Method = method
	r.ErrorNode = false
}

func (r *Result) addAlternatives(alts ...string) {
	for _, alt := range alts {
		if alt == "" || (r.Resolved && alt == r.Delimiter) {
			continue
		}
		dup := false
		for _, have := range r.Alternatives {
			if have == alt {
				dup = true
				break
			}
		}
		if !dup {
			r.Alternatives = append(r.Alternatives, alt)
		}
	}
}

// Node describes the result the way the default scorer reports an analysis.
func (r Result) Node() DynamicNode {
	strategy := "Guessing from common patterns"
	if r.Resolved {
		strategy = "Resolved via " + r.Method.String()
	}
	return DynamicNode{
		Expression: r.Expression,
		Analysis: Analysis{
			Delimiter:    r.Delimiter,
			Resolved:     r.Resolved,
			Confidence:   r.Confidence,
			Alternatives: r.Alternatives,
			Warnings:     r.Diagnostics,
			Strategy:     strategy,
		},
	}
}

// DynamicNode pairs a delimiter expression with its analysis.
type DynamicNode struct {
	Expression string
	Analysis   Analysis
}

// DiagnosticMessage renders the node for a diagnostic, for example
// "Dynamic heredoc delimiter '$x' resolved to 'EOF' (confidence: 90%). Resolved via StaticAnalysis".
func (n DynamicNode) DiagnosticMessage() string {
	outcome := "could not be resolved"
	if n.Analysis.Resolved {
		outcome = fmt.Sprintf("resolved to '%s' (confidence: %d%%)", n.Analysis.Delimiter, int(math.Round(n.Analysis.Confidence*100)))
	}
	return fmt.Sprintf("Dynamic heredoc delimiter '%s' %s. %s", n.Expression, outcome, n.Analysis.Strategy)
}
