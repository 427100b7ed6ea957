package recovery

import (
	"github.com/dhamidi/perlex/perl/lexer"
)

// Resolver lets a heredoc scanner use an Engine. It tokenizes the input up
// to each dynamic heredoc to build the history, and keeps every result for
// reporting. The scanner blanks the bodies of earlier heredocs, so they do
// not show up in the history.
//
// A dynamic heredoc whose delimiter is not accepted is rejected, so the
// scanner treats its "<<" as ordinary text and collects no body for it.
type Resolver struct {
	engine  *Engine
	results []Result
}

func NewResolver(engine *Engine) *Resolver {
	return &Resolver{engine: engine}
}

// ResetScan clears the engine cache and the recorded results.
func (r *Resolver) ResetScan() {
	r.engine.Reset()
	r.results = []Result{}
}

func (r *Resolver) ResolveDelimiter(input string, start int) (string, int, bool) {
	if r.results == nil {
		r.ResetScan()
	}

	history := lexer.Tokenize(input[:start])
	res := r.engine.Recover(input, start, history)
	r.results = append(r.results, res)
	if !res.Resolved {
		return "", 0, false
	}
	return res.Delimiter, res.End, true
}

// Results returns every recovery attempt of the current scan in order.
func (r *Resolver) Results() []Result {
	return r.results
}
