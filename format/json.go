package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/perlex/perl/document"
	"github.com/dhamidi/perlex/perl/lexer"
)

type JSONEncoder struct {
	w      io.Writer
	report *document.Report
	tokens bool
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

// IncludeTokens makes the encoder emit the token stream too.
func (e *JSONEncoder) IncludeTokens() *JSONEncoder {
	e.tokens = true
	return e
}

func (e *JSONEncoder) Encode(report *document.Report) error {
	e.report = report
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	data := e.buildReportData()
	return json.MarshalIndent(data, "", "  ")
}

type jsonReport struct {
	File        string           `json:"file,omitempty"`
	Text        string           `json:"text"`
	Heredocs    []jsonHeredoc    `json:"heredocs"`
	Contexts    []jsonContext    `json:"contexts,omitempty"`
	Recoveries  []jsonRecovery   `json:"recoveries,omitempty"`
	Diagnostics []jsonDiagnostic `json:"diagnostics,omitempty"`
	Tokens      []jsonToken      `json:"tokens,omitempty"`
}

type jsonHeredoc struct {
	Terminator   string `json:"terminator"`
	Placeholder  string `json:"placeholder"`
	Line         int    `json:"line"`
	Pos          int    `json:"pos"`
	End          int    `json:"end"`
	Interpolated bool   `json:"interpolated"`
	Indented     bool   `json:"indented"`
	Collected    bool   `json:"collected"`
	Content      string `json:"content"`
	Expression   string `json:"expression,omitempty"`
}

type jsonContext struct {
	Line         int    `json:"line"`
	Depth        int    `json:"depth"`
	Terminator   string `json:"terminator"`
	StatementEnd int    `json:"statementEnd"`
	ContentStart int    `json:"contentStart"`
}

type jsonRecovery struct {
	Expression   string   `json:"expression"`
	Delimiter    string   `json:"delimiter,omitempty"`
	Resolved     bool     `json:"resolved"`
	Confidence   float64  `json:"confidence"`
	Method       string   `json:"method"`
	Cached       bool     `json:"cached,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	Diagnostics  []string `json:"diagnostics,omitempty"`
}

type jsonDiagnostic struct {
	Code     string       `json:"code"`
	Severity string       `json:"severity"`
	Message  string       `json:"message"`
	Start    jsonPosition `json:"start"`
	End      jsonPosition `json:"end"`
}

type jsonPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

type jsonToken struct {
	Kind    string       `json:"kind"`
	Literal string       `json:"literal"`
	Start   jsonPosition `json:"start"`
	Content *string      `json:"content,omitempty"`
}

func (e *JSONEncoder) buildReportData() jsonReport {
	r := e.report
	data := jsonReport{
		File:        r.File,
		Text:        r.Text,
		Heredocs:    make([]jsonHeredoc, len(r.Declarations)),
		Diagnostics: buildDiagnostics(r.Diagnostics),
	}
	for i, d := range r.Declarations {
		data.Heredocs[i] = jsonHeredoc{
			Terminator:   d.Terminator,
			Placeholder:  d.Placeholder,
			Line:         d.Line,
			Pos:          d.Pos,
			End:          d.End,
			Interpolated: d.Interpolated,
			Indented:     d.Indented,
			Collected:    d.Collected,
			Content:      d.Content,
			Expression:   d.Expression,
		}
	}
	for _, c := range r.Contexts {
		data.Contexts = append(data.Contexts, jsonContext{
			Line:         c.Line,
			Depth:        c.Depth,
			Terminator:   c.Terminator,
			StatementEnd: c.StatementEnd,
			ContentStart: c.ContentStart,
		})
	}
	for _, res := range r.Recoveries {
		data.Recoveries = append(data.Recoveries, jsonRecovery{
			Expression:   res.Expression,
			Delimiter:    res.Delimiter,
			Resolved:     res.Resolved,
			Confidence:   res.Confidence,
			Method:       res.Method.String(),
			Cached:       res.Cached,
			Alternatives: res.Alternatives,
			Diagnostics:  res.Diagnostics,
		})
	}
	if e.tokens {
		data.Tokens = buildTokens(r.Tokens)
	}
	return data
}

func buildDiagnostics(diags []document.Diagnostic) []jsonDiagnostic {
	var result []jsonDiagnostic
	for _, d := range diags {
		result = append(result, jsonDiagnostic{
			Code:     d.Code,
			Severity: d.Severity.String(),
			Message:  d.Message,
			Start:    position(d.Start),
			End:      position(d.End),
		})
	}
	return result
}

func buildTokens(tokens []lexer.Token) []jsonToken {
	result := make([]jsonToken, len(tokens))
	for i, tok := range tokens {
		result[i] = jsonToken{
			Kind:    tok.Kind.String(),
			Literal: tok.Literal,
			Start:   position(tok.Span.Start),
		}
		if tok.Heredoc != nil {
			content := tok.Heredoc.Content
			result[i].Content = &content
		}
	}
	return result
}

func position(p lexer.Position) jsonPosition {
	return jsonPosition{Line: p.Line, Column: p.Column, Offset: p.Offset}
}
