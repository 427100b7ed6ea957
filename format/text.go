package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhamidi/perlex/perl/document"
	"github.com/dhamidi/perlex/perl/lexer"
)

// TextEncoder writes one tab-separated line per heredoc, recovery and
// diagnostic.
type TextEncoder struct {
	w      io.Writer
	report *document.Report
}

func NewTextEncoder(w io.Writer) *TextEncoder {
	return &TextEncoder{w: w}
}

func (e *TextEncoder) Encode(report *document.Report) error {
	e.report = report
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *TextEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	r := e.report

	for _, d := range r.Declarations {
		fmt.Fprintf(&sb, "heredoc\t%s\t%d\t%s\t%s\t%s\n",
			d.Placeholder,
			d.Line,
			d.Terminator,
			heredocFlagsStr(d.Interpolated, d.Indented, d.Dynamic, d.Collected),
			strconv.Quote(d.Content),
		)
	}

	for _, res := range r.Recoveries {
		delimiter := res.Delimiter
		if delimiter == "" {
			delimiter = "-"
		}
		fmt.Fprintf(&sb, "recovery\t%s\t%s\t%.2f\t%s\t%s\n",
			res.Expression,
			delimiter,
			res.Confidence,
			res.Method,
			listStr(res.Alternatives),
		)
	}

	for _, d := range r.Diagnostics {
		fmt.Fprintf(&sb, "%s:%d:%d: %s: %s [%s]\n",
			fileStr(d.Start.File),
			d.Start.Line,
			d.Start.Column,
			d.Severity,
			d.Message,
			d.Code,
		)
	}

	return []byte(sb.String()), nil
}

// EncodeTokens writes one line per token. Heredoc tokens are followed by
// their quoted content.
func EncodeTokens(w io.Writer, tokens []lexer.Token) error {
	var sb strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&sb, "%d:%d\t%s\t%s", tok.Span.Start.Line, tok.Span.Start.Column, tok.Kind, strconv.Quote(tok.Literal))
		if tok.Heredoc != nil {
			fmt.Fprintf(&sb, "\t%s", strconv.Quote(tok.Heredoc.Content))
		}
		if tok.Message != "" {
			fmt.Fprintf(&sb, "\t%s", tok.Message)
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func heredocFlagsStr(interpolated, indented, dynamic, collected bool) string {
	var flags []string
	if interpolated {
		flags = append(flags, "interpolated")
	}
	if indented {
		flags = append(flags, "indented")
	}
	if dynamic {
		flags = append(flags, "dynamic")
	}
	if !collected {
		flags = append(flags, "unterminated")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func listStr(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func fileStr(file string) string {
	if file == "" {
		return "<stdin>"
	}
	return file
}
