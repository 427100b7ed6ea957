package heredoc

import (
	"github.com/dhamidi/perlex/perl/statement"
)

// Integrate returns the placeholder text for the tokenizer. The text is not
// changed: a tokenizer resolves placeholders through Placeholders.
func Integrate(text string, decls []Declaration) string {
	return text
}

// Placeholders maps each placeholder to its declaration. The pointers refer
// into decls.
func Placeholders(decls []Declaration) map[string]*Declaration {
	m := make(map[string]*Declaration, len(decls))
	for i := range decls {
		m[decls[i].Placeholder] = &decls[i]
	}
	return m
}

type Result struct {
	Text         string
	Declarations []Declaration
	Contexts     []statement.HeredocContext
}

// Parse runs detection, collection and integration over input.
func Parse(input string, opts ...Option) Result {
	s := NewScanner(input, opts...)
	text, decls := s.Scan()
	NewCollector(input, opts...).Collect(decls)
	return Result{
		Text:         Integrate(text, decls),
		Declarations: decls,
		Contexts:     s.Contexts(),
	}
}
