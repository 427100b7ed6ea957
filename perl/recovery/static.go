package recovery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dhamidi/perlex/perl/lexer"
)

var (
	scalarShape  = regexp.MustCompile(`^\$(\w+(?:::\w+)*)$`)
	elementShape = regexp.MustCompile(`^\$(\w+(?:::\w+)*)\[\s*(\d+)\s*\]$`)
	nameShape    = regexp.MustCompile(`^\w+(?:::\w+)*$`)
)

// variableName returns the scalar named by a simple, qualified or braced
// expression such as $x, $Foo::x, ${x} or ${${x}}.
func variableName(expr string) (string, bool) {
	if m := scalarShape.FindStringSubmatch(expr); m != nil {
		return m[1], true
	}
	if !strings.HasPrefix(expr, "${") {
		return "", false
	}
	inner := expr
	for strings.HasPrefix(inner, "${") && strings.HasSuffix(inner, "}") {
		inner = strings.TrimSpace(inner[2 : len(inner)-1])
	}
	inner = strings.TrimPrefix(inner, "$")
	if !nameShape.MatchString(inner) {
		return "", false
	}
	return inner, true
}

// staticValue resolves expr from literal assignments in history.
func staticValue(expr string, history []lexer.Token) (string, bool) {
	if m := elementShape.FindStringSubmatch(expr); m != nil {
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return "", false
		}
		return arrayElement(m[1], index, history)
	}

	name, ok := variableName(expr)
	if !ok {
		return "", false
	}
	if v, ok := scalarValue(name, history, 1); ok {
		return v, true
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return scalarValue(name[i+2:], history, 1)
	}
	return "", false
}

// scalarValue searches history backwards for "$name = ..." with a literal
// right-hand side. Up to hops assignments of another scalar are followed.
func scalarValue(name string, history []lexer.Token, hops int) (string, bool) {
	want := "$" + name
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind != lexer.TokenVariable || history[i].Literal != want {
			continue
		}
		if i+2 >= len(history) || history[i+1].Kind != lexer.TokenAssign {
			continue
		}
		rhs := history[i+2]
		if v, ok := rhs.StringValue(); ok {
			return v, true
		}
		if hops > 0 && rhs.Kind == lexer.TokenVariable && strings.HasPrefix(rhs.Literal, "$") {
			if v, ok := scalarValue(rhs.Literal[1:], history[:i], hops-1); ok {
				return v, true
			}
		}
	}
	return "", false
}

// arrayElement searches history backwards for "@name = (...)" or
// "@name = qw(...)" and returns element index when it is a literal.
func arrayElement(name string, index int, history []lexer.Token) (string, bool) {
	want := "@" + name
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind != lexer.TokenVariable || history[i].Literal != want {
			continue
		}
		if i+2 >= len(history) || history[i+1].Kind != lexer.TokenAssign {
			continue
		}
		j := i + 2
		qw := false
		if history[j].Kind == lexer.TokenIdent && history[j].Literal == "qw" {
			qw = true
			j++
		}
		if j >= len(history) || history[j].Kind != lexer.TokenLParen {
			continue
		}
		elems := listElements(history[j+1:], qw)
		if index < len(elems) && elems[index].ok {
			return elems[index].value, true
		}
	}
	return "", false
}

type element struct {
	value string
	ok    bool
}

// listElements reads the elements of a list up to its closing paren. In a
// qw list every word is an element.
func listElements(tokens []lexer.Token, qw bool) []element {
	var elems []element
	var current []lexer.Token
	depth := 0
	flush := func() {
		if len(current) == 1 {
			if v, ok := current[0].StringValue(); ok {
				elems = append(elems, element{value: v, ok: true})
				current = current[:0]
				return
			}
		}
		if len(current) > 0 {
			elems = append(elems, element{})
		}
		current = current[:0]
	}

	for _, tok := range tokens {
		if qw {
			if tok.Kind == lexer.TokenRParen {
				break
			}
			elems = append(elems, element{value: tok.Literal, ok: tok.Kind == lexer.TokenIdent || tok.Kind == lexer.TokenNumber})
			continue
		}
		switch tok.Kind {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			if depth == 0 {
				flush()
				return elems
			}
			depth--
		case lexer.TokenComma, lexer.TokenFatComma:
			if depth == 0 {
				flush()
				continue
			}
		}
		current = append(current, tok)
	}
	flush()
	return elems
}
