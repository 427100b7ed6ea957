package lexer

import (
	"strings"

	"github.com/dhamidi/perlex/perl/heredoc"
)

type Position struct {
	File   string
	Offset int
	Line   int
	Column int
}

type Span struct {
	Start Position
	End   Position
}

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenError
	TokenWhitespace
	TokenComment
	TokenPod

	// Terms
	TokenIdent
	TokenVariable
	TokenSigil
	TokenNumber
	TokenString
	TokenHeredoc

	// Operators and punctuation
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenSemicolon
	TokenComma
	TokenFatComma
	TokenArrow
	TokenBackslash

	TokenAssign
	TokenDot
	TokenDotAssign
	TokenRange
	TokenEQ
	TokenNE
	TokenLT
	TokenLE
	TokenGT
	TokenGE
	TokenCompare
	TokenMatch
	TokenNotMatch
	TokenAnd
	TokenOr
	TokenDefinedOr
	TokenNot
	TokenBitAnd
	TokenBitOr
	TokenBitXor
	TokenBitNot
	TokenShl
	TokenShr
	TokenPlus
	TokenMinus
	TokenStar
	TokenPower
	TokenSlash
	TokenPercent
	TokenIncrement
	TokenDecrement
	TokenQuestion
	TokenColon
	TokenPlusAssign
	TokenMinusAssign
	TokenStarAssign
	TokenSlashAssign
	TokenAndAssign
	TokenOrAssign
	TokenDefinedOrAssign
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:        "EOF",
	TokenError:      "Error",
	TokenWhitespace: "Whitespace",
	TokenComment:    "Comment",
	TokenPod:        "Pod",

	TokenIdent:    "Ident",
	TokenVariable: "Variable",
	TokenSigil:    "Sigil",
	TokenNumber:   "Number",
	TokenString:   "String",
	TokenHeredoc:  "Heredoc",

	TokenLParen:    "LParen",
	TokenRParen:    "RParen",
	TokenLBrace:    "LBrace",
	TokenRBrace:    "RBrace",
	TokenLBracket:  "LBracket",
	TokenRBracket:  "RBracket",
	TokenSemicolon: "Semicolon",
	TokenComma:     "Comma",
	TokenFatComma:  "FatComma",
	TokenArrow:     "Arrow",
	TokenBackslash: "Backslash",

	TokenAssign:          "Assign",
	TokenDot:             "Dot",
	TokenDotAssign:       "DotAssign",
	TokenRange:           "Range",
	TokenEQ:              "EQ",
	TokenNE:              "NE",
	TokenLT:              "LT",
	TokenLE:              "LE",
	TokenGT:              "GT",
	TokenGE:              "GE",
	TokenCompare:         "Compare",
	TokenMatch:           "Match",
	TokenNotMatch:        "NotMatch",
	TokenAnd:             "And",
	TokenOr:              "Or",
	TokenDefinedOr:       "DefinedOr",
	TokenNot:             "Not",
	TokenBitAnd:          "BitAnd",
	TokenBitOr:           "BitOr",
	TokenBitXor:          "BitXor",
	TokenBitNot:          "BitNot",
	TokenShl:             "Shl",
	TokenShr:             "Shr",
	TokenPlus:            "Plus",
	TokenMinus:           "Minus",
	TokenStar:            "Star",
	TokenPower:           "Power",
	TokenSlash:           "Slash",
	TokenPercent:         "Percent",
	TokenIncrement:       "Increment",
	TokenDecrement:       "Decrement",
	TokenQuestion:        "Question",
	TokenColon:           "Colon",
	TokenPlusAssign:      "PlusAssign",
	TokenMinusAssign:     "MinusAssign",
	TokenStarAssign:      "StarAssign",
	TokenSlashAssign:     "SlashAssign",
	TokenAndAssign:       "AndAssign",
	TokenOrAssign:        "OrAssign",
	TokenDefinedOrAssign: "DefinedOrAssign",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

type Token struct {
	Kind    TokenKind
	Span    Span
	Literal string

	// Message explains a TokenError.
	Message string
	// Heredoc is the declaration behind a TokenHeredoc.
	Heredoc *heredoc.Declaration
}

// IsTrivia reports whether the token carries no code.
func (t Token) IsTrivia() bool {
	switch t.Kind {
	case TokenWhitespace, TokenComment, TokenPod:
		return true
	}
	return false
}

// StringValue returns the value of a string literal. ok is false when the
// token is not a string or when a double-quoted or backtick string
// interpolates variables, since its value is then unknown.
func (t Token) StringValue() (value string, ok bool) {
	if t.Kind != TokenString || len(t.Literal) < 2 {
		return "", false
	}
	q := t.Literal[0]
	body := t.Literal[1 : len(t.Literal)-1]
	if t.Literal[len(t.Literal)-1] != q {
		return "", false
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch == '\\' && i+1 < len(body) {
			next := body[i+1]
			if q == '\'' && next != '\\' && next != '\'' {
				b.WriteByte(ch)
				continue
			}
			i++
			b.WriteByte(unescape(next))
			continue
		}
		if q != '\'' && (ch == '$' || ch == '@') {
			return "", false
		}
		b.WriteByte(ch)
	}
	return b.String(), true
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	}
	return ch
}

// PositionAt returns the position of a byte offset in input. Columns count
// bytes from 1.
func PositionAt(input string, offset int) Position {
	offset = max(0, min(offset, len(input)))
	lineStart := strings.LastIndexByte(input[:offset], '\n') + 1
	return Position{
		Offset: offset,
		Line:   1 + strings.Count(input[:offset], "\n"),
		Column: offset - lineStart + 1,
	}
}
