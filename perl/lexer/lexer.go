// Package lexer tokenizes Perl source after heredoc extraction. Placeholders
// left by the heredoc scanner become TokenHeredoc tokens that carry their
// declaration.
package lexer

import (
	"unicode"
	"unicode/utf8"

	"github.com/dhamidi/perlex/perl/heredoc"
)

type Option func(*Lexer)

func WithFile(path string) Option {
	return func(l *Lexer) {
		l.file = path
	}
}

// WithHeredocs resolves the placeholders of decls to heredoc tokens.
func WithHeredocs(decls []heredoc.Declaration) Option {
	return func(l *Lexer) {
		l.heredocs = heredoc.Placeholders(decls)
	}
}

// WithTrivia makes Tokenize keep whitespace, comments and POD.
func WithTrivia() Option {
	return func(l *Lexer) {
		l.trivia = true
	}
}

type Lexer struct {
	input  []byte
	file   string
	pos    int
	line   int
	column int

	heredocs map[string]*heredoc.Declaration
	trivia   bool
}

func NewLexer(input []byte, opts ...Option) *Lexer {
	l := &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		column: 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tokenize returns every token of input up to but not including EOF.
// Trivia is dropped unless WithTrivia is given.
func Tokenize(input string, opts ...Option) []Token {
	l := NewLexer([]byte(input), opts...)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Kind == TokenEOF {
			return tokens
		}
		if tok.IsTrivia() && !l.trivia {
			continue
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) Position() Position {
	return Position{
		File:   l.file,
		Offset: l.pos,
		Line:   l.line,
		Column: l.column,
	}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekN(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) advance() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

func (l *Lexer) NextToken() Token {
	startPos := l.Position()

	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Span: Span{Start: startPos, End: startPos}}
	}

	ch := l.peek()

	if ch == '#' {
		return l.scanComment(startPos)
	}
	if ch == '=' && l.column == 1 && isIdentStart(l.peekN(1)) {
		return l.scanPod(startPos)
	}

	if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' {
		return l.scanWhitespace(startPos)
	}

	if isIdentStart(ch) || (ch >= utf8.RuneSelf && l.wordRuneAt(l.pos)) {
		return l.scanIdent(startPos)
	}

	if isDigit(ch) {
		return l.scanNumber(startPos)
	}

	if ch == '"' || ch == '\'' || ch == '`' {
		return l.scanString(startPos)
	}

	if ch == '$' || ch == '@' || (ch == '%' && isIdentStart(l.peekN(1))) {
		return l.scanVariable(startPos)
	}

	return l.scanOperator(startPos)
}

func (l *Lexer) scanWhitespace(start Position) Token {
	for {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' {
			l.advance()
		} else {
			break
		}
	}
	return l.token(TokenWhitespace, start)
}

func (l *Lexer) scanComment(start Position) Token {
	for l.peek() != 0 && l.peek() != '\n' {
		l.advance()
	}
	return l.token(TokenComment, start)
}

// scanPod consumes a POD block up to and including its "=cut" line.
func (l *Lexer) scanPod(start Position) Token {
	for l.pos < len(l.input) {
		atLineStart := l.column == 1
		if atLineStart && l.hasPrefix("=cut") {
			for l.peek() != 0 && l.peek() != '\n' {
				l.advance()
			}
			break
		}
		l.advance()
	}
	return l.token(TokenPod, start)
}

func (l *Lexer) hasPrefix(s string) bool {
	return len(l.input)-l.pos >= len(s) && string(l.input[l.pos:l.pos+len(s)]) == s
}

func (l *Lexer) scanIdent(start Position) Token {
	l.scanName()
	tok := l.token(TokenIdent, start)
	if decl, ok := l.heredocs[tok.Literal]; ok {
		tok.Kind = TokenHeredoc
		tok.Heredoc = decl
	}
	return tok
}

// scanName consumes an identifier, including "::" package separators.
func (l *Lexer) scanName() {
	for {
		ch := l.peek()
		switch {
		case ch >= utf8.RuneSelf:
			r, size := utf8.DecodeRune(l.input[l.pos:])
			if !IsWordRune(r) {
				return
			}
			l.advanceN(size)
		case isIdentPart(ch):
			l.advance()
		case ch == ':' && l.peekN(1) == ':' && isIdentStart(l.peekN(2)):
			l.advanceN(2)
		default:
			return
		}
	}
}

func (l *Lexer) scanNumber(start Position) Token {
	if l.peek() == '0' && (l.peekN(1) == 'x' || l.peekN(1) == 'X') {
		l.advanceN(2)
		for isHexDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		return l.token(TokenNumber, start)
	}
	for isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekN(1)) {
		l.advance()
		for isDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
	}
	if (l.peek() == 'e' || l.peek() == 'E') && (isDigit(l.peekN(1)) || ((l.peekN(1) == '-' || l.peekN(1) == '+') && isDigit(l.peekN(2)))) {
		l.advanceN(2)
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	return l.token(TokenNumber, start)
}

// scanString consumes a quoted string, which may span lines. An unclosed
// string is an error token.
func (l *Lexer) scanString(start Position) Token {
	q := l.advance()
	for l.peek() != 0 && l.peek() != q {
		if l.peek() == '\\' {
			l.advance()
		}
		l.advance()
	}
	if l.peek() != q {
		tok := l.token(TokenError, start)
		tok.Message = "unterminated string"
		return tok
	}
	l.advance()
	return l.token(TokenString, start)
}

// scanVariable consumes a sigil and the name that follows it. A sigil
// followed by "{" or "$" is a dereference and is returned alone.
func (l *Lexer) scanVariable(start Position) Token {
	sigil := l.advance()
	ch := l.peek()
	switch {
	case ch == '{' || (ch == '$' && sigil != '$') || (ch == '$' && isIdentStart(l.peekN(1))):
		return l.token(TokenSigil, start)
	case isIdentStart(ch):
		l.scanName()
	case ch == ':' && l.peekN(1) == ':':
		l.advanceN(2)
		l.scanName()
	case sigil == '$' && ch == '#':
		// $#array
		l.advance()
		if isIdentStart(l.peek()) {
			l.scanName()
		}
	case sigil == '$' && isDigit(ch):
		for isDigit(l.peek()) {
			l.advance()
		}
	case sigil == '$' && isSpecialVar(ch):
		l.advance()
	case sigil == '@' && (ch == '_' || ch == '-' || ch == '+'):
		l.advance()
	default:
		return l.token(TokenSigil, start)
	}
	return l.token(TokenVariable, start)
}

func isSpecialVar(ch byte) bool {
	switch ch {
	case '_', '@', '!', '?', '$', '/', '\\', '.', '0', '&', '+', '^', '*', '-':
		return true
	}
	return false
}

func (l *Lexer) scanOperator(start Position) Token {
	ch := l.peek()

	switch ch {
	case '(':
		l.advance()
		return l.token(TokenLParen, start)
	case ')':
		l.advance()
		return l.token(TokenRParen, start)
	case '{':
		l.advance()
		return l.token(TokenLBrace, start)
	case '}':
		l.advance()
		return l.token(TokenRBrace, start)
	case '[':
		l.advance()
		return l.token(TokenLBracket, start)
	case ']':
		l.advance()
		return l.token(TokenRBracket, start)
	case ';':
		l.advance()
		return l.token(TokenSemicolon, start)
	case ',':
		l.advance()
		return l.token(TokenComma, start)
	case '\\':
		l.advance()
		return l.token(TokenBackslash, start)
	case '?':
		l.advance()
		return l.token(TokenQuestion, start)
	case ':':
		l.advance()
		return l.token(TokenColon, start)
	case '^':
		l.advance()
		return l.token(TokenBitXor, start)

	case '~':
		l.advance()
		return l.token(TokenBitNot, start)

	case '.':
		if l.peekN(1) == '.' {
			l.advanceN(2)
			if l.peek() == '.' {
				l.advance()
			}
			return l.token(TokenRange, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenDotAssign, start)
		}
		l.advance()
		return l.token(TokenDot, start)

	case '=':
		switch l.peekN(1) {
		case '=':
			l.advanceN(2)
			return l.token(TokenEQ, start)
		case '>':
			l.advanceN(2)
			return l.token(TokenFatComma, start)
		case '~':
			l.advanceN(2)
			return l.token(TokenMatch, start)
		}
		l.advance()
		return l.token(TokenAssign, start)

	case '!':
		switch l.peekN(1) {
		case '=':
			l.advanceN(2)
			return l.token(TokenNE, start)
		case '~':
			l.advanceN(2)
			return l.token(TokenNotMatch, start)
		}
		l.advance()
		return l.token(TokenNot, start)

	case '<':
		if l.peekN(1) == '=' && l.peekN(2) == '>' {
			l.advanceN(3)
			return l.token(TokenCompare, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenLE, start)
		}
		if l.peekN(1) == '<' {
			l.advanceN(2)
			return l.token(TokenShl, start)
		}
		l.advance()
		return l.token(TokenLT, start)

	case '>':
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenGE, start)
		}
		if l.peekN(1) == '>' {
			l.advanceN(2)
			return l.token(TokenShr, start)
		}
		l.advance()
		return l.token(TokenGT, start)

	case '&':
		if l.peekN(1) == '&' {
			if l.peekN(2) == '=' {
				l.advanceN(3)
				return l.token(TokenAndAssign, start)
			}
			l.advanceN(2)
			return l.token(TokenAnd, start)
		}
		l.advance()
		return l.token(TokenBitAnd, start)

	case '|':
		if l.peekN(1) == '|' {
			if l.peekN(2) == '=' {
				l.advanceN(3)
				return l.token(TokenOrAssign, start)
			}
			l.advanceN(2)
			return l.token(TokenOr, start)
		}
		l.advance()
		return l.token(TokenBitOr, start)

	case '/':
		if l.peekN(1) == '/' {
			if l.peekN(2) == '=' {
				l.advanceN(3)
				return l.token(TokenDefinedOrAssign, start)
			}
			l.advanceN(2)
			return l.token(TokenDefinedOr, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenSlashAssign, start)
		}
		l.advance()
		return l.token(TokenSlash, start)

	case '+':
		if l.peekN(1) == '+' {
			l.advanceN(2)
			return l.token(TokenIncrement, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenPlusAssign, start)
		}
		l.advance()
		return l.token(TokenPlus, start)

	case '-':
		if l.peekN(1) == '>' {
			l.advanceN(2)
			return l.token(TokenArrow, start)
		}
		if l.peekN(1) == '-' {
			l.advanceN(2)
			return l.token(TokenDecrement, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenMinusAssign, start)
		}
		l.advance()
		return l.token(TokenMinus, start)

	case '*':
		if l.peekN(1) == '*' {
			l.advanceN(2)
			return l.token(TokenPower, start)
		}
		if l.peekN(1) == '=' {
			l.advanceN(2)
			return l.token(TokenStarAssign, start)
		}
		l.advance()
		return l.token(TokenStar, start)

	case '%':
		l.advance()
		return l.token(TokenPercent, start)
	}

	if ch >= utf8.RuneSelf {
		_, size := utf8.DecodeRune(l.input[l.pos:])
		l.advanceN(size)
	} else {
		l.advance()
	}
	tok := l.token(TokenError, start)
	tok.Message = "unexpected character"
	return tok
}

func (l *Lexer) token(kind TokenKind, start Position) Token {
	end := l.Position()
	return Token{
		Kind:    kind,
		Span:    Span{Start: start, End: end},
		Literal: string(l.input[start.Offset:end.Offset]),
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func (l *Lexer) wordRuneAt(pos int) bool {
	r, _ := utf8.DecodeRune(l.input[pos:])
	return unicode.IsLetter(r)
}

// isIdentStart reports whether the ASCII byte ch can start an identifier.
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// IsWordRune reports whether r may appear in a bareword.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
