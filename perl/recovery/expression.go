package recovery

// ParseDelimiterExpression bounds the delimiter expression starting at
// start. It returns the expression text and the offset just past it, or
// false when the expression is empty.
//
// Brackets of all three kinds nest. Outside brackets the expression stops at
// ';', a newline or blank, except that a blank does not end a method call
// chain until its arrow has been followed by a name. One-character special
// variables such as $_ and $@ end right after their second byte.
func ParseDelimiterExpression(input string, start int) (string, int, bool) {
	if start < 0 || start >= len(input) {
		return "", start, false
	}

	pos := start
	braces, brackets, parens := 0, 0, 0
	inMethodCall := false

	if ch := input[pos]; ch == '$' || ch == '@' || ch == '%' {
		pos++
		if pos < len(input) {
			switch input[pos] {
			case '_', '@', '!', '?', '$', '*', '#', '[', ']':
				pos++
				return input[start:pos], pos, true
			}
		}
	}

scan:
	for pos < len(input) {
		nested := braces > 0 || brackets > 0 || parens > 0
		switch ch := input[pos]; ch {
		case '{':
			braces++
		case '}':
			if braces == 0 && !nested {
				break scan
			}
			if braces > 0 {
				braces--
			}
		case '[':
			brackets++
		case ']':
			if brackets == 0 && !nested {
				break scan
			}
			if brackets > 0 {
				brackets--
			}
		case '(':
			parens++
		case ')':
			if parens == 0 && !nested {
				break scan
			}
			if parens > 0 {
				parens--
			}
		case '-':
			if pos+1 < len(input) && input[pos+1] == '>' {
				inMethodCall = true
				pos++
			}
		case ':':
			if pos+1 < len(input) && input[pos+1] == ':' {
				pos++
			}
		case ';', '\n', ' ', '\t':
			if !inMethodCall {
				if !nested {
					break scan
				}
				break
			}
			if ch != '\t' {
				inMethodCall = false
				if !nested {
					break scan
				}
			}
		}
		pos++
	}

	if pos == start {
		return "", pos, false
	}
	return input[start:pos], pos, true
}

// ExpressionStart returns the offset of the delimiter expression of the
// heredoc whose "<<" is at start, skipping "<<", an optional '~' and blanks.
func ExpressionStart(input string, start int) int {
	pos := start
	if pos+1 < len(input) && input[pos] == '<' && input[pos+1] == '<' {
		pos += 2
	}
	if pos < len(input) && input[pos] == '~' {
		pos++
	}
	for pos < len(input) && (input[pos] == ' ' || input[pos] == '\t') {
		pos++
	}
	return pos
}

// FindExpressionEnd returns the offset just past the delimiter expression of
// the heredoc whose "<<" is at start.
func FindExpressionEnd(input string, start int) int {
	pos := ExpressionStart(input, start)
	if _, end, ok := ParseDelimiterExpression(input, pos); ok {
		return end
	}
	return pos
}
