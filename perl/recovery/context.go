package recovery

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/dhamidi/perlex/perl/lexer"
)

type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeScript
	FileTypeModule
	FileTypeTest
	FileTypeDocumentation
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown:       "Unknown",
	FileTypeScript:        "Script",
	FileTypeModule:        "Module",
	FileTypeTest:          "Test",
	FileTypeDocumentation: "Documentation",
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// FileTypeFromPath guesses the kind of Perl file from its extension.
func FileTypeFromPath(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pm":
		return FileTypeModule
	case ".t":
		return FileTypeTest
	case ".pod":
		return FileTypeDocumentation
	case ".pl", ".cgi", ".psgi":
		return FileTypeScript
	}
	return FileTypeUnknown
}

// ParseContext is what the tokens before a heredoc say about its
// surroundings.
type ParseContext struct {
	Namespace string
	Imports   []string
	InRoutine bool
	// Routine is the innermost enclosing sub, "__ANON__" for anonymous
	// ones.
	Routine  string
	FileType FileType
}

// Analysis is a ContextScorer's verdict on a delimiter expression.
type Analysis struct {
	Delimiter    string
	Resolved     bool
	Confidence   float64
	Alternatives []string
	Warnings     []string
	Strategy     string
}

// ContextScorer guesses the value of a delimiter expression from context.
type ContextScorer interface {
	Analyze(expression string, ctx ParseContext) Analysis
}

type routine struct {
	name  string
	depth int
}

// BuildContext reads package, use and sub declarations from history.
func BuildContext(history []lexer.Token, fileType FileType) ParseContext {
	ctx := ParseContext{Namespace: "main", FileType: fileType}

	var routines []routine
	pending := ""
	depth := 0
	for i, tok := range history {
		switch tok.Kind {
		case lexer.TokenIdent:
			next := nextIdent(history, i)
			switch tok.Literal {
			case "package":
				if next != "" {
					ctx.Namespace = next
				}
			case "use", "require":
				if next != "" && !slices.Contains(ctx.Imports, next) {
					ctx.Imports = append(ctx.Imports, next)
				}
			case "sub":
				pending = next
				if pending == "" {
					pending = "__ANON__"
				}
			}
		case lexer.TokenSemicolon:
			// A forward declaration has no body.
			pending = ""
		case lexer.TokenLBrace:
			depth++
			if pending != "" {
				routines = append(routines, routine{name: pending, depth: depth})
				pending = ""
			}
		case lexer.TokenRBrace:
			if n := len(routines); n > 0 && routines[n-1].depth == depth {
				routines = routines[:n-1]
			}
			if depth > 0 {
				depth--
			}
		}
	}

	if n := len(routines); n > 0 {
		ctx.InRoutine = true
		ctx.Routine = routines[n-1].name
	}
	return ctx
}

func nextIdent(history []lexer.Token, i int) string {
	if i+1 < len(history) && history[i+1].Kind == lexer.TokenIdent {
		return history[i+1].Literal
	}
	return ""
}
