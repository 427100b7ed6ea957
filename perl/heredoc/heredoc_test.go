package heredoc

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dhamidi/perlex/perl/statement"
)

func TestParseBasic(t *testing.T) {
	input := "my $text = <<'EOF';\nHello, World!\nThis is a heredoc.\nEOF\nprint $text;"

	res := Parse(input)

	want := []Declaration{{
		Terminator:   "EOF",
		Pos:          11,
		End:          18,
		Line:         1,
		Interpolated: false,
		Placeholder:  "__HEREDOC_1__",
		Content:      "Hello, World!\nThis is a heredoc.",
		Collected:    true,
	}}
	if diff := cmp.Diff(want, res.Declarations); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("my $text = __HEREDOC_1__;\nprint $text;", res.Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMultiple(t *testing.T) {
	input := "print <<A, <<B;\nContent A\nA\nContent B\nB\nprint \"done\";"

	res := Parse(input)

	want := []Declaration{
		{Terminator: "A", Pos: 6, End: 9, Line: 1, Interpolated: true, Placeholder: "__HEREDOC_1__", Content: "Content A", Collected: true},
		{Terminator: "B", Pos: 11, End: 14, Line: 1, Interpolated: true, Placeholder: "__HEREDOC_2__", Content: "Content B", Collected: true},
	}
	if diff := cmp.Diff(want, res.Declarations); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("print __HEREDOC_1__, __HEREDOC_2__;\nprint \"done\";", res.Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestParseQuotingForms(t *testing.T) {
	tests := []struct {
		name         string
		decl         string
		terminator   string
		interpolated bool
		indented     bool
	}{
		{"bareword", "<<END", "END", true, false},
		{"single quoted", "<<'END'", "END", false, false},
		{"double quoted", `<<"END"`, "END", true, false},
		{"backtick", "<<`END`", "END", true, false},
		{"space before quote", `<< "END"`, "END", true, false},
		{"indented bareword", "<<~END", "END", true, true},
		{"indented single quoted", "<<~'END'", "END", false, true},
		{"quoted with space", `<<"THE END"`, "THE END", true, false},
		{"unicode bareword", "<<FIN_é", "FIN_é", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "print " + tt.decl + ";\nbody\n" + tt.terminator + "\n"
			res := Parse(input)
			if len(res.Declarations) != 1 {
				t.Fatalf("len(Declarations) = %d, want 1", len(res.Declarations))
			}
			d := res.Declarations[0]
			if d.Terminator != tt.terminator {
				t.Errorf("Terminator = %q, want %q", d.Terminator, tt.terminator)
			}
			if d.Interpolated != tt.interpolated {
				t.Errorf("Interpolated = %v, want %v", d.Interpolated, tt.interpolated)
			}
			if d.Indented != tt.indented {
				t.Errorf("Indented = %v, want %v", d.Indented, tt.indented)
			}
			if d.End != len("print ")+len(tt.decl) {
				t.Errorf("End = %d, want %d", d.End, len("print ")+len(tt.decl))
			}
			if d.Content != "body" || !d.Collected {
				t.Errorf("Content = %q (collected %v), want %q", d.Content, d.Collected, "body")
			}
			if res.Text != "print __HEREDOC_1__;\n" {
				t.Errorf("Text = %q", res.Text)
			}
		})
	}
}

func TestParseNotHeredoc(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed quote", "print <<'EOF\nbody\nEOF\n"},
		{"operator at end", "my $x = 1 <<"},
		{"followed by semicolon", "print <<;\n"},
		{"dynamic without resolver", "print <<$end;\nbody\nEND\n"},
		{"parenthesized without resolver", "print <<($a . $b);\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			if len(res.Declarations) != 0 {
				t.Errorf("Declarations = %+v, want none", res.Declarations)
			}
			if res.Text != tt.input {
				t.Errorf("Text = %q, want input unchanged", res.Text)
			}
		})
	}
}

func TestParseIndented(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "common indent",
			input: "my $text = <<~'EOF';\n        Indented content\n        More content\n        EOF\nprint $text;",
			want:  "Indented content\nMore content",
		},
		{
			name:  "relative indent kept",
			input: "my $x = <<~EOT;\n    line one\n      line two\n\n    EOT\n",
			want:  "line one\n  line two\n",
		},
		{
			name:  "in block",
			input: "if (1) {\n    my $text = <<~'EOF';\n        Indented content\n        More content\n        EOF\n}",
			want:  "Indented content\nMore content",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			if len(res.Declarations) != 1 {
				t.Fatalf("len(Declarations) = %d, want 1", len(res.Declarations))
			}
			d := res.Declarations[0]
			if !d.Indented || !d.Collected {
				t.Fatalf("Indented = %v, Collected = %v", d.Indented, d.Collected)
			}
			if diff := cmp.Diff(tt.want, d.Content); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndentedTerminatorMustMatchExactlyWhenPlain(t *testing.T) {
	input := "print <<EOF;\nbody\n  EOF\nEOF\n"
	res := Parse(input)
	if diff := cmp.Diff("body\n  EOF", res.Declarations[0].Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{"empty", nil, []string{}},
		{"no indent", []string{"a", "  b"}, []string{"a", "  b"}},
		{"tabs", []string{"\t\ta", "\tb"}, []string{"\ta", "b"}},
		{"blank lines ignored", []string{"    a", "", "  ", "      b"}, []string{"a", "", "", "  b"}},
		{"long blank line keeps tail", []string{"  a", "     "}, []string{"a", "   "}},
		{"all blank", []string{"  ", ""}, []string{"  ", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedent(tt.lines)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Dedent mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(got, Dedent(got)); diff != "" {
				t.Errorf("Dedent is not idempotent (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestMultipleHeredocOrdering(t *testing.T) {
	input := "print <<A, <<B;\nfirst\nA\nsecond\nthird\nB\n"
	res := Parse(input)

	a, b := res.Declarations[0], res.Declarations[1]
	if a.Content != "first" {
		t.Errorf("A content = %q, want %q", a.Content, "first")
	}
	// B starts strictly after A's terminator line.
	if b.Content != "second\nthird" {
		t.Errorf("B content = %q, want %q", b.Content, "second\nthird")
	}
}

func TestUnterminated(t *testing.T) {
	input := "my $x = <<EOF;\nno end here\nstill going\n"

	s := NewScanner(input)
	text, decls := s.Scan()
	if diff := cmp.Diff([]int{2, 3}, s.SkipLines()); diff != "" {
		t.Errorf("skip lines mismatch (-want +got):\n%s", diff)
	}
	if text != "my $x = __HEREDOC_1__;\n" {
		t.Errorf("text = %q", text)
	}

	NewCollector(input).Collect(decls)
	if decls[0].Collected || decls[0].Content != "" {
		t.Errorf("unterminated heredoc collected %q", decls[0].Content)
	}
}

func TestUnterminatedLargeInput(t *testing.T) {
	input := "print <<NEVER;\n" + strings.Repeat("filler line\n", 50000)
	res := Parse(input)
	if len(res.Declarations) != 1 {
		t.Fatalf("len(Declarations) = %d, want 1", len(res.Declarations))
	}
	if res.Declarations[0].Collected {
		t.Error("unterminated heredoc was collected")
	}
	if res.Text != "print __HEREDOC_1__;\n" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestWellFormedCount(t *testing.T) {
	const n = 25
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "my $h%d = <<T%d;\nbody %d\nT%d\n", i, i, i, i)
	}

	res := Parse(b.String())
	if len(res.Declarations) != n {
		t.Fatalf("len(Declarations) = %d, want %d", len(res.Declarations), n)
	}
	seen := make(map[string]bool)
	for i, d := range res.Declarations {
		if !d.Collected {
			t.Errorf("declaration %d not collected", i)
		}
		if want := fmt.Sprintf("body %d", i); d.Content != want {
			t.Errorf("declaration %d content = %q, want %q", i, d.Content, want)
		}
		if seen[d.Placeholder] {
			t.Errorf("duplicate placeholder %s", d.Placeholder)
		}
		seen[d.Placeholder] = true
		if c := strings.Count(res.Text, d.Placeholder); c != 1 {
			t.Errorf("placeholder %s occurs %d times", d.Placeholder, c)
		}
	}
	if c := strings.Count(res.Text, "__HEREDOC_"); c != n {
		t.Errorf("placeholder occurrences = %d, want %d", c, n)
	}
}

func TestDepthLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 110; i++ {
		fmt.Fprintf(&b, "my $h%d = <<EOF%d;\nEOF%d\n", i, i, i)
	}

	s := NewScanner(b.String())
	_, decls := s.Scan()
	if len(decls) != MaxDepth {
		t.Errorf("len(decls) = %d, want %d", len(decls), MaxDepth)
	}

	_, decls = NewScanner(b.String(), WithMaxDepth(3)).Scan()
	if len(decls) != 3 {
		t.Errorf("len(decls) with max depth 3 = %d, want 3", len(decls))
	}
}

func TestDepthLimitLeavesTextUntouched(t *testing.T) {
	input := "print <<A;\na\nA\nprint <<B;\nb\nB\n"
	res := Parse(input, WithMaxDepth(1))
	want := "print __HEREDOC_1__;\nprint <<B;\nb\nB\n"
	if diff := cmp.Diff(want, res.Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipLinesAndContexts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		skips    []int
		contexts []statement.HeredocContext
	}{
		{
			name:     "top level",
			input:    "my $x = <<EOF;\nline 1\nline 2\nEOF\nsay $x;\n",
			skips:    []int{2, 3, 4},
			contexts: []statement.HeredocContext{{Line: 1, Depth: 0, Terminator: "EOF", StatementEnd: 1, ContentStart: 2}},
		},
		{
			name:     "inside if block",
			input:    "if ($condition) {\n    my $x = <<EOF;\nline 1\nline 2\nEOF\n    say $x;\n}\n",
			skips:    []int{3, 4, 5},
			contexts: []statement.HeredocContext{{Line: 2, Depth: 1, Terminator: "EOF", StatementEnd: 2, ContentStart: 3}},
		},
		{
			name:     "nested blocks",
			input:    "if ($x) {\n    while ($y) {\n        my $data = <<DATA;\ncontent\nDATA\n    }\n}\n",
			skips:    []int{4, 5},
			contexts: []statement.HeredocContext{{Line: 3, Depth: 2, Terminator: "DATA", StatementEnd: 3, ContentStart: 4}},
		},
		{
			name:  "two in one block",
			input: "if ($condition) {\n    my $x = <<EOF1;\ncontent 1\nEOF1\n    my $y = <<EOF2;\ncontent 2\nEOF2\n}\n",
			skips: []int{3, 4, 6, 7},
			contexts: []statement.HeredocContext{
				{Line: 2, Depth: 1, Terminator: "EOF1", StatementEnd: 2, ContentStart: 3},
				{Line: 5, Depth: 1, Terminator: "EOF2", StatementEnd: 5, ContentStart: 6},
			},
		},
		{
			name:     "statement spans lines",
			input:    "my %h = (\n    key => <<'EOF'\n);\ncontent\nEOF\n",
			skips:    []int{4, 5},
			contexts: []statement.HeredocContext{{Line: 2, Depth: 0, Terminator: "EOF", StatementEnd: 3, ContentStart: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(tt.input)
			s.Scan()
			if diff := cmp.Diff(tt.skips, s.SkipLines()); diff != "" {
				t.Errorf("skip lines mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.contexts, s.Contexts()); diff != "" {
				t.Errorf("contexts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatementSpanningLines(t *testing.T) {
	input := "my %h = (\n    key => <<'EOF'\n);\ncontent\nEOF\nprint 1;\n"
	res := Parse(input)
	if diff := cmp.Diff("my %h = (\n    key => __HEREDOC_1__\n);\nprint 1;\n", res.Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
	if res.Declarations[0].Content != "content" {
		t.Errorf("Content = %q", res.Declarations[0].Content)
	}
}

func TestCRLF(t *testing.T) {
	input := "print <<EOF;\r\nline\r\nEOF\r\nprint 2;\r\n"
	res := Parse(input)
	if res.Declarations[0].Content != "line" {
		t.Errorf("Content = %q, want %q", res.Declarations[0].Content, "line")
	}
	if res.Text != "print __HEREDOC_1__;\r\nprint 2;\r\n" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestCustomOracle(t *testing.T) {
	input := "print <<EOF\n  . 'tail';\nbody\nEOF\n"
	calls := 0
	oracle := OracleFunc(func(source string, line int) int {
		calls++
		return 2
	})
	res := Parse(input, WithOracle(oracle))
	if res.Declarations[0].Content != "body" {
		t.Errorf("Content = %q, want %q", res.Declarations[0].Content, "body")
	}
	// Once while marking bodies, once per group while collecting.
	if calls != 2 {
		t.Errorf("oracle calls = %d, want 2", calls)
	}
}

type stubResolver struct {
	delimiter string
	ok        bool
	starts    []int
	inputs    []string
	resets    int
}

func (r *stubResolver) ResetScan() {
	r.resets++
}

func (r *stubResolver) ResolveDelimiter(input string, start int) (string, int, bool) {
	r.starts = append(r.starts, start)
	r.inputs = append(r.inputs, input)
	end := start + 2
	for end < len(input) && input[end] != ';' {
		end++
	}
	return r.delimiter, end, r.ok
}

func TestDynamicDelimiter(t *testing.T) {
	input := "my $marker = \"STOP\";\nprint <<$marker;\nhello\nSTOP\n"
	r := &stubResolver{delimiter: "STOP", ok: true}

	res := Parse(input, WithResolver(r))
	if diff := cmp.Diff([]int{27}, r.starts); diff != "" {
		t.Errorf("resolver starts mismatch (-want +got):\n%s", diff)
	}
	want := []Declaration{{
		Terminator:   "STOP",
		Pos:          27,
		End:          36,
		Line:         2,
		Interpolated: true,
		Placeholder:  "__HEREDOC_1__",
		Content:      "hello",
		Collected:    true,
		Dynamic:      true,
		Expression:   "$marker",
	}}
	if diff := cmp.Diff(want, res.Declarations); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if res.Text != "my $marker = \"STOP\";\nprint __HEREDOC_1__;\n" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestDynamicDelimiterRejected(t *testing.T) {
	input := "print <<$x;\nbody\n"
	res := Parse(input, WithResolver(&stubResolver{ok: false}))
	if len(res.Declarations) != 0 {
		t.Errorf("Declarations = %+v, want none", res.Declarations)
	}
	if res.Text != input {
		t.Errorf("Text = %q, want input unchanged", res.Text)
	}
}

// stepClock returns base for the first n calls and an hour later after that.
func stepClock(n int) func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		if calls > n {
			return base.Add(time.Hour)
		}
		return base
	}
}

func TestDetectionTimeout(t *testing.T) {
	input := strings.Repeat("my $a = <<A;\nA\n", 10)

	res := Parse(input, WithClock(stepClock(20)), WithTimeout(time.Second))
	if len(res.Declarations) != 1 {
		t.Fatalf("len(Declarations) = %d, want 1", len(res.Declarations))
	}
	if !res.Declarations[0].Collected {
		t.Error("declaration found before the deadline was not collected")
	}
}

func TestCollectionTimeout(t *testing.T) {
	input := "print <<A;\na\nA\nprint <<B;\nb\nB\n"
	_, decls := NewScanner(input).Scan()

	NewCollector(input, WithClock(stepClock(1))).Collect(decls)
	for i, d := range decls {
		if d.Collected {
			t.Errorf("declaration %d collected after deadline", i)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	res := Parse("print <<A, <<B;\na\nA\nb\nB\n")
	m := Placeholders(res.Declarations)
	if len(m) != 2 {
		t.Fatalf("len(Placeholders) = %d, want 2", len(m))
	}
	if d := m["__HEREDOC_2__"]; d == nil || d.Content != "b" {
		t.Errorf("__HEREDOC_2__ = %+v", d)
	}
	if m["__HEREDOC_1__"] != &res.Declarations[0] {
		t.Error("placeholder does not point into the declaration slice")
	}
	if Integrate(res.Text, res.Declarations) != res.Text {
		t.Error("Integrate changed the text")
	}
}

func TestShiftIsNotDynamicHeredoc(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"number", "my $mask = 1 << $end;\nprint 1;\n"},
		{"number without spaces", "my $mask = 1<<$end;\n"},
		{"variable", "my $y = $x <<$n;\n"},
		{"qualified variable", "my $y = $Foo::x <<$n;\n"},
		{"call", "my $y = f() <<$n;\n"},
		{"element", "my $y = $a[0] <<$n;\n"},
		{"hash element", "my $y = $h{k} <<($n);\n"},
		{"space after operator", "print << $n;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubResolver{delimiter: "END", ok: true}
			res := Parse(tt.input, WithResolver(r))
			if len(r.starts) != 0 {
				t.Errorf("resolver called at %v, want no calls", r.starts)
			}
			if len(res.Declarations) != 0 {
				t.Errorf("Declarations = %+v, want none", res.Declarations)
			}
			if res.Text != tt.input {
				t.Errorf("Text = %q, want input unchanged", res.Text)
			}
		})
	}
}

func TestDynamicHeredocInTermPosition(t *testing.T) {
	tests := []struct {
		name  string
		input string
		start int
	}{
		{"after function", "print <<$n;\nEND\n", 6},
		{"after assignment", "my $t = <<$n;\nEND\n", 8},
		{"indented", "print <<~$n;\nEND\n", 6},
		{"after comma", "f($a, <<$n);\nEND\n", 6},
		{"line start", "<<$n;\nEND\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubResolver{delimiter: "END", ok: true}
			res := Parse(tt.input, WithResolver(r))
			if diff := cmp.Diff([]int{tt.start}, r.starts); diff != "" {
				t.Errorf("resolver starts mismatch (-want +got):\n%s", diff)
			}
			if len(res.Declarations) != 1 || !res.Declarations[0].Dynamic {
				t.Errorf("Declarations = %+v, want one dynamic", res.Declarations)
			}
		})
	}
}

func TestResolverSeesBlankedBodies(t *testing.T) {
	input := "print <<EOF;\ndon't\nEOF\nprint <<$x;\nbody\nSTOP\n"
	r := &stubResolver{delimiter: "STOP", ok: true}

	res := Parse(input, WithResolver(r))
	if r.resets != 1 {
		t.Errorf("resets = %d, want 1", r.resets)
	}
	want := "print <<EOF;\n     \n   \nprint <<$x;\nbody\nSTOP\n"
	if diff := cmp.Diff([]string{want}, r.inputs); diff != "" {
		t.Errorf("resolver input mismatch (-want +got):\n%s", diff)
	}
	if len(res.Declarations) != 2 || res.Declarations[1].Content != "body" {
		t.Errorf("Declarations = %+v", res.Declarations)
	}
	if res.Text != "print __HEREDOC_1__;\nprint __HEREDOC_2__;\n" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestBodiesAreNotScanned(t *testing.T) {
	input := "print <<A;\ncat <<X\nA\nprint \"ok\";\n"

	res := Parse(input)
	if len(res.Declarations) != 1 {
		t.Fatalf("Declarations = %+v, want one", res.Declarations)
	}
	if d := res.Declarations[0]; d.Content != "cat <<X" || !d.Collected {
		t.Errorf("Content = %q, Collected = %v", d.Content, d.Collected)
	}
	if res.Text != "print __HEREDOC_1__;\nprint \"ok\";\n" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestPlaceholderAvoidsSourceText(t *testing.T) {
	input := "print __HEREDOC_1__;\nprint <<EOT;\nx\nEOT\n"

	res := Parse(input)
	if len(res.Declarations) != 1 {
		t.Fatalf("Declarations = %+v, want one", res.Declarations)
	}
	if got := res.Declarations[0].Placeholder; got != "__HEREDOC_2__" {
		t.Errorf("Placeholder = %q, want __HEREDOC_2__", got)
	}
	if res.Text != "print __HEREDOC_1__;\nprint __HEREDOC_2__;\n" {
		t.Errorf("Text = %q", res.Text)
	}
}
