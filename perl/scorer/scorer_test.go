package scorer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/perlex/perl/recovery"
	"github.com/dhamidi/perlex/perl/scorer"
)

var mainContext = recovery.ParseContext{Namespace: "main"}

func TestScanAssignments(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(`
my $delimiter = "EOF";
our $global_delim = "GLOBAL_END";
local $temp_marker = 'TEMP';
state $persistent_tag = "PERSIST";
my $plain = "PLAIN";
my @delimiters = ("EOF", "END", "STOP");
my %markers = (sql => "SQL", perl => "PERL");
`)

	tests := []struct {
		name       string
		value      string
		confidence float64
	}{
		{"delimiter", "EOF", 0.8},
		{"global_delim", "GLOBAL_END", 0.8},
		{"temp_marker", "TEMP", 0.8},
		{"persistent_tag", "PERSIST", 0.8},
		{"plain", "PLAIN", 0.5},
		{"delimiters", "EOF", 0.7},
		{"markers", "SQL", 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := s.Values(tt.name)
			require.NotEmpty(t, values)
			assert.Equal(t, tt.value, values[0].Value)
			assert.Equal(t, tt.confidence, values[0].Confidence)
			assert.Equal(t, scorer.Literal, values[0].Source)
		})
	}

	assert.Len(t, s.Values("markers"), 2)
	assert.Len(t, s.Values("delimiters"), 1)
}

func TestResolve(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(`
my $marker = "END";
my $base = "ST";
my $delimiter = "end";
my $prefix = "MY";
my $suffix = "END";
my $type = "SQL";
my $counter = "1";
my $word = "AB";
my @delimiters = ("EOF", "END");
my %markers = (sql => "SQL");
`)

	tests := []struct {
		name       string
		expr       string
		value      string
		confidence float64
		source     scorer.Source
	}{
		{"simple", "$marker", "END", 0.8, scorer.Literal},
		{"braced", "${marker}", "END", 0.8, scorer.Literal},
		{"qualified in main", "$main::marker", "END", 0.8, scorer.Literal},
		{"concatenation", `$base . "ART"`, "START", 0.5, scorer.Concatenation},
		{"numeric concatenation", "$type . $counter", "SQL1", 0.5, scorer.Concatenation},
		{"repetition", `$word x 2`, "ABAB", 0.5, scorer.Concatenation},
		{"uc", "uc($delimiter)", "END", 0.64, scorer.FunctionReturn},
		{"ucfirst", "ucfirst($delimiter)", "End", 0.64, scorer.FunctionReturn},
		{"reverse", "reverse($marker)", "DNE", 0.64, scorer.FunctionReturn},
		{"interpolated", `"${prefix}_${suffix}"`, "MY_END", 0.4, scorer.Concatenation},
		{"interpolated single", `"$marker"`, "END", 0.8, scorer.Literal},
		{"array element", "$delimiters[0]", "EOF", 0.35, scorer.Heuristic},
		{"hash element", "$markers{sql}", "SQL", 0.3, scorer.Heuristic},
		{"braced subscript", "${delimiters[1]}", "EOF", 0.42, scorer.Heuristic},
		{"stringify", "$marker->to_string()", "END", 0.48, scorer.FunctionReturn},
		{"env debug", "$ENV{CUSTOM_DEBUG_FLAG}", "1", 0.3, scorer.Heuristic},
		{"env port", "$ENV{'APP_PORT'}", "8080", 0.3, scorer.Heuristic},
		{"env other", "$ENV{HOME}", "value", 0.3, scorer.Heuristic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := s.Resolve(tt.expr, mainContext)
			require.True(t, ok)
			assert.Equal(t, tt.value, v.Value)
			assert.InDelta(t, tt.confidence, v.Confidence, 1e-9)
			assert.Equal(t, tt.source, v.Source)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(`my $known = "K";`)

	for _, expr := range []string{"$unknown", `$known . $unknown`, "lc($unknown)", `"$a$b"`, "$Other::known", "foo()"} {
		t.Run(expr, func(t *testing.T) {
			_, ok := s.Resolve(expr, mainContext)
			assert.False(t, ok)
		})
	}
}

func TestResolvePackageQualified(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(`our $marker = "PKG";`)

	v, ok := s.Resolve("$App::marker", recovery.ParseContext{Namespace: "App"})
	require.True(t, ok)
	assert.Equal(t, "PKG", v.Value)

	_, ok = s.Resolve("$App::marker", mainContext)
	assert.False(t, ok)
}

func TestLaterValueWinsTie(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments("my $marker = \"FIRST\";\nmy $marker = \"SECOND\";\n")

	v, ok := s.Resolve("$marker", mainContext)
	require.True(t, ok)
	assert.Equal(t, "SECOND", v.Value)
}

func TestAddHint(t *testing.T) {
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(`my $marker = "SCANNED";`)
	s.AddHint("marker", "HINTED")

	a := s.Analyze("$marker", mainContext)
	assert.True(t, a.Resolved)
	assert.Equal(t, "HINTED", a.Delimiter)
	assert.Equal(t, 0.9, a.Confidence)
	assert.Equal(t, "Resolved via UserHint", a.Strategy)
}

func TestAnalyzeConservative(t *testing.T) {
	s := scorer.New(scorer.Conservative)
	s.ScanAssignments(`my $foo = "FOO";`)

	a := s.Analyze("$foo", mainContext)
	assert.False(t, a.Resolved)
	assert.Empty(t, a.Delimiter)
	assert.Equal(t, "Marked as unparseable", a.Strategy)
	assert.Equal(t, []string{
		"Dynamic delimiter cannot be resolved without code execution",
		"Variable interpolation in delimiter makes static analysis unreliable",
	}, a.Warnings)
}

func TestAnalyzeGuess(t *testing.T) {
	s := scorer.New(scorer.BestGuess)

	a := s.Analyze("$end_marker", mainContext)
	assert.True(t, a.Resolved)
	assert.Equal(t, "EOF", a.Delimiter)
	assert.Equal(t, 0.3, a.Confidence)
	assert.Equal(t, "Guessing from common patterns", a.Strategy)
	assert.Equal(t, []string{"EOF", "END", "EOT", "EOD", "DONE"}, a.Alternatives)

	a = s.Analyze("$sql_text", mainContext)
	assert.Equal(t, "SQL", a.Alternatives[0])
}

func TestAnalyzeWarnings(t *testing.T) {
	s := scorer.New(scorer.BestGuess)

	a := s.Analyze("$obj->name()", mainContext)
	assert.Contains(t, a.Warnings, "Variable interpolation in delimiter makes static analysis unreliable")
	assert.Contains(t, a.Warnings, "Complex expression in delimiter requires runtime evaluation")

	a = s.Analyze("$h{x}", mainContext)
	assert.Contains(t, a.Warnings, "Complex expression in delimiter requires runtime evaluation")
}

func TestScorerDrivesRecovery(t *testing.T) {
	source := "my $tag = \"MARK\";\nprint <<$tag.\"ER\";\nbody\nMARKER\n"
	s := scorer.New(scorer.BestGuess)
	s.ScanAssignments(source)

	cfg := recovery.DefaultConfig()
	cfg.ConfidenceThreshold = 0.5
	e := recovery.New(cfg, recovery.WithScorer(s))
	res := e.Recover(source, 24, nil)

	assert.True(t, res.Resolved)
	assert.Equal(t, "MARKER", res.Delimiter)
	assert.Equal(t, recovery.ContextAnalysis, res.Method)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestParseMode(t *testing.T) {
	m, err := scorer.ParseMode("Best-Guess")
	require.NoError(t, err)
	assert.Equal(t, scorer.BestGuess, m)

	m, err = scorer.ParseMode("conservative")
	require.NoError(t, err)
	assert.Equal(t, scorer.Conservative, m)

	_, err = scorer.ParseMode("sandbox")
	assert.Error(t, err)
}
