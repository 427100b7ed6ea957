package recovery

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Catalog lists the delimiters tried when nothing better is known, most
// common first.
var Catalog = []string{"EOF", "END", "EOT", "EOD", "HERE", "DATA", "TEXT", "SQL", "DONE"}

var (
	namedPattern  = regexp.MustCompile(`^\$\{?(\w+(?:::\w+)*)\}?`)
	methodPattern = regexp.MustCompile(`->\s*(\w+)\s*\(\s*\)$`)
)

const (
	strongPatternConfidence = 0.7
	methodPatternConfidence = 0.6
	weakPatternConfidence   = 0.4
)

type candidate struct {
	delimiter  string
	confidence float64
}

// matchPatterns guesses a delimiter from the names in expr. The first
// candidate is the strongest.
func matchPatterns(expr string) []candidate {
	var out []candidate
	method := ""
	if m := methodPattern.FindStringSubmatch(expr); m != nil {
		method = strings.ToLower(m[1])
	}

	if m := namedPattern.FindStringSubmatch(expr); m != nil {
		name := strings.ToLower(m[1])
		switch {
		case strings.Contains(name, "eof"):
			out = append(out, candidate{"EOF", strongPatternConfidence})
		case strings.Contains(name, "end"):
			out = append(out, candidate{"END", strongPatternConfidence})
		case strings.Contains(name, "delim"):
			out = append(out, candidate{"EOF", strongPatternConfidence})
		}
	}

	switch {
	case strings.Contains(method, "delim"):
		out = append(out, candidate{"END", methodPatternConfidence})
	case method == "to_string" || method == "as_string" || method == "stringify":
		out = append(out, candidate{"EOF", weakPatternConfidence})
	}

	if strings.Contains(strings.ToLower(expr), "sql") {
		out = append(out, candidate{"SQL", weakPatternConfidence})
	}
	return out
}

var specialVariables = []string{"$_", "$@", "$!", "$?"}

// ApplyHeuristics ranks Catalog by affinity with expr. Delimiters named in
// the expression come first, then delimiters whose letters appear in order in
// it, then the rest.
func ApplyHeuristics(expr string) []string {
	expr = strings.TrimSpace(strings.TrimPrefix(expr, "<<"))
	if slices.Contains(specialVariables, expr) {
		return []string{"EOF", "END", "EOT", "EOD", "DONE"}
	}

	var out []string
	add := func(d string) {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}

	lower := strings.ToLower(expr)
	hasEOF := strings.Contains(lower, "eof")
	if hasEOF {
		add("EOF")
		add("END")
	}
	if strings.Contains(lower, "end") && !hasEOF {
		add("END")
		add("EOF")
	}
	if strings.Contains(lower, "sql") {
		add("SQL")
	}
	for _, d := range Catalog {
		if d != "EOF" && d != "END" && strings.Contains(lower, strings.ToLower(d)) {
			add(d)
		}
	}

	type ranked struct {
		delimiter string
		distance  int
	}
	var fuzzyHits []ranked
	for _, d := range Catalog {
		if slices.Contains(out, d) {
			continue
		}
		if dist := fuzzy.RankMatchFold(d, expr); dist >= 0 {
			fuzzyHits = append(fuzzyHits, ranked{d, dist})
		}
	}
	sort.SliceStable(fuzzyHits, func(i, j int) bool {
		return fuzzyHits[i].distance < fuzzyHits[j].distance
	})
	for _, h := range fuzzyHits {
		add(h.delimiter)
	}

	for _, d := range Catalog {
		add(d)
	}
	return out
}
