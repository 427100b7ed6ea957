package heredoc

import (
	"slices"
	"strings"
	"unicode"

	"github.com/dhamidi/perlex/perl/statement"
)

// Collector fills in the content of declarations produced by a Scanner.
type Collector struct {
	settings
	input string
}

func NewCollector(input string, opts ...Option) *Collector {
	return &Collector{
		settings: newSettings(opts),
		input:    input,
	}
}

// Collect reads the body of each declaration from the unmodified input and
// stores it in place. Declarations that share a line are read one after
// another, each starting after the previous terminator.
func (c *Collector) Collect(decls []Declaration) {
	lines := statement.SplitLines(c.input)
	deadline := c.now().Add(c.timeout)

	groups := make(map[int][]int)
	var order []int
	for i := range decls {
		line := decls[i].Line
		if _, ok := groups[line]; !ok {
			order = append(order, line)
		}
		groups[line] = append(groups[line], i)
	}
	slices.Sort(order)

	for _, line := range order {
		if c.now().After(deadline) {
			log.Debugf("heredoc collection timed out before line %d", line)
			return
		}

		// The 1-based end line is the 0-based index of the first body line.
		cursor := max(c.oracle.StatementEndLine(c.input, line), 0)
		for _, i := range groups[line] {
			d := &decls[i]
			var body []string
			found := false
			for cursor < len(lines) {
				l := lines[cursor]
				cursor++
				if d.Matches(l) {
					found = true
					break
				}
				body = append(body, l)
			}
			if !found {
				log.Debugf("heredoc %q on line %d is unterminated", d.Terminator, d.Line)
				continue
			}
			if d.Indented {
				body = Dedent(body)
			}
			d.Content = strings.Join(body, "\n")
			d.Collected = true
		}
	}
}

// Dedent removes the common leading whitespace of the non-blank lines. Lines
// no longer than the common width become empty.
func Dedent(lines []string) []string {
	common := -1
	for _, l := range lines {
		trimmed := strings.TrimLeftFunc(l, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		if w := len(l) - len(trimmed); common < 0 || w < common {
			common = w
		}
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case common <= 0:
			out[i] = l
		case len(l) > common:
			out[i] = l[common:]
		default:
			out[i] = ""
		}
	}
	return out
}
