// Package replace compiles find/replace rules into an ordered plan and applies
// it to card text. Patterns and replacement strings follow the JavaScript
// conventions the card editor's users already write (/re/flags, $1, $&).
package replace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// matchTimeout bounds a single match so a backtracking pattern cannot stall
// a run.
const matchTimeout = 5 * time.Second

// Kind tags an Op as a literal or a regular-expression substitution.
type Kind string

const (
	Literal Kind = "literal"
	Regex   Kind = "regex"
)

// Op is a single substitution step.
type Op struct {
	Kind    Kind   `yaml:"kind"`
	Find    string `yaml:"find,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
	Flags   string `yaml:"flags,omitempty"`
	Replace string `yaml:"replace"`
}

// Plan is applied in order, each op seeing the previous op's output.
type Plan []Op

var (
	blockSep   = regexp.MustCompile(`\r?\n\s*\r?\n`)
	lineSep    = regexp.MustCompile(`\r?\n`)
	prefixedRe = regexp.MustCompile(`(?i)^(?:regex:|re:)\s*(.*)$`)
)

// Compile builds the plan for a run. With no rules file, or a rules file that
// yields nothing, the plan is the single literal find/replace pair.
func Compile(rulesPath, find, replace string) (Plan, error) {
	fallback := Plan{{Kind: Literal, Find: find, Replace: replace}}
	if rulesPath == "" {
		return fallback, nil
	}

	raw, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read replacements file: %w", err)
	}

	var plan Plan
	switch strings.ToLower(filepath.Ext(rulesPath)) {
	case ".yaml", ".yml":
		plan, err = ParseYAML(raw)
		if err != nil {
			return nil, err
		}
	default:
		plan = Parse(string(raw))
	}

	if len(plan) == 0 {
		return fallback, nil
	}
	return plan, nil
}

// Parse reads the block format: blocks separated by blank lines, the first
// line of a block is the find spec and the second the replacement.
func Parse(raw string) Plan {
	var plan Plan
	for _, block := range blockSep.Split(raw, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := lineSep.Split(block, -1)
		findLine := strings.TrimSpace(lines[0])
		replaceLine := ""
		if len(lines) > 1 {
			replaceLine = strings.TrimSpace(lines[1])
		}
		plan = append(plan, NewOp(findLine, replaceLine))
	}
	return plan
}

type yamlRule struct {
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
}

// ParseYAML reads a list of {find, replace} mappings. Each find uses the same
// grammar as the block format.
func ParseYAML(raw []byte) (Plan, error) {
	var rules []yamlRule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse replacements YAML: %w", err)
	}
	plan := make(Plan, 0, len(rules))
	for _, r := range rules {
		plan = append(plan, NewOp(r.Find, r.Replace))
	}
	return plan, nil
}

// NewOp classifies a find spec. Regex forms that fail to compile fall back to
// a literal op on the whole line.
func NewOp(findSpec, replacement string) Op {
	if pattern, flags, ok := parseFindAsRegex(findSpec); ok {
		return Op{Kind: Regex, Pattern: pattern, Flags: flags, Replace: replacement}
	}
	return Op{Kind: Literal, Find: findSpec, Replace: replacement}
}

// accepts /pattern/flags, regex: pattern[;flags] and re: pattern[;flags]
func parseFindAsRegex(line string) (string, string, bool) {
	s := strings.TrimSpace(line)
	if s == "" {
		return "", "", false
	}

	if strings.HasPrefix(s, "/") && strings.LastIndex(s, "/") > 0 {
		last := strings.LastIndex(s, "/")
		body, flags := s[1:last], s[last+1:]
		if _, _, err := compile(body, flags); err == nil {
			return body, flags, true
		}
	}

	if m := prefixedRe.FindStringSubmatch(s); m != nil {
		rest := strings.TrimSpace(m[1])
		if semi := strings.LastIndex(rest, ";"); semi != -1 {
			body := strings.TrimSpace(rest[:semi])
			flags := strings.TrimSpace(rest[semi+1:])
			if _, _, err := compile(body, flags); err == nil {
				return body, flags, true
			}
		} else if _, _, err := compile(rest, ""); err == nil {
			return rest, "", true
		}
	}
	return "", "", false
}

// compile turns a pattern and JavaScript flag letters into an ECMAScript
// mode regexp2 pattern, so back-references and lookaround behave as they do
// in the editor. The bool result reports the g flag.
func compile(pattern, flags string) (*regexp2.Regexp, bool, error) {
	global := false
	dotAll := false
	opts := regexp2.ECMAScript
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return nil, false, fmt.Errorf("duplicate regex flag %q", f)
		}
		seen[f] = true
		switch f {
		case 'g':
			global = true
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			dotAll = true
		case 'u':
		default:
			return nil, false, fmt.Errorf("unsupported regex flag %q", f)
		}
	}

	if dotAll {
		pattern = expandDots(pattern)
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, false, err
	}
	re.MatchTimeout = matchTimeout
	return re, global, nil
}

// expandDots rewrites every unescaped "." outside a character class as
// [\s\S], which is what the s flag means.
func expandDots(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '.' && !inClass:
			b.WriteString(`[\s\S]`)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Apply runs a single op. A regex op whose pattern no longer compiles leaves
// the text unchanged.
func (op Op) Apply(text string) string {
	switch op.Kind {
	case Regex:
		re, global, err := compile(op.Pattern, op.Flags)
		if err != nil {
			return text
		}
		return substitute(re, text, op.Replace, global)
	default:
		if op.Find == "" {
			return text
		}
		re := regexp2.MustCompile(regexp2.Escape(op.Find), regexp2.None)
		re.MatchTimeout = matchTimeout
		return substitute(re, text, op.Replace, true)
	}
}

// Apply folds every op over the text in order.
func (p Plan) Apply(text string) string {
	for _, op := range p {
		text = op.Apply(text)
	}
	return text
}

func (op Op) String() string {
	if op.Kind == Regex {
		return fmt.Sprintf("/%s/%s -> %q", op.Pattern, op.Flags, op.Replace)
	}
	return fmt.Sprintf("%q -> %q", op.Find, op.Replace)
}

// substitute replaces the first match, or every match when global is set.
// A match that runs past the timeout leaves the text unchanged.
func substitute(re *regexp2.Regexp, text, repl string, global bool) string {
	runes := []rune(text)
	m, err := re.FindRunesMatch(runes)
	if err != nil || m == nil {
		return text
	}

	groups := 0
	for _, n := range re.GetGroupNumbers() {
		groups = max(groups, n)
	}
	named := hasNamedGroups(re.GetGroupNames())

	var b strings.Builder
	last := 0
	for m != nil {
		b.WriteString(string(runes[last:m.Index]))
		expand(&b, repl, runes, m, groups, named)
		last = m.Index + m.Length
		if !global {
			break
		}
		if m, err = re.FindNextMatch(m); err != nil {
			return text
		}
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

// expand writes repl with JavaScript substitution patterns resolved:
// $$, $&, $`, $', $n, $nn and $<name>.
func expand(b *strings.Builder, repl string, text []rune, m *regexp2.Match, groups int, named bool) {
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '$' || i+1 >= len(repl) {
			b.WriteByte(c)
			continue
		}

		next := repl[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(m.String())
			i++
		case next == '`':
			b.WriteString(string(text[:m.Index]))
			i++
		case next == '\'':
			b.WriteString(string(text[m.Index+m.Length:]))
			i++
		case isDigit(next):
			d1 := int(next - '0')
			if i+2 < len(repl) && isDigit(repl[i+2]) {
				d2 := d1*10 + int(repl[i+2]-'0')
				if d2 >= 1 && d2 <= groups {
					writeGroup(b, m.GroupByNumber(d2))
					i += 2
					continue
				}
			}
			if d1 >= 1 && d1 <= groups {
				writeGroup(b, m.GroupByNumber(d1))
				i++
				continue
			}
			b.WriteByte('$')
		case next == '<' && named:
			end := strings.IndexByte(repl[i+2:], '>')
			if end < 0 {
				b.WriteByte('$')
				continue
			}
			writeGroup(b, m.GroupByName(repl[i+2:i+2+end]))
			i += 2 + end
		default:
			b.WriteByte('$')
		}
	}
}

func writeGroup(b *strings.Builder, g *regexp2.Group) {
	if g == nil || len(g.Captures) == 0 {
		return
	}
	b.WriteString(g.String())
}

// hasNamedGroups reports a group name that is not just its number.
func hasNamedGroups(names []string) bool {
	for _, n := range names {
		if _, err := strconv.Atoi(n); err != nil {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
