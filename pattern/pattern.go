// Package pattern recognizes image name tokens and section codes in table
// cell text.
package pattern

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/width"

	"img2webp/config"
)

// Rule is a single recognizer. Expression must have exactly one capture group
// holding the name.
type Rule struct {
	Source string
	re     *regexp.Regexp
}

// Matcher evaluates rules in priority order.
type Matcher struct {
	rules []Rule
	code  *regexp.Regexp
}

// NewMatcher compiles image name rules and code pattern.
func NewMatcher(images []string, code string) (*Matcher, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no image name rules")
	}
	m := &Matcher{rules: make([]Rule, 0, len(images))}
	for i, src := range images {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("image name rule %d: %w", i, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("image name rule %d must have exactly one capture group, has %d", i, re.NumSubexp())
		}
		m.rules = append(m.rules, Rule{Source: src, re: re})
	}
	re, err := regexp.Compile(code)
	if err != nil {
		return nil, fmt.Errorf("code pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("code pattern must have capture group")
	}
	m.code = re
	return m, nil
}

// NewFromConfig is a shortcut for NewMatcher.
func NewFromConfig(cfg *config.PatternsConfig) (*Matcher, error) {
	return NewMatcher(cfg.Image, cfg.Code)
}

// Rules returns rules in evaluation order.
func (m *Matcher) Rules() []Rule {
	return m.rules
}

// variants returns text as is and, if different, with full-width ASCII forms
// (letters, digits, punctuation) folded to narrow ones. Rules may rely on
// full-width punctuation, so folded form is only a fallback.
func variants(text string) []string {
	if folded := width.Fold.String(text); folded != text {
		return []string{text, folded}
	}
	return []string{text}
}

// Match returns name captured by the first matching rule. Absence of a match
// is not an error.
func (m *Matcher) Match(text string) (string, bool) {
	for _, v := range variants(text) {
		for _, r := range m.rules {
			sub := r.re.FindStringSubmatch(v)
			if sub == nil {
				continue
			}
			if name := strings.TrimSpace(sub[1]); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// FindAll splits text into lines and returns every name found, in order of
// appearance. When several rules match at the same position the earlier rule
// wins. Names visible only after width folding are added unless they overlap
// a match in the original line.
func (m *Matcher) FindAll(text string) []string {
	var names []string
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hits := m.findInLine(line)
		if folded, offsets := foldLine(line); folded != line {
			for _, h := range m.findInLine(folded) {
				h.start, h.end = offsets[h.start], offsets[h.end]
				if !slices.ContainsFunc(hits, h.overlaps) {
					hits = append(hits, h)
				}
			}
			slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.start, b.start) })
		}
		for _, h := range hits {
			if name := strings.TrimSpace(h.name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

type hit struct {
	start, end int
	name       string
}

func (h hit) overlaps(o hit) bool {
	return h.start < o.end && o.start < h.end
}

// foldLine folds line rune by rune and returns, for every byte of the result
// plus one past the end, offset of the source rune in line.
func foldLine(line string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(line)+1)
	for i, r := range line {
		f := width.Fold.String(string(r))
		b.WriteString(f)
		for range len(f) {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(line))
	return b.String(), offsets
}

func (m *Matcher) findInLine(line string) []hit {
	var hits []hit
	for pos := 0; pos < len(line); {
		var best *hit
		for _, r := range m.rules {
			loc := r.re.FindStringSubmatchIndex(line[pos:])
			if loc == nil || loc[2] < 0 {
				continue
			}
			if best != nil && pos+loc[0] >= best.start {
				continue
			}
			best = &hit{start: pos + loc[0], end: pos + loc[1], name: line[pos+loc[2] : pos+loc[3]]}
		}
		if best == nil {
			break
		}
		hits = append(hits, *best)
		pos = max(best.end, best.start+1)
	}
	return hits
}

// Code extracts section code from code cell text.
func (m *Matcher) Code(text string) (string, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(width.Fold.String(text)), "\n", "")
	sub := m.code.FindStringSubmatch(text)
	if sub == nil || sub[1] == "" {
		return "", false
	}
	return sub[1], true
}
