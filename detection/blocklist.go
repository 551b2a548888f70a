package detection

import (
	"slices"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Blocklist decides whether a running process is forbidden during the exam.
// A name containing a blocked pattern is forbidden. When an allow list is
// set, a name containing none of the allowed patterns is forbidden too.
type Blocklist struct {
	blocked *goahocorasick.Machine
	allowed *goahocorasick.Machine
}

// Verdict explains a positive match.
type Verdict struct {
	Pattern    string
	NotAllowed bool
}

// NewBlocklist builds one Aho-Corasick automaton per list. Patterns are
// normalized the same way process names are.
func NewBlocklist(blocked, allowed []string) (*Blocklist, error) {
	b := &Blocklist{}
	var err error
	if b.blocked, err = buildMachine(blocked); err != nil {
		return nil, err
	}
	if b.allowed, err = buildMachine(allowed); err != nil {
		return nil, err
	}
	return b, nil
}

// Match reports whether processName is forbidden.
func (b *Blocklist) Match(processName string) (Verdict, bool) {
	name := normalizeRunes([]rune(processName))
	if len(name) == 0 {
		return Verdict{}, false
	}
	if b.blocked != nil {
		if terms := b.blocked.MultiPatternSearch(name, true); len(terms) > 0 {
			return Verdict{Pattern: string(terms[0].Word)}, true
		}
	}
	if b.allowed != nil {
		if terms := b.allowed.MultiPatternSearch(name, true); len(terms) == 0 {
			return Verdict{NotAllowed: true}, true
		}
	}
	return Verdict{}, false
}

func buildMachine(words []string) (*goahocorasick.Machine, error) {
	patterns := lo.FilterMap(lo.Uniq(words), func(w string, _ int) (string, bool) {
		n := string(normalizeRunes([]rune(w)))
		return n, n != ""
	})
	patterns = lo.Uniq(patterns)
	slices.Sort(patterns)
	if len(patterns) == 0 {
		return nil, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(lo.Map(patterns, func(p string, _ int) []rune { return []rune(p) })); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeRunes lowercases and drops spaces, punctuation and symbols, so
// "Discord.exe" and "discord" line up.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}
