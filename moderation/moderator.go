// Package moderation censors forbidden words in outbound messages before
// they reach the store. Matching runs over a normalized view of the text
// (lowercased, leet speak folded, punctuation stripped) while replacement
// happens on the original runes, so spacing and casing survive.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// leet maps common character substitutions back to their letter so
// "h4ck3r" matches the same pattern as "hacker".
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

func NewModerator(words []string, replacement rune) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, w := range words {
		normalized, _ := normalize([]rune(w))
		patterns[i] = normalized
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, replacement: replacement}, nil
}

// Censor returns text with every forbidden span replaced by the
// replacement rune. Text without matches is returned unchanged.
func (m *Moderator) Censor(text string) string {
	original := []rune(text)
	normalized, indexOf := normalize(original)
	if len(normalized) == 0 {
		return text
	}

	spans := m.machine.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return text
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(indexOf) {
			continue
		}
		// Map the normalized span back onto the original runes.
		for i := indexOf[start]; i <= indexOf[end-1]; i++ {
			original[i] = m.replacement
		}
	}
	return string(original)
}

// normalize lowercases, folds leet speak and drops punctuation, spacing
// and symbols, returning for each kept rune its index in the input.
func normalize(input []rune) ([]rune, []int) {
	out := make([]rune, 0, len(input))
	indexOf := make([]int, 0, len(input))
	for i, r := range input {
		if folded, ok := leet[r]; ok {
			r = folded
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
		indexOf = append(indexOf, i)
	}
	return out, indexOf
}
