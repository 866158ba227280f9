// Package moderation provides content review for chat messages. The review
// runs out-of-band in the moderator sidecar: messages are delivered first and
// flagged results come back to the sender as advisory warnings.
package moderation

import "strings"

// FilterResult is the outcome of checking a single piece of text.
type FilterResult struct {
	Flagged bool
	Reason  string // "blocked_keyword" or "spam_pattern"
	Term    string // the matched keyword, phrase, or spam check name
}

// Filter screens message text against a keyword blocklist and spam patterns.
// Keyword matching is token-based (no substring false positives), case
// insensitive, and resistant to common leetspeak substitutions.
type Filter struct {
	words   map[string]struct{} // single blocked words
	phrases [][]string          // blocked multi-word phrases, tokenized
}

// defaultTerms is the built-in blocklist. Single words match individual
// tokens; multi-word entries match consecutive token sequences.
var defaultTerms = []string{
	// slurs
	"nigger",
	"faggot",
	"kike",
	"spic",
	// self-harm incitement
	"kill yourself",
	"go die",
	"kys",
	// exploitation
	"child porn",
	"send nudes",
	// scams
	"free bitcoin",
	"wire transfer urgent",
}

// NewFilter returns a Filter loaded with the default blocklist.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultTerms)
}

// NewFilterWithTerms returns a Filter using only the given terms. Empty and
// whitespace-only terms are ignored. Passing nil disables keyword matching,
// leaving only the spam pattern checks active.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{
		words: make(map[string]struct{}),
	}
	for _, term := range terms {
		tokens := tokenizePlain(strings.ToLower(term))
		switch len(tokens) {
		case 0:
			// skip blank entries
		case 1:
			f.words[tokens[0]] = struct{}{}
		default:
			f.phrases = append(f.phrases, tokens)
		}
	}
	return f
}

// Check screens text and returns the first match found. Keyword checks run
// before spam pattern checks. A zero-value result means the text is clean.
func (f *Filter) Check(text string) FilterResult {
	lower := strings.ToLower(text)

	// Two token views: as written, and with leetspeak substitutions undone.
	// "b@dw0rd" only matches via the normalized view.
	plain := tokenizePlain(lower)
	leet := tokenizePlain(normalizeLeet(lower))

	if term, ok := f.matchKeyword(plain); ok {
		return FilterResult{Flagged: true, Reason: "blocked_keyword", Term: term}
	}
	if term, ok := f.matchKeyword(leet); ok {
		return FilterResult{Flagged: true, Reason: "blocked_keyword", Term: term}
	}

	return f.checkSpamPatterns(text)
}

// matchKeyword checks tokens against the word set and phrase list. Returns the
// matched term and true on a hit.
func (f *Filter) matchKeyword(tokens []string) (string, bool) {
	for _, tok := range tokens {
		if _, ok := f.words[tok]; ok {
			return tok, true
		}
	}

	for _, phrase := range f.phrases {
		if containsSequence(tokens, phrase) {
			return strings.Join(phrase, " "), true
		}
	}
	return "", false
}

// containsSequence reports whether needle appears as a consecutive run
// inside haystack.
func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, w := range needle {
			if haystack[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// leetMap maps common character substitutions back to letters.
var leetMap = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// normalizeLeet undoes common leetspeak substitutions in text.
func normalizeLeet(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if sub, ok := leetMap[r]; ok {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenizePlain splits text into lowercase word tokens, treating any
// non-letter, non-digit rune as a delimiter.
func tokenizePlain(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
