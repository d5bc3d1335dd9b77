package stores

import (
	"strings"
	"unicode"
)

// stopwords are common terms excluded from the recall index.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"i": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"want": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

// Tokenize splits free text into lowercase recall terms, dropping stopwords
// and single-character fragments. The same tokenizer indexes memory entries
// and scores recall queries, so both sides agree on term boundaries.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}

	return terms
}
