// Package lexical implements the in-process sparse retrieval index: BM25 and
// TF-IDF over a shared tokenisation, published as immutable snapshots.
package lexical

import (
	"strings"
	"unicode"
)

// stopWords is the shared English stop-word list. Both BM25 and TF-IDF filter
// against it so the two scorers see the same term stream.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "but": true, "by": true, "can": true, "did": true,
	"do": true, "does": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "if": true,
	"in": true, "is": true, "it": true, "its": true, "my": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "our": true, "she": true,
	"so": true, "than": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"who": true, "will": true, "with": true, "you": true, "your": true,
}

// Tokenize lowercases, strips punctuation, splits on non-alphanumeric runes
// and drops stop words and single-character fragments. No stemming.
func Tokenize(text string) []string {
	text = strings.ToLower(text)

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// NGrams expands unigrams into 1..n grams joined by a single space, the term
// surface the TF-IDF vectorizer is built over.
func NGrams(tokens []string, n int) []string {
	if n <= 1 {
		return tokens
	}
	grams := make([]string, 0, len(tokens)*n)
	grams = append(grams, tokens...)
	for size := 2; size <= n; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+size], " "))
		}
	}
	return grams
}
