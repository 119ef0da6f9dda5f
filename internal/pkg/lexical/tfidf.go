package lexical

import (
	"math"
	"sort"
)

// maxTFIDFFeatures caps the vocabulary at the most frequent 1-2 grams.
const maxTFIDFFeatures = 5000

// tfidfMatrix holds l2-normalised TF-IDF document vectors over a capped
// 1-2 gram vocabulary. Query scoring is cosine similarity, which reduces to
// a sparse dot product because both sides are unit vectors.
type tfidfMatrix struct {
	// vocab maps a term to its feature index.
	vocab map[string]int
	idf   []float64
	// docs holds one sparse vector per document ordinal.
	docs []map[int]float64
}

func newTFIDFMatrix(docTokens [][]string) *tfidfMatrix {
	numDocs := len(docTokens)
	grams := make([][]string, numDocs)
	totalFreq := make(map[string]int)
	docFreq := make(map[string]int)

	for i, tokens := range docTokens {
		grams[i] = NGrams(tokens, 2)
		seen := make(map[string]bool, len(grams[i]))
		for _, g := range grams[i] {
			totalFreq[g]++
			if !seen[g] {
				docFreq[g]++
				seen[g] = true
			}
		}
	}

	// Cap the vocabulary at the most frequent terms, ties broken
	// lexicographically for determinism.
	terms := make([]string, 0, len(totalFreq))
	for t := range totalFreq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(a, b int) bool {
		if totalFreq[terms[a]] != totalFreq[terms[b]] {
			return totalFreq[terms[a]] > totalFreq[terms[b]]
		}
		return terms[a] < terms[b]
	})
	if len(terms) > maxTFIDFFeatures {
		terms = terms[:maxTFIDFFeatures]
	}

	m := &tfidfMatrix{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
		docs:  make([]map[int]float64, numDocs),
	}
	for i, t := range terms {
		m.vocab[t] = i
		// Smoothed idf keeps terms present in every document non-zero.
		m.idf[i] = math.Log(float64(1+numDocs)/float64(1+docFreq[t])) + 1
	}

	for i, gs := range grams {
		m.docs[i] = m.vectorize(gs)
	}
	return m
}

// vectorize builds an l2-normalised sparse TF-IDF vector from a gram stream.
func (m *tfidfMatrix) vectorize(grams []string) map[int]float64 {
	counts := make(map[int]int)
	for _, g := range grams {
		if idx, ok := m.vocab[g]; ok {
			counts[idx]++
		}
	}

	vec := make(map[int]float64, len(counts))
	var norm float64
	for idx, c := range counts {
		w := float64(c) * m.idf[idx]
		vec[idx] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range vec {
			vec[idx] /= norm
		}
	}
	return vec
}

// score computes cosine similarity between the query and every document.
func (m *tfidfMatrix) score(queryTokens []string) []float64 {
	scores := make([]float64, len(m.docs))
	query := m.vectorize(NGrams(queryTokens, 2))
	if len(query) == 0 {
		return scores
	}

	for i, doc := range m.docs {
		var dot float64
		for idx, qw := range query {
			if dw, ok := doc[idx]; ok {
				dot += qw * dw
			}
		}
		scores[i] = dot
	}
	return scores
}
