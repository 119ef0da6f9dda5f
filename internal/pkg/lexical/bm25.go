package lexical

import "math"

// Okapi BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Index is an inverted index over tokenised documents. It is built once
// per snapshot and never mutated afterwards.
type bm25Index struct {
	// postings maps a term to the ordinal ids of documents containing it.
	postings map[string][]int
	// termFreq maps document ordinal to term frequencies.
	termFreq []map[string]int
	// docLengths holds token counts per document ordinal.
	docLengths []int
	avgDocLen  float64
}

func newBM25Index(docTokens [][]string) *bm25Index {
	idx := &bm25Index{
		postings:   make(map[string][]int),
		termFreq:   make([]map[string]int, len(docTokens)),
		docLengths: make([]int, len(docTokens)),
	}

	total := 0
	for i, tokens := range docTokens {
		freq := make(map[string]int, len(tokens))
		for _, term := range tokens {
			if freq[term] == 0 {
				idx.postings[term] = append(idx.postings[term], i)
			}
			freq[term]++
		}
		idx.termFreq[i] = freq
		idx.docLengths[i] = len(tokens)
		total += len(tokens)
	}
	if len(docTokens) > 0 {
		idx.avgDocLen = float64(total) / float64(len(docTokens))
	}
	return idx
}

// score computes raw Okapi BM25 scores for every document against the query
// tokens. Scores are unnormalised; the caller min-max normalises per batch.
func (idx *bm25Index) score(queryTokens []string) []float64 {
	scores := make([]float64, len(idx.termFreq))
	if len(idx.termFreq) == 0 || idx.avgDocLen == 0 {
		return scores
	}

	numDocs := float64(len(idx.termFreq))
	for _, term := range queryTokens {
		docs := idx.postings[term]
		if len(docs) == 0 {
			continue
		}
		df := float64(len(docs))
		idf := math.Log((numDocs - df + 0.5) / (df + 0.5))
		if idf < 0 {
			// Terms in more than half the corpus carry no signal.
			idf = 0
		}

		for _, i := range docs {
			tf := float64(idx.termFreq[i][term])
			docLen := float64(idx.docLengths[i])
			numerator := tf * (bm25K1 + 1)
			denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/idx.avgDocLen)
			scores[i] += idf * (numerator / denominator)
		}
	}
	return scores
}
