package index

import (
	"math"
	"sort"
	"strings"
)

// tokenize lowercases and splits on whitespace. No stemming and no
// stopword removal: lexical scoring rewards exact word overlap.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// bm25Index scores indexed texts against a tokenized query. IDF terms
// depend on global document frequencies, so the index is rebuilt from the
// full corpus whenever the corpus changes; there is no incremental update.
type bm25Index struct {
	k1     float64
	b      float64
	docTF  []map[string]int
	docLen []int
	df     map[string]int
	avgLen float64
}

func newBM25Index(texts []string, k1, b float64) *bm25Index {
	idx := &bm25Index{
		k1:     k1,
		b:      b,
		docTF:  make([]map[string]int, len(texts)),
		docLen: make([]int, len(texts)),
		df:     make(map[string]int),
	}

	var totalLen int
	for i, text := range texts {
		tokens := tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		idx.docTF[i] = tf
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)
		for term := range tf {
			idx.df[term]++
		}
	}
	if len(texts) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(texts))
	}

	return idx
}

func (idx *bm25Index) size() int {
	return len(idx.docTF)
}

// search scores every indexed text against the query tokens and returns
// the top k positions, descending. Scores are unbounded and may be zero;
// positions with no term overlap still rank (at zero) when k exceeds the
// number of matching texts, mirroring the dense leg's fill behavior.
func (idx *bm25Index) search(queryTokens []string, k int) []positionScore {
	if len(queryTokens) == 0 || len(idx.docTF) == 0 || k <= 0 || idx.avgLen == 0 {
		return nil
	}

	scores := make([]positionScore, len(idx.docTF))
	for i := range scores {
		scores[i] = positionScore{position: i}
	}

	n := float64(len(idx.docTF))
	for _, term := range queryTokens {
		df := float64(idx.df[term])
		if df == 0 {
			continue
		}
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for i, tf := range idx.docTF {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			dl := float64(idx.docLen[i])
			scores[i].score += idf * (f * (idx.k1 + 1)) / (f + idx.k1*(1-idx.b+idx.b*dl/idx.avgLen))
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].position < scores[j].position
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}
