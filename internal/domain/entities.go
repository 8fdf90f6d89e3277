package domain

import (
	"errors"
	"time"
)

// ErrNotFound marks a document or section that does not exist. Store
// implementations return it unwrapped or wrapped so callers can test with
// errors.Is; any other error from a store is a real lookup failure.
var ErrNotFound = errors.New("not found")

type Section struct {
	DocID     string `json:"doc_id"`
	SectionID string `json:"section_id"`
	Text      string `json:"text"`
	Heading   string `json:"heading,omitempty"`
	Page      int    `json:"page,omitempty"`
}

// Document holds per-URL source metadata. Credibility is in [0,1]; a zero
// FetchedAt means the fetch time is unknown.
type Document struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	SiteName    string    `json:"site_name"`
	Credibility float64   `json:"credibility"`
	FetchedAt   time.Time `json:"fetched_at"`
	Lang        string    `json:"lang,omitempty"`
}

// SectionRef identifies one indexed section. The engine keeps an ordered
// list of refs parallel to the dense vector store; position i in that list
// is vector i.
type SectionRef struct {
	DocID     string `json:"doc_id"`
	SectionID string `json:"section_id"`
}

// Weights blends the four ranking signals. They should sum to 1.0; sums
// that do not are accepted and simply scale the blended score.
type Weights struct {
	Vector      float64 `json:"vector" yaml:"vector"`
	Lexical     float64 `json:"lexical" yaml:"lexical"`
	Credibility float64 `json:"credibility" yaml:"credibility"`
	Freshness   float64 `json:"freshness" yaml:"freshness"`
}

func DefaultWeights() Weights {
	return Weights{
		Vector:      0.55,
		Lexical:     0.25,
		Credibility: 0.15,
		Freshness:   0.05,
	}
}

func (w Weights) Sum() float64 {
	return w.Vector + w.Lexical + w.Credibility + w.Freshness
}

// RankingDetails carries the normalized component scores behind a blended
// result score, for explainability.
type RankingDetails struct {
	VectorScore      float64 `json:"vector_score"`
	BM25Score        float64 `json:"bm25_score"`
	CredibilityScore float64 `json:"credibility_score"`
	FreshnessScore   float64 `json:"freshness_score"`
}

type SearchResult struct {
	Rank       int            `json:"rank"`
	Score      float64        `json:"score"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	SiteName   string         `json:"site_name"`
	Heading    string         `json:"heading,omitempty"`
	Content    string         `json:"content"`
	Page       int            `json:"page,omitempty"`
	SourceInfo string         `json:"source_info"`
	Details    RankingDetails `json:"ranking_details"`
}

type IndexStats struct {
	TotalVectors     int     `json:"total_vectors"`
	Dimension        int     `json:"dimension"`
	ModelName        string  `json:"model_name"`
	IndexPath        string  `json:"index_path"`
	BM25Indexed      bool    `json:"bm25_indexed"`
	BM25Texts        int     `json:"bm25_texts_count"`
	SimhashThreshold float64 `json:"simhash_threshold"`
}
