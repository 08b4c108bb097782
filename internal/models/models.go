package models

import "time"

// Paper is the retrievable unit. The store assigns PaperID on insert; chunks
// join back to their paper through it.
type Paper struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type PaperInput struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// PaperInsert is the per-item outcome of a bulk insert. A failed item carries
// an error message and no id.
type PaperInsert struct {
	PaperID string `json:"paper_id,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Chunk is a bounded window of a paper's title+abstract text. PaperID is the
// join key back to the parent paper; StartOffset is the window's rune offset
// into the source text.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	PaperID     string `json:"paper_id"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	Text        string `json:"text"`
}

// ChunkHit is one similarity-search match, best first.
type ChunkHit struct {
	ChunkID     string  `json:"chunk_id"`
	PaperID     string  `json:"paper_id"`
	ChunkIndex  int     `json:"chunk_index"`
	StartOffset int     `json:"start_offset"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}

// Sentence is one manuscript sentence with its position in the split output.
type Sentence struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Candidate is a retrieved paper handed to the reranker.
type Candidate struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SentenceRecommendations maps one citing sentence to recommended paper
// titles, best match first. An empty Titles list is a valid outcome.
type SentenceRecommendations struct {
	Sentence string   `json:"sentence"`
	Titles   []string `json:"titles"`
}
