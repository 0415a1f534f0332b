package domain

import "time"

// Chunk is a retrieval window derived from a version's content. Offsets are
// character offsets into that content; Text is the trimmed span.
type Chunk struct {
	ID         string
	VersionID  string
	ChunkIndex int
	Chapter    *int
	StartChar  int
	EndChar    int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk
	Distance float64
}
