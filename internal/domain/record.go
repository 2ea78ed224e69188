package domain

import "time"

// ChunkRecord is one line of the chunks journal: a piece of content captured
// for later recall. Once written it is immutable.
type ChunkRecord struct {
	ChunkID   string         `json:"chunk_id"`
	Timestamp time.Time      `json:"timestamp"`
	Content   string         `json:"content,omitempty"`
	Source    string         `json:"source,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EmbeddingRecord is one line of the embeddings journal. The vector is either
// inline or, in binary storage mode, replaced by a VectorRef pointing to a
// sidecar file of packed little-endian float32 values.
type EmbeddingRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Vector    []float32 `json:"vector,omitempty"`
	VectorRef string    `json:"vector_ref,omitempty"`
}

// AssertionRecord accumulates pass/fail evidence from callers without a
// separate test framework. Stored as session data under a well-known key.
type AssertionRecord struct {
	Name      string    `json:"name"`
	Passed    bool      `json:"passed"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
