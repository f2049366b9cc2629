// Package model defines the core retrieval data types.
package model

import "time"

// Intent classifies the expected answer shape of a query.
type Intent string

const (
	IntentSummary  Intent = "summary"
	IntentDetail   Intent = "detail"
	IntentFollowUp Intent = "follow_up"
	IntentGeneral  Intent = "general"
)

// MatchKind records which search leg produced a retrieved chunk.
type MatchKind string

const (
	MatchVector  MatchKind = "vector"
	MatchLexical MatchKind = "lexical"
	MatchBoth    MatchKind = "both"
)

// Document represents one ingested file. A document owns its chunks;
// deleting it cascades to them.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadTime time.Time `json:"upload_time"`
	ChunkCount int       `json:"chunk_count"`
}

// Chunk is a bounded fragment of a document stored with its embedding.
// Immutable once written. SequenceIndex is monotonic within a document.
type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename,omitempty"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"-"`
	SequenceIndex int       `json:"sequence_index"`
	StartOffset   int       `json:"start_offset"`
	EndOffset     int       `json:"end_offset"`
}

// RetrievedChunk is one entry of a RetrievedSet: a chunk with its fused
// score and the search leg(s) that matched it.
type RetrievedChunk struct {
	Chunk Chunk     `json:"chunk"`
	Score float64   `json:"score"`
	Match MatchKind `json:"match"`
}

// Turn is one question/answer exchange within a session.
type Turn struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Intent        Intent    `json:"intent"`
	Answer        string    `json:"answer"`
	CitedChunkIDs []string  `json:"cited_chunk_ids,omitempty"`
	Sources       []string  `json:"sources,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Citation attributes a piece of assembled context to its document.
type Citation struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// Context is the bounded payload handed to the generation step.
type Context struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	ChunkIDs  []string   `json:"chunk_ids,omitempty"`
}
