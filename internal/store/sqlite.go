// Package store provides the SQLite-backed chunk and session storage.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"docchat/internal/model"
)

// SQLiteStore implements the chunk store and conversation log over SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID mints a ULID for documents, chunks, and turns.
func (s *SQLiteStore) NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		upload_time TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_documents_upload ON documents(upload_time DESC);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL REFERENCES documents(id),
		seq          INTEGER NOT NULL,
		text         TEXT NOT NULL,
		embedding    TEXT NOT NULL,
		start_offset INTEGER NOT NULL DEFAULT 0,
		end_offset   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL REFERENCES sessions(id),
		query           TEXT NOT NULL,
		intent          TEXT NOT NULL,
		answer          TEXT NOT NULL,
		cited_chunk_ids TEXT,
		sources         TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		text,
		content=chunks,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
	END`)
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
		INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
	END`)

	return nil
}

// AddDocument stores a document and its chunks in a single transaction, so
// the document's chunks become searchable all at once or not at all.
// Chunk embeddings must already be computed; dimensionality is fixed
// corpus-wide, so vectors that disagree with the stored corpus are rejected.
func (s *SQLiteStore) AddDocument(ctx context.Context, doc model.Document, chunks []model.Chunk) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}

	dims, err := s.corpusDims(ctx)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d of %s has no embedding", i, doc.Filename)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) != dims {
			return fmt.Errorf("chunk %d of %s has %d-dim embedding, corpus uses %d",
				i, doc.Filename, len(c.Embedding), dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	uploadTime := doc.UploadTime
	if uploadTime.IsZero() {
		uploadTime = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename, upload_time, chunk_count) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Filename, uploadTime.Format(time.RFC3339), len(chunks))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = s.NewID()
		}
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, seq, text, embedding, start_offset, end_offset)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, doc.ID, i, c.Text, string(emb), c.StartOffset, c.EndOffset)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// corpusDims returns the embedding dimensionality the corpus was ingested
// with, or 0 when no chunks exist.
func (s *SQLiteStore) corpusDims(ctx context.Context) (int, error) {
	var embJSON string
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM chunks LIMIT 1`).Scan(&embJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var emb []float32
	if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
		return 0, fmt.Errorf("decode stored embedding: %w", err)
	}
	return len(emb), nil
}

// SearchVector returns the k chunks with the highest cosine similarity to
// the query embedding. An empty store yields an empty result; a query vector
// whose dimensionality disagrees with the corpus is an error, never a silent
// zero score.
func (s *SQLiteStore) SearchVector(ctx context.Context, queryVec []float32, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.filename, c.seq, c.text, c.embedding, c.start_offset, c.end_offset
		 FROM chunks c JOIN documents d ON d.id = c.document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.RetrievedChunk
	for rows.Next() {
		var c model.Chunk
		var embJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Filename, &c.SequenceIndex, &c.Text,
			&embJSON, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embJSON), &c.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %s: %w", c.ID, err)
		}
		if len(c.Embedding) != len(queryVec) {
			return nil, fmt.Errorf("embedding dims mismatch: query has %d, chunk %s has %d (reingest after changing embedder)",
				len(queryVec), c.ID, len(c.Embedding))
		}
		score := cosineSimilarity(queryVec, c.Embedding)
		results = append(results, model.RetrievedChunk{Chunk: c, Score: score, Match: model.MatchVector})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortRetrieved(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ftsTokenRe extracts bare word tokens safe to hand to the FTS5 parser.
var ftsTokenRe = regexp.MustCompile(`[\pL\pN]+`)

// SearchLexical returns the k chunks ranked by FTS5 bm25 against the query
// terms. Terms are OR-ed so partial matches still surface.
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		k = 10
	}

	tokens := ftsTokenRe.FindAllString(query, -1)
	if len(tokens) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.filename, c.seq, c.text, c.start_offset, c.end_offset,
		        bm25(chunks_fts) AS rank
		 FROM chunks_fts
		 JOIN chunks c ON c.rowid = chunks_fts.rowid
		 JOIN documents d ON d.id = c.document_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var results []model.RetrievedChunk
	for rows.Next() {
		var c model.Chunk
		var rank float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Filename, &c.SequenceIndex, &c.Text,
			&c.StartOffset, &c.EndOffset, &rank); err != nil {
			return nil, err
		}
		// bm25() returns more-negative values for better matches
		results = append(results, model.RetrievedChunk{Chunk: c, Score: -rank, Match: model.MatchLexical})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortRetrieved(results)
	return results, nil
}

// DeleteDocument removes a document and all of its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document not found: %s", documentID)
	}
	return tx.Commit()
}

// Clear empties the chunk store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns all documents, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, upload_time, chunk_count FROM documents ORDER BY upload_time DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var t string
		if err := rows.Scan(&d.ID, &d.Filename, &t, &d.ChunkCount); err != nil {
			return nil, err
		}
		d.UploadTime, _ = time.Parse(time.RFC3339, t)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentChunks returns a document's chunks in sequence order.
func (s *SQLiteStore) DocumentChunks(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.filename, c.seq, c.text, c.start_offset, c.end_offset
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.document_id = ? ORDER BY c.seq`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Filename, &c.SequenceIndex, &c.Text,
			&c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Stats summarizes the corpus.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Sessions  int `json:"sessions"`
}

// CorpusStats counts documents, chunks, and sessions.
func (s *SQLiteStore) CorpusStats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortRetrieved orders by descending score, ties broken by ascending
// sequence index, then chunk id, so rankings are reproducible.
func sortRetrieved(rs []model.RetrievedChunk) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		if rs[i].Chunk.SequenceIndex != rs[j].Chunk.SequenceIndex {
			return rs[i].Chunk.SequenceIndex < rs[j].Chunk.SequenceIndex
		}
		return rs[i].Chunk.ID < rs[j].Chunk.ID
	})
}
