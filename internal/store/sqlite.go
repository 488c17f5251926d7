package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/xiy/memoryd/internal/embeddings"
	"github.com/xiy/memoryd/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// RequestLog captures one incoming MCP request handled by the server.
type RequestLog struct {
	ID         int64
	Method     string
	ToolName   string
	Success    bool
	ErrorText  string
	DurationMS int64
	CreatedAt  time.Time
}

// RecentMemory is a compact summary row for admin dashboards.
type RecentMemory struct {
	ID         int64
	MemoryType string
	Content    string
	Importance float64
	CreatedAt  time.Time
}

// Store represents persistence operations used by the memory manager.
type Store interface {
	Add(ctx context.Context, in types.AddInput) (int64, error)
	List(ctx context.Context, limit int, memoryType string) ([]types.MemoryRecord, error)
	SearchSimilar(ctx context.Context, query string, threshold float64, limit int) ([]types.SearchResult, error)
	Update(ctx context.Context, in types.UpdateInput) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (types.MemoryRecord, error)
	Stats(ctx context.Context) (types.Stats, error)
	Close() error
}

// SQLiteStore is a SQLite-backed memory store. It owns the embedding codec:
// every record's embedding is derived from its content at write time, and a
// content change always replaces the embedding in the same statement so
// readers never observe a stale pairing.
type SQLiteStore struct {
	db       *sql.DB
	embedder embeddings.Provider
	logger   *log.Logger
}

// OpenSQLite opens and initializes the SQLite store.
func OpenSQLite(ctx context.Context, dbPath string, embedder embeddings.Provider, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, embedder: embedder, logger: logger}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, stmt := range splitSQLStatements(schemaSQL) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run schema stmt: %w", err)
		}
	}
	return nil
}

func splitSQLStatements(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+";")
	}
	return out
}

// embedOrDegrade computes the embedding for content. Codec failure is
// absorbed: the record stays writable with an empty embedding and simply
// never matches similarity queries.
func (s *SQLiteStore) embedOrDegrade(ctx context.Context, content string) []byte {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Warn("embedding failed; storing record without vector", "error", err)
		return []byte{}
	}
	return encodeVector(vec)
}

// Add stores a new memory record and returns its assigned id.
func (s *SQLiteStore) Add(ctx context.Context, in types.AddInput) (int64, error) {
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	memoryType := in.MemoryType
	if memoryType == "" {
		memoryType = "conversation"
	}

	embedding := s.embedOrDegrade(ctx, in.Content)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	const q = `INSERT INTO memories (
		content, importance, memory_type, context, embedding, metadata_json,
		created_at, last_accessed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		in.Content,
		clampImportance(in.Importance),
		memoryType,
		in.Context,
		embedding,
		string(metaJSON),
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert memory id: %w", err)
	}
	return id, nil
}

// List returns records ordered by importance, then recency. limit <= 0 means
// unbounded; memoryType filters by exact match when non-empty.
func (s *SQLiteStore) List(ctx context.Context, limit int, memoryType string) ([]types.MemoryRecord, error) {
	base := `SELECT id, content, importance, memory_type, context, embedding, metadata_json,
       created_at, last_accessed_at
FROM memories`
	args := []any{}
	if memoryType != "" {
		base += " WHERE memory_type = ?"
		args = append(args, memoryType)
	}
	base += " ORDER BY importance DESC, created_at DESC"
	if limit > 0 {
		base += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	items := make([]types.MemoryRecord, 0, 16)
	for rows.Next() {
		rec, _, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// SearchSimilar ranks stored records by cosine similarity to the query text.
// Records with an empty embedding never match; an unembeddable query returns
// an empty result, not an error. The scan is O(n) over all stored vectors,
// which is fine at local-assistant scale; an ANN index is the first thing to
// reach for if the record count grows past a few thousand.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, query string, threshold float64, limit int) ([]types.SearchResult, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed; returning no matches", "error", err)
		return []types.SearchResult{}, nil
	}
	if len(queryVec) == 0 {
		return []types.SearchResult{}, nil
	}

	const q = `SELECT id, content, importance, memory_type, context, embedding, metadata_json,
       created_at, last_accessed_at
FROM memories
WHERE length(embedding) > 0`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	results := make([]types.SearchResult, 0, 16)
	for rows.Next() {
		rec, vec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim >= threshold {
			results = append(results, types.SearchResult{Record: rec, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Update applies a partial update. Supplying no fields is a no-op that does
// not touch last_accessed; an unknown id is likewise a no-op. A content
// change recomputes the embedding inside the same UPDATE statement.
func (s *SQLiteStore) Update(ctx context.Context, in types.UpdateInput) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if in.Content != nil {
		sets = append(sets, "content = ?", "embedding = ?")
		args = append(args, *in.Content, s.embedOrDegrade(ctx, *in.Content))
	}
	if in.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, clampImportance(*in.Importance))
	}
	if in.MemoryType != nil {
		sets = append(sets, "memory_type = ?")
		args = append(args, *in.MemoryType)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "last_accessed_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), in.ID)

	q := "UPDATE memories SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

// Delete removes a record. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Get fetches a single record by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (types.MemoryRecord, error) {
	const q = `SELECT id, content, importance, memory_type, context, embedding, metadata_json,
       created_at, last_accessed_at
FROM memories WHERE id = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, q, id)
	rec, _, err := scanMemoryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("get memory: %w", err)
	}
	return rec, nil
}

// Stats summarizes database counters. An empty store reports a zero average
// rather than a division error.
func (s *SQLiteStore) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	const q = `SELECT count(*), COALESCE(AVG(importance), 0.0), COUNT(DISTINCT memory_type)
FROM memories`
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.AvgImportance, &st.Types); err != nil {
		return st, fmt.Errorf("memory stats: %w", err)
	}
	return st, nil
}

// InsertRequestLog stores one request event for admin observability.
func (s *SQLiteStore) InsertRequestLog(ctx context.Context, rec RequestLog) error {
	ts := rec.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO mcp_requests (
		method, tool_name, success, error_text, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Method),
		strings.TrimSpace(rec.ToolName),
		success,
		strings.TrimSpace(rec.ErrorText),
		rec.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// RecentRequestLogs returns most recent request events in newest-first order.
func (s *SQLiteStore) RecentRequestLogs(ctx context.Context, limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, tool_name, success, error_text, duration_ms, created_at
FROM mcp_requests
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	items := make([]RequestLog, 0, limit)
	for rows.Next() {
		var (
			row            RequestLog
			successAsInt   int
			createdAtValue string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Method,
			&row.ToolName,
			&successAsInt,
			&row.ErrorText,
			&row.DurationMS,
			&createdAtValue,
		); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		row.Success = successAsInt == 1
		if ts, err := time.Parse(time.RFC3339Nano, createdAtValue); err == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

// RecentMemories returns compact memory rows in newest-first order.
func (s *SQLiteStore) RecentMemories(ctx context.Context, limit int) ([]RecentMemory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, memory_type, content, importance, created_at
FROM memories
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent memories: %w", err)
	}
	defer rows.Close()

	items := make([]RecentMemory, 0, limit)
	for rows.Next() {
		var (
			row            RecentMemory
			createdAtValue string
		)
		if err := rows.Scan(
			&row.ID,
			&row.MemoryType,
			&row.Content,
			&row.Importance,
			&createdAtValue,
		); err != nil {
			return nil, fmt.Errorf("scan recent memory: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAtValue); err == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemoryRow(sc scanner) (types.MemoryRecord, []float32, error) {
	var (
		rec            types.MemoryRecord
		embedding      []byte
		metadataJSON   string
		createdAt      string
		lastAccessedAt string
	)
	err := sc.Scan(
		&rec.ID,
		&rec.Content,
		&rec.Importance,
		&rec.MemoryType,
		&rec.Context,
		&embedding,
		&metadataJSON,
		&createdAt,
		&lastAccessedAt,
	)
	if err != nil {
		return rec, nil, err
	}

	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		rec.Metadata = map[string]any{}
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, nil, err
	}
	last, err := time.Parse(time.RFC3339Nano, lastAccessedAt)
	if err != nil {
		return rec, nil, err
	}
	rec.Timestamp = created
	rec.LastAccessed = last

	return rec, decodeVector(embedding), nil
}
