package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/uspq/neko-ai/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore is a persistent vector store implementation using SQLite.
// Similarity search is brute-force cosine in Go over rows pre-filtered by
// conversation id, so a conversation-scoped query never scans the whole
// index. Thread-safe and suitable for production workloads.
type SqliteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dims   int
	closed bool
}

// SqliteConfig holds configuration for SqliteStore.
type SqliteConfig struct {
	DBPath string // Path to SQLite database file
	Dims   int    // Embedding dimensions
}

// NewSqliteStore creates a new persistent vector store using SQLite.
func NewSqliteStore(cfg SqliteConfig) (*SqliteStore, error) {
	if cfg.DBPath == "" {
		return nil, types.NewError(ErrCodeInvalidConfig, "database path cannot be empty")
	}
	if cfg.Dims <= 0 {
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("dimensions must be positive, got %d", cfg.Dims))
	}

	// WAL mode for better concurrency
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", cfg.DBPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(ErrCodeVectorStoreUnavailable, "failed to open database", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, types.WrapError(ErrCodeVectorStoreUnavailable, "failed to ping database", err)
	}

	store := &SqliteStore{
		db:   db,
		dims: cfg.Dims,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, types.WrapError(ErrCodeVectorStoreUnavailable, "failed to initialize schema", err)
	}

	return store, nil
}

// initSchema creates the vectors table and the conversation index.
func (s *SqliteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS vectors_conversation_idx
			ON vectors (conversation_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Insert adds a single vector record to the store.
func (s *SqliteStore) Insert(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if len(record.Embedding) != s.dims {
		return types.NewError(ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding dimensions mismatch: expected %d, got %d", s.dims, len(record.Embedding)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vectors (id, conversation_id, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		record.ID.String(),
		record.ConversationID.String(),
		record.Content,
		serializeEmbedding(record.Embedding),
		record.Timestamp.UTC(),
	)
	if err != nil {
		return types.WrapRetryableError(ErrCodeVectorStoreFailed, "failed to insert record", err)
	}

	return nil
}

// Search finds similar records by embedding vector.
func (s *SqliteStore) Search(ctx context.Context, query Query) ([]Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if len(query.Embedding) != s.dims {
		return nil, types.NewError(ErrCodeDimensionMismatch,
			fmt.Sprintf("query embedding dimensions mismatch: expected %d, got %d",
				s.dims, len(query.Embedding)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	// Conversation-scoped queries use the index, avoiding a full scan.
	querySQL := `SELECT id, conversation_id, content, embedding, created_at FROM vectors`
	args := []any{}
	if !query.ConversationID.IsZero() {
		querySQL += ` WHERE conversation_id = ?`
		args = append(args, query.ConversationID.String())
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeVectorSearchFailed, "failed to query vectors", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var record Record
		var idStr, convStr string
		var embeddingBytes []byte

		if err := rows.Scan(&idStr, &convStr, &record.Content, &embeddingBytes, &record.Timestamp); err != nil {
			return nil, types.WrapError(ErrCodeVectorSearchFailed, "failed to scan record", err)
		}
		record.ID = types.ID(idStr)
		record.ConversationID = types.ID(convStr)

		embedding, err := deserializeEmbedding(embeddingBytes, s.dims)
		if err != nil {
			return nil, types.WrapError(ErrCodeVectorSearchFailed, "failed to deserialize embedding", err)
		}
		record.Embedding = embedding

		score := CosineSimilarity(query.Embedding, record.Embedding)
		if score >= query.MinScore {
			results = append(results, Result{Record: record, Score: score})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, types.WrapRetryableError(ErrCodeVectorSearchFailed, "error iterating rows", err)
	}

	sortResults(results)

	if len(results) > query.TopK {
		results = results[:query.TopK]
	}

	return results, nil
}

// Get retrieves a specific record by ID.
func (s *SqliteStore) Get(ctx context.Context, id types.ID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, content, embedding, created_at FROM vectors WHERE id = ?`,
		id.String())

	var record Record
	var idStr, convStr string
	var embeddingBytes []byte

	err := row.Scan(&idStr, &convStr, &record.Content, &embeddingBytes, &record.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(ErrCodeVectorNotFound, fmt.Sprintf("vector record not found: %s", id))
	}
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeVectorSearchFailed, "failed to get record", err)
	}

	record.ID = types.ID(idStr)
	record.ConversationID = types.ID(convStr)

	embedding, err := deserializeEmbedding(embeddingBytes, s.dims)
	if err != nil {
		return nil, types.WrapError(ErrCodeVectorSearchFailed, "failed to deserialize embedding", err)
	}
	record.Embedding = embedding

	return &record, nil
}

// Delete removes a record from the store.
func (s *SqliteStore) Delete(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id.String()); err != nil {
		return types.WrapRetryableError(ErrCodeVectorStoreFailed, "failed to delete record", err)
	}

	return nil
}

// DeleteByConversation removes every record belonging to the conversation.
func (s *SqliteStore) DeleteByConversation(ctx context.Context, conversationID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE conversation_id = ?`, conversationID.String())
	if err != nil {
		return 0, types.WrapRetryableError(ErrCodeVectorStoreFailed, "failed to delete conversation vectors", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, types.WrapError(ErrCodeVectorStoreFailed, "failed to read rows affected", err)
	}

	return int(affected), nil
}

// Count returns the number of stored records, optionally per conversation.
func (s *SqliteStore) Count(ctx context.Context, conversationID types.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	var count int
	var err error
	if conversationID.IsZero() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM vectors WHERE conversation_id = ?`, conversationID.String()).Scan(&count)
	}
	if err != nil {
		return 0, types.WrapRetryableError(ErrCodeVectorSearchFailed, "failed to count records", err)
	}

	return count, nil
}

// Health returns the current health status of the vector store.
func (s *SqliteStore) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Unhealthy("sqlite vector store is closed")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return types.Unhealthy(fmt.Sprintf("database ping failed: %v", err))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return types.Degraded(fmt.Sprintf("failed to count records: %v", err))
	}

	return types.Healthy(fmt.Sprintf("sqlite vector store operational with %d records (dims: %d)", count, s.dims))
}

// Close releases all resources held by the vector store.
func (s *SqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// serializeEmbedding converts a float64 slice to bytes for BLOB storage,
// 8 bytes per component, little-endian.
func serializeEmbedding(embedding []float64) []byte {
	buf := make([]byte, len(embedding)*8)
	for i, val := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(val))
	}
	return buf
}

// deserializeEmbedding converts bytes back to a float64 slice.
func deserializeEmbedding(data []byte, dims int) ([]float64, error) {
	if len(data) != dims*8 {
		return nil, fmt.Errorf("invalid embedding bytes length: expected %d, got %d", dims*8, len(data))
	}

	embedding := make([]float64, dims)
	for i := range embedding {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return embedding, nil
}

// sortResults orders results by score descending, breaking ties by
// most-recent timestamp.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Timestamp.After(results[j].Record.Timestamp)
	})
}

// CosineSimilarity computes the cosine similarity between two embedding
// vectors. Returns a score between 0 and 1, where 1 means identical
// direction. Zero vectors and mismatched lengths score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
