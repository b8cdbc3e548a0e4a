package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/corpus"
)

const schema = `
CREATE TABLE IF NOT EXISTS seed_vectors (
	id             BIGSERIAL PRIMARY KEY,
	text           TEXT NOT NULL,
	text_hash      CHAR(64) NOT NULL,
	tool_count     INTEGER NOT NULL,
	privacy        DOUBLE PRECISION NOT NULL DEFAULT 0,
	complexity     DOUBLE PRECISION NOT NULL DEFAULT 0,
	tools          TEXT NOT NULL DEFAULT '',
	tier           TEXT NOT NULL DEFAULT '',
	embedding_type TEXT NOT NULL DEFAULT '',
	embedding      vector,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (text_hash, embedding_type)
)`

// Config contains database configuration
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BatchSize       int
}

// Store persists seed entries and their embeddings in PostgreSQL + pgvector
type Store struct {
	db        *sqlx.DB
	logger    *zap.Logger
	batchSize int
}

// NewStore connects, checks for the pgvector extension and creates the
// seed_vectors table when missing.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	store := &Store{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Seed store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("batch_size", batchSize))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var extensionExists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	if err := s.db.GetContext(ctx, &extensionExists, query); err != nil {
		return fmt.Errorf("failed to check pgvector extension: %w", err)
	}
	if !extensionExists {
		return fmt.Errorf("pgvector extension is not installed")
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create seed_vectors table: %w", err)
	}
	return nil
}

// SaveSeeds upserts entries under embeddingType in batches. Entries without
// an embedding are stored with a NULL vector.
func (s *Store) SaveSeeds(ctx context.Context, entries []corpus.SeedEntry, embeddingType string) (*BatchInsertResult, error) {
	start := time.Now()
	result := &BatchInsertResult{}

	for lo := 0; lo < len(entries); lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > len(entries) {
			hi = len(entries)
		}
		batch := entries[lo:hi]

		const cols = 9
		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*cols)
		for i, e := range batch {
			n := i * cols
			valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d::vector)",
				n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9))
			valueArgs = append(valueArgs,
				e.Text,
				textHash(e.Text),
				e.ToolCount,
				e.Privacy,
				e.Complexity,
				strings.Join(e.Tools, "|"),
				e.Tier,
				embeddingType,
				nullableEmbedding(e.Embedding),
			)
		}

		query := fmt.Sprintf(`
			INSERT INTO seed_vectors (text, text_hash, tool_count, privacy, complexity, tools, tier, embedding_type, embedding)
			VALUES %s
			ON CONFLICT (text_hash, embedding_type) DO UPDATE SET
				tool_count = EXCLUDED.tool_count,
				privacy = EXCLUDED.privacy,
				complexity = EXCLUDED.complexity,
				tools = EXCLUDED.tools,
				tier = EXCLUDED.tier,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()`,
			strings.Join(valueStrings, ","))

		res, err := s.db.ExecContext(ctx, query, valueArgs...)
		if err != nil {
			s.logger.Error("Batch upsert failed", zap.Int("offset", lo), zap.Error(err))
			return result, fmt.Errorf("batch upsert at offset %d failed: %w", lo, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			affected = int64(len(batch))
		}
		result.Inserted += affected
		result.Skipped += int64(len(batch)) - affected
	}

	result.Duration = time.Since(start)
	s.logger.Info("Seeds saved",
		zap.String("embedding_type", embeddingType),
		zap.Int64("upserted", result.Inserted),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// LoadSeeds returns every stored seed once, in insertion order. Embeddings
// are attached only when they were produced by embeddingType; other seeds
// come back without one so the caller can embed them.
func (s *Store) LoadSeeds(ctx context.Context, embeddingType string) ([]corpus.SeedEntry, error) {
	query := `
		SELECT id, text, text_hash, tool_count, privacy, complexity, tools, tier, embedding_type, embedding
		FROM (
			SELECT DISTINCT ON (text_hash)
				id, text, text_hash, tool_count, privacy, complexity, tools, tier, embedding_type,
				COALESCE(embedding::text, '') AS embedding
			FROM seed_vectors
			ORDER BY text_hash, (embedding_type = $1) DESC, id
		) seeds
		ORDER BY id`

	var rows []struct {
		SeedVector
		EmbeddingText string `db:"embedding"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, embeddingType); err != nil {
		return nil, fmt.Errorf("failed to load seeds: %w", err)
	}

	entries := make([]corpus.SeedEntry, 0, len(rows))
	reused := 0
	for _, row := range rows {
		v := row.SeedVector
		if v.EmbeddingType == embeddingType && row.EmbeddingText != "" {
			embedding, err := parseEmbedding(row.EmbeddingText)
			if err != nil {
				s.logger.Warn("Ignoring unreadable stored embedding", zap.Int64("id", v.ID), zap.Error(err))
			} else {
				v.Embedding = embedding
				reused++
			}
		}
		entries = append(entries, v.Entry())
	}

	s.logger.Info("Seeds loaded",
		zap.Int("count", len(entries)),
		zap.Int("embeddings_reused", reused),
		zap.String("embedding_type", embeddingType))

	return entries, nil
}

// GetStats returns seed table statistics
func (s *Store) GetStats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{ByEmbedding: make(map[string]int64)}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN tool_count >= 2 THEN 1 END) AS multi_tool
		FROM seed_vectors`
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.TotalVectors, &stats.MultiToolCount); err != nil {
		return nil, fmt.Errorf("failed to get seed stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT embedding_type, COUNT(*) FROM seed_vectors GROUP BY embedding_type")
	if err != nil {
		return nil, fmt.Errorf("failed to group seed stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan seed stats: %w", err)
		}
		stats.ByEmbedding[name] = count
	}
	return stats, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Entry converts the row back into a corpus entry.
func (v SeedVector) Entry() corpus.SeedEntry {
	var tools []string
	if v.Tools != "" {
		tools = strings.Split(v.Tools, "|")
	}
	return corpus.SeedEntry{
		Text:       v.Text,
		ToolCount:  v.ToolCount,
		Privacy:    v.Privacy,
		Complexity: v.Complexity,
		Tools:      tools,
		Tier:       v.Tier,
		Embedding:  v.Embedding,
	}
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func nullableEmbedding(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return formatEmbedding(embedding)
}

// formatEmbedding converts float32 slice to PostgreSQL vector format
func formatEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseEmbedding converts PostgreSQL vector format back to float32 slice
func parseEmbedding(embeddingStr string) ([]float32, error) {
	embeddingStr = strings.Trim(strings.TrimSpace(embeddingStr), "[]")
	if embeddingStr == "" {
		return nil, fmt.Errorf("empty embedding")
	}

	parts := strings.Split(embeddingStr, ",")
	embedding := make([]float32, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding value %d: %w", i, err)
		}
		embedding[i] = float32(val)
	}
	return embedding, nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || scheme > at {
		return url
	}
	userinfo := url[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return url
	}
	return url[:scheme+3] + userinfo[:colon] + ":***" + url[at:]
}
