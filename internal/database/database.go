// Package database stores an optional audit history of workflow results
// in PostgreSQL.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard
// `database/sql` with struct scanning. Queries are plain SQL. One *sqlx.DB
// is created at startup and shared; it pools connections internally and
// is safe for concurrent use.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver, registered by its init()
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// DB wraps the sqlx connection with the history queries.
type DB struct {
	*sqlx.DB
	log *zap.Logger
}

// New connects to PostgreSQL and configures the pool.
func New(databaseURL string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	// sqlx.Connect opens the connection and pings the database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	return &DB{DB: db, log: log}, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// --- Recording (implements workflow.Recorder) ---

// RecordExtraction stores the extracted text of a file.
func (db *DB) RecordExtraction(ctx context.Context, sessionID string, file models.FileInfo, text string) error {
	return db.record(ctx, sessionID, models.HistoryExtraction, file, text, map[string]string{"text": text})
}

// RecordAnalysis stores an engagement analysis.
func (db *DB) RecordAnalysis(ctx context.Context, sessionID string, file models.FileInfo, text string, result *models.AnalysisResult) error {
	return db.record(ctx, sessionID, models.HistoryAnalysis, file, text, result)
}

// RecordRewrite stores a set of tone rewrites.
func (db *DB) RecordRewrite(ctx context.Context, sessionID string, file models.FileInfo, text string, result *models.RewriteResult) error {
	return db.record(ctx, sessionID, models.HistoryRewrite, file, text, result)
}

func (db *DB) record(ctx context.Context, sessionID string, kind models.HistoryKind, file models.FileInfo, text string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	rec := &models.HistoryRecord{
		SessionID: sessionID,
		Kind:      kind,
		FileName:  file.Name,
		MediaType: file.MediaType,
		WordCount: WordCount(text),
		Payload:   raw,
	}
	if err := db.CreateHistoryRecord(ctx, rec); err != nil {
		return err
	}
	db.log.Debug("🗂️  History recorded", zap.String("id", rec.ID), zap.String("kind", string(kind)))
	return nil
}

// CreateHistoryRecord inserts a record and fills in its ID and timestamp.
func (db *DB) CreateHistoryRecord(ctx context.Context, rec *models.HistoryRecord) error {
	query := `
		INSERT INTO history (session_id, kind, file_name, media_type, word_count, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query,
		rec.SessionID, rec.Kind, rec.FileName, rec.MediaType, rec.WordCount, []byte(rec.Payload),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// ListHistory returns one page of records, newest first, plus the total
// number of matching records.
func (db *DB) ListHistory(ctx context.Context, params models.HistoryListParams) ([]models.HistoryRecord, int, error) {
	params = NormalizeListParams(params)
	where, args := historyFilter(params)

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM history "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	offset := (params.Page - 1) * params.PerPage
	query := fmt.Sprintf(
		"SELECT id, session_id, kind, file_name, media_type, word_count, payload, created_at FROM history %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2,
	)
	args = append(args, params.PerPage, offset)

	records := []models.HistoryRecord{}
	if err := db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list query failed: %w", err)
	}
	return records, total, nil
}

// NormalizeListParams applies paging defaults and bounds.
func NormalizeListParams(p models.HistoryListParams) models.HistoryListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 100 {
		p.PerPage = 20
	}
	return p
}

// historyFilter builds the WHERE clause and its positional args.
func historyFilter(p models.HistoryListParams) (string, []any) {
	var conditions []string
	var args []any

	if p.SessionID != "" {
		args = append(args, p.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if p.Kind != "" {
		args = append(args, p.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
