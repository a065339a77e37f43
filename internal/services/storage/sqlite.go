package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/menta-tgbot-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Fixed-width UTC timestamps sort lexically in time order
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the append-only interaction history
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens or creates the database and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	if !isMemoryDSN(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// SaveInteraction appends one row and sets its ID
func (s *SQLiteStore) SaveInteraction(ctx context.Context, in *models.Interaction) error {
	if err := s.available(); err != nil {
		return err
	}

	var text sql.NullString
	if in.Text != "" {
		text = sql.NullString{String: in.Text, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, timestamp, type, text, sentimiento, alimentos, evaluacion, recomendacion)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strconv.FormatInt(in.UserID, 10),
		in.Timestamp.UTC().Format(timestampLayout),
		string(in.Type),
		text,
		string(in.Sentiment),
		nullable(in.Foods),
		nullable(in.Evaluation),
		nullable(in.Recommendation),
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		in.ID = id
	}
	return nil
}

// FetchUserInteractions returns a user's rows ordered by timestamp
func (s *SQLiteStore) FetchUserInteractions(ctx context.Context, userID int64) ([]models.Interaction, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, timestamp, type, text, sentimiento, alimentos, evaluacion, recomendacion
		 FROM interactions WHERE user_id = ? ORDER BY timestamp, id`,
		strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var (
			in                       models.Interaction
			uid, ts, typ             string
			text, sentiment          sql.NullString
			foods, eval, recommended sql.NullString
		)
		if err := rows.Scan(&in.ID, &uid, &ts, &typ, &text, &sentiment, &foods, &eval, &recommended); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}

		in.UserID, _ = strconv.ParseInt(uid, 10, 64)
		in.Timestamp, err = parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		in.Type = models.InputType(typ)
		in.Text = text.String
		in.Sentiment = models.ParseSentiment(sentiment.String)
		in.Foods = ptr(foods)
		in.Evaluation = ptr(eval)
		in.Recommendation = ptr(recommended)
		out = append(out, in)
	}
	return out, rows.Err()
}

// GlobalStats counts distinct users and total rows
func (s *SQLiteStore) GlobalStats(ctx context.Context) (models.GlobalStats, error) {
	var stats models.GlobalStats
	if err := s.available(); err != nil {
		return stats, err
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*) FROM interactions`).
		Scan(&stats.UniqueUsers, &stats.TotalInteractions)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// available reports ErrNoDatabase once the file has gone away
func (s *SQLiteStore) available() error {
	if s == nil || s.db == nil {
		return ErrNoDatabase
	}
	if isMemoryDSN(s.path) {
		return nil
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return ErrNoDatabase
	}
	return nil
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func parseTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	// Rows written by the legacy bot use naive isoformat()
	return time.ParseInLocation("2006-01-02T15:04:05.999999", ts, time.Local)
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
