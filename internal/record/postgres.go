package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore persists call records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_records (
			id TEXT PRIMARY KEY,
			caller_name TEXT NOT NULL DEFAULT '',
			caller_role TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			roll_number TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			query_type TEXT NOT NULL,
			duration TEXT NOT NULL,
			status TEXT NOT NULL,
			transcript JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_created ON call_records (created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO call_records (id, caller_name, caller_role, phone_number, roll_number, summary, query_type, duration, status, transcript, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		rec.CallerName,
		rec.CallerRole,
		rec.PhoneNumber,
		rec.RollNumber,
		rec.Summary,
		string(rec.QueryType),
		rec.Duration,
		string(rec.Status),
		transcript,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save call record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, caller_name, caller_role, phone_number, roll_number, summary, query_type, duration, status, transcript, created_at
		 FROM call_records ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query call records: %w", err)
	}
	defer rows.Close()

	recs := make([]CallRecord, 0, limit)
	for rows.Next() {
		var (
			r          CallRecord
			queryType  string
			status     string
			transcript []byte
		)
		if err := rows.Scan(&r.ID, &r.CallerName, &r.CallerRole, &r.PhoneNumber, &r.RollNumber,
			&r.Summary, &queryType, &r.Duration, &status, &transcript, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		r.QueryType = QueryType(queryType)
		r.Status = CallStatus(status)
		if err := json.Unmarshal(transcript, &r.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript for %s: %w", r.ID, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call records: %w", err)
	}
	return recs, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
