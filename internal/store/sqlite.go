package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/medspa-portal/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as Unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	image_url  TEXT PRIMARY KEY,
	result     TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	action     TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_provider ON audit_log(provider);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedAnalysis(ctx context.Context, imageURL string) (*model.AnalysisResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM analysis_cache WHERE image_url = ? AND expires_at > ?`,
		imageURL, s.now().UnixMilli(),
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached analysis")
	}

	var res model.AnalysisResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached analysis")
	}
	return &res, nil
}

func (s *SQLiteStore) SetCachedAnalysis(ctx context.Context, imageURL string, result *model.AnalysisResult, ttl time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	now := s.now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (image_url, result, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (image_url) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		imageURL, string(resultJSON), now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: set cached analysis")
}

func (s *SQLiteStore) DeleteExpiredAnalyses(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE expires_at <= ?`, s.now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired analyses")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) RecordAudit(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	e, err := prepareAudit(entry, uuid.NewString)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, provider, action, target, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Provider, string(e.Action), e.Target, e.Detail, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert audit entry")
	}
	return &e, nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	query, args := buildAuditQuery(filter,
		func(int) string { return "?" },
		func(t time.Time) any { return t.UnixMilli() },
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e      model.AuditEntry
			action string
			ms     int64
		)
		if err := rows.Scan(&e.ID, &e.Provider, &action, &e.Target, &e.Detail, &ms); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		e.Action = model.AuditAction(action)
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit")
}
