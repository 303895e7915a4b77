// Package store persists the analysis cache and the provider audit log.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medspa-portal/internal/config"
	"github.com/sells-group/medspa-portal/internal/model"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// Store defines local persistence for the portal.
type Store interface {
	// Analysis cache, keyed by image URL. A miss returns (nil, nil).
	GetCachedAnalysis(ctx context.Context, imageURL string) (*model.AnalysisResult, error)
	SetCachedAnalysis(ctx context.Context, imageURL string, result *model.AnalysisResult, ttl time.Duration) error
	DeleteExpiredAnalyses(ctx context.Context) (int, error)

	// Audit log
	RecordAudit(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error)
	ListAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres", "postgresql", "pgx":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func auditLimit(n int) int {
	switch {
	case n <= 0:
		return defaultAuditLimit
	case n > maxAuditLimit:
		return maxAuditLimit
	}
	return n
}

// buildAuditQuery renders the audit listing for a backend's placeholder
// syntax and timestamp encoding.
func buildAuditQuery(f model.AuditFilter, placeholder func(n int) string, ts func(time.Time) any) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if f.Provider != "" {
		add("provider = %s", f.Provider)
	}
	if f.Action != "" {
		add("action = %s", string(f.Action))
	}
	if !f.Since.IsZero() {
		add("created_at >= %s", ts(f.Since.UTC()))
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, provider, action, target, detail, created_at FROM audit_log")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, auditLimit(f.Limit))
	fmt.Fprintf(&sb, " ORDER BY created_at DESC, id DESC LIMIT %s", placeholder(len(args)))
	return sb.String(), args
}

func prepareAudit(e model.AuditEntry, newID func() string) (model.AuditEntry, error) {
	if e.Provider == "" {
		return e, eris.New("store: audit entry requires a provider")
	}
	if e.Action == "" {
		return e, eris.New("store: audit entry requires an action")
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
