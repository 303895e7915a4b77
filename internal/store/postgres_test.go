package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/medspa-portal/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analysis_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedAnalysis_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(sampleAnalysis())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT result FROM analysis_cache WHERE image_url = \$1`).
		WithArgs("https://cdn/img/a.jpg").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(data))

	got, err := s.GetCachedAnalysis(context.Background(), "https://cdn/img/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 72.0, got.OverallScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedAnalysis_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result FROM analysis_cache`).
		WithArgs("https://cdn/none.jpg").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedAnalysis(context.Background(), "https://cdn/none.jpg")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedAnalysis_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result FROM analysis_cache`).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetCachedAnalysis(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get cached analysis")
}

func TestPostgresStore_SetCachedAnalysis_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(image_url\)`).
		WithArgs("https://cdn/img/a.jpg", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCachedAnalysis(context.Background(), "https://cdn/img/a.jpg", sampleAnalysis(), 24*time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredAnalyses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM analysis_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredAnalyses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "Dr. Lee", "view_patient", "rec1", "", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, err := s.RecordAudit(context.Background(), model.AuditEntry{
		Provider:  "Dr. Lee",
		Action:    model.AuditViewPatient,
		Target:    "rec1",
		CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	at := since.Add(time.Hour)
	mock.ExpectQuery(`FROM audit_log WHERE provider = \$1 AND created_at >= \$2 ORDER BY created_at DESC, id DESC LIMIT \$3`).
		WithArgs("Dr. Lee", since, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider", "action", "target", "detail", "created_at"}).
			AddRow("a1", "Dr. Lee", "login", "", "", at))

	got, err := s.ListAudit(context.Background(), model.AuditFilter{Provider: "Dr. Lee", Since: since, Limit: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.AuditLogin, got[0].Action)
	assert.True(t, got[0].CreatedAt.Equal(at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
