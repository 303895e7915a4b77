package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/medspa-portal/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleAnalysis() *model.AnalysisResult {
	return &model.AnalysisResult{
		ImageURL:     "https://cdn/img/a.jpg",
		OverallScore: 72,
		Findings: []model.Finding{
			{Name: "Fine Lines", Score: 64, DisplayScore: 82.4, Level: "Significant"},
		},
		Recommendations: []model.Recommendation{
			{Treatment: "Botox", Serves: []string{"Fine Lines"}},
		},
	}
}

// --- Analysis cache ---

func TestSQLite_AnalysisCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedAnalysis(ctx, "https://cdn/img/a.jpg", sampleAnalysis(), time.Hour))

	got, err := st.GetCachedAnalysis(ctx, "https://cdn/img/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 72.0, got.OverallScore, 0.001)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "Fine Lines", got.Findings[0].Name)
	assert.Equal(t, "Botox", got.Recommendations[0].Treatment)
}

func TestSQLite_AnalysisCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedAnalysis(context.Background(), "https://cdn/none.jpg")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_AnalysisCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedAnalysis(ctx, "https://cdn/old.jpg", sampleAnalysis(), -time.Hour))

	got, err := st.GetCachedAnalysis(ctx, "https://cdn/old.jpg")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredAnalyses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_AnalysisCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := sampleAnalysis()
	require.NoError(t, st.SetCachedAnalysis(ctx, "k", first, time.Hour))

	second := sampleAnalysis()
	second.OverallScore = 40
	require.NoError(t, st.SetCachedAnalysis(ctx, "k", second, time.Hour))

	got, err := st.GetCachedAnalysis(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 40.0, got.OverallScore, 0.001)
}

func TestSQLite_AnalysisCache_ClockControlsExpiry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	require.NoError(t, st.SetCachedAnalysis(ctx, "k", sampleAnalysis(), 24*time.Hour))

	st.now = func() time.Time { return base.Add(23 * time.Hour) }
	got, err := st.GetCachedAnalysis(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, got)

	st.now = func() time.Time { return base.Add(25 * time.Hour) }
	got, err = st.GetCachedAnalysis(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Audit log ---

func TestSQLite_Audit_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	entries := []model.AuditEntry{
		{Provider: "Dr. Lee", Action: model.AuditLogin, CreatedAt: base},
		{Provider: "Dr. Lee", Action: model.AuditViewPatient, Target: "rec1", CreatedAt: base.Add(time.Minute)},
		{Provider: "Dr. Rivera", Action: model.AuditUpdatePatient, Target: "rec2", Detail: "status", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		got, err := st.RecordAudit(ctx, e)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
	}

	all, err := st.ListAudit(ctx, model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.AuditUpdatePatient, all[0].Action)
	assert.Equal(t, "status", all[0].Detail)
	assert.True(t, all[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	lee, err := st.ListAudit(ctx, model.AuditFilter{Provider: "Dr. Lee"})
	require.NoError(t, err)
	require.Len(t, lee, 2)
	assert.Equal(t, "rec1", lee[0].Target)

	views, err := st.ListAudit(ctx, model.AuditFilter{Action: model.AuditViewPatient})
	require.NoError(t, err)
	require.Len(t, views, 1)

	recent, err := st.ListAudit(ctx, model.AuditFilter{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := st.ListAudit(ctx, model.AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Audit_Validation(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.RecordAudit(context.Background(), model.AuditEntry{Action: model.AuditLogin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a provider")

	_, err = st.RecordAudit(context.Background(), model.AuditEntry{Provider: "Dr. Lee"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an action")
}

func TestSQLite_InMemory(t *testing.T) {
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	_, err = st.RecordAudit(ctx, model.AuditEntry{Provider: "p", Action: model.AuditLogin})
	require.NoError(t, err)

	got, err := st.ListAudit(ctx, model.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
