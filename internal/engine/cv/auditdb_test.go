package cv

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// resetAuditDB points the audit store at a fresh temp database.
func resetAuditDB(t *testing.T) {
	t.Helper()
	if auditDB != nil {
		auditDB.Close()
	}
	auditOnce = sync.Once{}
	auditDB = nil
	auditErr = nil
	engine.Init(engine.Config{
		AuditDBPath:  filepath.Join(t.TempDir(), "audit.db"),
		FetchTimeout: 5 * time.Second,
	})
}

func TestSaveAndListExports(t *testing.T) {
	resetAuditDB(t)
	ctx := context.Background()

	reports := []*ExportReport{
		{DocID: "doc-a", Metrics: ExtractionMetrics{QualityScore: 0.80}},
		{DocID: "doc-b", Metrics: ExtractionMetrics{QualityScore: 0.50}},
		{DocID: "doc-a", Metrics: ExtractionMetrics{QualityScore: 0.90}},
	}
	var ids []int64
	for _, r := range reports {
		id, err := SaveExport(ctx, r)
		require.NoError(t, err, "save %s", r.DocID)
		ids = append(ids, id)
	}
	require.NotEqual(t, ids[0], ids[1])
	require.NotEqual(t, ids[1], ids[2])

	got, err := ListExports(ctx, "doc-a", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	require.Greater(t, got[0].ID, got[1].ID)

	var report ExportReport
	require.NoError(t, json.Unmarshal(got[0].Report, &report), "stored report not valid JSON")
	require.Equal(t, 0.90, report.Metrics.QualityScore, "latest save must come back first")

	all, err := ListExports(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestListExportsLimit(t *testing.T) {
	resetAuditDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := SaveExport(ctx, &ExportReport{DocID: "doc-limit"})
		require.NoError(t, err)
	}

	got, err := ListExports(ctx, "doc-limit", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Out-of-range limits fall back to the default page size.
	got, err = ListExports(ctx, "doc-limit", -1)
	require.NoError(t, err)
	require.Len(t, got, 5)
}

func TestSaveExportNil(t *testing.T) {
	_, err := SaveExport(context.Background(), nil)
	require.Error(t, err)
}

func TestListExportsEmpty(t *testing.T) {
	resetAuditDB(t)
	got, err := ListExports(context.Background(), "missing", 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
