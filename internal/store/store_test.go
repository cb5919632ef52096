package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func openCoreTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if st.Path() != path {
		t.Errorf("Path: got %q, want %q", st.Path(), path)
	}
	if st.Writer() == nil {
		t.Error("Writer is nil")
	}
	if st.Reader() == nil {
		t.Error("Reader is nil")
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open with nested dir: %v", err)
	}
	st.Close()
}

func TestPing(t *testing.T) {
	st := openCoreTestStore(t)
	if err := st.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestWALMode(t *testing.T) {
	st := openCoreTestStore(t)

	var mode string
	err := st.Writer().QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode: got %q, want %q", mode, "wal")
	}
}

func TestMigrations(t *testing.T) {
	st := openCoreTestStore(t)

	var version int
	err := st.Writer().QueryRow("SELECT MAX(version) FROM migrations").Scan(&version)
	if err != nil {
		t.Fatalf("query migration version: %v", err)
	}

	expected := len(migrations)
	if version != expected {
		t.Errorf("migration version: got %d, want %d", version, expected)
	}
}

func TestInsertAsset_FindByFingerprint(t *testing.T) {
	st := openCoreTestStore(t)

	rec := pipeline.AssetRecord{
		Fingerprint:  "fp-001",
		IPAddress:    "192.0.2.10",
		Hostname:     "ws-01",
		SerialNumber: "ABC12345",
		MACAddresses: []string{"AA:BB:CC:DD:EE:FF"},
		OpenPorts:    []int{22, 445},
		DeviceType:   pipeline.DeviceWorkstation,
	}

	id, err := st.InsertAsset(context.Background(), rec)
	if err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}

	found, err := st.FindCandidates(context.Background(), "fp-001", "", "", "", "")
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(found) != 1 || found[0].ID != id {
		t.Fatalf("expected to find inserted asset, got %+v", found)
	}
	if found[0].Record.Hostname != "ws-01" {
		t.Errorf("Hostname: got %q, want ws-01", found[0].Record.Hostname)
	}
	if len(found[0].Record.OpenPorts) != 2 {
		t.Errorf("OpenPorts: got %v", found[0].Record.OpenPorts)
	}
}

func TestUpdateAsset_ChangesPersist(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAsset(ctx, pipeline.AssetRecord{Fingerprint: "fp-002", Hostname: "old-name"})
	if err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}

	err = st.UpdateAsset(ctx, id, pipeline.AssetRecord{Fingerprint: "fp-002", Hostname: "new-name"})
	if err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}

	found, err := st.FindCandidates(ctx, "fp-002", "", "", "", "")
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(found) != 1 || found[0].Record.Hostname != "new-name" {
		t.Fatalf("expected updated hostname, got %+v", found)
	}
}

func TestArchiveAsset_ExcludedFromCandidates(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAsset(ctx, pipeline.AssetRecord{Fingerprint: "fp-003"})
	if err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}

	if err := st.ArchiveAsset(ctx, id, "decommissioned"); err != nil {
		t.Fatalf("ArchiveAsset: %v", err)
	}

	found, err := st.FindCandidates(ctx, "fp-003", "", "", "", "")
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected archived asset excluded, got %+v", found)
	}
}

func TestAppendHistory_LogResolution(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	id, err := st.InsertAsset(ctx, pipeline.AssetRecord{Fingerprint: "fp-004"})
	if err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}

	if err := st.AppendHistory(ctx, id, pipeline.AssetRecord{Fingerprint: "fp-004", Hostname: "prior"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	var count int
	if err := st.Writer().QueryRow("SELECT COUNT(*) FROM asset_history WHERE asset_id = ?", id).Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one history row, got %d", count)
	}
}

func TestInsertScanRun_FinishScanRun(t *testing.T) {
	st := openCoreTestStore(t)

	run := &ScanRun{ID: "run-1", StartedAt: time.Now().UTC().Format(time.RFC3339), TargetsExpanded: 100}
	if err := st.InsertScanRun(run); err != nil {
		t.Fatalf("InsertScanRun: %v", err)
	}

	run.AliveCount = 42
	run.ExitCode = 0
	if err := st.FinishScanRun(run); err != nil {
		t.Fatalf("FinishScanRun: %v", err)
	}

	got, err := st.GetScanRun("run-1")
	if err != nil {
		t.Fatalf("GetScanRun: %v", err)
	}
	if got.AliveCount != 42 {
		t.Errorf("AliveCount: got %d, want 42", got.AliveCount)
	}
	if got.FinishedAt == "" {
		t.Error("expected FinishedAt to be set")
	}
}

func TestListScanRuns(t *testing.T) {
	st := openCoreTestStore(t)

	for i := 0; i < 3; i++ {
		run := &ScanRun{ID: "list-run-" + string(rune('a'+i)), StartedAt: time.Now().UTC().Format(time.RFC3339)}
		if err := st.InsertScanRun(run); err != nil {
			t.Fatalf("InsertScanRun %d: %v", i, err)
		}
	}

	results, err := st.ListScanRuns(2, 0)
	if err != nil {
		t.Fatalf("ListScanRuns: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("ListScanRuns(2, 0): got %d, want 2", len(results))
	}
}

func TestGetScanRunStats(t *testing.T) {
	st := openCoreTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		run := &ScanRun{
			ID: "stats-run-" + string(rune('a'+i)), StartedAt: now.Format(time.RFC3339),
			AliveCount: 10, ReconciledCount: 5, RetryCount: 1, ExitCode: 0,
		}
		if err := st.InsertScanRun(run); err != nil {
			t.Fatalf("InsertScanRun: %v", err)
		}
	}

	stats, err := st.GetScanRunStats(now.Add(-1 * time.Hour))
	if err != nil {
		t.Fatalf("GetScanRunStats: %v", err)
	}
	if stats.TotalRuns != 3 {
		t.Errorf("TotalRuns: got %d, want 3", stats.TotalRuns)
	}
	if stats.TotalAlive != 30 {
		t.Errorf("TotalAlive: got %d, want 30", stats.TotalAlive)
	}
}

func TestScanBudget_AddScannedCreatesThenAccumulates(t *testing.T) {
	st := openCoreTestStore(t)

	if err := st.AddScanned("daily", "2026-07-30", 10, 500); err != nil {
		t.Fatalf("AddScanned: %v", err)
	}
	if err := st.AddScanned("daily", "2026-07-30", 5, 500); err != nil {
		t.Fatalf("AddScanned: %v", err)
	}

	b, err := st.GetScanBudget("daily", "2026-07-30")
	if err != nil {
		t.Fatalf("GetScanBudget: %v", err)
	}
	if b.EndpointsScanned != 15 {
		t.Errorf("EndpointsScanned: got %d, want 15", b.EndpointsScanned)
	}
}

func TestScanBudget_Reset(t *testing.T) {
	st := openCoreTestStore(t)

	if err := st.AddScanned("daily", "2026-07-29", 20, 500); err != nil {
		t.Fatalf("AddScanned: %v", err)
	}
	if err := st.ResetScanBudget("daily", "2026-07-29"); err != nil {
		t.Fatalf("ResetScanBudget: %v", err)
	}

	b, err := st.GetScanBudget("daily", "2026-07-29")
	if err != nil {
		t.Fatalf("GetScanBudget: %v", err)
	}
	if b.EndpointsScanned != 0 {
		t.Errorf("EndpointsScanned after reset: got %d, want 0", b.EndpointsScanned)
	}
}

func TestLogRedaction_GetRedactionLog(t *testing.T) {
	st := openCoreTestStore(t)

	entry := &RedactionLogEntry{
		AssetID: "asset-1", Timestamp: time.Now().UTC().Format(time.RFC3339),
		FieldPath: "working_user", Reason: "looked like an email address",
	}
	if err := st.LogRedaction(entry); err != nil {
		t.Fatalf("LogRedaction: %v", err)
	}

	got, err := st.GetRedactionLog("asset-1")
	if err != nil {
		t.Fatalf("GetRedactionLog: %v", err)
	}
	if len(got) != 1 || got[0].FieldPath != "working_user" {
		t.Fatalf("expected one redaction entry, got %+v", got)
	}
}

func TestPrune(t *testing.T) {
	st := openCoreTestStore(t)

	oldTime := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339)
	newTime := time.Now().UTC().Format(time.RFC3339)

	for i, ts := range []string{oldTime, oldTime, newTime} {
		run := &ScanRun{ID: "prune-" + string(rune('a'+i)), StartedAt: ts}
		if err := st.InsertScanRun(run); err != nil {
			t.Fatalf("InsertScanRun: %v", err)
		}
	}

	pruned, err := st.Prune(30) // retain 30 days
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned < 2 {
		t.Errorf("Prune: got %d rows deleted, want at least 2", pruned)
	}

	remaining, err := st.ListScanRuns(100, 0)
	if err != nil {
		t.Fatalf("ListScanRuns after prune: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("after prune: got %d scan runs, want 1", len(remaining))
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := pipeline.AssetRecord{Fingerprint: "conc-" + string(rune('a'+n))}
			if _, err := st.InsertAsset(ctx, rec); err != nil {
				t.Errorf("concurrent InsertAsset %d: %v", n, err)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = st.ListScanRuns(10, 0)
		}()
	}

	wg.Wait()
}
