package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"orderly/normalization"
)

func newTestDB(t *testing.T) *CurationDB {
	t.Helper()
	db, err := NewCurationDB(filepath.Join(t.TempDir(), "curation.db"))
	if err != nil {
		t.Fatalf("Failed to create curation database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(entityID string, decision normalization.Decision, finalName string) *normalization.CurationRecord {
	record := &normalization.CurationRecord{
		EntityID:         entityID,
		Kind:             normalization.EntityKindSKU,
		RawAliases:       []string{"wireless keyboard black", "techflow keybord wireles black"},
		BestMatchText:    "wireless keyboard black",
		MatchScore:       85,
		RunnerUpScore:    79.07,
		Decision:         decision,
		CanonicalTokens:  []string{"keyboard", "wireless"},
		AlternativeNames: []string{"techflow keybord wireles black"},
		RankedAliases: []normalization.RankedAlias{
			{Text: "wireless keyboard black", CanonicalizedText: "wireless keyboard black", Score: 85, OccurrenceCount: 2},
			{Text: "techflow keybord wireles black", CanonicalizedText: "techflow keyboard wireless black", Score: 79.07, OccurrenceCount: 2},
		},
		TotalOccurrences: 4,
	}
	if finalName != "" {
		record.FinalCanonicalName = &finalName
	}
	return record
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.db")

	for i := 0; i < 2; i++ {
		db, err := NewCurationDB(path)
		if err != nil {
			t.Fatalf("open #%d failed: %v", i+1, err)
		}
		var count int
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("Failed to count migrations: %v", err)
		}
		if count != len(curationMigrations) {
			t.Errorf("expected %d applied migrations, got %d", len(curationMigrations), count)
		}
		db.Close()
	}
}

func TestInMemoryDatabase(t *testing.T) {
	db, err := NewCurationDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	// Миграции должны быть видны на единственном соединении
	if _, err := db.ListSeedRows(context.Background()); err != nil {
		t.Fatalf("ListSeedRows failed: %v", err)
	}
}

func TestLoadEntityGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	items := []LineItem{
		{OrderID: "O1", EntityID: "SKU002", RawText: "usb hub"},
		{OrderID: "O2", EntityID: "SKU001", RawText: "wireless keyboard"},
		{OrderID: "O3", EntityID: "SKU001", RawText: " wireless keyboard "},
		{OrderID: "O4", EntityID: "SKU001", RawText: "wireles keyboard"},
		{OrderID: "O5", EntityID: "SKU001", RawText: "   "},
		{OrderID: "O6", EntityID: "V001", Kind: normalization.EntityKindVendor, RawText: "Acme Corp"},
	}
	n, err := db.InsertLineItems(ctx, items)
	if err != nil {
		t.Fatalf("InsertLineItems failed: %v", err)
	}
	if n != len(items) {
		t.Errorf("expected %d inserted items, got %d", len(items), n)
	}

	groups, err := db.LoadEntityGroups(ctx, normalization.EntityKindSKU)
	if err != nil {
		t.Fatalf("LoadEntityGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 sku groups, got %d", len(groups))
	}

	first := groups[0]
	if first.EntityID != "SKU001" || first.Kind != normalization.EntityKindSKU {
		t.Errorf("unexpected first group: %+v", first)
	}
	if len(first.Observations) != 2 {
		t.Fatalf("expected 2 observations for SKU001, got %+v", first.Observations)
	}
	if first.Observations[0].RawText != "wireless keyboard" || first.Observations[0].OccurrenceCount != 2 {
		t.Errorf("unexpected top observation: %+v", first.Observations[0])
	}
	if first.Observations[1].RawText != "wireles keyboard" || first.Observations[1].OccurrenceCount != 1 {
		t.Errorf("unexpected second observation: %+v", first.Observations[1])
	}

	vendors, err := db.LoadEntityGroups(ctx, normalization.EntityKindVendor)
	if err != nil {
		t.Fatalf("LoadEntityGroups(vendor) failed: %v", err)
	}
	if len(vendors) != 1 || vendors[0].EntityID != "V001" {
		t.Errorf("unexpected vendor groups: %+v", vendors)
	}
}

func TestSaveAndGetCurationRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	record := testRecord("SKU001", normalization.DecisionAuto, "wireless keyboard black")
	saved, err := db.SaveCurationRecords(ctx, "run-1", []*normalization.CurationRecord{record})
	if err != nil {
		t.Fatalf("SaveCurationRecords failed: %v", err)
	}
	if saved != 1 {
		t.Errorf("expected 1 saved record, got %d", saved)
	}

	got, err := db.GetCurationRecord(ctx, "SKU001")
	if err != nil {
		t.Fatalf("GetCurationRecord failed: %v", err)
	}
	if got.FinalName() != "wireless keyboard black" {
		t.Errorf("unexpected final name %q", got.FinalName())
	}
	if got.Decision != normalization.DecisionAuto {
		t.Errorf("unexpected decision %q", got.Decision)
	}
	if len(got.RankedAliases) != 2 || got.RankedAliases[1].CanonicalizedText != "techflow keyboard wireless black" {
		t.Errorf("ranked aliases were not restored: %+v", got.RankedAliases)
	}
	if len(got.CanonicalTokens) != 2 || got.CanonicalTokens[0] != "keyboard" {
		t.Errorf("unexpected canonical tokens %v", got.CanonicalTokens)
	}
	if got.ReviewedAt != nil {
		t.Errorf("new record should not be reviewed")
	}

	_, err = db.GetCurationRecord(ctx, "missing")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestNeedApprovalRecordHasNullFinalName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	record := testRecord("SKU009", normalization.DecisionNeedApproval, "")
	if _, err := db.SaveCurationRecords(ctx, "run-1", []*normalization.CurationRecord{record}); err != nil {
		t.Fatalf("SaveCurationRecords failed: %v", err)
	}

	got, err := db.GetCurationRecord(ctx, "SKU009")
	if err != nil {
		t.Fatalf("GetCurationRecord failed: %v", err)
	}
	if got.FinalCanonicalName != nil {
		t.Errorf("expected NULL final name, got %q", *got.FinalCanonicalName)
	}
}

func TestApproveCurationRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	records := []*normalization.CurationRecord{
		testRecord("SKU001", normalization.DecisionNeedApproval, ""),
		testRecord("SKU002", normalization.DecisionNeedApproval, ""),
	}
	if _, err := db.SaveCurationRecords(ctx, "run-1", records); err != nil {
		t.Fatalf("SaveCurationRecords failed: %v", err)
	}

	approved, err := db.ApproveCurationRecord(ctx, "SKU001", "Wireless Keyboard (Black)", "anna")
	if err != nil {
		t.Fatalf("ApproveCurationRecord failed: %v", err)
	}
	if approved.Decision != normalization.DecisionApproved || approved.FinalName() != "Wireless Keyboard (Black)" {
		t.Errorf("unexpected approved record: %+v", approved)
	}

	// Пустое имя берется у лидера ранжирования
	fallback, err := db.ApproveCurationRecord(ctx, "SKU002", "  ", "anna")
	if err != nil {
		t.Fatalf("ApproveCurationRecord fallback failed: %v", err)
	}
	if fallback.FinalName() != "wireless keyboard black" {
		t.Errorf("unexpected fallback name %q", fallback.FinalName())
	}

	stored, err := db.GetCurationRecord(ctx, "SKU001")
	if err != nil {
		t.Fatalf("GetCurationRecord failed: %v", err)
	}
	if stored.ReviewedBy != "anna" || stored.ReviewedAt == nil {
		t.Errorf("review metadata was not stored: %+v", stored)
	}

	if _, err := db.ApproveCurationRecord(ctx, "missing", "x", "anna"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRecurationKeepsApprovedRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveCurationRecords(ctx, "run-1", []*normalization.CurationRecord{
		testRecord("SKU001", normalization.DecisionNeedApproval, ""),
		testRecord("SKU002", normalization.DecisionNeedApproval, ""),
	}); err != nil {
		t.Fatalf("SaveCurationRecords failed: %v", err)
	}
	if _, err := db.ApproveCurationRecord(ctx, "SKU001", "Approved Name", "anna"); err != nil {
		t.Fatalf("ApproveCurationRecord failed: %v", err)
	}

	saved, err := db.SaveCurationRecords(ctx, "run-2", []*normalization.CurationRecord{
		testRecord("SKU001", normalization.DecisionAuto, "wireless keyboard black"),
		testRecord("SKU002", normalization.DecisionAuto, "wireless keyboard black"),
	})
	if err != nil {
		t.Fatalf("SaveCurationRecords run-2 failed: %v", err)
	}
	if saved != 1 {
		t.Errorf("expected only the unapproved record to be updated, got %d", saved)
	}

	kept, _ := db.GetCurationRecord(ctx, "SKU001")
	if kept.Decision != normalization.DecisionApproved || kept.FinalName() != "Approved Name" {
		t.Errorf("approved record was overwritten: %+v", kept)
	}
	updated, _ := db.GetCurationRecord(ctx, "SKU002")
	if updated.Decision != normalization.DecisionAuto {
		t.Errorf("expected SKU002 to be re-curated, got %q", updated.Decision)
	}
}

func TestListCurationRecordsAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	vendor := testRecord("V001", normalization.DecisionAuto, "Acme")
	vendor.Kind = normalization.EntityKindVendor
	records := []*normalization.CurationRecord{
		testRecord("SKU003", normalization.DecisionAuto, "c"),
		testRecord("SKU001", normalization.DecisionNeedApproval, ""),
		testRecord("SKU002", normalization.DecisionAuto, "b"),
		vendor,
	}
	if _, err := db.SaveCurationRecords(ctx, "run-1", records); err != nil {
		t.Fatalf("SaveCurationRecords failed: %v", err)
	}

	all, err := db.ListCurationRecords(ctx, RecordFilter{Kind: normalization.EntityKindSKU})
	if err != nil {
		t.Fatalf("ListCurationRecords failed: %v", err)
	}
	if len(all) != 3 || all[0].EntityID != "SKU001" || all[2].EntityID != "SKU003" {
		t.Errorf("unexpected listing order: %v", entityIDs(all))
	}

	auto, err := db.ListCurationRecords(ctx, RecordFilter{Kind: normalization.EntityKindSKU, Decision: normalization.DecisionAuto, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListCurationRecords with paging failed: %v", err)
	}
	if len(auto) != 1 || auto[0].EntityID != "SKU003" {
		t.Errorf("unexpected paged listing: %v", entityIDs(auto))
	}

	counts, err := db.CountByDecision(ctx, normalization.EntityKindSKU)
	if err != nil {
		t.Fatalf("CountByDecision failed: %v", err)
	}
	if counts["AUTO"] != 2 || counts["NEED_APPROVAL"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	// Пустой вид считает записи всех видов
	allCounts, err := db.CountByDecision(ctx, "")
	if err != nil {
		t.Fatalf("CountByDecision for all kinds failed: %v", err)
	}
	if allCounts["AUTO"] != 3 || allCounts["NEED_APPROVAL"] != 1 {
		t.Errorf("unexpected counts for all kinds: %v", allCounts)
	}
}

func entityIDs(records []*normalization.CurationRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.EntityID)
	}
	return ids
}

func TestSeedRowsAndRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rows := []normalization.SeedRow{
		{EntityID: "SKU002", CanonicalName: "usb hub", Source: normalization.SeedSourceAuto, EffectiveFrom: "2026-10-14", Version: "v0.1"},
		{EntityID: "SKU001", CanonicalName: "wireless keyboard", Source: normalization.SeedSourceApproved, EffectiveFrom: "2026-10-14", Version: "v0.1"},
	}
	if _, err := db.UpsertSeedRows(ctx, rows); err != nil {
		t.Fatalf("UpsertSeedRows failed: %v", err)
	}
	rows[1].CanonicalName = "Wireless Keyboard"
	rows[1].Version = "v0.2"
	if _, err := db.UpsertSeedRows(ctx, rows[1:]); err != nil {
		t.Fatalf("UpsertSeedRows update failed: %v", err)
	}

	stored, err := db.ListSeedRows(ctx)
	if err != nil {
		t.Fatalf("ListSeedRows failed: %v", err)
	}
	if len(stored) != 2 || stored[0].EntityID != "SKU001" || stored[0].CanonicalName != "Wireless Keyboard" || stored[0].Version != "v0.2" {
		t.Errorf("unexpected seed rows: %+v", stored)
	}

	latest, err := db.LatestRun(ctx, normalization.EntityKindSKU)
	if err != nil || latest != nil {
		t.Fatalf("expected no runs yet, got %+v, %v", latest, err)
	}

	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		run := CurationRun{
			RunID:      id,
			Kind:       normalization.EntityKindSKU,
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
			Records:    10 + i,
		}
		if err := db.SaveCurationRun(ctx, run); err != nil {
			t.Fatalf("SaveCurationRun failed: %v", err)
		}
	}

	latest, err = db.LatestRun(ctx, normalization.EntityKindSKU)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest == nil || latest.RunID != "run-b" || latest.Records != 11 {
		t.Errorf("unexpected latest run: %+v", latest)
	}
	if !latest.FinishedAt.Equal(start.Add(time.Hour + time.Minute)) {
		t.Errorf("finished_at was not restored: %v", latest.FinishedAt)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err); got != tt.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("syntax error")
	err := withRetry(context.Background(), DefaultRetryConfig(), "test", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected a single attempt with the permanent error, got %d calls, %v", calls, err)
	}

	calls = 0
	config := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	err = withRetry(context.Background(), config, "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("expected success on third attempt, got %d calls, %v", calls, err)
	}
}
