package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
	"github.com/fardannozami/stepquest/internal/infra/sqlite"
)

// =============================================================================
// SQLITE STORE TESTS
// =============================================================================
//
// Tests the SQLite implementation of domain.Store using an in-memory database.
// Each test gets a fresh database to ensure isolation. An in-memory database
// lives on a single connection, so the pool is capped at one.
//
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, *sqlite.Store, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	store := sqlite.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, store, cleanup
}

func date(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStore_Migrate_Idempotent(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.EnsureUserProgress(ctx, "user1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	p, err := store.GetUserProgress(ctx, "user1")
	if err != nil || p == nil {
		t.Errorf("Data should survive a second migrate: %+v %v", p, err)
	}
}

// =============================================================================
// USER PROGRESS
// =============================================================================

func TestStore_GetUserProgress_NotFound(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	p, err := store.GetUserProgress(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil for nonexistent user, got %+v", p)
	}
}

func TestStore_EnsureUserProgress(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.EnsureUserProgress(ctx, "user1"); err != nil {
			t.Fatalf("Ensure %d: %v", i, err)
		}
	}

	p, err := store.GetUserProgress(ctx, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 0 || p.Level != 1 || p.CurrentStreakDays != 0 || !p.LastActiveDate.IsZero() {
		t.Errorf("Unexpected fresh progress %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestStore_UpdateStreakAndName(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_ = store.EnsureUserProgress(ctx, "user1")

	if err := store.UpdateStreak(ctx, "user1", 4, 9, date("2026-02-10")); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateDisplayName(ctx, "user1", "Alice"); err != nil {
		t.Fatal(err)
	}

	p, _ := store.GetUserProgress(ctx, "user1")
	if p.CurrentStreakDays != 4 || p.LongestStreakDays != 9 {
		t.Errorf("Expected streak 4/9, got %d/%d", p.CurrentStreakDays, p.LongestStreakDays)
	}
	if !p.LastActiveDate.Equal(date("2026-02-10")) {
		t.Errorf("Expected last active 2026-02-10, got %s", p.LastActiveDate)
	}
	if p.DisplayName != "Alice" {
		t.Errorf("Expected name 'Alice', got '%s'", p.DisplayName)
	}
}

func TestStore_CompareAndSwapXP(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_ = store.EnsureUserProgress(ctx, "user1")

	ok, err := store.CompareAndSwapXP(ctx, "user1", 0, 120, 2)
	if err != nil || !ok {
		t.Fatalf("First swap should succeed: %v %v", ok, err)
	}

	ok, err = store.CompareAndSwapXP(ctx, "user1", 0, 500, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Swap from a stale total should fail")
	}

	p, _ := store.GetUserProgress(ctx, "user1")
	if p.TotalXP != 120 || p.Level != 2 {
		t.Errorf("Expected 120 XP level 2, got %d XP level %d", p.TotalXP, p.Level)
	}
}

// =============================================================================
// DAILY QUESTS
// =============================================================================

func newQuest(id, userID string, d time.Time) *domain.DailyQuest {
	return &domain.DailyQuest{
		ID:          id,
		UserID:      userID,
		QuestDate:   d,
		QuestType:   domain.QuestSteps,
		TargetValue: 6000,
		XPReward:    30,
		CreatedAt:   time.Date(2026, 2, 10, 8, 0, 0, 123456000, time.UTC),
	}
}

func TestStore_GetQuest_RejectsUnknownType(t *testing.T) {
	db, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := store.InsertQuest(ctx, newQuest("q1", "user1", date("2026-02-10"))); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE daily_quests SET quest_type = 'dance' WHERE id = 'q1'`); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetQuest(ctx, "q1"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an unknown quest type, got %v", err)
	}
}

func TestStore_InsertQuest_OnePerDay(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	d := date("2026-02-10")

	inserted, err := store.InsertQuest(ctx, newQuest("q1", "user1", d))
	if err != nil || !inserted {
		t.Fatalf("First insert: %v %v", inserted, err)
	}
	inserted, err = store.InsertQuest(ctx, newQuest("q2", "user1", d))
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("Second quest for the same day should not be inserted")
	}

	q, err := store.GetQuestForDate(ctx, "user1", d)
	if err != nil {
		t.Fatal(err)
	}
	if q.ID != "q1" || q.QuestType != domain.QuestSteps || !q.QuestDate.Equal(d) {
		t.Errorf("Unexpected quest %+v", q)
	}
	if !q.CreatedAt.Equal(time.Date(2026, 2, 10, 8, 0, 0, 123456000, time.UTC)) {
		t.Errorf("CreatedAt not preserved: %s", q.CreatedAt)
	}

	if q, _ := store.GetQuest(ctx, "missing"); q != nil {
		t.Errorf("Expected nil for missing quest, got %+v", q)
	}
}

func TestStore_RaiseQuestProgress(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, _ = store.InsertQuest(ctx, newQuest("q1", "user1", date("2026-02-10")))
	first := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	q, _ := store.RaiseQuestProgress(ctx, "q1", 3000, first)
	if q.CurrentProgress != 3000 || q.Completed || q.CompletedAt != nil {
		t.Errorf("After 3000: %+v", q)
	}

	q, _ = store.RaiseQuestProgress(ctx, "q1", 1000, first)
	if q.CurrentProgress != 3000 {
		t.Errorf("Progress should not regress, got %d", q.CurrentProgress)
	}

	q, _ = store.RaiseQuestProgress(ctx, "q1", 6500, first)
	if !q.Completed || q.CompletedAt == nil || !q.CompletedAt.Equal(first) {
		t.Errorf("After 6500 quest should be completed at %s: %+v", first, q)
	}

	q, _ = store.RaiseQuestProgress(ctx, "q1", 8000, later)
	if !q.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt should be kept, got %s", q.CompletedAt)
	}

	ok, err := store.MarkQuestClaimed(ctx, "q1", later)
	if err != nil || !ok {
		t.Fatalf("Claim: %v %v", ok, err)
	}
	ok, _ = store.MarkQuestClaimed(ctx, "q1", later)
	if ok {
		t.Error("Second claim should not succeed")
	}

	q, _ = store.RaiseQuestProgress(ctx, "q1", 20000, later)
	if q.CurrentProgress != 8000 || !q.Claimed || q.ClaimedAt == nil {
		t.Errorf("Claimed quest must be frozen: %+v", q)
	}

	if q, _ := store.RaiseQuestProgress(ctx, "missing", 1, later); q != nil {
		t.Errorf("Expected nil for missing quest, got %+v", q)
	}
}

func TestStore_MarkQuestClaimed_RequiresCompletion(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, _ = store.InsertQuest(ctx, newQuest("q1", "user1", date("2026-02-10")))

	ok, err := store.MarkQuestClaimed(ctx, "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Incomplete quest should not be claimable")
	}
}

// =============================================================================
// XP LEDGER
// =============================================================================

func newAward(id, sourceID string, amount int, at time.Time) *domain.XPAward {
	return &domain.XPAward{
		ID:         id,
		UserID:     "user1",
		Amount:     amount,
		SourceType: domain.SourceQuest,
		SourceID:   sourceID,
		Reason:     "test",
		CreatedAt:  at,
	}
}

func TestStore_TryInsertXPAward_Dedupes(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	inserted, got, err := store.TryInsertXPAward(ctx, newAward("a1", "q1", 30, at))
	if err != nil || !inserted || got.ID != "a1" {
		t.Fatalf("First insert: %v %+v %v", inserted, got, err)
	}

	inserted, got, err = store.TryInsertXPAward(ctx, newAward("a2", "q1", 99, at.Add(time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("Same source should not insert twice")
	}
	if got.ID != "a1" || got.Amount != 30 || !got.CreatedAt.Equal(at) {
		t.Errorf("Expected the existing award, got %+v", got)
	}

	awards, err := store.ListAwards(ctx, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if len(awards) != 1 {
		t.Errorf("Expected 1 award, got %d", len(awards))
	}
}

func TestStore_CampaignStandings(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, u := range []string{"user1", "user2", "user3"} {
		_ = store.EnsureUserProgress(ctx, u)
	}
	_, _ = store.CompareAndSwapXP(ctx, "user1", 0, 1030, 6)
	_, _ = store.CompareAndSwapXP(ctx, "user2", 0, 50, 1)

	// user1: 1000 before the campaign, 30 during it.
	_, _, _ = store.TryInsertXPAward(ctx, newAward("a1", "old", 1000, since.Add(-time.Hour)))
	_, _, _ = store.TryInsertXPAward(ctx, newAward("a2", "new", 30, since.Add(time.Hour)))
	a := newAward("a3", "new", 50, since)
	a.UserID = "user2"
	_, _, _ = store.TryInsertXPAward(ctx, a)

	standings, err := store.CampaignStandings(ctx, since, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(standings) != 3 {
		t.Fatalf("Expected 3 standings, got %d", len(standings))
	}

	want := []struct {
		user string
		xp   int
	}{{"user2", 50}, {"user1", 30}, {"user3", 0}}
	for i, w := range want {
		if standings[i].Progress.UserID != w.user || standings[i].CampaignXP != w.xp {
			t.Errorf("Rank %d: expected %s with %d, got %s with %d",
				i+1, w.user, w.xp, standings[i].Progress.UserID, standings[i].CampaignXP)
		}
	}

	limited, _ := store.CampaignStandings(ctx, since, 1)
	if len(limited) != 1 {
		t.Errorf("Limit should apply, got %d", len(limited))
	}
}

func TestStore_WithinTx_RollsBack(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.ProgressStore) error {
		if err := tx.EnsureUserProgress(ctx, "user1"); err != nil {
			return err
		}
		if _, _, err := tx.TryInsertXPAward(ctx, newAward("a1", "q1", 30, time.Now())); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.WithinTx(ctx, func(ctx context.Context, tx domain.ProgressStore) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	if p, _ := store.GetUserProgress(ctx, "user1"); p != nil {
		t.Error("Progress should have been rolled back")
	}
	if awards, _ := store.ListAwards(ctx, "user1"); len(awards) != 0 {
		t.Error("Award should have been rolled back")
	}
}

// =============================================================================
// DAILY ACTIVITY
// =============================================================================

func TestStore_DailyActivity(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	d := date("2026-02-10")

	if a, _ := store.GetDailyActivity(ctx, "user1", d); a != nil {
		t.Errorf("Expected nil before any activity, got %+v", a)
	}

	a, err := store.RecordSteps(ctx, "user1", d, 5000)
	if err != nil || a.Steps != 5000 {
		t.Fatalf("RecordSteps: %+v %v", a, err)
	}
	a, _ = store.RecordSteps(ctx, "user1", d, 3000)
	if a.Steps != 5000 {
		t.Errorf("Steps should keep the maximum, got %d", a.Steps)
	}

	for i := 1; i <= 2; i++ {
		a, err = store.IncrementChallengesSent(ctx, "user1", d)
		if err != nil {
			t.Fatal(err)
		}
		if a.ChallengesSent != i {
			t.Errorf("Expected %d challenges, got %d", i, a.ChallengesSent)
		}
	}
	if a.Steps != 5000 || !a.ActivityDate.Equal(d) {
		t.Errorf("Unexpected activity %+v", a)
	}

	other, _ := store.RecordSteps(ctx, "user1", d.AddDate(0, 0, 1), 10)
	if other.Steps != 10 || other.ChallengesSent != 0 {
		t.Errorf("Next day should start fresh, got %+v", other)
	}
}

// =============================================================================
// PROGRESSION SERVICE ON SQLITE
// =============================================================================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type firstTier struct{}

func (firstTier) IntN(int) int { return 0 }

func TestStore_ServiceEndToEnd(t *testing.T) {
	_, store, cleanup := setupTestDB(t)
	defer cleanup()

	svc := gamification.NewService(gamification.Options{
		Store:  store,
		Clock:  fixedClock{now: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)},
		Random: firstTier{},
	})
	ctx := context.Background()

	snap, err := svc.RecordActivitySnapshot(ctx, "user1", 6200, 0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Quest.Completed || snap.Streak.Current != 1 {
		t.Fatalf("Unexpected snapshot %+v %+v", snap.Quest, snap.Streak)
	}

	var wg sync.WaitGroup
	results := make(chan *gamification.ClaimResult, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ClaimQuestReward(ctx, "user1", snap.Quest.ID)
			if err != nil {
				t.Error(err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	paid := 0
	for res := range results {
		paid += res.XPEarned
	}
	if paid != 30 {
		t.Errorf("Concurrent claims should pay 30 once, paid %d", paid)
	}

	if _, err := svc.SyncDailySteps(ctx, "user1", 6200); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.GetUserGamificationStats(ctx, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Progress.TotalXP != 36 {
		t.Errorf("Expected 36 XP (30 quest + 6 steps), got %d", stats.Progress.TotalXP)
	}
	if !stats.TodayQuest.Claimed {
		t.Error("Today's quest should be claimed")
	}

	awards, _ := store.ListAwards(ctx, "user1")
	sum := 0
	for _, a := range awards {
		sum += a.Amount
	}
	if sum != stats.Progress.TotalXP {
		t.Errorf("Ledger sums to %d, total is %d", sum, stats.Progress.TotalXP)
	}
}
