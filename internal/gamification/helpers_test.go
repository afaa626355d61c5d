package gamification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
	"github.com/fardannozami/stepquest/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// scriptedRandom replays vals, then keeps returning 0.
type scriptedRandom struct {
	mu   sync.Mutex
	vals []int
}

func (r *scriptedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[0]
	r.vals = r.vals[1:]
	return v % n
}

type recordingObserver struct {
	mu         sync.Mutex
	xp         map[domain.SourceType]int
	duplicates int
	levelUps   []int
	generated  int
	claimed    int
	milestones []int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{xp: map[domain.SourceType]int{}}
}

func (o *recordingObserver) XPAwarded(s domain.SourceType, amount int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.xp[s] += amount
}

func (o *recordingObserver) DuplicateAward(domain.SourceType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duplicates++
}

func (o *recordingObserver) LeveledUp(level int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.levelUps = append(o.levelUps, level)
}

func (o *recordingObserver) QuestGenerated(domain.QuestType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generated++
}

func (o *recordingObserver) QuestClaimed(domain.QuestType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claimed++
}

func (o *recordingObserver) StreakMilestone(days int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.milestones = append(o.milestones, days)
}

// flakyStore loses the first failCAS compare-and-swaps inside transactions,
// as if another writer got there first.
type flakyStore struct {
	*memory.Store

	mu      sync.Mutex
	failCAS int
	casSeen int
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProgressStore) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx domain.ProgressStore) error {
		return fn(ctx, &flakyTx{ProgressStore: tx, parent: s})
	})
}

type flakyTx struct {
	domain.ProgressStore
	parent *flakyStore
}

func (t *flakyTx) CompareAndSwapXP(ctx context.Context, userID string, oldTotal, newTotal, newLevel int) (bool, error) {
	t.parent.mu.Lock()
	t.parent.casSeen++
	fail := t.parent.casSeen <= t.parent.failCAS
	t.parent.mu.Unlock()
	if fail {
		return false, nil
	}
	return t.ProgressStore.CompareAndSwapXP(ctx, userID, oldTotal, newTotal, newLevel)
}

type fixture struct {
	clock    *testClock
	store    *memory.Store
	observer *recordingObserver
	svc      *gamification.Service
}

// newFixture builds a service over an in-memory store. rng picks quests:
// nil always yields the 6000 step quest worth 30 XP.
func newFixture(t *testing.T, rng *scriptedRandom) *fixture {
	t.Helper()
	if rng == nil {
		rng = &scriptedRandom{}
	}

	f := &fixture{
		clock:    newClock(),
		store:    memory.NewStore(),
		observer: newRecordingObserver(),
	}
	f.svc = gamification.NewService(gamification.Options{
		Store:         f.store,
		Clock:         f.clock,
		Random:        rng,
		Observer:      f.observer,
		CampaignStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return f
}

func (f *fixture) progress(t *testing.T, userID string) *domain.UserProgress {
	t.Helper()
	p, err := f.store.GetUserProgress(context.Background(), userID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p == nil {
		t.Fatalf("no progress for %s", userID)
	}
	return p
}

func awardsOf(t *testing.T, store domain.ProgressStore, userID string) []*domain.XPAward {
	t.Helper()
	awards, err := store.ListAwards(context.Background(), userID)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	return awards
}
