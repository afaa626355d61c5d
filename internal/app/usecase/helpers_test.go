package usecase_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fardannozami/stepquest/internal/app/usecase"
	"github.com/fardannozami/stepquest/internal/gamification"
	"github.com/fardannozami/stepquest/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

// Always a 6000 step quest worth 30 XP.
func stepQuests() *scriptedRandom { return &scriptedRandom{} }

// A social quest needing one challenge, worth 75 XP.
func socialQuest() *scriptedRandom { return &scriptedRandom{vals: []int{1, 0}} }

type fixture struct {
	clock *testClock
	store *memory.Store
	svc   *gamification.Service
}

func newFixture(t *testing.T, rng *scriptedRandom) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	st := memory.NewStore()
	svc := gamification.NewService(gamification.Options{
		Store:         st,
		Clock:         clock,
		Random:        rng,
		CampaignStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return &fixture{clock: clock, store: st, svc: svc}
}

func (f *fixture) handler() *usecase.HandleMessageUsecase {
	return usecase.NewHandleMessageUsecase(
		usecase.NewReportActivityUsecase(f.svc, f.store),
		usecase.NewGetLeaderboardUsecase(f.svc, 50),
		usecase.NewSendChallengeUsecase(f.svc, f.store),
		usecase.NewQuestUsecase(f.svc),
		usecase.NewGetStatsUsecase(f.svc),
	)
}
