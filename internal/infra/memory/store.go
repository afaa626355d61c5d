// Package memory is an in-process domain.Store used by tests and by
// STORE_DRIVER=memory for throwaway runs.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
)

type awardKey struct {
	userID     string
	sourceType domain.SourceType
	sourceID   string
}

type dayKey struct {
	userID string
	date   string
}

type state struct {
	progress map[string]domain.UserProgress
	quests   map[string]domain.DailyQuest
	byDate   map[dayKey]string
	awards   map[awardKey]domain.XPAward
	activity map[dayKey]domain.DailyActivity
}

func (s *state) clone() *state {
	return &state{
		progress: maps.Clone(s.progress),
		quests:   maps.Clone(s.quests),
		byDate:   maps.Clone(s.byDate),
		awards:   maps.Clone(s.awards),
		activity: maps.Clone(s.activity),
	}
}

// Store keeps everything in maps. Transactions are serialized with each
// other and roll back by restoring a snapshot.
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	st   **state
	tx   bool
}

func NewStore() *Store {
	st := &state{
		progress: map[string]domain.UserProgress{},
		quests:   map[string]domain.DailyQuest{},
		byDate:   map[dayKey]string{},
		awards:   map[awardKey]domain.XPAward{},
		activity: map[dayKey]domain.DailyActivity{},
	}
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, st: &st}
}

func (s *Store) lock() *state {
	s.mu.Lock()
	return *s.st
}

func (s *Store) GetUserProgress(_ context.Context, userID string) (*domain.UserProgress, error) {
	st := s.lock()
	defer s.mu.Unlock()

	p, ok := st.progress[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) EnsureUserProgress(_ context.Context, userID string) error {
	st := s.lock()
	defer s.mu.Unlock()

	if _, ok := st.progress[userID]; !ok {
		now := time.Now().UTC()
		st.progress[userID] = domain.UserProgress{UserID: userID, Level: 1, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *Store) UpdateStreak(_ context.Context, userID string, current, longest int, lastActive time.Time) error {
	st := s.lock()
	defer s.mu.Unlock()

	p, ok := st.progress[userID]
	if !ok {
		return nil
	}
	p.CurrentStreakDays, p.LongestStreakDays, p.LastActiveDate = current, longest, lastActive
	p.UpdatedAt = time.Now().UTC()
	st.progress[userID] = p
	return nil
}

func (s *Store) UpdateDisplayName(_ context.Context, userID, name string) error {
	st := s.lock()
	defer s.mu.Unlock()

	p, ok := st.progress[userID]
	if !ok {
		return nil
	}
	p.DisplayName = name
	st.progress[userID] = p
	return nil
}

func (s *Store) CompareAndSwapXP(_ context.Context, userID string, oldTotal, newTotal, newLevel int) (bool, error) {
	st := s.lock()
	defer s.mu.Unlock()

	p, ok := st.progress[userID]
	if !ok || p.TotalXP != oldTotal {
		return false, nil
	}
	p.TotalXP, p.Level = newTotal, newLevel
	p.UpdatedAt = time.Now().UTC()
	st.progress[userID] = p
	return true, nil
}

func (s *Store) GetQuest(_ context.Context, questID string) (*domain.DailyQuest, error) {
	st := s.lock()
	defer s.mu.Unlock()

	q, ok := st.quests[questID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *Store) GetQuestForDate(_ context.Context, userID string, date time.Time) (*domain.DailyQuest, error) {
	st := s.lock()
	defer s.mu.Unlock()

	id, ok := st.byDate[dayKey{userID, domain.FormatDate(date)}]
	if !ok {
		return nil, nil
	}
	q := st.quests[id]
	return &q, nil
}

func (s *Store) InsertQuest(_ context.Context, q *domain.DailyQuest) (bool, error) {
	st := s.lock()
	defer s.mu.Unlock()

	key := dayKey{q.UserID, domain.FormatDate(q.QuestDate)}
	if _, ok := st.byDate[key]; ok {
		return false, nil
	}
	st.byDate[key] = q.ID
	st.quests[q.ID] = *q
	return true, nil
}

func (s *Store) RaiseQuestProgress(_ context.Context, questID string, progress int, at time.Time) (*domain.DailyQuest, error) {
	st := s.lock()
	defer s.mu.Unlock()

	q, ok := st.quests[questID]
	if !ok {
		return nil, nil
	}
	if !q.Claimed {
		q.CurrentProgress = max(q.CurrentProgress, progress)
		q.Completed = q.CurrentProgress >= q.TargetValue
		if q.Completed && q.CompletedAt == nil {
			q.CompletedAt = &at
		}
		st.quests[questID] = q
	}
	return &q, nil
}

func (s *Store) MarkQuestClaimed(_ context.Context, questID string, at time.Time) (bool, error) {
	st := s.lock()
	defer s.mu.Unlock()

	q, ok := st.quests[questID]
	if !ok || q.Claimed || !q.Completed {
		return false, nil
	}
	q.Claimed = true
	q.ClaimedAt = &at
	st.quests[questID] = q
	return true, nil
}

func (s *Store) TryInsertXPAward(_ context.Context, a *domain.XPAward) (bool, *domain.XPAward, error) {
	st := s.lock()
	defer s.mu.Unlock()

	key := awardKey{a.UserID, a.SourceType, a.SourceID}
	if existing, ok := st.awards[key]; ok {
		return false, &existing, nil
	}
	st.awards[key] = *a
	return true, a, nil
}

// ListAwards returns a user's ledger, newest first.
func (s *Store) ListAwards(_ context.Context, userID string) ([]*domain.XPAward, error) {
	st := s.lock()
	defer s.mu.Unlock()

	var out []*domain.XPAward
	for _, a := range st.awards {
		if a.UserID == userID {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CampaignStandings(_ context.Context, since time.Time, limit int) ([]*domain.CampaignStanding, error) {
	st := s.lock()
	defer s.mu.Unlock()

	xp := map[string]int{}
	for _, a := range st.awards {
		if !a.CreatedAt.Before(since) {
			xp[a.UserID] += a.Amount
		}
	}

	var out []*domain.CampaignStanding
	for _, p := range st.progress {
		out = append(out, &domain.CampaignStanding{Progress: p, CampaignXP: xp[p.UserID]})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CampaignXP != b.CampaignXP {
			return a.CampaignXP > b.CampaignXP
		}
		if a.Progress.TotalXP != b.Progress.TotalXP {
			return a.Progress.TotalXP > b.Progress.TotalXP
		}
		return a.Progress.UserID < b.Progress.UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProgressStore) error) error {
	if s.tx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.lock().clone()
	s.mu.Unlock()

	if err := fn(ctx, &Store{mu: s.mu, txMu: s.txMu, st: s.st, tx: true}); err != nil {
		s.mu.Lock()
		*s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) GetDailyActivity(_ context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	st := s.lock()
	defer s.mu.Unlock()

	a, ok := st.activity[dayKey{userID, domain.FormatDate(date)}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) RecordSteps(_ context.Context, userID string, date time.Time, steps int) (*domain.DailyActivity, error) {
	st := s.lock()
	defer s.mu.Unlock()

	key := dayKey{userID, domain.FormatDate(date)}
	a, ok := st.activity[key]
	if !ok {
		a = domain.DailyActivity{UserID: userID, ActivityDate: date}
	}
	a.Steps = max(a.Steps, steps)
	st.activity[key] = a
	return &a, nil
}

func (s *Store) IncrementChallengesSent(_ context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	st := s.lock()
	defer s.mu.Unlock()

	key := dayKey{userID, domain.FormatDate(date)}
	a, ok := st.activity[key]
	if !ok {
		a = domain.DailyActivity{UserID: userID, ActivityDate: date}
	}
	a.ChallengesSent++
	st.activity[key] = a
	return &a, nil
}

func (s *Store) Close() error { return nil }

// Migrate is a no-op; the maps need no schema.
func (s *Store) Migrate(context.Context) error { return nil }
