package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fardannozami/stepquest/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
		level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_active_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS daily_quests (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		quest_date DATE NOT NULL,
		quest_type TEXT NOT NULL CHECK (quest_type IN ('steps', 'social')),
		target_value INTEGER NOT NULL CHECK (target_value > 0),
		current_progress INTEGER NOT NULL DEFAULT 0,
		xp_reward INTEGER NOT NULL CHECK (xp_reward > 0),
		completed BOOLEAN NOT NULL DEFAULT false,
		claimed BOOLEAN NOT NULL DEFAULT false,
		completed_at TIMESTAMPTZ,
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, quest_date),
		CHECK (NOT claimed OR completed)
	)`,
	`CREATE TABLE IF NOT EXISTS xp_awards (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, source_type, source_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_xp_awards_created_at ON xp_awards (created_at)`,
	`CREATE TABLE IF NOT EXISTS daily_activity (
		user_id TEXT NOT NULL,
		activity_date DATE NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		challenges_sent INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, activity_date)
	)`,
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	tx   bool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(pool), nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const progressColumns = `user_id, display_name, total_xp, level, current_streak, longest_streak, last_active_date, created_at, updated_at`

func scanProgress(row pgx.Row, extra ...any) (*domain.UserProgress, error) {
	var p domain.UserProgress
	var lastActive *time.Time
	dest := []any{&p.UserID, &p.DisplayName, &p.TotalXP, &p.Level, &p.CurrentStreakDays, &p.LongestStreakDays, &lastActive, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastActive != nil {
		p.LastActiveDate = domain.DateOf(*lastActive, time.UTC)
	}
	return &p, nil
}

// GetUserProgress locks the row when called inside WithinTx, so concurrent
// awards for one user queue up instead of losing their compare-and-swap.
func (s *Store) GetUserProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`
	if s.tx {
		query += ` FOR UPDATE`
	}
	p, err := scanProgress(s.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) EnsureUserProgress(ctx context.Context, userID string) error {
	_, err := s.q.Exec(ctx, `INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

func (s *Store) UpdateStreak(ctx context.Context, userID string, current, longest int, lastActive time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE user_progress
		SET current_streak = $2, longest_streak = $3, last_active_date = $4, updated_at = now()
		WHERE user_id = $1`,
		userID, current, longest, lastActive)
	return err
}

func (s *Store) UpdateDisplayName(ctx context.Context, userID, name string) error {
	_, err := s.q.Exec(ctx, `UPDATE user_progress SET display_name = $2, updated_at = now() WHERE user_id = $1`, userID, name)
	return err
}

func (s *Store) CompareAndSwapXP(ctx context.Context, userID string, oldTotal, newTotal, newLevel int) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_progress
		SET total_xp = $3, level = $4, updated_at = now()
		WHERE user_id = $1 AND total_xp = $2`,
		userID, oldTotal, newTotal, newLevel)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const questColumns = `id::text, user_id, quest_date, quest_type, target_value, current_progress, xp_reward, completed, claimed, completed_at, claimed_at, created_at`

func scanQuest(row pgx.Row) (*domain.DailyQuest, error) {
	var q domain.DailyQuest
	var questType string
	err := row.Scan(&q.ID, &q.UserID, &q.QuestDate, &questType, &q.TargetValue, &q.CurrentProgress,
		&q.XPReward, &q.Completed, &q.Claimed, &q.CompletedAt, &q.ClaimedAt, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if q.QuestType, err = domain.ParseQuestType(questType); err != nil {
		return nil, err
	}
	q.QuestDate = domain.DateOf(q.QuestDate, time.UTC)
	return &q, nil
}

// questUUID parses a quest id; anything that is not a uuid cannot name a quest.
func questUUID(questID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(questID)
	return id, err == nil
}

func (s *Store) GetQuest(ctx context.Context, questID string) (*domain.DailyQuest, error) {
	id, ok := questUUID(questID)
	if !ok {
		return nil, nil
	}
	q, err := scanQuest(s.q.QueryRow(ctx, `SELECT `+questColumns+` FROM daily_quests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *Store) GetQuestForDate(ctx context.Context, userID string, date time.Time) (*domain.DailyQuest, error) {
	q, err := scanQuest(s.q.QueryRow(ctx, `SELECT `+questColumns+` FROM daily_quests WHERE user_id = $1 AND quest_date = $2`, userID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *Store) InsertQuest(ctx context.Context, q *domain.DailyQuest) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO daily_quests (id, user_id, quest_date, quest_type, target_value, current_progress, xp_reward, completed, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, quest_date) DO NOTHING`,
		q.ID, q.UserID, q.QuestDate, string(q.QuestType), q.TargetValue, q.CurrentProgress, q.XPReward, q.Completed, q.Claimed, q.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RaiseQuestProgress(ctx context.Context, questID string, progress int, at time.Time) (*domain.DailyQuest, error) {
	id, ok := questUUID(questID)
	if !ok {
		return nil, nil
	}
	_, err := s.q.Exec(ctx, `
		UPDATE daily_quests SET
			current_progress = GREATEST(current_progress, $2),
			completed = GREATEST(current_progress, $2) >= target_value,
			completed_at = CASE
				WHEN completed_at IS NULL AND GREATEST(current_progress, $2) >= target_value THEN $3::timestamptz
				ELSE completed_at
			END
		WHERE id = $1 AND NOT claimed`,
		id, progress, at)
	if err != nil {
		return nil, err
	}
	return s.GetQuest(ctx, questID)
}

func (s *Store) MarkQuestClaimed(ctx context.Context, questID string, at time.Time) (bool, error) {
	id, ok := questUUID(questID)
	if !ok {
		return false, nil
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE daily_quests SET claimed = true, claimed_at = $2
		WHERE id = $1 AND NOT claimed AND completed`,
		id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) TryInsertXPAward(ctx context.Context, a *domain.XPAward) (bool, *domain.XPAward, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO xp_awards (id, user_id, amount, source_type, source_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, source_type, source_id) DO NOTHING`,
		a.ID, a.UserID, a.Amount, string(a.SourceType), a.SourceID, a.Reason, a.CreatedAt)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, a, nil
	}

	var existing domain.XPAward
	var st string
	err = s.q.QueryRow(ctx, `
		SELECT id::text, user_id, amount, source_type, source_id, reason, created_at
		FROM xp_awards WHERE user_id = $1 AND source_type = $2 AND source_id = $3`,
		a.UserID, string(a.SourceType), a.SourceID).
		Scan(&existing.ID, &existing.UserID, &existing.Amount, &st, &existing.SourceID, &existing.Reason, &existing.CreatedAt)
	if err != nil {
		return false, nil, fmt.Errorf("load existing award: %w", err)
	}
	existing.SourceType = domain.SourceType(st)
	return false, &existing, nil
}

func (s *Store) ListAwards(ctx context.Context, userID string) ([]*domain.XPAward, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id::text, user_id, amount, source_type, source_id, reason, created_at
		FROM xp_awards WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []*domain.XPAward
	for rows.Next() {
		var a domain.XPAward
		var st string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Amount, &st, &a.SourceID, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.SourceType = domain.SourceType(st)
		awards = append(awards, &a)
	}
	return awards, rows.Err()
}

func (s *Store) CampaignStandings(ctx context.Context, since time.Time, limit int) ([]*domain.CampaignStanding, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.user_id, p.display_name, p.total_xp, p.level, p.current_streak, p.longest_streak,
			p.last_active_date, p.created_at, p.updated_at, COALESCE(SUM(a.amount), 0)::int AS campaign_xp
		FROM user_progress p
		LEFT JOIN xp_awards a ON a.user_id = p.user_id AND a.created_at >= $1
		GROUP BY p.user_id
		ORDER BY campaign_xp DESC, p.total_xp DESC, p.user_id
		LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []*domain.CampaignStanding
	for rows.Next() {
		var campaignXP int
		p, err := scanProgress(rows, &campaignXP)
		if err != nil {
			return nil, err
		}
		standings = append(standings, &domain.CampaignStanding{Progress: *p, CampaignXP: campaignXP})
	}
	return standings, rows.Err()
}

// WithinTx runs fn in a transaction; nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProgressStore) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, q: tx, tx: true})
	})
}

func (s *Store) GetDailyActivity(ctx context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	var a domain.DailyActivity
	err := s.q.QueryRow(ctx, `
		SELECT user_id, activity_date, steps, challenges_sent
		FROM daily_activity WHERE user_id = $1 AND activity_date = $2`,
		userID, date).Scan(&a.UserID, &a.ActivityDate, &a.Steps, &a.ChallengesSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ActivityDate = domain.DateOf(a.ActivityDate, time.UTC)
	return &a, nil
}

func (s *Store) RecordSteps(ctx context.Context, userID string, date time.Time, steps int) (*domain.DailyActivity, error) {
	return s.upsertActivity(ctx, `
		INSERT INTO daily_activity (user_id, activity_date, steps, challenges_sent)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (user_id, activity_date) DO UPDATE SET
			steps = GREATEST(daily_activity.steps, excluded.steps)
		RETURNING user_id, activity_date, steps, challenges_sent`,
		userID, date, steps)
}

func (s *Store) IncrementChallengesSent(ctx context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	return s.upsertActivity(ctx, `
		INSERT INTO daily_activity (user_id, activity_date, steps, challenges_sent)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (user_id, activity_date) DO UPDATE SET
			challenges_sent = daily_activity.challenges_sent + 1
		RETURNING user_id, activity_date, steps, challenges_sent`,
		userID, date)
}

func (s *Store) upsertActivity(ctx context.Context, query string, args ...any) (*domain.DailyActivity, error) {
	var a domain.DailyActivity
	if err := s.q.QueryRow(ctx, query, args...).Scan(&a.UserID, &a.ActivityDate, &a.Steps, &a.ChallengesSent); err != nil {
		return nil, err
	}
	a.ActivityDate = domain.DateOf(a.ActivityDate, time.UTC)
	return &a, nil
}
