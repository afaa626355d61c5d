package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ProgressRepository struct {
	db *sql.DB
	q  querier
	tx bool
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db, q: db}
}

const progressColumns = `user_id, display_name, total_xp, level, current_streak, longest_streak, last_active_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner, extra ...any) (*domain.UserProgress, error) {
	var p domain.UserProgress
	var lastActive, createdAt, updatedAt string
	dest := []any{&p.UserID, &p.DisplayName, &p.TotalXP, &p.Level, &p.CurrentStreakDays, &p.LongestStreakDays, &lastActive, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if lastActive != "" {
		if p.LastActiveDate, err = domain.ParseDate(lastActive); err != nil {
			return nil, err
		}
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) GetUserProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = ?`
	p, err := scanProgress(r.q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProgressRepository) EnsureUserProgress(ctx context.Context, userID string) error {
	now := formatTimestamp(time.Now())
	query := `
		INSERT INTO user_progress (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, userID, now, now)
	return err
}

func (r *ProgressRepository) UpdateStreak(ctx context.Context, userID string, current, longest int, lastActive time.Time) error {
	query := `
		UPDATE user_progress
		SET current_streak = ?, longest_streak = ?, last_active_date = ?, updated_at = ?
		WHERE user_id = ?
	`
	_, err := r.q.ExecContext(ctx, query, current, longest, domain.FormatDate(lastActive), formatTimestamp(time.Now()), userID)
	return err
}

func (r *ProgressRepository) UpdateDisplayName(ctx context.Context, userID, name string) error {
	query := `UPDATE user_progress SET display_name = ?, updated_at = ? WHERE user_id = ?`
	_, err := r.q.ExecContext(ctx, query, name, formatTimestamp(time.Now()), userID)
	return err
}

func (r *ProgressRepository) CompareAndSwapXP(ctx context.Context, userID string, oldTotal, newTotal, newLevel int) (bool, error) {
	query := `
		UPDATE user_progress
		SET total_xp = ?, level = ?, updated_at = ?
		WHERE user_id = ? AND total_xp = ?
	`
	res, err := r.q.ExecContext(ctx, query, newTotal, newLevel, formatTimestamp(time.Now()), userID, oldTotal)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const questColumns = `id, user_id, quest_date, quest_type, target_value, current_progress, xp_reward, completed, claimed, completed_at, claimed_at, created_at`

func scanQuest(row rowScanner) (*domain.DailyQuest, error) {
	var q domain.DailyQuest
	var questDate, questType, createdAt string
	var completedAt, claimedAt sql.NullString
	err := row.Scan(&q.ID, &q.UserID, &questDate, &questType, &q.TargetValue, &q.CurrentProgress,
		&q.XPReward, &q.Completed, &q.Claimed, &completedAt, &claimedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if q.QuestType, err = domain.ParseQuestType(questType); err != nil {
		return nil, err
	}
	if q.QuestDate, err = domain.ParseDate(questDate); err != nil {
		return nil, err
	}
	if q.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if q.CompletedAt, err = parseNullTimestamp(completedAt); err != nil {
		return nil, err
	}
	if q.ClaimedAt, err = parseNullTimestamp(claimedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *ProgressRepository) GetQuest(ctx context.Context, questID string) (*domain.DailyQuest, error) {
	query := `SELECT ` + questColumns + ` FROM daily_quests WHERE id = ?`
	q, err := scanQuest(r.q.QueryRowContext(ctx, query, questID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *ProgressRepository) GetQuestForDate(ctx context.Context, userID string, date time.Time) (*domain.DailyQuest, error) {
	query := `SELECT ` + questColumns + ` FROM daily_quests WHERE user_id = ? AND quest_date = ?`
	q, err := scanQuest(r.q.QueryRowContext(ctx, query, userID, domain.FormatDate(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *ProgressRepository) InsertQuest(ctx context.Context, q *domain.DailyQuest) (bool, error) {
	query := `
		INSERT INTO daily_quests (id, user_id, quest_date, quest_type, target_value, current_progress, xp_reward, completed, claimed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, quest_date) DO NOTHING
	`
	res, err := r.q.ExecContext(ctx, query, q.ID, q.UserID, domain.FormatDate(q.QuestDate), string(q.QuestType),
		q.TargetValue, q.CurrentProgress, q.XPReward, q.Completed, q.Claimed, formatTimestamp(q.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *ProgressRepository) RaiseQuestProgress(ctx context.Context, questID string, progress int, at time.Time) (*domain.DailyQuest, error) {
	// SET expressions all read the pre-update row.
	query := `
		UPDATE daily_quests SET
			current_progress = MAX(current_progress, ?1),
			completed = MAX(current_progress, ?1) >= target_value,
			completed_at = CASE
				WHEN completed_at IS NULL AND MAX(current_progress, ?1) >= target_value THEN ?2
				ELSE completed_at
			END
		WHERE id = ?3 AND claimed = 0
	`
	if _, err := r.q.ExecContext(ctx, query, progress, formatTimestamp(at), questID); err != nil {
		return nil, err
	}
	return r.GetQuest(ctx, questID)
}

func (r *ProgressRepository) MarkQuestClaimed(ctx context.Context, questID string, at time.Time) (bool, error) {
	query := `UPDATE daily_quests SET claimed = 1, claimed_at = ? WHERE id = ? AND claimed = 0 AND completed = 1`
	res, err := r.q.ExecContext(ctx, query, formatTimestamp(at), questID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *ProgressRepository) TryInsertXPAward(ctx context.Context, a *domain.XPAward) (bool, *domain.XPAward, error) {
	query := `
		INSERT INTO xp_awards (id, user_id, amount, source_type, source_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, source_type, source_id) DO NOTHING
	`
	res, err := r.q.ExecContext(ctx, query, a.ID, a.UserID, a.Amount, string(a.SourceType), a.SourceID, a.Reason, formatTimestamp(a.CreatedAt))
	if err != nil {
		return false, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n == 1 {
		return true, a, nil
	}

	existing, err := r.getAward(ctx, a.UserID, a.SourceType, a.SourceID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *ProgressRepository) getAward(ctx context.Context, userID string, sourceType domain.SourceType, sourceID string) (*domain.XPAward, error) {
	query := `
		SELECT id, user_id, amount, source_type, source_id, reason, created_at
		FROM xp_awards WHERE user_id = ? AND source_type = ? AND source_id = ?
	`
	var a domain.XPAward
	var st, createdAt string
	err := r.q.QueryRowContext(ctx, query, userID, string(sourceType), sourceID).
		Scan(&a.ID, &a.UserID, &a.Amount, &st, &a.SourceID, &a.Reason, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("load existing award: %w", err)
	}
	a.SourceType = domain.SourceType(st)
	if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAwards returns a user's ledger, newest first.
func (r *ProgressRepository) ListAwards(ctx context.Context, userID string) ([]*domain.XPAward, error) {
	query := `
		SELECT id, user_id, amount, source_type, source_id, reason, created_at
		FROM xp_awards WHERE user_id = ? ORDER BY created_at DESC, id
	`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []*domain.XPAward
	for rows.Next() {
		var a domain.XPAward
		var st, createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Amount, &st, &a.SourceID, &a.Reason, &createdAt); err != nil {
			return nil, err
		}
		a.SourceType = domain.SourceType(st)
		if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		awards = append(awards, &a)
	}
	return awards, rows.Err()
}

func (r *ProgressRepository) CampaignStandings(ctx context.Context, since time.Time, limit int) ([]*domain.CampaignStanding, error) {
	query := `
		SELECT p.user_id, p.display_name, p.total_xp, p.level, p.current_streak, p.longest_streak,
			p.last_active_date, p.created_at, p.updated_at, COALESCE(SUM(a.amount), 0) AS campaign_xp
		FROM user_progress p
		LEFT JOIN xp_awards a ON a.user_id = p.user_id AND a.created_at >= ?
		GROUP BY p.user_id
		ORDER BY campaign_xp DESC, p.total_xp DESC, p.user_id
		LIMIT ?
	`
	rows, err := r.q.QueryContext(ctx, query, formatTimestamp(since), limit)
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

// WithinTx runs fn in a transaction. Calls made on an already transactional
// repository join the outer transaction.
func (r *ProgressRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProgressStore) error) error {
	if r.tx {
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, &ProgressRepository{db: r.db, q: tx, tx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *ProgressRepository) Close() error {
	return r.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func parseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
