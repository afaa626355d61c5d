package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fardannozami/stepquest/internal/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) GetDailyActivity(ctx context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	query := `SELECT user_id, activity_date, steps, challenges_sent FROM daily_activity WHERE user_id = ? AND activity_date = ?`
	row := r.db.QueryRowContext(ctx, query, userID, domain.FormatDate(date))

	var a domain.DailyActivity
	var activityDate string
	err := row.Scan(&a.UserID, &activityDate, &a.Steps, &a.ChallengesSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.ActivityDate, err = domain.ParseDate(activityDate)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordSteps keeps the highest step count reported for the day.
func (r *ActivityRepository) RecordSteps(ctx context.Context, userID string, date time.Time, steps int) (*domain.DailyActivity, error) {
	query := `
		INSERT INTO daily_activity (user_id, activity_date, steps, challenges_sent)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(user_id, activity_date) DO UPDATE SET
			steps = MAX(daily_activity.steps, excluded.steps)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, domain.FormatDate(date), steps); err != nil {
		return nil, err
	}
	return r.mustGet(ctx, userID, date)
}

func (r *ActivityRepository) IncrementChallengesSent(ctx context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	query := `
		INSERT INTO daily_activity (user_id, activity_date, steps, challenges_sent)
		VALUES (?, ?, 0, 1)
		ON CONFLICT(user_id, activity_date) DO UPDATE SET
			challenges_sent = daily_activity.challenges_sent + 1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, domain.FormatDate(date)); err != nil {
		return nil, err
	}
	return r.mustGet(ctx, userID, date)
}

func (r *ActivityRepository) mustGet(ctx context.Context, userID string, date time.Time) (*domain.DailyActivity, error) {
	a, err := r.GetDailyActivity(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New("daily activity missing after upsert")
	}
	return a, nil
}
