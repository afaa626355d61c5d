package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
		level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_active_date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_quests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quest_date TEXT NOT NULL,
		quest_type TEXT NOT NULL,
		target_value INTEGER NOT NULL CHECK (target_value > 0),
		current_progress INTEGER NOT NULL DEFAULT 0,
		xp_reward INTEGER NOT NULL CHECK (xp_reward > 0),
		completed INTEGER NOT NULL DEFAULT 0,
		claimed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		claimed_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (user_id, quest_date)
	)`,
	`CREATE TABLE IF NOT EXISTS xp_awards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (user_id, source_type, source_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_xp_awards_created_at ON xp_awards (created_at)`,
	`CREATE TABLE IF NOT EXISTS daily_activity (
		user_id TEXT NOT NULL,
		activity_date TEXT NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		challenges_sent INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, activity_date)
	)`,
}

// Store bundles the repositories over one database and satisfies domain.Store.
type Store struct {
	*ProgressRepository
	*ActivityRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		ProgressRepository: NewProgressRepository(db),
		ActivityRepository: NewActivityRepository(db),
	}
}

// Open opens the database file with the pure-Go driver. WAL, busy_timeout and
// immediate transactions keep concurrent writers from failing with
// "database is locked".
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewStore(db), nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.ProgressRepository.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
