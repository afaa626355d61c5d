package gamification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fardannozami/stepquest/internal/domain"
)

const (
	// MaxAwardAmount bounds a single award so totals cannot overflow.
	MaxAwardAmount = 1_000_000

	maxCASAttempts = 5
)

var errXPConflict = errors.New("total xp changed concurrently")

type AwardRequest struct {
	UserID     string
	Amount     int
	SourceType domain.SourceType
	SourceID   string
	Reason     string
}

func (r AwardRequest) validate() error {
	switch {
	case r.UserID == "":
		return invalid("award without user id")
	case r.Amount <= 0:
		return invalid("award amount must be positive, got %d", r.Amount)
	case r.Amount > MaxAwardAmount:
		return invalid("award amount %d exceeds %d", r.Amount, MaxAwardAmount)
	case !r.SourceType.Valid():
		return invalid("unknown source type %q", r.SourceType)
	case r.SourceID == "":
		return invalid("award without source id")
	}
	return nil
}

type AwardResult struct {
	Award         *domain.XPAward `json:"award"`
	NewTotalXP    int             `json:"new_total_xp"`
	NewLevel      int             `json:"new_level"`
	PreviousLevel int             `json:"previous_level"`
	LeveledUp     bool            `json:"leveled_up"`
	// Duplicate is set when the idempotency key was already used; nothing
	// was credited and the totals are the current ones.
	Duplicate bool `json:"duplicate"`
}

// Ledger is the only writer of UserProgress.TotalXP and Level.
type Ledger struct {
	store    domain.ProgressStore
	clock    domain.Clock
	observer Observer
	log      *zerolog.Logger
}

func NewLedger(store domain.ProgressStore, clock domain.Clock, observer Observer, log *zerolog.Logger) *Ledger {
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Ledger{store: store, clock: clock, observer: observer, log: log}
}

// Award credits req.Amount once per (user, source type, source id). Repeated
// calls with the same key return the current totals with Duplicate set.
func (l *Ledger) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var result *AwardResult
		err := l.store.WithinTx(ctx, func(ctx context.Context, tx domain.ProgressStore) error {
			var err error
			result, err = l.apply(ctx, tx, req)
			return err
		})
		if errors.Is(err, errXPConflict) {
			l.log.Debug().Str("user_id", req.UserID).Int("attempt", attempt).Msg("xp award lost race, retrying")
			continue
		}
		if err != nil {
			return nil, persistErr("award xp", err)
		}

		l.notify(req, result)
		return result, nil
	}

	return nil, fmt.Errorf("award xp: %w: %w for user %s", domain.ErrPersistence, errXPConflict, req.UserID)
}

func (l *Ledger) apply(ctx context.Context, tx domain.ProgressStore, req AwardRequest) (*AwardResult, error) {
	if err := tx.EnsureUserProgress(ctx, req.UserID); err != nil {
		return nil, err
	}

	award := &domain.XPAward{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Amount:     req.Amount,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		Reason:     req.Reason,
		CreatedAt:  l.clock.Now().UTC(),
	}
	inserted, existing, err := tx.TryInsertXPAward(ctx, award)
	if err != nil {
		return nil, err
	}

	progress, err := tx.GetUserProgress(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, fmt.Errorf("user progress %s missing after ensure", req.UserID)
	}

	if !inserted {
		return &AwardResult{
			Award:         existing,
			NewTotalXP:    progress.TotalXP,
			NewLevel:      progress.Level,
			PreviousLevel: progress.Level,
			Duplicate:     true,
		}, nil
	}

	newTotal := progress.TotalXP + req.Amount
	newLevel := levelFor(newTotal)
	ok, err := tx.CompareAndSwapXP(ctx, req.UserID, progress.TotalXP, newTotal, newLevel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errXPConflict
	}

	return &AwardResult{
		Award:         award,
		NewTotalXP:    newTotal,
		NewLevel:      newLevel,
		PreviousLevel: progress.Level,
		LeveledUp:     newLevel > progress.Level,
	}, nil
}

func (l *Ledger) notify(req AwardRequest, result *AwardResult) {
	if result.Duplicate {
		l.observer.DuplicateAward(req.SourceType)
		return
	}

	l.observer.XPAwarded(req.SourceType, req.Amount)
	l.log.Info().
		Str("user_id", req.UserID).
		Str("source_type", string(req.SourceType)).
		Str("source_id", req.SourceID).
		Int("amount", req.Amount).
		Int("total_xp", result.NewTotalXP).
		Msg("xp awarded")

	if result.LeveledUp {
		l.observer.LeveledUp(result.NewLevel)
		l.log.Info().Str("user_id", req.UserID).Int("level", result.NewLevel).Msg("level up")
	}
}

// ResetXP is an administrative reset of a user's XP to zero. Ledger entries
// are kept, so previously used idempotency keys stay used.
func (l *Ledger) ResetXP(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if userID == "" {
		return nil, invalid("reset without user id")
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var progress *domain.UserProgress
		err := l.store.WithinTx(ctx, func(ctx context.Context, tx domain.ProgressStore) error {
			p, err := tx.GetUserProgress(ctx, userID)
			if err != nil {
				return err
			}
			if p == nil {
				return domain.ErrNotFound
			}
			ok, err := tx.CompareAndSwapXP(ctx, userID, p.TotalXP, 0, 1)
			if err != nil {
				return err
			}
			if !ok {
				return errXPConflict
			}
			p.TotalXP, p.Level = 0, 1
			progress = p
			return nil
		})
		switch {
		case errors.Is(err, errXPConflict):
			continue
		case errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("reset xp: user %s: %w", userID, domain.ErrNotFound)
		case err != nil:
			return nil, persistErr("reset xp", err)
		}

		l.log.Warn().Str("user_id", userID).Msg("xp reset")
		return progress, nil
	}

	return nil, fmt.Errorf("reset xp: %w: %w for user %s", domain.ErrPersistence, errXPConflict, userID)
}
