package gamification

import (
	"errors"
	"fmt"

	"github.com/fardannozami/stepquest/internal/domain"
)

// persistErr tags a store error as a persistence failure, keeping the
// original error reachable through errors.Is/As.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
