package usecase

import (
	"context"
	"strconv"
	"strings"
)

type reportExecutor interface {
	Execute(ctx context.Context, userID, name string, steps int) (string, error)
}

type leaderboardExecutor interface {
	Execute(ctx context.Context) (string, error)
}

type challengeExecutor interface {
	Execute(ctx context.Context, userID, name string) (string, error)
}

type questExecutor interface {
	Show(ctx context.Context, userID string) (string, error)
	Claim(ctx context.Context, userID string) (string, error)
}

type statsExecutor interface {
	Execute(ctx context.Context, userID, name string) (string, error)
}

// HandleMessageUsecase routes group messages to the command usecases.
// Unknown messages get an empty reply.
type HandleMessageUsecase struct {
	report      reportExecutor
	leaderboard leaderboardExecutor
	challenge   challengeExecutor
	quest       questExecutor
	stats       statsExecutor
}

func NewHandleMessageUsecase(report reportExecutor, leaderboard leaderboardExecutor, challenge challengeExecutor, quest questExecutor, stats statsExecutor) *HandleMessageUsecase {
	return &HandleMessageUsecase{
		report:      report,
		leaderboard: leaderboard,
		challenge:   challenge,
		quest:       quest,
		stats:       stats,
	}
}

func (uc *HandleMessageUsecase) Execute(ctx context.Context, userID, name, msg string) (string, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(msg)))
	if len(fields) == 0 {
		return "", nil
	}

	switch fields[0] {
	case "#lapor":
		return uc.report.Execute(ctx, userID, name, parseSteps(fields[1:]))
	case "#leaderboard":
		return uc.leaderboard.Execute(ctx)
	case "#tantang":
		return uc.challenge.Execute(ctx, userID, name)
	case "#quest":
		return uc.quest.Show(ctx, userID)
	case "#klaim":
		return uc.quest.Claim(ctx, userID)
	case "#stats":
		return uc.stats.Execute(ctx, userID, name)
	}
	return "", nil
}

// parseSteps reads the step count from the first word after #lapor, with
// optional thousands separators ("12.500", "12,500"). Free text counts as
// zero steps.
func parseSteps(args []string) int {
	if len(args) == 0 {
		return 0
	}
	raw := strings.NewReplacer(".", "", ",", "").Replace(args[0])
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
