package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fardannozami/stepquest/internal/app"
	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
)

func newStatsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Show a user's level, streak and today's quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				stats, err := a.Service.GetUserGamificationStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newAwardCommand(opts *options) *cobra.Command {
	var (
		source   string
		sourceID string
		reason   string
	)
	c := &cobra.Command{
		Use:   "award <user-id> <amount>",
		Short: "Credit XP once per source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], domain.ErrInvalidInput)
			}
			sourceType, err := domain.ParseSourceType(source)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				res, err := a.Service.AddXPToUser(cmd.Context(), gamification.AwardRequest{
					UserID:     args[0],
					Amount:     amount,
					SourceType: sourceType,
					SourceID:   sourceID,
					Reason:     reason,
				})
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res)
			})
		},
	}
	c.Flags().StringVar(&source, "source", string(domain.SourceOther), "source type: quest, challenge, streak-bonus, daily-steps or other")
	c.Flags().StringVar(&sourceID, "source-id", "", "idempotency key within the source type")
	c.Flags().StringVar(&reason, "reason", "manual award", "reason stored on the ledger entry")
	_ = c.MarkFlagRequired("source-id")
	return c
}

func newAwardsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "awards <user-id>",
		Short: "List a user's XP ledger, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				awards, err := a.Service.ListAwards(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), awards)
			})
		},
	}
}

func newResetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Reset a user's XP and level; the ledger is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				p, err := a.Service.ResetXP(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newStreakCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "streak <user-id>",
		Short: "Record activity for today and pay any streak milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				res, err := a.Service.UpdateUserStreak(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newStepsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "steps <user-id> <steps>",
		Short: "Sync today's step count and pay base XP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("steps %q: %w", args[1], domain.ErrInvalidInput)
			}
			return opts.withApp(cmd, func(a *app.App) error {
				res, err := a.Service.SyncDailySteps(cmd.Context(), args[0], steps)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newQuestCommand(opts *options) *cobra.Command {
	var (
		progress int
		claim    bool
	)
	c := &cobra.Command{
		Use:   "quest <user-id>",
		Short: "Show, advance or claim today's quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(cmd, func(a *app.App) error {
				quest, err := a.Service.GetTodayQuest(ctx, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("progress") {
					if quest, err = a.Service.UpdateQuestProgress(ctx, quest.ID, progress); err != nil {
						return err
					}
				}
				if claim {
					res, err := a.Service.ClaimQuestReward(ctx, args[0], quest.ID)
					if err != nil {
						return err
					}
					return opts.print(cmd.OutOrStdout(), res)
				}
				return opts.print(cmd.OutOrStdout(), quest)
			})
		},
	}
	c.Flags().IntVar(&progress, "progress", 0, "raise the quest progress to this value")
	c.Flags().BoolVar(&claim, "claim", false, "claim the reward")
	return c
}

func newLeaderboardCommand(opts *options) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by XP earned in the current campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				board, err := a.Service.Leaderboard(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), board)
			})
		},
	}
	c.Flags().IntVar(&limit, "limit", 100, "number of entries")
	return c
}

func newRulesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective progression rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				return opts.print(cmd.OutOrStdout(), a.Service.Rules())
			})
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store applies the schema.
			return opts.withApp(cmd, func(a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", opts.cfg.StoreDriver)
				return nil
			})
		},
	}
}
