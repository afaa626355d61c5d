package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fardannozami/stepquest/internal/app"
	"github.com/fardannozami/stepquest/internal/config"
	"github.com/fardannozami/stepquest/internal/logger"
)

type options struct {
	output string
	cfg    config.Config
	log    zerolog.Logger

	// open is replaced in tests.
	open func(cmd *cobra.Command) (*app.App, error)
}

func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &options{cfg: cfg, log: logger.New(cfg.LogLevel, cfg.LogFormat)}
	opts.open = func(cmd *cobra.Command) (*app.App, error) {
		return app.New(cmd.Context(), opts.cfg, opts.log, nil)
	}
	return newRootCommand(opts)
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:          "progressctl",
		Short:        "Inspect and adjust XP, levels, streaks and quests",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(
		newStatsCommand(opts),
		newAwardCommand(opts),
		newAwardsCommand(opts),
		newResetCommand(opts),
		newStreakCommand(opts),
		newStepsCommand(opts),
		newQuestCommand(opts),
		newLeaderboardCommand(opts),
		newRulesCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

func (o *options) print(w io.Writer, v any) error {
	switch o.output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}

// withApp opens the store for the duration of fn.
func (o *options) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
