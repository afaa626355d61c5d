// Package app wires configuration, storage and the progression engine
// together for the bot and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fardannozami/stepquest/internal/config"
	"github.com/fardannozami/stepquest/internal/domain"
	"github.com/fardannozami/stepquest/internal/gamification"
	"github.com/fardannozami/stepquest/internal/infra/store"
)

type App struct {
	Config  config.Config
	Store   domain.Store
	Service *gamification.Service
}

// New opens the configured store and builds the progression service.
// observer may be nil.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, observer gamification.Observer) (*App, error) {
	rules, err := gamification.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	if cfg.DailyStepGoal > 0 {
		rules.DailyStepGoal = cfg.DailyStepGoal
		if err := rules.Validate(); err != nil {
			return nil, fmt.Errorf("DAILY_STEP_GOAL: %w", err)
		}
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	engineLog := log.With().Str("component", "gamification").Logger()
	svc := gamification.NewService(gamification.Options{
		Store:         st,
		Rules:         rules,
		Location:      cfg.Location(),
		CampaignStart: cfg.CampaignStart,
		Observer:      observer,
		Logger:        &engineLog,
	})

	return &App{Config: cfg, Store: st, Service: svc}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
