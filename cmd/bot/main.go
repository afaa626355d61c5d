package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fardannozami/stepquest/internal/app"
	"github.com/fardannozami/stepquest/internal/app/usecase"
	"github.com/fardannozami/stepquest/internal/config"
	"github.com/fardannozami/stepquest/internal/infra/metrics"
	"github.com/fardannozami/stepquest/internal/infra/wa"
	"github.com/fardannozami/stepquest/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, metrics.NewObserver(reg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start progression service")
	}
	defer a.Close()

	if cfg.Port != "" {
		go func() {
			log.Info().Str("addr", ":"+cfg.Port).Msg("serving metrics")
			if err := metrics.Serve(ctx, ":"+cfg.Port, reg); err != nil {
				log.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	svc := a.Service
	handleMessageUC := usecase.NewHandleMessageUsecase(
		usecase.NewReportActivityUsecase(svc, a.Store),
		usecase.NewGetLeaderboardUsecase(svc, 50),
		usecase.NewSendChallengeUsecase(svc, a.Store),
		usecase.NewQuestUsecase(svc),
		usecase.NewGetStatsUsecase(svc),
	)

	waService := wa.NewService(cfg.SQLitePath, log, logger.WhatsApp(log, "whatsmeow"))

	waService.SetMessageHandler(func(ctx context.Context, msg wa.IncomingMessage) {
		if cfg.GroupID != "" && msg.Chat.String() != cfg.GroupID {
			return
		}

		name := msg.PushName
		if name == "" {
			name = "Unknown"
		}

		msgLog := log.With().Str("user_id", msg.UserID).Str("name", name).Logger()
		msgLog.Debug().Str("text", msg.Text).Msg("message received")

		response, err := handleMessageUC.Execute(ctx, msg.UserID, name, msg.Text)
		if err != nil {
			msgLog.Error().Err(err).Msg("failed to handle message")
			return
		}
		if response == "" {
			return
		}

		if err := waService.Reply(ctx, msg.Chat, response, replyDelay(cfg), cfg.ShowTyping); err != nil {
			msgLog.Error().Err(err).Msg("failed to send response")
		}
	})

	if err := waService.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize WhatsApp service")
	}

	if !waService.IsLoggedIn() {
		if cfg.BotPhone != "" {
			if err := waService.Connect(); err != nil {
				log.Fatal().Err(err).Msg("failed to connect for pairing")
			}

			log.Info().Str("phone", cfg.BotPhone).Msg("not logged in, pairing with phone")
			code, err := waService.Pair(ctx, cfg.BotPhone)
			if err != nil {
				log.Error().Err(err).Msg("failed to generate pair code")
			} else {
				log.Info().Str("code", code).Msg("enter this pair code under Linked Devices > Link with phone number")
			}
		} else {
			log.Info().Msg("not logged in and BOT_PHONE not set, printing QR")
			// PrintQR connects after opening the QR channel.
			waService.PrintQR(ctx)
		}
	} else {
		if err := waService.Connect(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect")
		}
		log.Info().Msg("client is already logged in")
	}

	log.Info().Msg("bot is running, press Ctrl+C to exit")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	waService.Disconnect()
}

// replyDelay picks a delay between the configured bounds so replies look
// typed by a person.
func replyDelay(cfg config.Config) time.Duration {
	ms := cfg.ReplyDelayMinMs
	if cfg.ReplyDelayMaxMs > cfg.ReplyDelayMinMs {
		ms += rand.IntN(cfg.ReplyDelayMaxMs - cfg.ReplyDelayMinMs + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
