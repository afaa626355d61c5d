package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fardannozami/stepquest/internal/domain"
)

// Observer exports progression events as Prometheus metrics.
type Observer struct {
	xpAwarded       *prometheus.CounterVec
	awards          *prometheus.CounterVec
	duplicateAwards *prometheus.CounterVec
	levelUps        *prometheus.CounterVec
	questsGenerated *prometheus.CounterVec
	questsClaimed   *prometheus.CounterVec
	milestones      *prometheus.CounterVec
}

func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		xpAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "xp_awarded_total",
			Help:      "XP credited to users, by source type.",
		}, []string{"source_type"}),
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "xp_awards_total",
			Help:      "Ledger entries written, by source type.",
		}, []string{"source_type"}),
		duplicateAwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "xp_awards_duplicate_total",
			Help:      "Award attempts rejected by the idempotency key.",
		}, []string{"source_type"}),
		levelUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "level_ups_total",
			Help:      "Level-ups, by level reached.",
		}, []string{"level"}),
		questsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "quests_generated_total",
			Help:      "Daily quests generated, by type.",
		}, []string{"quest_type"}),
		questsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "quests_claimed_total",
			Help:      "Daily quests claimed, by type.",
		}, []string{"quest_type"}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepquest",
			Name:      "streak_milestones_total",
			Help:      "Streak milestone bonuses paid, by milestone.",
		}, []string{"days"}),
	}

	reg.MustRegister(o.xpAwarded, o.awards, o.duplicateAwards, o.levelUps, o.questsGenerated, o.questsClaimed, o.milestones)
	return o
}

func (o *Observer) XPAwarded(source domain.SourceType, amount int) {
	o.xpAwarded.WithLabelValues(string(source)).Add(float64(amount))
	o.awards.WithLabelValues(string(source)).Inc()
}

func (o *Observer) DuplicateAward(source domain.SourceType) {
	o.duplicateAwards.WithLabelValues(string(source)).Inc()
}

func (o *Observer) LeveledUp(level int) {
	o.levelUps.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (o *Observer) QuestGenerated(questType domain.QuestType) {
	o.questsGenerated.WithLabelValues(string(questType)).Inc()
}

func (o *Observer) QuestClaimed(questType domain.QuestType) {
	o.questsClaimed.WithLabelValues(string(questType)).Inc()
}

func (o *Observer) StreakMilestone(days int) {
	o.milestones.WithLabelValues(strconv.Itoa(days)).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
