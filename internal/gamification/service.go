package gamification

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fardannozami/stepquest/internal/domain"
)

type Options struct {
	Store    domain.ProgressStore
	Rules    Rules
	Clock    domain.Clock
	Random   domain.RandomSource
	Location *time.Location
	// CampaignStart anchors the 30 day leaderboard campaigns. Zero means the
	// Unix epoch.
	CampaignStart time.Time
	Observer      Observer
	Logger        *zerolog.Logger
}

// Service is the entry point used by the bot and the admin CLI. It composes
// the quest engine, the XP ledger and the streak tracker.
type Service struct {
	store         domain.ProgressStore
	rules         Rules
	loc           *time.Location
	campaignStart time.Time
	observer      Observer
	log           *zerolog.Logger

	ledger  *Ledger
	quests  *QuestEngine
	streaks *StreakTracker
}

func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.CampaignStart.IsZero() {
		opts.CampaignStart = time.Unix(0, 0).UTC()
	}
	if opts.Rules.StepsPerXP == 0 {
		opts.Rules = DefaultRules()
	}

	ledger := NewLedger(opts.Store, opts.Clock, opts.Observer, opts.Logger)
	return &Service{
		store:         opts.Store,
		rules:         opts.Rules,
		loc:           opts.Location,
		campaignStart: domain.DateOf(opts.CampaignStart, time.UTC), // already a calendar date
		observer:      opts.Observer,
		log:           opts.Logger,
		ledger:        ledger,
		quests:        NewQuestEngine(opts.Store, ledger, opts.Rules, opts.Random, opts.Clock, opts.Observer),
		streaks:       NewStreakTracker(opts.Rules, opts.Clock, opts.Location),
	}
}

// Today is the current calendar date in the service's time zone.
func (s *Service) Today() time.Time {
	return s.streaks.Today()
}

func (s *Service) Rules() Rules {
	return s.rules
}

// GetTodayQuest returns today's quest, generating it on first request.
func (s *Service) GetTodayQuest(ctx context.Context, userID string) (*domain.DailyQuest, error) {
	return s.quests.Generate(ctx, userID, s.Today())
}

// GenerateDailyQuest is idempotent: it returns the existing quest for today
// when there is one.
func (s *Service) GenerateDailyQuest(ctx context.Context, userID string) (*domain.DailyQuest, error) {
	return s.quests.Generate(ctx, userID, s.Today())
}

func (s *Service) UpdateQuestProgress(ctx context.Context, questID string, progress int) (*domain.DailyQuest, error) {
	return s.quests.UpdateProgress(ctx, questID, progress)
}

// ClaimQuestReward claims a completed quest. Claiming an already claimed
// quest succeeds with AlreadyClaimed set and no XP.
func (s *Service) ClaimQuestReward(ctx context.Context, userID, questID string) (*ClaimResult, error) {
	res, err := s.quests.Claim(ctx, userID, questID)
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		quest, getErr := s.store.GetQuest(ctx, questID)
		if getErr != nil {
			return nil, persistErr("get quest", getErr)
		}
		return &ClaimResult{Quest: quest, AlreadyClaimed: true}, nil
	}
	return res, err
}

func (s *Service) AddXPToUser(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	return s.ledger.Award(ctx, req)
}

func (s *Service) ResetXP(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return s.ledger.ResetXP(ctx, userID)
}

type StreakResult struct {
	Current int  `json:"current_streak"`
	Longest int  `json:"longest_streak"`
	Changed bool `json:"changed"`
	// Milestone is the milestone the current streak sits on, 0 if none.
	Milestone int `json:"milestone,omitempty"`
	// BonusXP is the bonus credited by this call; 0 when it was paid before.
	BonusXP int          `json:"streak_bonus_xp"`
	Award   *AwardResult `json:"award,omitempty"`
}

// UpdateUserStreak records activity for today and pays the milestone bonus
// the streak sits on. The bonus is keyed by milestone, so repeated calls
// never pay it twice.
func (s *Service) UpdateUserStreak(ctx context.Context, userID string) (*StreakResult, error) {
	if userID == "" {
		return nil, invalid("streak update without user id")
	}

	progress, err := s.ensureProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := StreakState{
		Current:    progress.CurrentStreakDays,
		Longest:    progress.LongestStreakDays,
		LastActive: progress.LastActiveDate,
	}
	next, changed := s.streaks.Record(state)
	if changed {
		if err := s.store.UpdateStreak(ctx, userID, next.Current, next.Longest, next.LastActive); err != nil {
			return nil, persistErr("update streak", err)
		}
	}

	res := &StreakResult{Current: next.Current, Longest: next.Longest, Changed: changed}

	m, ok := s.streaks.Milestone(next.Current)
	if !ok {
		return res, nil
	}
	res.Milestone = m.Days

	award, err := s.ledger.Award(ctx, AwardRequest{
		UserID:     userID,
		Amount:     m.BonusXP,
		SourceType: domain.SourceStreakBonus,
		SourceID:   strconv.Itoa(m.Days),
		Reason:     fmt.Sprintf("%d day streak", m.Days),
	})
	if err != nil {
		return res, err
	}
	res.Award = award
	if !award.Duplicate {
		res.BonusXP = m.BonusXP
		s.observer.StreakMilestone(m.Days)
		s.log.Info().Str("user_id", userID).Int("days", m.Days).Int("bonus_xp", m.BonusXP).Msg("streak milestone reached")
	}
	return res, nil
}

func (s *Service) GetNextStreakMilestone(currentStreak int) (Milestone, bool) {
	return s.streaks.NextMilestone(currentStreak)
}

type SnapshotResult struct {
	Quest  *domain.DailyQuest `json:"quest"`
	Streak *StreakResult      `json:"streak"`
}

// RecordActivitySnapshot feeds today's numbers into the quest matching its
// type, then advances the streak.
func (s *Service) RecordActivitySnapshot(ctx context.Context, userID string, todaySteps, challengesSentToday int) (*SnapshotResult, error) {
	if todaySteps < 0 || challengesSentToday < 0 {
		return nil, invalid("negative activity snapshot (%d steps, %d challenges)", todaySteps, challengesSentToday)
	}

	quest, err := s.GetTodayQuest(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress := todaySteps
	if quest.QuestType == domain.QuestSocial {
		progress = challengesSentToday
	}
	if !quest.Claimed {
		quest, err = s.quests.UpdateProgress(ctx, quest.ID, progress)
		if err != nil {
			return nil, err
		}
	}

	streak, err := s.UpdateUserStreak(ctx, userID)
	return &SnapshotResult{Quest: quest, Streak: streak}, err
}

type StepSyncResult struct {
	Steps      int  `json:"steps"`
	EligibleXP int  `json:"eligible_xp"`
	AwardedXP  int  `json:"base_xp_earned"`
	TotalXP    int  `json:"total_xp"`
	Level      int  `json:"new_level"`
	LeveledUp  bool `json:"leveled_up"`
}

// SyncDailySteps pays base XP for today's steps: one XP per StepsPerXP steps,
// up to MaxDailyStepXP. Every unit is its own award keyed by date and index,
// so syncing the same or a lower count again pays nothing.
func (s *Service) SyncDailySteps(ctx context.Context, userID string, steps int) (*StepSyncResult, error) {
	if userID == "" {
		return nil, invalid("step sync without user id")
	}
	if steps < 0 {
		return nil, invalid("negative step count %d", steps)
	}

	eligible := min(steps/s.rules.StepsPerXP, s.rules.MaxDailyStepXP)
	res := &StepSyncResult{Steps: steps, EligibleXP: eligible}
	day := domain.FormatDate(s.Today())

	for n := 1; n <= eligible; n++ {
		award, err := s.ledger.Award(ctx, AwardRequest{
			UserID:     userID,
			Amount:     1,
			SourceType: domain.SourceDailySteps,
			SourceID:   day + "#" + strconv.Itoa(n),
			Reason:     "daily steps",
		})
		if err != nil {
			return res, err
		}
		if !award.Duplicate {
			res.AwardedXP++
		}
		res.LeveledUp = res.LeveledUp || award.LeveledUp
		res.TotalXP = award.NewTotalXP
		res.Level = award.NewLevel
	}

	if eligible == 0 {
		p, err := s.ensureProgress(ctx, userID)
		if err != nil {
			return res, err
		}
		res.TotalXP, res.Level = p.TotalXP, p.Level
	}
	return res, nil
}

type Stats struct {
	Progress      domain.UserProgress `json:"progress"`
	LevelProgress float64             `json:"level_progress"`
	XPToNextLevel int                 `json:"xp_to_next_level"`
	StreakActive  bool                `json:"streak_active"`
	TodayQuest    *domain.DailyQuest  `json:"today_quest,omitempty"`
	NextMilestone *Milestone          `json:"next_milestone,omitempty"`
}

// GetUserGamificationStats is a read-only projection; it never generates a
// quest or creates a progress row.
func (s *Service) GetUserGamificationStats(ctx context.Context, userID string) (*Stats, error) {
	progress, err := s.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, persistErr("get user progress", err)
	}
	if progress == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	quest, err := s.store.GetQuestForDate(ctx, userID, s.Today())
	if err != nil {
		return nil, persistErr("get quest", err)
	}

	frac, err := ProgressWithinLevel(progress.TotalXP, progress.Level)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Progress:      *progress,
		LevelProgress: frac,
		XPToNextLevel: XPToNextLevel(progress.TotalXP, progress.Level),
		StreakActive:  s.streaks.Active(progress.LastActiveDate),
		TodayQuest:    quest,
	}
	if m, ok := s.streaks.NextMilestone(progress.CurrentStreakDays); ok {
		stats.NextMilestone = &m
	}
	return stats, nil
}

// ListAwards returns the user's ledger entries, newest first.
func (s *Service) ListAwards(ctx context.Context, userID string) ([]*domain.XPAward, error) {
	if userID == "" {
		return nil, invalid("ledger without user id")
	}
	awards, err := s.store.ListAwards(ctx, userID)
	if err != nil {
		return nil, persistErr("list awards", err)
	}
	return awards, nil
}

// SetDisplayName stores the name shown on the leaderboard.
func (s *Service) SetDisplayName(ctx context.Context, userID, name string) error {
	if _, err := s.ensureProgress(ctx, userID); err != nil {
		return err
	}
	if err := s.store.UpdateDisplayName(ctx, userID, name); err != nil {
		return persistErr("update display name", err)
	}
	return nil
}

type Campaign struct {
	Number        int       `json:"campaign_number"`
	Start         time.Time `json:"start_date"`
	End           time.Time `json:"end_date"`
	DaysRemaining int       `json:"days_remaining"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Level         int    `json:"level"`
	CampaignXP    int    `json:"xp_in_campaign"`
	TotalXP       int    `json:"total_xp"`
	CurrentStreak int    `json:"current_streak"`
	StreakActive  bool   `json:"streak_active"`
}

type Leaderboard struct {
	Campaign Campaign            `json:"campaign"`
	Entries  []*LeaderboardEntry `json:"entries"`
}

// CurrentCampaign returns the campaign window containing today.
func (s *Service) CurrentCampaign() Campaign {
	today := s.Today()
	days := max(0, domain.DaysBetween(s.campaignStart, today))
	number := days/s.rules.CampaignDays + 1
	start := s.campaignStart.AddDate(0, 0, (number-1)*s.rules.CampaignDays)
	end := start.AddDate(0, 0, s.rules.CampaignDays)
	return Campaign{
		Number:        number,
		Start:         start,
		End:           end,
		DaysRemaining: domain.DaysBetween(today, end),
	}
}

// Leaderboard ranks users by XP earned in the current campaign.
func (s *Service) Leaderboard(ctx context.Context, limit int) (*Leaderboard, error) {
	if limit <= 0 {
		limit = 100
	}

	campaign := s.CurrentCampaign()
	// Campaign days are local days; awards are stamped in UTC.
	since := time.Date(campaign.Start.Year(), campaign.Start.Month(), campaign.Start.Day(), 0, 0, 0, 0, s.loc).UTC()

	standings, err := s.store.CampaignStandings(ctx, since, limit)
	if err != nil {
		return nil, persistErr("campaign standings", err)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].CampaignXP != standings[j].CampaignXP {
			return standings[i].CampaignXP > standings[j].CampaignXP
		}
		return standings[i].Progress.TotalXP > standings[j].Progress.TotalXP
	})

	board := &Leaderboard{Campaign: campaign}
	for i, st := range standings {
		board.Entries = append(board.Entries, &LeaderboardEntry{
			Rank:          i + 1,
			UserID:        st.Progress.UserID,
			DisplayName:   st.Progress.DisplayName,
			Level:         st.Progress.Level,
			CampaignXP:    st.CampaignXP,
			TotalXP:       st.Progress.TotalXP,
			CurrentStreak: st.Progress.CurrentStreakDays,
			StreakActive:  s.streaks.Active(st.Progress.LastActiveDate),
		})
	}
	return board, nil
}

func (s *Service) ensureProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if err := s.store.EnsureUserProgress(ctx, userID); err != nil {
		return nil, persistErr("ensure user progress", err)
	}
	progress, err := s.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, persistErr("get user progress", err)
	}
	if progress == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return progress, nil
}
