package usecase

import (
	"fmt"
	"strings"

	"github.com/fardannozami/stepquest/internal/domain"
)

func questLine(q *domain.DailyQuest) string {
	if q == nil {
		return "🎯 Belum ada quest hari ini, ketik #quest"
	}

	var goal string
	switch q.QuestType {
	case domain.QuestSocial:
		goal = fmt.Sprintf("kirim %d tantangan", q.TargetValue)
	default:
		goal = fmt.Sprintf("jalan %s langkah", thousands(q.TargetValue))
	}

	line := fmt.Sprintf("🎯 Quest: %s (%s/%s) – %d XP", goal, thousands(q.CurrentProgress), thousands(q.TargetValue), q.XPReward)
	switch q.Status() {
	case domain.QuestClaimed:
		return line + " ✅ sudah diklaim"
	case domain.QuestCompleted:
		return line + " – selesai! ketik #klaim"
	case domain.QuestGenerated:
		return line + fmt.Sprintf(" – belum mulai, kurang %s", thousands(q.Remaining()))
	default:
		return line + fmt.Sprintf(" – kurang %s", thousands(q.Remaining()))
	}
}

// thousands formats n with dots as the thousands separator: 12500 -> 12.500.
func thousands(n int) string {
	s := fmt.Sprint(n)
	if n < 0 {
		return "-" + thousands(-n)
	}
	if len(s) <= 3 {
		return s
	}

	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

func displayName(name, userID string) string {
	if strings.TrimSpace(name) == "" {
		return userID
	}
	return name
}
