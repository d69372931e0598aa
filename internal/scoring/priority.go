package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/freelance-radar/radar/internal/model"
)

// Priority policy constants. These are product decisions, not derived values:
// budget tiers step at 15k/30k/50k/100k rubles, decisions cut at 30/50/70
// points, and the predator override ignores the point total entirely.
const (
	budgetTier1 = 15_000
	budgetTier2 = 30_000
	budgetTier3 = 50_000
	budgetTier4 = 100_000

	decisionNormalAt = 30
	decisionGoodAt   = 50
	decisionHotAt    = 70

	recencyWindow = time.Hour
	maxReasons    = 4
)

// contribution is one scored reason, kept so reasons can be ranked by impact.
type contribution struct {
	points int
	reason string
}

// Prioritize combines a listing, a user's preferences, and a risk assessment
// into a notification decision. now is injected so recency is testable.
func Prioritize(l model.Listing, pref model.UserPreference, risk model.ScoreResult, now time.Time) model.PriorityDecision {
	var contribs []contribution
	add := func(points int, reason string) {
		contribs = append(contribs, contribution{points: points, reason: reason})
	}

	switch {
	case l.BudgetValue >= budgetTier4:
		add(60, "Премиум заказ (100K+)")
	case l.BudgetValue >= budgetTier3:
		add(45, "Жирный заказ (50K+)")
	case l.BudgetValue >= budgetTier2:
		add(30, "Хороший бюджет (30K+)")
	case l.BudgetValue >= budgetTier1:
		add(15, "Нормальный бюджет")
	}

	if pref.WantsCategory(l.Category) {
		add(25, "Твоя категория")
	}

	if pref.MinBudget > 0 && l.BudgetValue >= pref.MinBudget {
		add(10, fmt.Sprintf("Бюджет от %d ₽", pref.MinBudget))
	}

	switch risk.RiskLevel {
	case model.RiskSafe:
		add(15, "Безопасный заказ")
	case model.RiskLow:
		add(10, "Низкий риск")
	case model.RiskHigh:
		add(-30, "Подозрительный заказ")
	}

	if !l.CreatedAt.IsZero() && now.Sub(l.CreatedAt) < recencyWindow {
		add(10, "Новый заказ")
	}

	score := 0
	for _, c := range contribs {
		score += c.points
	}

	d := model.PriorityDecision{Score: score, Reasons: topReasons(contribs)}

	predator := pref.PredatorMode && pref.PredatorMinBudget > 0 &&
		l.BudgetValue >= pref.PredatorMinBudget

	switch {
	case predator:
		// Override tier: fires regardless of the computed score, including
		// when the score alone would say skip.
		d.Tier, d.Notify, d.Urgency = model.TierPredator, true, "critical"
	case score >= decisionHotAt:
		d.Tier, d.Notify, d.Urgency = model.TierHot, true, "high"
	case score >= decisionGoodAt:
		d.Tier, d.Notify, d.Urgency = model.TierGood, true, "medium"
	case score >= decisionNormalAt:
		d.Tier, d.Notify, d.Urgency = model.TierNormal, true, "low"
	default:
		d.Tier, d.Notify, d.Urgency = model.TierSkip, false, "none"
	}

	return d
}

// topReasons returns the strongest contributions by absolute impact,
// capped at maxReasons. Ties keep evaluation order.
func topReasons(contribs []contribution) []string {
	ranked := make([]contribution, len(contribs))
	copy(ranked, contribs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return abs(ranked[i].points) > abs(ranked[j].points)
	})
	if len(ranked) > maxReasons {
		ranked = ranked[:maxReasons]
	}
	reasons := make([]string, len(ranked))
	for i, c := range ranked {
		reasons[i] = c.reason
	}
	return reasons
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// lowerText joins and lowercases text fields for pattern matching.
func lowerText(parts ...string) string {
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}
