package ingest

import (
	"strings"

	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/scoring"
)

var tierHeaders = map[model.PriorityTier]string{
	model.TierPredator: "🦁 РЕЖИМ ХИЩНИК",
	model.TierHot:      "🔥 ГОРЯЧИЙ ЗАКАЗ",
	model.TierGood:     "⭐ ХОРОШИЙ ЗАКАЗ",
	model.TierNormal:   "📋 НОВЫЙ ЗАКАЗ",
}

// FormatAlert renders the plain-text alert payload for one delivery: tier
// header, listing summary, the prioritizer's reasons, a risk warning when the
// listing scored medium or worse, and the link.
func FormatAlert(l model.Listing, d model.PriorityDecision) string {
	header, ok := tierHeaders[d.Tier]
	if !ok {
		header = tierHeaders[model.TierNormal]
	}

	title := l.Title
	if title == "" {
		title = "Без названия"
	}
	budget := l.BudgetText
	if budget == "" {
		budget = "Договорная"
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n📌 ")
	b.WriteString(title)
	b.WriteString("\n\n💰 Бюджет: ")
	b.WriteString(budget)
	b.WriteString("\n📍 Источник: ")
	b.WriteString(string(l.Source))

	if len(d.Reasons) > 0 {
		b.WriteString("\n\nПочему подходит:\n")
		for i, r := range d.Reasons {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("  • ")
			b.WriteString(r)
		}
	}

	switch scoring.LevelFor(l.RiskScore) {
	case model.RiskMedium:
		b.WriteString("\n\n⚠️ Средний риск скама — проверь заказчика")
	case model.RiskHigh:
		b.WriteString("\n\n⚠️ Высокий риск скама — не вноси предоплату")
	}

	b.WriteString("\n\n🔗 ")
	b.WriteString(l.URL)
	return b.String()
}
