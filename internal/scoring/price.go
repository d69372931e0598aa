package scoring

import (
	"fmt"
	"regexp"

	"github.com/freelance-radar/radar/internal/model"
)

// rateBand holds per-project market rates for one category, in rubles.
type rateBand struct {
	Min, Avg, Max int
}

// marketRates is the base rate table. Values approximate RU freelance
// project budgets per category.
var marketRates = map[model.Category]rateBand{
	model.CategoryProgramming: {Min: 10_000, Avg: 35_000, Max: 150_000},
	model.CategoryDesign:      {Min: 5_000, Avg: 20_000, Max: 100_000},
	model.CategoryCopywriting: {Min: 2_000, Avg: 8_000, Max: 30_000},
	model.CategoryMarketing:   {Min: 15_000, Avg: 50_000, Max: 300_000},
	model.CategoryVideo:       {Min: 8_000, Avg: 25_000, Max: 120_000},
	model.CategoryAudio:       {Min: 5_000, Avg: 15_000, Max: 60_000},
}

// fallbackRates is used for listings with no or unknown category.
var fallbackRates = rateBand{Min: 1_000, Avg: 3_000, Max: 10_000}

// complexityRule maps a text pattern to a price multiplier and its tier.
type complexityRule struct {
	pattern    *regexp.Regexp
	multiplier float64
	tier       model.Complexity
}

// Patterns use explicit Cyrillic classes; \w and \b are ASCII-only in Go's
// regexp. \b is kept only around the Latin ml/ai tokens, where it works.
var complexityRules = []complexityRule{
	// Raises price.
	{regexp.MustCompile(`машинн[а-яё]+\s*обучен|\bml\b|\bai\b|нейросет`), 2.0, model.ComplexityHigh},
	{regexp.MustCompile(`highload|высоконагруженн`), 1.8, model.ComplexityHigh},
	{regexp.MustCompile(`блокчейн|crypto|web3`), 1.7, model.ComplexityHigh},
	{regexp.MustCompile(`с\s*нуля|полный\s*цикл`), 1.5, model.ComplexityHigh},
	{regexp.MustCompile(`интеграци[а-яё]+.*api`), 1.4, model.ComplexityHigh},
	{regexp.MustCompile(`срочно|за\s*\d+\s*дн|быстро`), 1.3, model.ComplexityHigh},

	// Neutral-ish.
	{regexp.MustCompile(`доработк|изменени|правк`), 0.8, model.ComplexityMedium},
	{regexp.MustCompile(`по\s*образцу|по\s*примеру`), 0.9, model.ComplexityMedium},

	// Lowers price.
	{regexp.MustCompile(`шаблон|готов[а-яё]+\s*решени`), 0.5, model.ComplexityLow},
	{regexp.MustCompile(`прост[а-яё]+|базов[а-яё]+|минимальн`), 0.6, model.ComplexityLow},
	{regexp.MustCompile(`небольш[а-яё]+|мелк`), 0.7, model.ComplexityLow},
}

// EstimatePrice recommends a price band for a listing. Pure: the same inputs
// always yield the same estimate.
//
// The multiplier is chosen from the complexity table by taking, among all
// matched patterns, the one whose multiplier is furthest from 1.0. The
// client's stated budget is then classified against the adjusted band;
// far_below means under half of the recommended minimum.
func EstimatePrice(title, description string, category model.Category, clientBudget int) model.PriceEstimate {
	text := lowerText(title, description)

	rates, ok := marketRates[category]
	if !ok {
		rates = fallbackRates
	}

	mult, tier := detectComplexity(text)

	est := model.PriceEstimate{
		RecommendedMin: int(float64(rates.Min) * mult),
		RecommendedAvg: int(float64(rates.Avg) * mult),
		RecommendedMax: int(float64(rates.Max) * mult),
		Complexity:     tier,
		Multiplier:     mult,
	}
	est.BudgetAnalysis = classifyBudget(clientBudget, est.RecommendedMin, est.RecommendedAvg, est.RecommendedMax)
	est.Tip = priceTip(est.BudgetAnalysis, clientBudget, est.RecommendedAvg)
	return est
}

func detectComplexity(text string) (float64, model.Complexity) {
	mult := 1.0
	tier := model.ComplexityMedium
	best := 0.0 // distance from 1.0 of the chosen multiplier

	for _, r := range complexityRules {
		if !r.pattern.MatchString(text) {
			continue
		}
		d := r.multiplier - 1.0
		if d < 0 {
			d = -d
		}
		if d > best {
			best = d
			mult = r.multiplier
			tier = r.tier
		}
	}
	return mult, tier
}

func classifyBudget(budget, min, avg, max int) model.BudgetBand {
	switch {
	case budget <= 0:
		return model.BudgetUnknown
	case budget*2 < min:
		return model.BudgetFarBelow
	case budget < min:
		return model.BudgetBelow
	case budget <= avg:
		return model.BudgetInRange
	case budget <= max:
		return model.BudgetAbove
	default:
		return model.BudgetGenerous
	}
}

func priceTip(band model.BudgetBand, clientBudget, avg int) string {
	switch band {
	case model.BudgetFarBelow:
		return fmt.Sprintf("Бюджет сильно ниже рынка. Предложи %d ₽ или упрощённый вариант за %d ₽", avg, clientBudget)
	case model.BudgetBelow:
		return fmt.Sprintf("Можешь запросить %d ₽, обосновав качеством и опытом", avg)
	case model.BudgetInRange:
		return "Адекватный бюджет. Смело откликайся"
	case model.BudgetAbove:
		return "Хороший бюджет. Можешь предложить доп. услуги"
	case model.BudgetGenerous:
		return "Отличный бюджет. Предложи премиум-решение с поддержкой"
	default:
		return fmt.Sprintf("Рекомендуемая цена: %d ₽", avg)
	}
}
