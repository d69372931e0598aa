// Package scoring implements the pure scoring functions of the pipeline:
// fraud-risk assessment, price estimation, and per-user alert prioritization.
// Nothing in this package performs I/O or holds shared mutable state.
package scoring

import (
	"regexp"
	"strings"

	"github.com/freelance-radar/radar/internal/model"
)

// Risk level cut points. The same constants gate business logic (e.g.
// priority bonuses) and drive display badges, so they live here and nowhere
// else. 30-59 is "low"; the 30/60/80 boundaries follow the product policy.
const (
	riskLevelLowAt    = 30
	riskLevelMediumAt = 60
	riskLevelHighAt   = 80
)

// riskBaseline is the neutral starting score for a listing with no signals.
const riskBaseline = 20

// Polarity marks whether a rule raises or lowers risk.
type Polarity string

const (
	PolarityRisk  Polarity = "risk"  // weight is added
	PolarityTrust Polarity = "trust" // weight is subtracted
)

// Rule is one declarative risk signal: a regexp over the concatenated
// lowercased title+description+budget text. Weight is always positive;
// Polarity decides the sign.
type Rule struct {
	Name     string   `yaml:"name"`
	Pattern  string   `yaml:"pattern"`
	Weight   int      `yaml:"weight"`
	Polarity Polarity `yaml:"polarity"`

	re *regexp.Regexp
}

// RuleSet is a compiled, ordered collection of risk rules.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet compiles the given rules. Rules with invalid patterns are
// dropped rather than failing the whole set; the scorer must keep working
// with whatever compiles.
func NewRuleSet(rules []Rule) *RuleSet {
	compiled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil || r.Weight <= 0 {
			continue
		}
		r.re = re
		compiled = append(compiled, r)
	}
	return &RuleSet{rules: compiled}
}

// defaultRules is the built-in signal table. Patterns target the Russian
// marketplace vocabulary the adapters ingest.
// Note: patterns avoid \w and \b, which are ASCII-only in Go's regexp and
// silently fail against Cyrillic text.
var defaultRules = []Rule{
	// Negative signals.
	{Name: "upfront_payment", Pattern: `оплат[а-яё]*\s+вперед|предоплат[а-яё]*\s+(с\s+вас|от\s+исполнителя)|страхов[а-яё]+\s+взнос|депозит\s+за|внесите\s`, Weight: 35, Polarity: PolarityRisk},
	{Name: "off_platform_contact", Pattern: `пишите\s+в\s+(telegram|телеграм|whatsapp|ватсап)|только\s+в\s+л[сc]|общение\s+вне\s+биржи`, Weight: 25, Polarity: PolarityRisk},
	{Name: "easy_money", Pattern: `легки[ей]\s+деньги|быстрый\s+заработок|заработок\s+от\s+\d|без\s+опыта\s+и\s+вложений`, Weight: 20, Polarity: PolarityRisk},
	{Name: "crypto_payout", Pattern: `оплата\s+(в\s+)?крипт|usdt|бит[ck]оин`, Weight: 20, Polarity: PolarityRisk},
	{Name: "urgency_pressure", Pattern: `срочно\s+сегодня|прямо\s+сейчас|немедленно|осталось\s+\d+\s+(час|мест)`, Weight: 15, Polarity: PolarityRisk},

	// Positive signals.
	{Name: "verified_client", Pattern: `проверенн[а-яё]+\s+заказчик|верифицирован|официальн[а-яё]+\s+договор|работа\s+по\s+договору`, Weight: 15, Polarity: PolarityTrust},
	{Name: "has_brief", Pattern: `(^|\s)тз([\s.,]|$)|техническ[а-яё]+\s+задани|подробн[а-яё]+\s+описани|прототип|макет\s+готов`, Weight: 10, Polarity: PolarityTrust},
}

// DefaultRules returns the compiled built-in rule set.
func DefaultRules() *RuleSet {
	return NewRuleSet(defaultRules)
}

// Structural thresholds evaluated alongside the pattern table. These look at
// field shapes rather than vocabulary, so they stay in code.
const (
	vagueDescriptionMax    = 80  // runes; below this the description is templated/vague
	detailedDescriptionMin = 400 // runes; above this the scope is considered specific
	implausibleBudgetMin   = 100_000
	implausibleScopeMax    = 120 // runes of description for a 100k+ budget
)

// AssessRisk scores fraud risk for a listing using the default rule set.
// Missing fields degrade to neutral contributions; the result is always in
// [0,100].
func AssessRisk(title, description, budgetText string, budgetValue int) model.ScoreResult {
	return DefaultRules().Assess(title, description, budgetText, budgetValue)
}

// Assess runs the rule set against the listing text and budget.
func (rs *RuleSet) Assess(title, description, budgetText string, budgetValue int) model.ScoreResult {
	text := strings.ToLower(strings.TrimSpace(title + " " + description + " " + budgetText))

	score := riskBaseline
	var warnings, greens []string

	for _, r := range rs.rules {
		if !r.re.MatchString(text) {
			continue
		}
		if r.Polarity == PolarityTrust {
			score -= r.Weight
			greens = append(greens, r.Name)
		} else {
			score += r.Weight
			warnings = append(warnings, r.Name)
		}
	}

	descLen := len([]rune(strings.TrimSpace(description)))
	switch {
	case descLen >= detailedDescriptionMin:
		score -= 10
		greens = append(greens, "detailed_description")
	case descLen < vagueDescriptionMax:
		score += 10
		warnings = append(warnings, "vague_description")
	}

	if budgetValue >= implausibleBudgetMin && descLen < implausibleScopeMax {
		score += 25
		warnings = append(warnings, "budget_implausible_for_scope")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.ScoreResult{
		RiskScore:  score,
		RiskLevel:  LevelFor(score),
		Warnings:   warnings,
		GreenSigns: greens,
	}
}

// LevelFor maps a 0-100 risk score to its categorical level.
func LevelFor(score int) model.RiskLevel {
	switch {
	case score >= riskLevelHighAt:
		return model.RiskHigh
	case score >= riskLevelMediumAt:
		return model.RiskMedium
	case score >= riskLevelLowAt:
		return model.RiskLow
	default:
		return model.RiskSafe
	}
}
