package model

// RiskLevel buckets a 0-100 risk score. The cut points live in the scoring
// package and are the single source of truth for both display badges and
// business-logic gating.
type RiskLevel string

const (
	RiskSafe   RiskLevel = "safe"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScoreResult is the outcome of a fraud-risk assessment. Ephemeral unless a
// caller persists it via Store.UpdateRisk.
type ScoreResult struct {
	RiskScore  int       `json:"risk_score"` // 0-100
	RiskLevel  RiskLevel `json:"risk_level"`
	Warnings   []string  `json:"warnings,omitempty"`    // triggered negative rules, in rule order
	GreenSigns []string  `json:"green_signs,omitempty"` // triggered positive rules, in rule order
}

// Complexity is the detected effort tier of a listing's text.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// BudgetBand classifies a client's stated budget against the recommended range.
type BudgetBand string

const (
	BudgetUnknown  BudgetBand = "unknown"
	BudgetFarBelow BudgetBand = "far_below"
	BudgetBelow    BudgetBand = "below"
	BudgetInRange  BudgetBand = "in_range"
	BudgetAbove    BudgetBand = "above"
	BudgetGenerous BudgetBand = "generous"
)

// PriceEstimate is a recommended price band for a listing. Ephemeral.
type PriceEstimate struct {
	RecommendedMin int        `json:"recommended_min"`
	RecommendedAvg int        `json:"recommended_avg"`
	RecommendedMax int        `json:"recommended_max"`
	Complexity     Complexity `json:"complexity"`
	Multiplier     float64    `json:"multiplier"`
	BudgetAnalysis BudgetBand `json:"budget_analysis"`
	Tip            string     `json:"tip,omitempty"`
}

// PriorityTier is the notification decision bucket, ordered by urgency.
type PriorityTier string

const (
	TierSkip     PriorityTier = "skip"
	TierNormal   PriorityTier = "normal"
	TierGood     PriorityTier = "good"
	TierHot      PriorityTier = "hot"
	TierPredator PriorityTier = "predator" // override tier, bypasses the point total
)

// PriorityDecision is the prioritizer's verdict for one (listing, user) pair.
type PriorityDecision struct {
	Score   int          `json:"score"`
	Tier    PriorityTier `json:"tier"`
	Notify  bool         `json:"notify"`
	Urgency string       `json:"urgency"` // none, low, medium, high, critical
	Reasons []string     `json:"reasons"` // at most 4, strongest first
}
