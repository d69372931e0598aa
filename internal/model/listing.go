// Package model defines the core records exchanged between the ingestion
// pipeline, the scoring engine, and the store.
package model

import "time"

// Source identifies one external marketplace origin.
type Source string

const (
	SourceKwork       Source = "kwork"
	SourceFLRu        Source = "fl.ru"
	SourceFreelanceRu Source = "freelance.ru"
	SourceHH          Source = "hh"
	SourceHabr        Source = "habr_freelance"
)

// AllSources lists every known marketplace origin.
var AllSources = []Source{SourceKwork, SourceFLRu, SourceFreelanceRu, SourceHH, SourceHabr}

// Category is an internal job category identifier. Adapters map these to
// source-specific query parameters.
type Category string

const (
	CategoryDesign      Category = "design"
	CategoryProgramming Category = "programming"
	CategoryCopywriting Category = "copywriting"
	CategoryMarketing   Category = "marketing"
	CategoryVideo       Category = "video"
	CategoryAudio       Category = "audio"
)

// DefaultCategories is the fallback category set used when a sweep is
// triggered without an explicit selection.
var DefaultCategories = []Category{
	CategoryDesign, CategoryProgramming, CategoryCopywriting, CategoryMarketing,
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryDesign, CategoryProgramming, CategoryCopywriting,
		CategoryMarketing, CategoryVideo, CategoryAudio:
		return true
	}
	return false
}

// Listing is a single job/order posting normalized to the common shape.
// (Source, ExternalID) is the identity key; the store enforces uniqueness.
type Listing struct {
	ID          int64     `json:"id"`
	Source      Source    `json:"source"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	BudgetText  string    `json:"budget_text"`
	BudgetValue int       `json:"budget_value"` // rubles, 0 if unknown
	URL         string    `json:"url"`
	Category    Category  `json:"category,omitempty"`
	RiskScore   int       `json:"risk_score"`
	RiskFlags   []string  `json:"risk_flags,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // ingestion time, not source posting time
}

// Key returns the dedup identity of the listing.
func (l Listing) Key() string {
	return string(l.Source) + "/" + l.ExternalID
}
