package model

import "time"

// UserPreference is the read-only slice of a subscriber that the core needs:
// what to match, what thresholds to apply, and where to deliver. Subscription
// and payment bookkeeping live outside the core.
type UserPreference struct {
	ID                int64      `json:"id"`
	Address           string     `json:"address"` // opaque delivery address (e.g. chat id)
	Categories        []Category `json:"categories"`
	MinBudget         int        `json:"min_budget"`
	PredatorMode      bool       `json:"predator_mode"`
	PredatorMinBudget int        `json:"predator_min_budget"`
	Active            bool       `json:"active"`
	SubscriptionUntil time.Time  `json:"subscription_until"`
}

// Subscribed reports whether the user should receive alerts at the given time.
func (u UserPreference) Subscribed(now time.Time) bool {
	return u.Active && u.SubscriptionUntil.After(now)
}

// WantsCategory reports whether the user selected the given category.
// An empty selection matches nothing.
func (u UserPreference) WantsCategory(c Category) bool {
	for _, uc := range u.Categories {
		if uc == c {
			return true
		}
	}
	return false
}
