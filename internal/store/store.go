package store

import (
	"context"
	"time"

	"github.com/freelance-radar/radar/internal/model"
)

// ListingFilter specifies criteria for listing recent listings.
type ListingFilter struct {
	Category model.Category `json:"category,omitempty"`
	Source   model.Source   `json:"source,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// SourceCount is a per-source listing count for analytics.
type SourceCount struct {
	Source model.Source `json:"source"`
	Count  int          `json:"count"`
}

// CategoryCount is a per-category listing count for analytics.
type CategoryCount struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
}

// BudgetSummary aggregates budget_value over listings that declared one.
type BudgetSummary struct {
	Avg float64 `json:"avg"`
	Max int     `json:"max"`
}

// Store defines the persistence interface for the listing radar.
type Store interface {
	// Listings. SaveListing returns (nil, nil) when the (source, external_id)
	// pair is already stored; existing rows are never modified on a
	// duplicate, whatever the incoming content says. GetListing and GetUser
	// return (nil, nil) when no such row exists.
	SaveListing(ctx context.Context, l model.Listing) (*model.Listing, error)
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
	RecentListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error)
	UpdateRisk(ctx context.Context, id int64, score int, warnings []string) error

	// Subscribers
	UpsertUser(ctx context.Context, u model.UserPreference) error
	GetUser(ctx context.Context, id int64) (*model.UserPreference, error)
	ActiveUsersForCategory(ctx context.Context, category model.Category) ([]model.UserPreference, error)

	// Delivery ledger. MarkDelivered is idempotent.
	MarkDelivered(ctx context.Context, userID, listingID int64) error
	IsDelivered(ctx context.Context, userID, listingID int64) (bool, error)

	// Analytics
	CountListings(ctx context.Context, category model.Category, from, to time.Time) (int, error)
	BudgetStats(ctx context.Context, category model.Category, from time.Time) (BudgetSummary, error)
	TopSources(ctx context.Context, category model.Category, from time.Time, limit int) ([]SourceCount, error)
	TopCategories(ctx context.Context, from time.Time, limit int) ([]CategoryCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
