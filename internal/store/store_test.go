package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelance-radar/radar/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleListing(source model.Source, externalID string) model.Listing {
	return model.Listing{
		Source:      source,
		ExternalID:  externalID,
		Title:       "Нужен логотип",
		Description: "Логотип для кофейни, есть примеры.",
		BudgetText:  "5 000 ₽",
		BudgetValue: 5000,
		URL:         "https://kwork.ru/projects/" + externalID,
		Category:    model.CategoryDesign,
		RiskScore:   20,
	}
}

func subscriber(id int64, categories ...model.Category) model.UserPreference {
	return model.UserPreference{
		ID:                id,
		Address:           "chat-42",
		Categories:        categories,
		Active:            true,
		SubscriptionUntil: time.Now().UTC().Add(24 * time.Hour),
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGetListing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.SaveListing(ctx, sampleListing(model.SourceKwork, "1001"))
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Positive(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := s.GetListing(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Нужен логотип", got.Title)
		assert.Equal(t, 5000, got.BudgetValue)
		assert.Equal(t, model.SourceKwork, got.Source)
		assert.Equal(t, model.CategoryDesign, got.Category)
	})

	t.Run("SaveListingDuplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.SaveListing(ctx, sampleListing(model.SourceKwork, "1001"))
		require.NoError(t, err)
		require.NotNil(t, first)

		// Same identity, different content: still a duplicate, row untouched.
		dup := sampleListing(model.SourceKwork, "1001")
		dup.Title = "Совсем другой текст"
		dup.BudgetValue = 99999

		again, err := s.SaveListing(ctx, dup)
		require.NoError(t, err)
		assert.Nil(t, again)

		got, err := s.GetListing(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Нужен логотип", got.Title)
		assert.Equal(t, 5000, got.BudgetValue)
	})

	t.Run("SaveListingSameIDDifferentSource", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.SaveListing(ctx, sampleListing(model.SourceKwork, "1001"))
		require.NoError(t, err)
		require.NotNil(t, a)

		b, err := s.SaveListing(ctx, sampleListing(model.SourceFLRu, "1001"))
		require.NoError(t, err)
		require.NotNil(t, b, "external ids only collide within one source")
	})

	t.Run("GetListingNotFound", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetListing(context.Background(), 99999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RecentListings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.SaveListing(ctx, sampleListing(model.SourceKwork, "1"))
		require.NoError(t, err)
		prog := sampleListing(model.SourceKwork, "2")
		prog.Category = model.CategoryProgramming
		_, err = s.SaveListing(ctx, prog)
		require.NoError(t, err)
		_, err = s.SaveListing(ctx, sampleListing(model.SourceFLRu, "3"))
		require.NoError(t, err)

		all, err := s.RecentListings(ctx, ListingFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, "3", all[0].ExternalID, "newest first")

		design, err := s.RecentListings(ctx, ListingFilter{Category: model.CategoryDesign})
		require.NoError(t, err)
		assert.Len(t, design, 2)

		kwork, err := s.RecentListings(ctx, ListingFilter{Source: model.SourceKwork})
		require.NoError(t, err)
		assert.Len(t, kwork, 2)

		limited, err := s.RecentListings(ctx, ListingFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("UpdateRisk", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.SaveListing(ctx, sampleListing(model.SourceKwork, "1001"))
		require.NoError(t, err)

		err = s.UpdateRisk(ctx, saved.ID, 75, []string{"upfront_payment", "off_platform_contact"})
		require.NoError(t, err)

		got, err := s.GetListing(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, 75, got.RiskScore)
		assert.Equal(t, []string{"upfront_payment", "off_platform_contact"}, got.RiskFlags)
	})

	t.Run("UpdateRiskNotFound", func(t *testing.T) {
		s := newStore(t)

		err := s.UpdateRisk(context.Background(), 99999, 50, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("UpsertAndGetUser", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := subscriber(7, model.CategoryDesign, model.CategoryProgramming)
		u.MinBudget = 10_000
		u.PredatorMode = true
		u.PredatorMinBudget = 50_000
		require.NoError(t, s.UpsertUser(ctx, u))

		got, err := s.GetUser(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "chat-42", got.Address)
		assert.Equal(t, []model.Category{model.CategoryDesign, model.CategoryProgramming}, got.Categories)
		assert.Equal(t, 10_000, got.MinBudget)
		assert.True(t, got.PredatorMode)
		assert.Equal(t, 50_000, got.PredatorMinBudget)

		// Second upsert replaces the row.
		u.Categories = []model.Category{model.CategoryVideo}
		u.Active = false
		require.NoError(t, s.UpsertUser(ctx, u))

		got, err = s.GetUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []model.Category{model.CategoryVideo}, got.Categories)
		assert.False(t, got.Active)
	})

	t.Run("GetUserNotFound", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetUser(context.Background(), 404)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ActiveUsersForCategory", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertUser(ctx, subscriber(1, model.CategoryDesign)))
		require.NoError(t, s.UpsertUser(ctx, subscriber(2, model.CategoryProgramming)))

		inactive := subscriber(3, model.CategoryDesign)
		inactive.Active = false
		require.NoError(t, s.UpsertUser(ctx, inactive))

		expired := subscriber(4, model.CategoryDesign)
		expired.SubscriptionUntil = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, s.UpsertUser(ctx, expired))

		noCategories := subscriber(5)
		require.NoError(t, s.UpsertUser(ctx, noCategories))

		users, err := s.ActiveUsersForCategory(ctx, model.CategoryDesign)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, int64(1), users[0].ID)
	})

	t.Run("DeliveryLedger", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		sent, err := s.IsDelivered(ctx, 7, 100)
		require.NoError(t, err)
		assert.False(t, sent)

		require.NoError(t, s.MarkDelivered(ctx, 7, 100))
		require.NoError(t, s.MarkDelivered(ctx, 7, 100), "marking twice is fine")

		sent, err = s.IsDelivered(ctx, 7, 100)
		require.NoError(t, err)
		assert.True(t, sent)

		other, err := s.IsDelivered(ctx, 8, 100)
		require.NoError(t, err)
		assert.False(t, other, "ledger is per user")
	})

	t.Run("CountListings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		recent := sampleListing(model.SourceKwork, "1")
		recent.CreatedAt = now.Add(-time.Hour)
		_, err := s.SaveListing(ctx, recent)
		require.NoError(t, err)

		old := sampleListing(model.SourceKwork, "2")
		old.CreatedAt = now.Add(-10 * 24 * time.Hour)
		_, err = s.SaveListing(ctx, old)
		require.NoError(t, err)

		weekAgo := now.Add(-7 * 24 * time.Hour)
		count, err := s.CountListings(ctx, "", weekAgo, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = s.CountListings(ctx, model.CategoryProgramming, weekAgo, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("BudgetStats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := sampleListing(model.SourceKwork, "1")
		a.BudgetValue = 10_000
		_, err := s.SaveListing(ctx, a)
		require.NoError(t, err)

		b := sampleListing(model.SourceKwork, "2")
		b.BudgetValue = 30_000
		_, err = s.SaveListing(ctx, b)
		require.NoError(t, err)

		noBudget := sampleListing(model.SourceKwork, "3")
		noBudget.BudgetValue = 0
		_, err = s.SaveListing(ctx, noBudget)
		require.NoError(t, err)

		bs, err := s.BudgetStats(ctx, "", time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.InDelta(t, 20_000, bs.Avg, 0.001, "zero budgets are excluded")
		assert.Equal(t, 30_000, bs.Max)
	})

	t.Run("TopSourcesAndCategories", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, src := range []model.Source{model.SourceKwork, model.SourceKwork, model.SourceFLRu} {
			l := sampleListing(src, string(rune('a'+i)))
			if i == 2 {
				l.Category = model.CategoryProgramming
			}
			_, err := s.SaveListing(ctx, l)
			require.NoError(t, err)
		}

		from := time.Now().UTC().Add(-time.Hour)

		sources, err := s.TopSources(ctx, "", from, 5)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, model.SourceKwork, sources[0].Source)
		assert.Equal(t, 2, sources[0].Count)

		categories, err := s.TopCategories(ctx, from, 5)
		require.NoError(t, err)
		require.Len(t, categories, 2)
		assert.Equal(t, model.CategoryDesign, categories[0].Category)
		assert.Equal(t, 2, categories[0].Count)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}
