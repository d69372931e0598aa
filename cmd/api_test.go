package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelance-radar/radar/internal/ingest"
	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/store"
)

func newTestAPI(t *testing.T) (*apiHandler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	h := &apiHandler{
		store:       st,
		coordinator: ingest.NewCoordinator(st, nil, nil, nil, 0),
		categories:  model.DefaultCategories,
	}
	return h, st
}

func saveListing(t *testing.T, st store.Store, l model.Listing) model.Listing {
	t.Helper()
	saved, err := st.SaveListing(context.Background(), l)
	require.NoError(t, err)
	require.NotNil(t, saved)
	return *saved
}

func TestAPI_Health(t *testing.T) {
	h, _ := newTestAPI(t)
	router := buildRouter(h, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Sweep_NoAdapters(t *testing.T) {
	h, _ := newTestAPI(t)
	router := buildRouter(h, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sweep", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Zero(t, body["new_listings"])
}

func TestAPI_Listings(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)
	now := time.Now().UTC()

	saveListing(t, st, model.Listing{
		Source:      model.SourceKwork,
		ExternalID:  "1",
		Title:       "Логотип для кофейни",
		Description: "Нужен логотип",
		BudgetText:  "60 000 ₽",
		BudgetValue: 60_000,
		URL:         "https://kwork.ru/projects/1",
		Category:    model.CategoryDesign,
		CreatedAt:   now.Add(-10 * time.Minute),
	})
	saveListing(t, st, model.Listing{
		Source:     model.SourceFLRu,
		ExternalID: "2",
		Title:      "Статья про маркетинг",
		BudgetText: "Договорная",
		URL:        "https://fl.ru/projects/2",
		Category:   model.CategoryCopywriting,
		CreatedAt:  now.Add(-3 * time.Hour),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var views []listingView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 2)

	// Newest first; fresh big-budget listing scores higher and has less
	// competition than the stale one.
	assert.Equal(t, "Логотип для кофейни", views[0].Title)
	assert.Equal(t, "10 мин назад", views[0].TimeAgo)
	assert.Equal(t, 80, views[0].MatchScore, "50 base +15 budget +15 fresh")
	assert.Equal(t, 1, views[0].Competition)

	assert.Equal(t, "3 ч назад", views[1].TimeAgo)
	assert.Equal(t, 60, views[1].MatchScore, "50 base +10 under six hours")
	assert.Equal(t, 3, views[1].Competition)
}

func TestAPI_Listings_CategoryFilter(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)

	saveListing(t, st, model.Listing{
		Source: model.SourceKwork, ExternalID: "1", Title: "Дизайн",
		URL: "https://kwork.ru/projects/1", Category: model.CategoryDesign,
	})
	saveListing(t, st, model.Listing{
		Source: model.SourceKwork, ExternalID: "2", Title: "Код",
		URL: "https://kwork.ru/projects/2", Category: model.CategoryProgramming,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/listings?category=design", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var views []listingView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, model.CategoryDesign, views[0].Category)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/listings?category=gardening", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_Listings_PersonalizedMatchScore(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)

	require.NoError(t, st.UpsertUser(context.Background(), model.UserPreference{
		ID:                7,
		Address:           "chat-7",
		Categories:        []model.Category{model.CategoryDesign},
		Active:            true,
		SubscriptionUntil: time.Now().Add(24 * time.Hour),
	}))
	saveListing(t, st, model.Listing{
		Source: model.SourceKwork, ExternalID: "1", Title: "Дизайн",
		URL: "https://kwork.ru/projects/1", Category: model.CategoryDesign,
		CreatedAt: time.Now().UTC().Add(-10 * time.Minute),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/listings?user_id=7", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var views []listingView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, 85, views[0].MatchScore, "category match adds 20 over the anonymous 65")
}

func TestAPI_AssessRisk_Persists(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)

	l := saveListing(t, st, model.Listing{
		Source:      model.SourceKwork,
		ExternalID:  "1",
		Title:       "Легкие деньги",
		Description: "Нужна предоплата за материалы, оплата вперед",
		URL:         "https://kwork.ru/projects/1",
		Category:    model.CategoryDesign,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/listings/1/risk", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var result model.ScoreResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Greater(t, result.RiskScore, 50)
	assert.NotEmpty(t, result.Warnings)

	stored, err := st.GetListing(context.Background(), l.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.RiskScore, stored.RiskScore)
	assert.Equal(t, result.Warnings, stored.RiskFlags)
}

func TestAPI_AssessRisk_NotFound(t *testing.T) {
	h, _ := newTestAPI(t)
	router := buildRouter(h, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/listings/99/risk", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/listings/abc/risk", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_EstimatePrice(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)

	saveListing(t, st, model.Listing{
		Source: model.SourceKwork, ExternalID: "1", Title: "Логотип",
		URL: "https://kwork.ru/projects/1", Category: model.CategoryDesign,
	})

	body, _ := json.Marshal(map[string]int{"client_budget": 5000})
	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/price", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var est model.PriceEstimate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &est))
	assert.Greater(t, est.RecommendedMin, 0)
	assert.LessOrEqual(t, est.RecommendedMin, est.RecommendedAvg)
	assert.LessOrEqual(t, est.RecommendedAvg, est.RecommendedMax)
	assert.NotEqual(t, model.BudgetUnknown, est.BudgetAnalysis)
}

func TestAPI_Stats(t *testing.T) {
	h, st := newTestAPI(t)
	router := buildRouter(h, nil)

	saveListing(t, st, model.Listing{
		Source: model.SourceKwork, ExternalID: "1", Title: "Дизайн",
		URL: "https://kwork.ru/projects/1", Category: model.CategoryDesign,
		BudgetValue: 10_000, CreatedAt: time.Now().UTC().Add(-time.Hour),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats struct {
		WeeklyCount int `json:"weekly_count"`
		AvgBudget   int `json:"avg_budget"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.WeeklyCount)
	assert.Equal(t, 10_000, stats.AvgBudget)
}

func TestTimeAgo(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "только что"},
		{5 * time.Minute, "5 мин назад"},
		{90 * time.Minute, "1 ч назад"},
		{26 * time.Hour, "1 дн назад"},
		{8 * 24 * time.Hour, "8 дн назад"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, timeAgo(tc.age), tc.age.String())
	}
}

func TestMatchScore_Capped(t *testing.T) {
	pref := &model.UserPreference{Categories: []model.Category{model.CategoryDesign}}
	l := model.Listing{Category: model.CategoryDesign, BudgetValue: 100_000}

	assert.Equal(t, 99, matchScore(l, pref, 10*time.Minute), "50+20+15+15 capped at 99")
	assert.Equal(t, 50, matchScore(model.Listing{}, nil, 48*time.Hour))
}

func TestCompetition_Buckets(t *testing.T) {
	assert.Equal(t, 1, competition(10*time.Minute))
	assert.Equal(t, 2, competition(time.Hour))
	assert.Equal(t, 3, competition(4*time.Hour))
	assert.Equal(t, 4, competition(12*time.Hour))
	assert.Equal(t, 5, competition(3*24*time.Hour))
}
