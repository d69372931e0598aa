package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/analytics"
	"github.com/freelance-radar/radar/internal/ingest"
	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/scoring"
	"github.com/freelance-radar/radar/internal/store"
)

// apiHandler exposes the radar over HTTP: triggering sweeps, browsing recent
// listings, scoring them on demand, and market stats.
type apiHandler struct {
	store       store.Store
	coordinator *ingest.Coordinator
	rules       *scoring.RuleSet
	categories  []model.Category
}

// buildRouter wires the API routes onto a chi router.
func buildRouter(h *apiHandler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sweep", h.sweep)
		r.Get("/listings", h.listings)
		r.Post("/listings/{id}/risk", h.assessRisk)
		r.Post("/listings/{id}/price", h.estimatePrice)
		r.Get("/stats", h.stats)
	})
	return r
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.Sweep(r.Context(), h.categories)
	if err != nil {
		if eris.Is(err, ingest.ErrSweepInProgress) {
			writeError(w, http.StatusConflict, "sweep already in progress")
			return
		}
		zap.L().Error("api: sweep failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_listings": result.New})
}

// listingView is one listing as the API presents it, decorated with freshness
// and match hints for the client UI.
type listingView struct {
	model.Listing
	Description string `json:"description,omitempty"`
	TimeAgo     string `json:"time_ago"`
	MatchScore  int    `json:"match_score"`
	Competition int    `json:"competition"`
}

func (h *apiHandler) listings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ListingFilter{Limit: 50}
	if c := q.Get("category"); c != "" && c != "all" {
		cat := model.Category(c)
		if !model.ValidCategory(cat) {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		filter.Category = cat
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be 1-200")
			return
		}
		filter.Limit = n
	}

	// Optional: personalize match_score for a known subscriber.
	var pref *model.UserPreference
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad user_id")
			return
		}
		pref, err = h.store.GetUser(r.Context(), id)
		if err != nil {
			zap.L().Error("api: user lookup failed", zap.Int64("user_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "user lookup failed")
			return
		}
	}

	rows, err := h.store.RecentListings(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: listings query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listings query failed")
		return
	}

	now := time.Now().UTC()
	out := make([]listingView, 0, len(rows))
	for _, l := range rows {
		age := now.Sub(l.CreatedAt)
		out = append(out, listingView{
			Listing:     l,
			Description: shortDescription(l.Description),
			TimeAgo:     timeAgo(age),
			MatchScore:  matchScore(l, pref, age),
			Competition: competition(age),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) assessRisk(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listingFromPath(w, r)
	if !ok {
		return
	}

	var result model.ScoreResult
	if h.rules != nil {
		result = h.rules.Assess(l.Title, l.Description, l.BudgetText, l.BudgetValue)
	} else {
		result = scoring.AssessRisk(l.Title, l.Description, l.BudgetText, l.BudgetValue)
	}

	if err := h.store.UpdateRisk(r.Context(), l.ID, result.RiskScore, result.Warnings); err != nil {
		zap.L().Error("api: risk update failed", zap.Int64("listing_id", l.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "risk update failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) estimatePrice(w http.ResponseWriter, r *http.Request) {
	l, ok := h.listingFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		ClientBudget int `json:"client_budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	est := scoring.EstimatePrice(l.Title, l.Description, l.Category, req.ClientBudget)
	writeJSON(w, http.StatusOK, est)
}

func (h *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	var category model.Category
	if c := r.URL.Query().Get("category"); c != "" && c != "all" {
		category = model.Category(c)
		if !model.ValidCategory(category) {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
	}

	stats, err := analytics.Collect(r.Context(), h.store, category)
	if err != nil {
		zap.L().Error("api: stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// listingFromPath resolves the {id} route parameter to a stored listing,
// writing the error response itself when that fails.
func (h *apiHandler) listingFromPath(w http.ResponseWriter, r *http.Request) (*model.Listing, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad listing id")
		return nil, false
	}

	l, err := h.store.GetListing(r.Context(), id)
	if err != nil {
		zap.L().Error("api: listing lookup failed", zap.Int64("listing_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing lookup failed")
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "listing not found")
		return nil, false
	}
	return l, true
}

// timeAgo renders a listing age the way the alert feed shows it.
func timeAgo(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "только что"
	case age < time.Hour:
		return fmt.Sprintf("%d мин назад", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%d ч назад", int(age.Hours()))
	default:
		return fmt.Sprintf("%d дн назад", int(age.Hours()/24))
	}
}

// matchScore is a coarse 50-99 relevance hint: category match, budget size,
// and freshness. Unrelated to the risk score.
func matchScore(l model.Listing, pref *model.UserPreference, age time.Duration) int {
	score := 50

	if pref != nil && pref.WantsCategory(l.Category) {
		score += 20
	}

	if l.BudgetValue >= 50_000 {
		score += 15
	} else if l.BudgetValue >= 20_000 {
		score += 10
	}

	if age < time.Hour {
		score += 15
	} else if age < 6*time.Hour {
		score += 10
	}

	if score > 99 {
		score = 99
	}
	return score
}

// competition buckets listing age into a 1-5 contention estimate; fresher
// listings have fewer bidders.
func competition(age time.Duration) int {
	switch {
	case age < 30*time.Minute:
		return 1
	case age < 2*time.Hour:
		return 2
	case age < 6*time.Hour:
		return 3
	case age < 24*time.Hour:
		return 4
	default:
		return 5
	}
}

const maxDescriptionRunes = 200

func shortDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDescriptionRunes {
		return s
	}
	return string(runes[:maxDescriptionRunes])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
