package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelance-radar/radar/internal/model"
)

const kworkSampleHTML = `<!DOCTYPE html>
<html><body>
<div class="card__content">
  <a class="wants-card__header-title" href="/projects/1001/view">Нужен логотип для кофейни</a>
  <div class="wants-card__description-text">Есть примеры, нужен вектор и исходники.</div>
  <div class="wants-card__price">до 5 000 ₽</div>
</div>
<div class="card__content">
  <span>advertising block without a title link</span>
</div>
<div class="card__content">
  <a class="wants-card__header-title" href="/projects/1002/view">Доработать сайт на Tilda</a>
  <div class="wants-card__description-text">Поправить верстку на мобильных.</div>
</div>
</body></html>`

func TestKworkFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(kworkSampleHTML))
	}))
	defer srv.Close()

	k := NewKwork(NewClient(""), 10)
	k.baseURL = srv.URL
	defer k.Close()

	listings, err := k.Fetch(context.Background(), model.CategoryDesign)
	require.NoError(t, err)
	require.Len(t, listings, 2, "broken card is skipped, not fatal")

	assert.Equal(t, "/projects?c=11&a=1", gotPath)

	first := listings[0]
	assert.Equal(t, model.SourceKwork, first.Source)
	assert.Equal(t, "1001", first.ExternalID)
	assert.Equal(t, "Нужен логотип для кофейни", first.Title)
	assert.Equal(t, "до 5 000 ₽", first.BudgetText)
	assert.Equal(t, 5000, first.BudgetValue)
	assert.Equal(t, srv.URL+"/projects/1001/view", first.URL)
	assert.Equal(t, model.CategoryDesign, first.Category)

	second := listings[1]
	assert.Equal(t, "1002", second.ExternalID)
	assert.Equal(t, "Не указан", second.BudgetText, "missing price falls back")
	assert.Zero(t, second.BudgetValue)
}

func TestKworkFetch_LimitCapsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(kworkSampleHTML))
	}))
	defer srv.Close()

	k := NewKwork(NewClient(""), 1)
	k.baseURL = srv.URL
	defer k.Close()

	listings, err := k.Fetch(context.Background(), model.CategoryProgramming)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestKworkFetch_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	k := NewKwork(NewClient(""), 10)
	k.baseURL = srv.URL
	defer k.Close()

	listings, err := k.Fetch(context.Background(), model.CategoryAudio)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestKworkFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	k := NewKwork(NewClient(""), 10)
	k.baseURL = srv.URL
	defer k.Close()

	_, err := k.Fetch(context.Background(), model.CategoryDesign)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "привет", truncate("привет", 10))
	assert.Equal(t, "при", truncate("привет", 3), "cuts on rune boundaries")
	assert.Equal(t, "", truncate("", 5))
}
