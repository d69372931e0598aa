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

const freelanceRuSampleHTML = `<html><body>
<div class="project">
  <h2><a class="project-name" href="/project/455812/logo.html">Логотип и фирменный стиль</a></h2>
  <div class="cost">20 000 руб</div>
</div>
<div class="project-item">
  <div class="title"><a href="/project/455813/x.html">Шум</a></div>
</div>
<div class="project-item">
  <div class="title"><a href="/project/455814/banner.html">Баннеры для соцсетей</a></div>
</div>
</body></html>`

func TestFreelanceRuFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(freelanceRuSampleHTML))
	}))
	defer srv.Close()

	f := NewFreelanceRu(NewClient(""), 10)
	f.baseURL = srv.URL
	defer f.Close()

	listings, err := f.Fetch(context.Background(), model.CategoryDesign)
	require.NoError(t, err)
	require.Len(t, listings, 2, "short titles are parse noise")

	first := listings[0]
	assert.Equal(t, model.SourceFreelanceRu, first.Source)
	assert.Equal(t, "455812", first.ExternalID)
	assert.Equal(t, "Логотип и фирменный стиль", first.Title)
	assert.Equal(t, 20_000, first.BudgetValue)

	second := listings[1]
	assert.Equal(t, "455814", second.ExternalID)
	assert.Equal(t, "Договорная", second.BudgetText)
}
