package source

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/model"
)

const maxDescriptionLen = 4000

var listingIDRe = regexp.MustCompile(`/(\d+)`)

// Kwork scrapes project listings from kwork.ru.
type Kwork struct {
	client  *Client
	baseURL string
	limit   int
}

// kworkCategories maps internal categories to kwork's catalog paths.
var kworkCategories = map[model.Category]string{
	model.CategoryDesign:      "/projects?c=11",
	model.CategoryProgramming: "/projects?c=41",
	model.CategoryCopywriting: "/projects?c=15",
	model.CategoryMarketing:   "/projects?c=33",
	model.CategoryVideo:       "/projects?c=19",
	model.CategoryAudio:       "/projects?c=21",
}

// NewKwork creates the kwork.ru adapter.
func NewKwork(client *Client, limit int) *Kwork {
	if limit <= 0 {
		limit = 20
	}
	return &Kwork{client: client, baseURL: "https://kwork.ru", limit: limit}
}

func (k *Kwork) Name() model.Source { return model.SourceKwork }

func (k *Kwork) Close() error { return k.client.Close() }

// Fetch scrapes the newest projects for the category. Cards that fail to
// parse are skipped; the rest of the batch is still returned.
func (k *Kwork) Fetch(ctx context.Context, category model.Category) ([]model.Listing, error) {
	path, ok := kworkCategories[category]
	if !ok {
		path = "/projects"
	}
	url := k.baseURL + path + "&a=1" // a=1 sorts by newest
	if !strings.Contains(path, "?") {
		url = k.baseURL + path + "?a=1"
	}

	body, err := k.client.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "kwork: parse html")
	}

	var listings []model.Listing
	doc.Find("div.card__content").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := card.Find("a.wants-card__header-title")
		if title.Length() == 0 {
			return true
		}
		href, _ := title.Attr("href")
		if href == "" {
			return true
		}

		listingURL := k.baseURL + href
		externalID := href
		if m := listingIDRe.FindStringSubmatch(href); m != nil {
			externalID = m[1]
		}

		budgetText := strings.TrimSpace(card.Find("div.wants-card__price").Text())
		if budgetText == "" {
			budgetText = "Не указан"
		}

		listings = append(listings, model.Listing{
			Source:      model.SourceKwork,
			ExternalID:  externalID,
			Title:       strings.TrimSpace(title.Text()),
			Description: truncate(strings.TrimSpace(card.Find("div.wants-card__description-text").Text()), maxDescriptionLen),
			BudgetText:  budgetText,
			BudgetValue: ParseBudget(budgetText),
			URL:         listingURL,
			Category:    category,
		})
		return len(listings) < k.limit
	})

	zap.L().Debug("kwork: fetched",
		zap.String("category", string(category)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
