package source

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/model"
)

// FLRu scrapes project listings from fl.ru.
type FLRu struct {
	client  *Client
	baseURL string
	limit   int
}

var flruCategories = map[model.Category]string{
	model.CategoryDesign:      "/projects/?kind=5",
	model.CategoryProgramming: "/projects/?kind=1",
	model.CategoryCopywriting: "/projects/?kind=3",
	model.CategoryMarketing:   "/projects/?kind=4",
}

// NewFLRu creates the fl.ru adapter.
func NewFLRu(client *Client, limit int) *FLRu {
	if limit <= 0 {
		limit = 20
	}
	return &FLRu{client: client, baseURL: "https://www.fl.ru", limit: limit}
}

func (f *FLRu) Name() model.Source { return model.SourceFLRu }

func (f *FLRu) Close() error { return f.client.Close() }

func (f *FLRu) Fetch(ctx context.Context, category model.Category) ([]model.Listing, error) {
	path, ok := flruCategories[category]
	if !ok {
		path = "/projects/"
	}

	body, err := f.client.Get(ctx, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fl.ru: parse html")
	}

	var listings []model.Listing
	doc.Find("div.b-post").EachWithBreak(func(_ int, post *goquery.Selection) bool {
		title := post.Find("a.b-post__link")
		if title.Length() == 0 {
			return true
		}
		href, _ := title.Attr("href")
		if href == "" {
			return true
		}

		listingURL := href
		if !strings.HasPrefix(listingURL, "http") {
			listingURL = f.baseURL + listingURL
		}
		externalID := href
		if m := listingIDRe.FindStringSubmatch(href); m != nil {
			externalID = m[1]
		}

		budgetText := strings.TrimSpace(post.Find("div.b-post__price").Text())
		if budgetText == "" {
			budgetText = "Договорная"
		}

		listings = append(listings, model.Listing{
			Source:      model.SourceFLRu,
			ExternalID:  externalID,
			Title:       strings.TrimSpace(title.Text()),
			Description: truncate(strings.TrimSpace(post.Find("div.b-post__txt").Text()), maxDescriptionLen),
			BudgetText:  budgetText,
			BudgetValue: ParseBudget(budgetText),
			URL:         listingURL,
			Category:    category,
		})
		return len(listings) < f.limit
	})

	zap.L().Debug("fl.ru: fetched",
		zap.String("category", string(category)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}
