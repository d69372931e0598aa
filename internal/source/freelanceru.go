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

// FreelanceRu scrapes freelance.ru. Its markup drifts often, so the
// selectors are deliberately loose and titles under 5 characters are
// treated as parse noise.
type FreelanceRu struct {
	client  *Client
	baseURL string
	limit   int
}

var freelanceRuCategories = map[model.Category]string{
	model.CategoryDesign:      "/projects/?cat=18",
	model.CategoryProgramming: "/projects/?cat=3",
	model.CategoryCopywriting: "/projects/?cat=15",
	model.CategoryMarketing:   "/projects/?cat=13",
}

// NewFreelanceRu creates the freelance.ru adapter.
func NewFreelanceRu(client *Client, limit int) *FreelanceRu {
	if limit <= 0 {
		limit = 15
	}
	return &FreelanceRu{client: client, baseURL: "https://freelance.ru", limit: limit}
}

func (f *FreelanceRu) Name() model.Source { return model.SourceFreelanceRu }

func (f *FreelanceRu) Close() error { return f.client.Close() }

func (f *FreelanceRu) Fetch(ctx context.Context, category model.Category) ([]model.Listing, error) {
	path, ok := freelanceRuCategories[category]
	if !ok {
		path = "/projects/"
	}

	body, err := f.client.Get(ctx, f.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "freelance.ru: parse html")
	}

	var listings []model.Listing
	doc.Find(".project, .project-item").EachWithBreak(func(_ int, proj *goquery.Selection) bool {
		title := proj.Find("a.project-name, .title a, h2 a").First()
		if title.Length() == 0 {
			return true
		}

		titleText := strings.TrimSpace(title.Text())
		href, _ := title.Attr("href")
		if len([]rune(titleText)) < 5 || href == "" {
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

		budgetText := strings.TrimSpace(proj.Find(".price, .cost").First().Text())
		if budgetText == "" {
			budgetText = "Договорная"
		}

		listings = append(listings, model.Listing{
			Source:      model.SourceFreelanceRu,
			ExternalID:  externalID,
			Title:       truncate(titleText, 200),
			BudgetText:  budgetText,
			BudgetValue: ParseBudget(budgetText),
			URL:         listingURL,
			Category:    category,
		})
		return len(listings) < f.limit
	})

	zap.L().Debug("freelance.ru: fetched",
		zap.String("category", string(category)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}
