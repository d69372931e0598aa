package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/model"
)

// HH pulls remote vacancies from the hh.ru public JSON API. Unlike the HTML
// scrapers this one has a stable contract, but the same failure rules apply:
// bad items are skipped, an empty page is not an error.
type HH struct {
	client *Client
	apiURL string
	area   int
	limit  int
}

type hhQuery struct {
	text string
	role int
}

var hhCategories = map[model.Category]hhQuery{
	model.CategoryDesign:      {text: "дизайнер", role: 34},
	model.CategoryProgramming: {text: "python", role: 96},
	model.CategoryCopywriting: {text: "копирайтер", role: 124},
	model.CategoryMarketing:   {text: "маркетолог", role: 70},
}

// NewHH creates the hh.ru adapter. area is the hh region id (113 = Russia).
func NewHH(client *Client, area, limit int) *HH {
	if area <= 0 {
		area = 113
	}
	if limit <= 0 {
		limit = 15
	}
	return &HH{client: client, apiURL: "https://api.hh.ru/vacancies", area: area, limit: limit}
}

func (h *HH) Name() model.Source { return model.SourceHH }

func (h *HH) Close() error { return h.client.Close() }

type hhSalary struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	Currency string `json:"currency"`
}

type hhItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AlternateURL string    `json:"alternate_url"`
	Salary       *hhSalary `json:"salary"`
	Snippet      struct {
		Requirement    string `json:"requirement"`
		Responsibility string `json:"responsibility"`
	} `json:"snippet"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
}

type hhPage struct {
	Items []hhItem `json:"items"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

func (h *HH) Fetch(ctx context.Context, category model.Category) ([]model.Listing, error) {
	q, ok := hhCategories[category]
	if !ok {
		q = hhQuery{text: string(category)}
	}

	params := url.Values{}
	params.Set("text", q.text)
	params.Set("area", strconv.Itoa(h.area))
	params.Set("per_page", strconv.Itoa(h.limit))
	params.Set("order_by", "publication_time")
	params.Set("schedule", "remote")
	if q.role > 0 {
		params.Set("professional_role", strconv.Itoa(q.role))
	}

	body, err := h.client.Get(ctx, h.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var page hhPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, eris.Wrap(err, "hh: decode response")
	}

	var listings []model.Listing
	for _, item := range page.Items {
		if item.ID == "" || item.AlternateURL == "" {
			continue
		}

		budgetText, budgetValue := hhBudget(item.Salary)

		description := htmlTagRe.ReplaceAllString(
			strings.TrimSpace(item.Snippet.Requirement+"\n"+item.Snippet.Responsibility), "")
		if item.Employer.Name != "" {
			description = item.Employer.Name + "\n\n" + description
		}

		title := item.Name
		if title == "" {
			title = "Без названия"
		}

		listings = append(listings, model.Listing{
			Source:      model.SourceHH,
			ExternalID:  item.ID,
			Title:       title,
			Description: truncate(description, 2000),
			BudgetText:  budgetText,
			BudgetValue: budgetValue,
			URL:         item.AlternateURL,
			Category:    category,
		})
		if len(listings) >= h.limit {
			break
		}
	}

	zap.L().Debug("hh: fetched",
		zap.String("category", string(category)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}

// hhBudget renders the salary struct into display text and a ruble value.
// Non-RUB salaries convert at the same fixed approximate rate the budget
// parser uses.
func hhBudget(s *hhSalary) (string, int) {
	if s == nil {
		return "Не указана", 0
	}

	value := s.From
	if value == 0 {
		value = s.To
	}
	if s.Currency == "USD" {
		value *= usdToRub
	}

	switch {
	case s.From > 0 && s.To > 0:
		return fmt.Sprintf("%s - %s %s", groupDigits(s.From), groupDigits(s.To), s.Currency), value
	case s.From > 0:
		return fmt.Sprintf("от %s %s", groupDigits(s.From), s.Currency), value
	case s.To > 0:
		return fmt.Sprintf("до %s %s", groupDigits(s.To), s.Currency), value
	default:
		return "Не указана", 0
	}
}

// groupDigits formats 45000 as "45 000".
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
