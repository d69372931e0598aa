package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/freelance-radar/radar/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	budget_text   TEXT NOT NULL DEFAULT '',
	budget_value  INTEGER NOT NULL DEFAULT 0,
	url           TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	risk_score    INTEGER NOT NULL DEFAULT 0,
	risk_warnings TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL,
	UNIQUE (source, external_id)
);

CREATE TABLE IF NOT EXISTS users (
	id                  INTEGER PRIMARY KEY,
	address             TEXT NOT NULL DEFAULT '',
	categories          TEXT NOT NULL DEFAULT '[]',
	min_budget          INTEGER NOT NULL DEFAULT 0,
	predator_mode       INTEGER NOT NULL DEFAULT 0,
	predator_min_budget INTEGER NOT NULL DEFAULT 0,
	active              INTEGER NOT NULL DEFAULT 1,
	subscription_until  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sent_alerts (
	user_id    INTEGER NOT NULL,
	listing_id INTEGER NOT NULL,
	sent_at    DATETIME NOT NULL,
	PRIMARY KEY (user_id, listing_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_category_created ON listings(category, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);
CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveListing(ctx context.Context, l model.Listing) (*model.Listing, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	warningsJSON, err := json.Marshal(l.RiskFlags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal risk warnings")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO listings
		 (source, external_id, title, description, budget_text, budget_value, url, category, risk_score, risk_warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, external_id) DO NOTHING`,
		string(l.Source), l.ExternalID, l.Title, l.Description, l.BudgetText,
		l.BudgetValue, l.URL, string(l.Category), l.RiskScore, string(warningsJSON), l.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert listing %s", l.Key())
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, nil // duplicate
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}
	l.ID = id
	return &l, nil
}

const listingColumns = `id, source, external_id, title, description, budget_text, budget_value, url, category, risk_score, risk_warnings, created_at`

func (s *SQLiteStore) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %d", id)
	}
	return l, nil
}

func (s *SQLiteStore) RecentListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: recent listings iterate")
}

func (s *SQLiteStore) UpdateRisk(ctx context.Context, id int64, score int, warnings []string) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal risk warnings")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET risk_score = ?, risk_warnings = ? WHERE id = ?`,
		score, string(warningsJSON), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update risk %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("listing not found: %d", id)
	}
	return nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u model.UserPreference) error {
	categoriesJSON, err := json.Marshal(u.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   address = excluded.address,
		   categories = excluded.categories,
		   min_budget = excluded.min_budget,
		   predator_mode = excluded.predator_mode,
		   predator_min_budget = excluded.predator_min_budget,
		   active = excluded.active,
		   subscription_until = excluded.subscription_until`,
		u.ID, u.Address, string(categoriesJSON), u.MinBudget,
		u.PredatorMode, u.PredatorMinBudget, u.Active, u.SubscriptionUntil.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert user %d", u.ID)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.UserPreference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until
		 FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %d", id)
	}
	return u, nil
}

func (s *SQLiteStore) ActiveUsersForCategory(ctx context.Context, category model.Category) ([]model.UserPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until
		 FROM users WHERE active = 1`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active users")
	}
	defer rows.Close()

	now := time.Now().UTC()
	var users []model.UserPreference
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan user")
		}
		if u.Subscribed(now) && u.WantsCategory(category) {
			users = append(users, *u)
		}
	}
	return users, eris.Wrap(rows.Err(), "sqlite: active users iterate")
}

func (s *SQLiteStore) MarkDelivered(ctx context.Context, userID, listingID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_alerts (user_id, listing_id, sent_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: mark delivered %d/%d", userID, listingID)
}

func (s *SQLiteStore) IsDelivered(ctx context.Context, userID, listingID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_alerts WHERE user_id = ? AND listing_id = ?`,
		userID, listingID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: is delivered %d/%d", userID, listingID)
	}
	return true, nil
}

func (s *SQLiteStore) CountListings(ctx context.Context, category model.Category, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM listings WHERE created_at >= ? AND created_at < ?`
	args := []any{from.UTC(), to.UTC()}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count listings")
}

func (s *SQLiteStore) BudgetStats(ctx context.Context, category model.Category, from time.Time) (BudgetSummary, error) {
	query := `SELECT COALESCE(AVG(budget_value), 0), COALESCE(MAX(budget_value), 0)
	          FROM listings WHERE budget_value > 0 AND created_at >= ?`
	args := []any{from.UTC()}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	var bs BudgetSummary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&bs.Avg, &bs.Max)
	return bs, eris.Wrap(err, "sqlite: budget stats")
}

func (s *SQLiteStore) TopSources(ctx context.Context, category model.Category, from time.Time, limit int) ([]SourceCount, error) {
	query := `SELECT source, COUNT(*) AS n FROM listings WHERE created_at >= ?`
	args := []any{from.UTC()}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	if limit <= 0 {
		limit = 5
	}
	query += ` GROUP BY source ORDER BY n DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top sources")
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source count")
		}
		counts = append(counts, sc)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: top sources iterate")
}

func (s *SQLiteStore) TopCategories(ctx context.Context, from time.Time, limit int) ([]CategoryCount, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) AS n FROM listings
		 WHERE created_at >= ? AND category != ''
		 GROUP BY category ORDER BY n DESC LIMIT ?`,
		from.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top categories")
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		counts = append(counts, cc)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: top categories iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var warningsJSON string

	err := row.Scan(&l.ID, &l.Source, &l.ExternalID, &l.Title, &l.Description,
		&l.BudgetText, &l.BudgetValue, &l.URL, &l.Category, &l.RiskScore,
		&warningsJSON, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(warningsJSON), &l.RiskFlags); err != nil {
		return nil, eris.Wrap(err, "unmarshal risk warnings")
	}
	return &l, nil
}

func scanUser(row scannable) (*model.UserPreference, error) {
	var u model.UserPreference
	var categoriesJSON string

	err := row.Scan(&u.ID, &u.Address, &categoriesJSON, &u.MinBudget,
		&u.PredatorMode, &u.PredatorMinBudget, &u.Active, &u.SubscriptionUntil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &u.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	return &u, nil
}
