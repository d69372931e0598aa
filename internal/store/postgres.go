package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/freelance-radar/radar/internal/db"
	"github.com/freelance-radar/radar/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot sweep path.
var preparedStatements = map[string]string{
	"insert_listing": `INSERT INTO listings
		(source, external_id, title, description, budget_text, budget_value, url, category, risk_score, risk_warnings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, external_id) DO NOTHING
		RETURNING id`,
	"get_listing":    `SELECT id, source, external_id, title, description, budget_text, budget_value, url, category, risk_score, risk_warnings, created_at FROM listings WHERE id = $1`,
	"is_delivered":   `SELECT 1 FROM sent_alerts WHERE user_id = $1 AND listing_id = $2`,
	"mark_delivered": `INSERT INTO sent_alerts (user_id, listing_id, sent_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, listing_id) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            BIGSERIAL PRIMARY KEY,
	source        TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	budget_text   TEXT NOT NULL DEFAULT '',
	budget_value  INTEGER NOT NULL DEFAULT 0,
	url           TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	risk_score    INTEGER NOT NULL DEFAULT 0,
	risk_warnings JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, external_id)
);

CREATE TABLE IF NOT EXISTS users (
	id                  BIGINT PRIMARY KEY,
	address             TEXT NOT NULL DEFAULT '',
	categories          JSONB NOT NULL DEFAULT '[]',
	min_budget          INTEGER NOT NULL DEFAULT 0,
	predator_mode       BOOLEAN NOT NULL DEFAULT false,
	predator_min_budget INTEGER NOT NULL DEFAULT 0,
	active              BOOLEAN NOT NULL DEFAULT true,
	subscription_until  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sent_alerts (
	user_id    BIGINT NOT NULL,
	listing_id BIGINT NOT NULL,
	sent_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, listing_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_category_created ON listings(category, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);
CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveListing(ctx context.Context, l model.Listing) (*model.Listing, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	warningsJSON, err := json.Marshal(l.RiskFlags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal risk warnings")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO listings
		 (source, external_id, title, description, budget_text, budget_value, url, category, risk_score, risk_warnings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (source, external_id) DO NOTHING
		 RETURNING id`,
		string(l.Source), l.ExternalID, l.Title, l.Description, l.BudgetText,
		l.BudgetValue, l.URL, string(l.Category), l.RiskScore, warningsJSON, l.CreatedAt,
	).Scan(&l.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // duplicate
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert listing %s", l.Key())
	}
	return &l, nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l, err := scanPgListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %d", id)
	}
	return l, nil
}

func (s *PostgresStore) RecentListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: recent listings iterate")
}

func (s *PostgresStore) UpdateRisk(ctx context.Context, id int64, score int, warnings []string) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal risk warnings")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET risk_score = $1, risk_warnings = $2 WHERE id = $3`,
		score, warningsJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update risk %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("listing not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u model.UserPreference) error {
	categoriesJSON, err := json.Marshal(u.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal categories")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   address = EXCLUDED.address,
		   categories = EXCLUDED.categories,
		   min_budget = EXCLUDED.min_budget,
		   predator_mode = EXCLUDED.predator_mode,
		   predator_min_budget = EXCLUDED.predator_min_budget,
		   active = EXCLUDED.active,
		   subscription_until = EXCLUDED.subscription_until`,
		u.ID, u.Address, categoriesJSON, u.MinBudget,
		u.PredatorMode, u.PredatorMinBudget, u.Active, u.SubscriptionUntil.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert user %d", u.ID)
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.UserPreference, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until
		 FROM users WHERE id = $1`, id)

	u, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %d", id)
	}
	return u, nil
}

func (s *PostgresStore) ActiveUsersForCategory(ctx context.Context, category model.Category) ([]model.UserPreference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, address, categories, min_budget, predator_mode, predator_min_budget, active, subscription_until
		 FROM users WHERE active = true`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active users")
	}
	defer rows.Close()

	now := time.Now().UTC()
	var users []model.UserPreference
	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan user")
		}
		if u.Subscribed(now) && u.WantsCategory(category) {
			users = append(users, *u)
		}
	}
	return users, eris.Wrap(rows.Err(), "postgres: active users iterate")
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, userID, listingID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sent_alerts (user_id, listing_id, sent_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: mark delivered %d/%d", userID, listingID)
}

func (s *PostgresStore) IsDelivered(ctx context.Context, userID, listingID int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM sent_alerts WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: is delivered %d/%d", userID, listingID)
	}
	return true, nil
}

func (s *PostgresStore) CountListings(ctx context.Context, category model.Category, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM listings WHERE created_at >= $1 AND created_at < $2`
	args := []any{from.UTC(), to.UTC()}
	if category != "" {
		query += ` AND category = $3`
		args = append(args, string(category))
	}

	var count int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, eris.Wrap(err, "postgres: count listings")
}

func (s *PostgresStore) BudgetStats(ctx context.Context, category model.Category, from time.Time) (BudgetSummary, error) {
	query := `SELECT COALESCE(AVG(budget_value), 0), COALESCE(MAX(budget_value), 0)
	          FROM listings WHERE budget_value > 0 AND created_at >= $1`
	args := []any{from.UTC()}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, string(category))
	}

	var bs BudgetSummary
	err := s.pool.QueryRow(ctx, query, args...).Scan(&bs.Avg, &bs.Max)
	return bs, eris.Wrap(err, "postgres: budget stats")
}

func (s *PostgresStore) TopSources(ctx context.Context, category model.Category, from time.Time, limit int) ([]SourceCount, error) {
	query := `SELECT source, COUNT(*) AS n FROM listings WHERE created_at >= $1`
	args := []any{from.UTC()}
	argIdx := 2
	if category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(category))
		argIdx++
	}
	if limit <= 0 {
		limit = 5
	}
	query += fmt.Sprintf(` GROUP BY source ORDER BY n DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top sources")
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source count")
		}
		counts = append(counts, sc)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: top sources iterate")
}

func (s *PostgresStore) TopCategories(ctx context.Context, from time.Time, limit int) ([]CategoryCount, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) AS n FROM listings
		 WHERE created_at >= $1 AND category != ''
		 GROUP BY category ORDER BY n DESC LIMIT $2`,
		from.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top categories")
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		counts = append(counts, cc)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: top categories iterate")
}

// helpers

func scanPgListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	var warningsJSON []byte

	err := row.Scan(&l.ID, &l.Source, &l.ExternalID, &l.Title, &l.Description,
		&l.BudgetText, &l.BudgetValue, &l.URL, &l.Category, &l.RiskScore,
		&warningsJSON, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(warningsJSON, &l.RiskFlags); err != nil {
		return nil, eris.Wrap(err, "unmarshal risk warnings")
	}
	return &l, nil
}

func scanPgUser(row pgx.Row) (*model.UserPreference, error) {
	var u model.UserPreference
	var categoriesJSON []byte

	err := row.Scan(&u.ID, &u.Address, &categoriesJSON, &u.MinBudget,
		&u.PredatorMode, &u.PredatorMinBudget, &u.Active, &u.SubscriptionUntil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categoriesJSON, &u.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	return &u, nil
}
