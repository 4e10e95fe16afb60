package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary columns are NUMERIC for exact decimal precision; nested
// aggregates (league settings, draft state, portfolio slots and holdings)
// are JSONB documents.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// translate maps driver errors onto the package sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", what, ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func mustAffect(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, name, avatar, completed_lessons)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Name, u.Avatar, nonNil(u.CompletedLessons),
	)
	return translate(err, "create user "+u.ID)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, name, avatar, completed_lessons FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Avatar, &u.CompletedLessons)
	if err != nil {
		return nil, translate(err, "get user "+id)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET username = $2, name = $3, avatar = $4, completed_lessons = $5
		 WHERE id = $1`,
		u.ID, u.Username, u.Name, u.Avatar, nonNil(u.CompletedLessons),
	)
	if err != nil {
		return translate(err, "update user "+u.ID)
	}
	return mustAffect(tag, "update user "+u.ID)
}

// --- Assets ---

const assetColumns = `id, ticker, name, type, tier,
	current_price::TEXT, change_percent::TEXT,
	market_cap, exchange, description, required_lessons`

func (s *PostgresStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, ticker, name, type, tier, current_price, change_percent,
		                     market_cap, exchange, description, required_lessons)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		     ticker = EXCLUDED.ticker, name = EXCLUDED.name, type = EXCLUDED.type,
		     tier = EXCLUDED.tier, current_price = EXCLUDED.current_price,
		     change_percent = EXCLUDED.change_percent, market_cap = EXCLUDED.market_cap,
		     exchange = EXCLUDED.exchange, description = EXCLUDED.description,
		     required_lessons = EXCLUDED.required_lessons`,
		a.ID, a.Ticker, a.Name, a.Type, a.Tier,
		a.CurrentPrice.String(), a.ChangePercent.String(),
		a.MarketCap, a.Exchange, a.Description, nonNil(a.RequiredLessons),
	)
	return translate(err, "upsert asset "+a.ID)
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	a, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "get asset "+id)
	}
	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpdateAssetPrice(ctx context.Context, id string, price, changePercent decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET current_price = $2::NUMERIC, change_percent = $3::NUMERIC WHERE id = $1`,
		id, price.String(), changePercent.String(),
	)
	if err != nil {
		return translate(err, "update asset price "+id)
	}
	return mustAffect(tag, "update asset price "+id)
}

func scanAsset(row pgx.Row) (model.Asset, error) {
	var a model.Asset
	var price, change string
	err := row.Scan(&a.ID, &a.Ticker, &a.Name, &a.Type, &a.Tier,
		&price, &change,
		&a.MarketCap, &a.Exchange, &a.Description, &a.RequiredLessons)
	if err != nil {
		return a, err
	}
	a.CurrentPrice, _ = decimal.NewFromString(price)
	a.ChangePercent, _ = decimal.NewFromString(change)
	return a, nil
}

// --- Leagues ---

const leagueColumns = `id, name, admin_user_id, member_ids, settings, status,
	current_week, COALESCE(join_code, ''), created_at`

func (s *PostgresStore) CreateLeague(ctx context.Context, l *model.League) error {
	settings, err := json.Marshal(l.Settings)
	if err != nil {
		return fmt.Errorf("create league %s: encode settings: %w", l.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO leagues (id, name, admin_user_id, member_ids, settings, status,
		                      current_week, join_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`,
		l.ID, l.Name, l.AdminUserID, l.MemberIDs(), settings, l.Status,
		l.CurrentWeek, l.JoinCode, l.CreatedAt,
	)
	return translate(err, "create league "+l.ID)
}

func (s *PostgresStore) GetLeague(ctx context.Context, id string) (*model.League, error) {
	return s.getLeague(ctx, "get league "+id,
		`SELECT `+leagueColumns+` FROM leagues WHERE id = $1`, id)
}

func (s *PostgresStore) GetLeagueByJoinCode(ctx context.Context, code string) (*model.League, error) {
	return s.getLeague(ctx, "get league by join code "+code,
		`SELECT `+leagueColumns+` FROM leagues WHERE join_code = $1`, code)
}

func (s *PostgresStore) getLeague(ctx context.Context, what, query string, arg string) (*model.League, error) {
	l, memberIDs, err := scanLeague(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err, what)
	}
	leagues := []model.League{l}
	if err := s.hydrate(ctx, leagues, [][]string{memberIDs}); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return &leagues[0], nil
}

func (s *PostgresStore) ListLeagues(ctx context.Context) ([]model.League, error) {
	return s.listLeagues(ctx,
		`SELECT `+leagueColumns+` FROM leagues ORDER BY created_at, id`)
}

func (s *PostgresStore) ListLeaguesByUser(ctx context.Context, userID string) ([]model.League, error) {
	return s.listLeagues(ctx,
		`SELECT `+leagueColumns+` FROM leagues WHERE $1 = ANY(member_ids) ORDER BY created_at, id`,
		userID)
}

func (s *PostgresStore) listLeagues(ctx context.Context, query string, args ...any) ([]model.League, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leagues []model.League
	var memberIDs [][]string
	for rows.Next() {
		l, ids, err := scanLeague(rows)
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, l)
		memberIDs = append(memberIDs, ids)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, leagues, memberIDs); err != nil {
		return nil, err
	}
	return leagues, nil
}

func (s *PostgresStore) UpdateLeague(ctx context.Context, l *model.League) error {
	settings, err := json.Marshal(l.Settings)
	if err != nil {
		return fmt.Errorf("update league %s: encode settings: %w", l.ID, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leagues
		 SET name = $2, admin_user_id = $3, member_ids = $4, settings = $5,
		     status = $6, current_week = $7, join_code = NULLIF($8, '')
		 WHERE id = $1`,
		l.ID, l.Name, l.AdminUserID, l.MemberIDs(), settings,
		l.Status, l.CurrentWeek, l.JoinCode,
	)
	if err != nil {
		return translate(err, "update league "+l.ID)
	}
	return mustAffect(tag, "update league "+l.ID)
}

// DeleteLeague relies on ON DELETE CASCADE for the league's dependents.
func (s *PostgresStore) DeleteLeague(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leagues WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete league "+id)
	}
	return mustAffect(tag, "delete league "+id)
}

func scanLeague(row pgx.Row) (model.League, []string, error) {
	var l model.League
	var memberIDs []string
	var settings []byte
	err := row.Scan(&l.ID, &l.Name, &l.AdminUserID, &memberIDs, &settings, &l.Status,
		&l.CurrentWeek, &l.JoinCode, &l.CreatedAt)
	if err != nil {
		return l, nil, err
	}
	if err := json.Unmarshal(settings, &l.Settings); err != nil {
		return l, nil, fmt.Errorf("decode settings of league %s: %w", l.ID, err)
	}
	return l, memberIDs, nil
}

// hydrate fills Members of each league from the users table in member order,
// with a single query for all of them. Unknown ids become bare users.
func (s *PostgresStore) hydrate(ctx context.Context, leagues []model.League, memberIDs [][]string) error {
	var all []string
	for _, ids := range memberIDs {
		all = append(all, ids...)
	}

	users := make(map[string]model.User, len(all))
	if len(all) > 0 {
		rows, err := s.pool.Query(ctx,
			`SELECT id, username, name, avatar, completed_lessons FROM users WHERE id = ANY($1)`, all)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u model.User
			if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Avatar, &u.CompletedLessons); err != nil {
				return err
			}
			users[u.ID] = u
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	for i, ids := range memberIDs {
		members := make([]model.User, len(ids))
		for j, id := range ids {
			if u, ok := users[id]; ok {
				members[j] = u.Clone()
			} else {
				members[j] = model.User{ID: id}
			}
		}
		leagues[i].Members = members
	}
	return nil
}

// --- Drafts ---

func (s *PostgresStore) SaveDraft(ctx context.Context, d *model.DraftState) error {
	state, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("save draft %s: encode: %w", d.LeagueID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO draft_states (league_id, status, state) VALUES ($1, $2, $3)
		 ON CONFLICT (league_id) DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state`,
		d.LeagueID, d.Status, state,
	)
	return translate(err, "save draft "+d.LeagueID)
}

func (s *PostgresStore) GetDraft(ctx context.Context, leagueID string) (*model.DraftState, error) {
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM draft_states WHERE league_id = $1`, leagueID).Scan(&state)
	if err != nil {
		return nil, translate(err, "get draft "+leagueID)
	}
	var d model.DraftState
	if err := json.Unmarshal(state, &d); err != nil {
		return nil, fmt.Errorf("get draft %s: decode: %w", leagueID, err)
	}
	return &d, nil
}

func (s *PostgresStore) ListDraftsByStatus(ctx context.Context, status model.DraftStatus) ([]model.DraftState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state FROM draft_states WHERE status = $1 ORDER BY league_id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []model.DraftState
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var d model.DraftState
		if err := json.Unmarshal(state, &d); err != nil {
			return nil, fmt.Errorf("decode draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// --- Portfolios ---

func (s *PostgresStore) SavePortfolio(ctx context.Context, p *model.Portfolio) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("save portfolio %s: encode: %w", p.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO portfolios (id, league_id, user_id, total_value, doc, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		     total_value = EXCLUDED.total_value, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		p.ID, p.LeagueID, p.UserID, p.TotalValue.String(), doc, p.UpdatedAt,
	)
	return translate(err, "save portfolio "+p.ID)
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error) {
	return s.getPortfolio(ctx, "get portfolio "+id,
		`SELECT doc FROM portfolios WHERE id = $1`, id)
}

func (s *PostgresStore) GetPortfolioByUser(ctx context.Context, leagueID, userID string) (*model.Portfolio, error) {
	return s.getPortfolio(ctx, fmt.Sprintf("get portfolio of %s in league %s", userID, leagueID),
		`SELECT doc FROM portfolios WHERE league_id = $1 AND user_id = $2`, leagueID, userID)
}

func (s *PostgresStore) getPortfolio(ctx context.Context, what, query string, args ...any) (*model.Portfolio, error) {
	var doc []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		return nil, translate(err, what)
	}
	var p model.Portfolio
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", what, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListPortfolios(ctx context.Context, leagueID string) ([]model.Portfolio, error) {
	return s.listPortfolios(ctx,
		`SELECT doc FROM portfolios WHERE league_id = $1 ORDER BY user_id`, leagueID)
}

func (s *PostgresStore) ListPortfoliosByUser(ctx context.Context, userID string) ([]model.Portfolio, error) {
	return s.listPortfolios(ctx,
		`SELECT doc FROM portfolios WHERE user_id = $1 ORDER BY league_id`, userID)
}

func (s *PostgresStore) listPortfolios(ctx context.Context, query, arg string) ([]model.Portfolio, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Portfolio
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var p model.Portfolio
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeletePortfolio(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete portfolio "+id)
	}
	return mustAffect(tag, "delete portfolio "+id)
}

// --- Trades ---

const tradeColumns = `id, league_id, proposer_id, recipient_id, status,
	offered_assets, requested_assets, created_at, expires_at`

func (s *PostgresStore) SaveTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (`+tradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		t.ID, t.LeagueID, t.ProposerID, t.RecipientID, t.Status,
		nonNil(t.OfferedAssets), nonNil(t.RequestedAssets), t.CreatedAt, t.ExpiresAt,
	)
	return translate(err, "save trade "+t.ID)
}

func (s *PostgresStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "get trade "+id)
	}
	return &t, nil
}

func (s *PostgresStore) ListTrades(ctx context.Context, leagueID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE league_id = $1 ORDER BY created_at, id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (model.Trade, error) {
	var t model.Trade
	err := row.Scan(&t.ID, &t.LeagueID, &t.ProposerID, &t.RecipientID, &t.Status,
		&t.OfferedAssets, &t.RequestedAssets, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}

// --- Waivers ---

func (s *PostgresStore) SaveWaiverClaim(ctx context.Context, c *model.WaiverClaim) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO waiver_claims (id, league_id, user_id, asset_id, drop_asset_id, status,
		                            priority, created_at, processed_at, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		     status = EXCLUDED.status, priority = EXCLUDED.priority,
		     processed_at = EXCLUDED.processed_at, reason = EXCLUDED.reason`,
		c.ID, c.LeagueID, c.UserID, c.AssetID, c.DropAssetID, c.Status,
		c.Priority, c.CreatedAt, c.ProcessedAt, c.Reason,
	)
	return translate(err, "save waiver claim "+c.ID)
}

func (s *PostgresStore) ListWaiverClaims(ctx context.Context, leagueID string) ([]model.WaiverClaim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, league_id, user_id, asset_id, drop_asset_id, status,
		        priority, created_at, processed_at, reason
		 FROM waiver_claims WHERE league_id = $1 ORDER BY created_at, id`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []model.WaiverClaim
	for rows.Next() {
		var c model.WaiverClaim
		if err := rows.Scan(&c.ID, &c.LeagueID, &c.UserID, &c.AssetID, &c.DropAssetID, &c.Status,
			&c.Priority, &c.CreatedAt, &c.ProcessedAt, &c.Reason); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
