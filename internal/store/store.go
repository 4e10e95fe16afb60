// Package store defines the persistence interface for the fantasy engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and local development).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence interface. Every read returns a copy the caller
// may mutate freely; changes only take effect through a write.
//
// Leagues are stored with member ids only. Reads hydrate Members from the
// current user records so lesson progress is never stale.
type Store interface {
	// --- Users ---

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	// --- Asset catalog ---

	// UpsertAsset inserts or replaces an asset by id.
	UpsertAsset(ctx context.Context, a *model.Asset) error
	GetAsset(ctx context.Context, id string) (*model.Asset, error)
	// ListAssets returns the catalog ordered by ticker.
	ListAssets(ctx context.Context) ([]model.Asset, error)
	UpdateAssetPrice(ctx context.Context, id string, price, changePercent decimal.Decimal) error

	// --- Leagues ---

	CreateLeague(ctx context.Context, l *model.League) error
	GetLeague(ctx context.Context, id string) (*model.League, error)
	GetLeagueByJoinCode(ctx context.Context, code string) (*model.League, error)
	ListLeagues(ctx context.Context) ([]model.League, error)
	// ListLeaguesByUser returns the leagues userID is a member of.
	ListLeaguesByUser(ctx context.Context, userID string) ([]model.League, error)
	UpdateLeague(ctx context.Context, l *model.League) error
	// DeleteLeague removes the league with its draft, portfolios, trades
	// and waiver claims.
	DeleteLeague(ctx context.Context, id string) error

	// --- Drafts (one per league) ---

	SaveDraft(ctx context.Context, d *model.DraftState) error
	GetDraft(ctx context.Context, leagueID string) (*model.DraftState, error)
	// ListDraftsByStatus returns every draft in the given status.
	ListDraftsByStatus(ctx context.Context, status model.DraftStatus) ([]model.DraftState, error)

	// --- Portfolios (one per league member) ---

	// SavePortfolio inserts or replaces a portfolio by id.
	SavePortfolio(ctx context.Context, p *model.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error)
	GetPortfolioByUser(ctx context.Context, leagueID, userID string) (*model.Portfolio, error)
	ListPortfolios(ctx context.Context, leagueID string) ([]model.Portfolio, error)
	ListPortfoliosByUser(ctx context.Context, userID string) ([]model.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error

	// --- Trades ---

	// SaveTrade inserts or replaces a trade by id.
	SaveTrade(ctx context.Context, t *model.Trade) error
	GetTrade(ctx context.Context, id string) (*model.Trade, error)
	// ListTrades returns a league's trades, oldest first.
	ListTrades(ctx context.Context, leagueID string) ([]model.Trade, error)

	// --- Waivers ---

	// SaveWaiverClaim inserts or replaces a claim by id.
	SaveWaiverClaim(ctx context.Context, c *model.WaiverClaim) error
	// ListWaiverClaims returns a league's claims, oldest first.
	ListWaiverClaims(ctx context.Context, leagueID string) ([]model.WaiverClaim, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
