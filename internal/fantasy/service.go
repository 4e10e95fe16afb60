// Package fantasy provides the HTTP handlers and business logic for fantasy
// leagues: membership, the draft, portfolios, the asset market, matchups,
// trades and waivers.
//
// All monetary values use shopspring/decimal, never float64 for money.
package fantasy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/auth"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/store"
)

// DefaultStartingBalance is used when a league is created without one.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// DefaultLessonReward is credited per completed lesson unless overridden.
var DefaultLessonReward = decimal.NewFromInt(100)

// Service handles league operations. Uses a mutex for serialized mutations
// (single-instance). Reads go straight to the store.
type Service struct {
	store        store.Store
	mu           sync.Mutex
	broker       *Broker
	hub          *WSHub // optional WebSocket hub for draft push
	tokens       *auth.Manager
	now          func() time.Time
	lessonReward decimal.Decimal
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLessonReward sets the amount credited per completed lesson.
func WithLessonReward(amount decimal.Decimal) Option {
	return func(s *Service) { s.lessonReward = amount }
}

// WithAuth enables token issuing and ties request userIds to the token.
func WithAuth(m *auth.Manager) Option {
	return func(s *Service) { s.tokens = m }
}

// NewService creates a new fantasy service.
// Pass nil for hub if WebSocket push is not needed.
func NewService(st store.Store, hub *WSHub, opts ...Option) *Service {
	s := &Service{
		store:        st,
		broker:       NewBroker(),
		hub:          hub,
		now:          time.Now,
		lessonReward: DefaultLessonReward,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broker returns the draft update broker.
func (s *Service) Broker() *Broker { return s.broker }

// --- shared lookups ---

// league loads a league or wraps store.ErrNotFound.
func (s *Service) league(ctx context.Context, id string) (*model.League, error) {
	l, err := s.store.GetLeague(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("league %s: %w", id, err)
	}
	return l, nil
}

// member loads a league and checks that userID belongs to it.
func (s *Service) member(ctx context.Context, leagueID, userID string) (*model.League, *model.User, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}
	u := l.Member(userID)
	if u == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotMember, userID)
	}
	return l, u, nil
}

// portfolioOf loads a member's portfolio in a league.
func (s *Service) portfolioOf(ctx context.Context, leagueID, userID string) (*model.Portfolio, error) {
	p, err := s.store.GetPortfolioByUser(ctx, leagueID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s in league %s", ErrNoPortfolio, userID, leagueID)
		}
		return nil, err
	}
	return p, nil
}

// portfolios returns a league's portfolios keyed by user id.
func (s *Service) portfolios(ctx context.Context, leagueID string) (map[string]*model.Portfolio, error) {
	list, err := s.store.ListPortfolios(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Portfolio, len(list))
	for i := range list {
		out[list[i].UserID] = &list[i]
	}
	return out, nil
}

// assetsByID returns the catalog keyed by asset id.
func (s *Service) assetsByID(ctx context.Context) ([]model.Asset, map[string]model.Asset, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]model.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	return assets, byID, nil
}

// ownedAssets maps every asset held in the league to its owner.
func ownedAssets(portfolios map[string]*model.Portfolio) map[string]string {
	owned := make(map[string]string)
	for uid, p := range portfolios {
		for _, slot := range p.Slots {
			owned[slot.AssetID] = uid
		}
	}
	return owned
}

// authorize rejects a request whose token names a different user than
// the one the body or query acts for.
func authorize(ctx context.Context, userID string) error {
	if tokenUser, ok := auth.UserID(ctx); ok && tokenUser != userID {
		return fmt.Errorf("%w: token is for a different user", ErrForbidden)
	}
	return nil
}
