package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*model.User
	assets     map[string]*model.Asset
	leagues    map[string]*model.League
	drafts     map[string]*model.DraftState
	portfolios map[string]*model.Portfolio
	trades     map[string]*model.Trade
	claims     map[string]*model.WaiverClaim
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*model.User),
		assets:     make(map[string]*model.Asset),
		leagues:    make(map[string]*model.League),
		drafts:     make(map[string]*model.DraftState),
		portfolios: make(map[string]*model.Portfolio),
		trades:     make(map[string]*model.Trade),
		claims:     make(map[string]*model.WaiverClaim),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrAlreadyExists)
	}
	c := u.Clone()
	s.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	c := u.Clone()
	return &c, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	c := u.Clone()
	s.users[u.ID] = &c
	return nil
}

// --- Assets ---

func (s *MemoryStore) UpsertAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// IsLocked is a per-user view, never stored.
	c := cloneAsset(a)
	c.IsLocked = false
	s.assets[a.ID] = &c
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	c := cloneAsset(a)
	return &c, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		assets = append(assets, cloneAsset(a))
	}
	slices.SortFunc(assets, func(a, b model.Asset) int { return cmp.Compare(a.Ticker, b.Ticker) })
	return assets, nil
}

func (s *MemoryStore) UpdateAssetPrice(_ context.Context, id string, price, changePercent decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	a.CurrentPrice = price
	a.ChangePercent = changePercent
	return nil
}

// --- Leagues ---

func (s *MemoryStore) CreateLeague(_ context.Context, l *model.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[l.ID]; ok {
		return fmt.Errorf("league %s: %w", l.ID, ErrAlreadyExists)
	}
	if l.JoinCode != "" {
		for _, existing := range s.leagues {
			if existing.JoinCode == l.JoinCode {
				return fmt.Errorf("join code %s: %w", l.JoinCode, ErrAlreadyExists)
			}
		}
	}
	c := l.Clone()
	s.leagues[l.ID] = &c
	return nil
}

func (s *MemoryStore) GetLeague(_ context.Context, id string) (*model.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leagues[id]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", id, ErrNotFound)
	}
	c := s.hydrate(l)
	return &c, nil
}

func (s *MemoryStore) GetLeagueByJoinCode(_ context.Context, code string) (*model.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.leagues {
		if l.JoinCode != "" && l.JoinCode == code {
			c := s.hydrate(l)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("join code %s: %w", code, ErrNotFound)
}

func (s *MemoryStore) ListLeagues(_ context.Context) ([]model.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLeagues(func(*model.League) bool { return true }), nil
}

func (s *MemoryStore) ListLeaguesByUser(_ context.Context, userID string) ([]model.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLeagues(func(l *model.League) bool { return l.Member(userID) != nil }), nil
}

func (s *MemoryStore) UpdateLeague(_ context.Context, l *model.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[l.ID]; !ok {
		return fmt.Errorf("league %s: %w", l.ID, ErrNotFound)
	}
	c := l.Clone()
	s.leagues[l.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteLeague(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[id]; !ok {
		return fmt.Errorf("league %s: %w", id, ErrNotFound)
	}
	delete(s.leagues, id)
	delete(s.drafts, id)
	for pid, p := range s.portfolios {
		if p.LeagueID == id {
			delete(s.portfolios, pid)
		}
	}
	for tid, t := range s.trades {
		if t.LeagueID == id {
			delete(s.trades, tid)
		}
	}
	for cid, c := range s.claims {
		if c.LeagueID == id {
			delete(s.claims, cid)
		}
	}
	return nil
}

// listLeagues returns hydrated copies of matching leagues, oldest first.
// Caller holds the read lock.
func (s *MemoryStore) listLeagues(keep func(*model.League) bool) []model.League {
	leagues := make([]model.League, 0, len(s.leagues))
	for _, l := range s.leagues {
		if keep(l) {
			leagues = append(leagues, s.hydrate(l))
		}
	}
	slices.SortFunc(leagues, func(a, b model.League) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return leagues
}

// hydrate copies l with members refreshed from the user table. Caller holds
// the read lock.
func (s *MemoryStore) hydrate(l *model.League) model.League {
	c := l.Clone()
	for i, m := range c.Members {
		if u, ok := s.users[m.ID]; ok {
			c.Members[i] = u.Clone()
		}
	}
	return c
}

// --- Drafts ---

func (s *MemoryStore) SaveDraft(_ context.Context, d *model.DraftState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := d.Clone()
	s.drafts[d.LeagueID] = &c
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, leagueID string) (*model.DraftState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[leagueID]
	if !ok {
		return nil, fmt.Errorf("draft for league %s: %w", leagueID, ErrNotFound)
	}
	c := d.Clone()
	return &c, nil
}

func (s *MemoryStore) ListDraftsByStatus(_ context.Context, status model.DraftStatus) ([]model.DraftState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drafts []model.DraftState
	for _, d := range s.drafts {
		if d.Status == status {
			drafts = append(drafts, d.Clone())
		}
	}
	slices.SortFunc(drafts, func(a, b model.DraftState) int { return cmp.Compare(a.LeagueID, b.LeagueID) })
	return drafts, nil
}

// --- Portfolios ---

func (s *MemoryStore) SavePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.portfolios {
		if existing.ID != p.ID && existing.LeagueID == p.LeagueID && existing.UserID == p.UserID {
			return fmt.Errorf("portfolio for %s in league %s: %w", p.UserID, p.LeagueID, ErrAlreadyExists)
		}
	}
	c := p.Clone()
	s.portfolios[p.ID] = &c
	return nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, id string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	c := p.Clone()
	return &c, nil
}

func (s *MemoryStore) GetPortfolioByUser(_ context.Context, leagueID, userID string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.portfolios {
		if p.LeagueID == leagueID && p.UserID == userID {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("portfolio for %s in league %s: %w", userID, leagueID, ErrNotFound)
}

func (s *MemoryStore) ListPortfolios(_ context.Context, leagueID string) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listPortfolios(func(p *model.Portfolio) bool { return p.LeagueID == leagueID }), nil
}

func (s *MemoryStore) ListPortfoliosByUser(_ context.Context, userID string) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listPortfolios(func(p *model.Portfolio) bool { return p.UserID == userID }), nil
}

func (s *MemoryStore) listPortfolios(keep func(*model.Portfolio) bool) []model.Portfolio {
	var out []model.Portfolio
	for _, p := range s.portfolios {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b model.Portfolio) int {
		if c := cmp.Compare(a.LeagueID, b.LeagueID); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

func (s *MemoryStore) DeletePortfolio(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[id]; !ok {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	delete(s.portfolios, id)
	return nil
}

// --- Trades ---

func (s *MemoryStore) SaveTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneTrade(t)
	s.trades[t.ID] = &c
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id string) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	c := cloneTrade(t)
	return &c, nil
}

func (s *MemoryStore) ListTrades(_ context.Context, leagueID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []model.Trade
	for _, t := range s.trades {
		if t.LeagueID == leagueID {
			trades = append(trades, cloneTrade(t))
		}
	}
	slices.SortFunc(trades, func(a, b model.Trade) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return trades, nil
}

// --- Waivers ---

func (s *MemoryStore) SaveWaiverClaim(_ context.Context, c *model.WaiverClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneClaim(c)
	s.claims[c.ID] = &cp
	return nil
}

func (s *MemoryStore) ListWaiverClaims(_ context.Context, leagueID string) ([]model.WaiverClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var claims []model.WaiverClaim
	for _, c := range s.claims {
		if c.LeagueID == leagueID {
			claims = append(claims, cloneClaim(c))
		}
	}
	slices.SortFunc(claims, func(a, b model.WaiverClaim) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return claims, nil
}

func cloneAsset(a *model.Asset) model.Asset {
	c := *a
	c.RequiredLessons = slices.Clone(a.RequiredLessons)
	return c
}

func cloneTrade(t *model.Trade) model.Trade {
	c := *t
	c.OfferedAssets = slices.Clone(t.OfferedAssets)
	c.RequestedAssets = slices.Clone(t.RequestedAssets)
	return c
}

func cloneClaim(c *model.WaiverClaim) model.WaiverClaim {
	cp := *c
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		cp.ProcessedAt = &t
	}
	return cp
}
