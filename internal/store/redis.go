package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// The hot reads are the draft state (clients poll it while drafting), the
// league and a member's portfolio.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpdateUser(ctx context.Context, u *model.User) error {
	if err := s.primary.UpdateUser(ctx, u); err != nil {
		return err
	}
	// Leagues embed their members.
	if leagues, err := s.primary.ListLeaguesByUser(ctx, u.ID); err == nil {
		for _, l := range leagues {
			s.rdb.Del(ctx, leagueKey(l.ID))
		}
	}
	return nil
}

func (s *CachedStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	if err := s.primary.UpsertAsset(ctx, a); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetsKey)
	return nil
}

func (s *CachedStore) UpdateAssetPrice(ctx context.Context, id string, price, changePercent decimal.Decimal) error {
	if err := s.primary.UpdateAssetPrice(ctx, id, price, changePercent); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetsKey)
	return nil
}

func (s *CachedStore) CreateLeague(ctx context.Context, l *model.League) error {
	return s.primary.CreateLeague(ctx, l)
}

func (s *CachedStore) UpdateLeague(ctx context.Context, l *model.League) error {
	if err := s.primary.UpdateLeague(ctx, l); err != nil {
		return err
	}
	s.rdb.Del(ctx, leagueKey(l.ID))
	return nil
}

func (s *CachedStore) DeleteLeague(ctx context.Context, id string) error {
	l, _ := s.primary.GetLeague(ctx, id)
	if err := s.primary.DeleteLeague(ctx, id); err != nil {
		return err
	}
	keys := []string{leagueKey(id), draftKey(id)}
	if l != nil {
		if l.JoinCode != "" {
			keys = append(keys, joinCodeKey(l.JoinCode))
		}
		for _, uid := range l.MemberIDs() {
			keys = append(keys, portfolioKey(id, uid))
		}
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

func (s *CachedStore) SaveDraft(ctx context.Context, d *model.DraftState) error {
	if err := s.primary.SaveDraft(ctx, d); err != nil {
		return err
	}
	s.rdb.Del(ctx, draftKey(d.LeagueID))
	return nil
}

func (s *CachedStore) SavePortfolio(ctx context.Context, p *model.Portfolio) error {
	if err := s.primary.SavePortfolio(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, portfolioKey(p.LeagueID, p.UserID))
	return nil
}

func (s *CachedStore) DeletePortfolio(ctx context.Context, id string) error {
	p, _ := s.primary.GetPortfolio(ctx, id)
	if err := s.primary.DeletePortfolio(ctx, id); err != nil {
		return err
	}
	if p != nil {
		s.rdb.Del(ctx, portfolioKey(p.LeagueID, p.UserID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLeague(ctx context.Context, id string) (*model.League, error) {
	var l model.League
	if s.cached(ctx, leagueKey(id), &l) {
		return &l, nil
	}

	// Cache miss: read from primary.
	got, err := s.primary.GetLeague(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, leagueKey(id), got)
	return got, nil
}

func (s *CachedStore) GetLeagueByJoinCode(ctx context.Context, code string) (*model.League, error) {
	// Try cache via join code → league id mapping.
	if id, err := s.rdb.Get(ctx, joinCodeKey(code)).Result(); err == nil {
		return s.GetLeague(ctx, id)
	}

	l, err := s.primary.GetLeagueByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.set(ctx, leagueKey(l.ID), l)
	s.rdb.Set(ctx, joinCodeKey(code), l.ID, s.ttl)
	return l, nil
}

func (s *CachedStore) GetDraft(ctx context.Context, leagueID string) (*model.DraftState, error) {
	var d model.DraftState
	if s.cached(ctx, draftKey(leagueID), &d) {
		return &d, nil
	}

	got, err := s.primary.GetDraft(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, draftKey(leagueID), got)
	return got, nil
}

func (s *CachedStore) GetPortfolioByUser(ctx context.Context, leagueID, userID string) (*model.Portfolio, error) {
	var p model.Portfolio
	if s.cached(ctx, portfolioKey(leagueID, userID), &p) {
		return &p, nil
	}

	got, err := s.primary.GetPortfolioByUser(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, portfolioKey(leagueID, userID), got)
	return got, nil
}

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	if s.cached(ctx, assetsKey, &assets) {
		return assets, nil
	}

	assets, err := s.primary.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, assetsKey, assets)
	return assets, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.primary.GetUser(ctx, id)
}

func (s *CachedStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	return s.primary.GetAsset(ctx, id)
}

func (s *CachedStore) ListLeagues(ctx context.Context) ([]model.League, error) {
	return s.primary.ListLeagues(ctx)
}

func (s *CachedStore) ListLeaguesByUser(ctx context.Context, userID string) ([]model.League, error) {
	return s.primary.ListLeaguesByUser(ctx, userID)
}

func (s *CachedStore) ListDraftsByStatus(ctx context.Context, status model.DraftStatus) ([]model.DraftState, error) {
	return s.primary.ListDraftsByStatus(ctx, status)
}

func (s *CachedStore) GetPortfolio(ctx context.Context, id string) (*model.Portfolio, error) {
	return s.primary.GetPortfolio(ctx, id)
}

func (s *CachedStore) ListPortfolios(ctx context.Context, leagueID string) ([]model.Portfolio, error) {
	return s.primary.ListPortfolios(ctx, leagueID)
}

func (s *CachedStore) ListPortfoliosByUser(ctx context.Context, userID string) ([]model.Portfolio, error) {
	return s.primary.ListPortfoliosByUser(ctx, userID)
}

func (s *CachedStore) SaveTrade(ctx context.Context, t *model.Trade) error {
	return s.primary.SaveTrade(ctx, t)
}

func (s *CachedStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	return s.primary.GetTrade(ctx, id)
}

func (s *CachedStore) ListTrades(ctx context.Context, leagueID string) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx, leagueID)
}

func (s *CachedStore) SaveWaiverClaim(ctx context.Context, c *model.WaiverClaim) error {
	return s.primary.SaveWaiverClaim(ctx, c)
}

func (s *CachedStore) ListWaiverClaims(ctx context.Context, leagueID string) ([]model.WaiverClaim, error) {
	return s.primary.ListWaiverClaims(ctx, leagueID)
}

// --- Cache helpers ---

// cached decodes key into dst and reports whether it was a usable hit.
func (s *CachedStore) cached(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const assetsKey = "assets"

func leagueKey(id string) string               { return fmt.Sprintf("league:%s", id) }
func joinCodeKey(code string) string           { return fmt.Sprintf("joincode:%s", code) }
func draftKey(leagueID string) string          { return fmt.Sprintf("draft:%s", leagueID) }
func portfolioKey(leagueID, uid string) string { return fmt.Sprintf("portfolio:%s:%s", leagueID, uid) }
