package fantasy

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flit/fantasy-engine/internal/draft"
	"github.com/flit/fantasy-engine/internal/matchup"
	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// SubmitClaimRequest is the JSON body for POST /fantasy-leagues/{id}/waivers.
type SubmitClaimRequest struct {
	UserID      string `json:"userId"`
	AssetID     string `json:"assetId"`
	DropAssetID string `json:"dropAssetId,omitempty"`
}

// WaiverAssets returns the league's unowned assets a member could claim,
// with IsLocked derived for userID.
func (s *Service) WaiverAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	byUser, err := s.portfolios(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	owned := ownedAssets(byUser)
	viewer := s.viewer(ctx, l, userID)
	q := strings.ToLower(strings.TrimSpace(search))

	out := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if _, taken := owned[a.ID]; taken || !l.Settings.AllowsAsset(&a) {
			continue
		}
		if q != "" && !draft.MatchesQuery(&a, q) {
			continue
		}
		out = append(out, a.ForUser(viewer))
	}
	return out, nil
}

// SubmitClaim queues a claim for an unowned asset, optionally dropping one
// of the claimant's assets to make room.
func (s *Service) SubmitClaim(ctx context.Context, leagueID string, req SubmitClaimRequest) (*model.WaiverClaim, error) {
	if req.AssetID == "" {
		return nil, fmt.Errorf("%w: assetId is required", ErrInvalidInput)
	}
	if req.DropAssetID == req.AssetID {
		return nil, fmt.Errorf("%w: cannot drop the claimed asset", ErrInvalidInput)
	}
	if err := authorize(ctx, req.UserID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, u, err := s.member(ctx, leagueID, req.UserID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.LeagueStatusActive {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueNotActive, l.Status)
	}
	asset, err := s.store.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", req.AssetID, err)
	}
	if !l.Settings.AllowsAsset(asset) {
		return nil, fmt.Errorf("%w: %s is excluded by league settings", draft.ErrAssetUnavailable, asset.Ticker)
	}
	if asset.LockedFor(u) {
		return nil, fmt.Errorf("%w: %s", portfolio.ErrAssetLocked, asset.Ticker)
	}

	byUser, err := s.portfolios(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if owner, taken := ownedAssets(byUser)[req.AssetID]; taken {
		return nil, fmt.Errorf("%w: held by %s", ErrAssetOwned, owner)
	}
	if req.DropAssetID != "" {
		p := byUser[req.UserID]
		if p == nil || p.SlotByAsset(req.DropAssetID) == nil {
			return nil, fmt.Errorf("%w: %s does not hold %s", ErrAssetNotOwned, req.UserID, req.DropAssetID)
		}
	}

	claims, err := s.store.ListWaiverClaims(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	pending := 0
	for _, c := range claims {
		if c.Status != model.WaiverPending {
			continue
		}
		if c.UserID == req.UserID && c.AssetID == req.AssetID {
			return nil, ErrDuplicateClaim
		}
		pending++
	}

	c := &model.WaiverClaim{
		ID:          uuid.NewString(),
		LeagueID:    leagueID,
		UserID:      req.UserID,
		AssetID:     req.AssetID,
		DropAssetID: req.DropAssetID,
		Status:      model.WaiverPending,
		Priority:    pending + 1,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.SaveWaiverClaim(ctx, c); err != nil {
		return nil, err
	}
	metrics.WaiverClaimsTotal.WithLabelValues(string(model.WaiverPending)).Inc()

	slog.Info("waiver claim submitted",
		"id", c.ID,
		"league", leagueID,
		"user", c.UserID,
		"asset", asset.Ticker,
		"drop", c.DropAssetID,
		"priority", c.Priority,
	)
	return c, nil
}

// ListClaims returns a league's claims, oldest first, optionally only
// userID's.
func (s *Service) ListClaims(ctx context.Context, leagueID, userID string) ([]model.WaiverClaim, error) {
	if _, err := s.league(ctx, leagueID); err != nil {
		return nil, err
	}
	claims, err := s.store.ListWaiverClaims(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	out := make([]model.WaiverClaim, 0, len(claims))
	for _, c := range claims {
		if userID == "" || c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ProcessWaivers resolves a league's pending claims. Admin only.
func (s *Service) ProcessWaivers(ctx context.Context, leagueID, userID string) ([]model.WaiverClaim, error) {
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if l.AdminUserID != userID {
		return nil, fmt.Errorf("%w: only the league admin can process waivers", ErrForbidden)
	}
	if l.Status != model.LeagueStatusActive {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueNotActive, l.Status)
	}
	return s.processWaivers(ctx, l)
}

// ProcessAllWaivers resolves pending claims in every active league.
func (s *Service) ProcessAllWaivers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	leagues, err := s.store.ListLeagues(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for i := range leagues {
		l := &leagues[i]
		if l.Status != model.LeagueStatusActive {
			continue
		}
		if _, err := s.processWaivers(ctx, l); err != nil {
			errs = append(errs, fmt.Errorf("league %s: %w", l.ID, err))
		}
	}
	return errors.Join(errs...)
}

// processWaivers walks pending claims in priority order. The first valid
// claim for an asset wins; later claims for it fail.
func (s *Service) processWaivers(ctx context.Context, l *model.League) ([]model.WaiverClaim, error) {
	claims, err := s.store.ListWaiverClaims(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	pending := slices.DeleteFunc(claims, func(c model.WaiverClaim) bool {
		return c.Status != model.WaiverPending
	})
	if len(pending) == 0 {
		return []model.WaiverClaim{}, nil
	}

	byUser, err := s.portfolios(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	assets, catalog, err := s.assetsByID(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range byUser {
		portfolio.MarkToMarket(p, assets)
	}
	orderClaims(pending, l, byUser)

	owned := ownedAssets(byUser)
	touched := make(map[string]*model.Portfolio)
	now := s.now().UTC()

	for i := range pending {
		c := &pending[i]
		reason := s.applyClaim(c, l, byUser, owned, catalog, now)
		c.ProcessedAt = &now
		if reason != "" {
			c.Status = model.WaiverFailed
			c.Reason = reason
		} else {
			c.Status = model.WaiverProcessed
			touched[c.UserID] = byUser[c.UserID]
		}
		if err := s.store.SaveWaiverClaim(ctx, c); err != nil {
			return nil, err
		}
		metrics.WaiverClaimsTotal.WithLabelValues(string(c.Status)).Inc()
	}

	for _, p := range touched {
		p.UpdatedAt = now
		if err := s.store.SavePortfolio(ctx, p); err != nil {
			return nil, err
		}
	}

	slog.Info("waivers processed", "league", l.ID, "claims", len(pending), "portfolios", len(touched))
	return pending, nil
}

// applyClaim moves the claimed asset into the claimant's portfolio, or
// returns why it could not.
func (s *Service) applyClaim(c *model.WaiverClaim, l *model.League, byUser map[string]*model.Portfolio, owned map[string]string, catalog map[string]model.Asset, now time.Time) string {
	p := byUser[c.UserID]
	switch {
	case l.Member(c.UserID) == nil:
		return "claimant is no longer a member"
	case p == nil:
		return "claimant has no portfolio"
	}
	if owner, taken := owned[c.AssetID]; taken {
		if owner == c.UserID {
			return "asset already held"
		}
		return "asset was claimed first by another member"
	}
	asset, ok := catalog[c.AssetID]
	if !ok {
		return "asset no longer listed"
	}
	if c.DropAssetID != "" && p.SlotByAsset(c.DropAssetID) == nil {
		return "drop asset no longer held"
	}
	if size := l.Settings.PortfolioSize; size > 0 && c.DropAssetID == "" && len(p.Slots) >= size {
		return "portfolio is full"
	}

	if c.DropAssetID != "" {
		if _, err := portfolio.RemoveSlot(p, c.DropAssetID); err != nil {
			return err.Error()
		}
		delete(owned, c.DropAssetID)
	}
	portfolio.AddSlot(p, &asset, portfolio.OpenStatus(p, l.Settings.ActiveSlots), now)
	owned[c.AssetID] = c.UserID
	return ""
}

// orderClaims sorts pending claims for processing. Rolling keeps
// submission order; Reverse Standings lets the lowest-ranked member go
// first, with submission order breaking ties.
func orderClaims(claims []model.WaiverClaim, l *model.League, byUser map[string]*model.Portfolio) {
	bySubmission := func(a, b model.WaiverClaim) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	if l.Settings.WaiverPriority != model.WaiverReverseStandings {
		slices.SortStableFunc(claims, bySubmission)
		return
	}

	rank := make(map[string]int, len(l.Members))
	for _, row := range matchup.Standings(l, byUser) {
		rank[row.UserID] = row.Rank
	}
	slices.SortStableFunc(claims, func(a, b model.WaiverClaim) int {
		if c := cmp.Compare(rank[b.UserID], rank[a.UserID]); c != 0 {
			return c
		}
		return bySubmission(a, b)
	})
}
