package fantasy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flit/fantasy-engine/internal/draft"
	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
	"github.com/flit/fantasy-engine/internal/store"
)

// GetDraft returns the league's draft. A league that has not started its
// draft gets a fresh pending draft, which is not saved.
func (s *Service) GetDraft(ctx context.Context, leagueID string) (*model.DraftState, error) {
	d, err := s.store.GetDraft(ctx, leagueID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return draft.New(l), nil
}

// StartDraft starts the league's draft with the first member on the clock.
// userID is optional; when given it must be the admin.
func (s *Service) StartDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	if userID != "" {
		if err := authorize(ctx, userID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if userID != "" && l.AdminUserID != userID {
		return nil, fmt.Errorf("%w: only the league admin can start the draft", ErrForbidden)
	}

	d, err := s.store.GetDraft(ctx, leagueID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		d = draft.New(l)
	case err != nil:
		return nil, err
	}
	if !l.Status.Open() && d.Status == model.DraftPending {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueClosed, l.Status)
	}
	if d.Status != model.DraftPending {
		return nil, draft.ErrNotPending
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	pool := 0
	for i := range assets {
		if l.Settings.AllowsAsset(&assets[i]) {
			pool++
		}
	}
	if err := draft.FitToPool(d, pool); err != nil {
		return nil, fmt.Errorf("%w: %d eligible assets for %d members", err, pool, len(d.Order))
	}
	if err := draft.Start(d); err != nil {
		return nil, err
	}
	metrics.ActiveDrafts.Inc()

	l.Status = model.LeagueStatusDrafting
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return nil, err
	}
	if err := s.skipStranded(ctx, l, d); err != nil {
		return nil, err
	}
	if err := s.afterPick(ctx, l, d); err != nil {
		return nil, err
	}

	slog.Info("draft started",
		"league", l.ID,
		"type", d.DraftType,
		"members", len(d.Order),
		"total_picks", d.TotalPicks,
	)
	return d, nil
}

// MakePick records userID's pick of assetID.
func (s *Service) MakePick(ctx context.Context, leagueID, userID, assetID string) (*model.DraftPick, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: assetId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, u, err := s.member(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDraft(ctx, leagueID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, draft.ErrNotActive
	}
	if err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, err)
	}
	if !l.Settings.AllowsAsset(asset) {
		return nil, fmt.Errorf("%w: %s is excluded by league settings", draft.ErrAssetUnavailable, asset.Ticker)
	}

	pick, err := draft.MakePick(d, u, asset, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.skipStranded(ctx, l, d); err != nil {
		return nil, err
	}
	if err := s.afterPick(ctx, l, d); err != nil {
		return nil, err
	}

	metrics.DraftPicksTotal.WithLabelValues("false").Inc()
	slog.Info("draft pick",
		"league", l.ID,
		"user", userID,
		"asset", asset.Ticker,
		"round", pick.Round,
		"pick", pick.PickNumber,
	)
	return &pick, nil
}

// afterPick persists a draft after a pick and hands a completed draft
// over to the league.
func (s *Service) afterPick(ctx context.Context, l *model.League, d *model.DraftState) error {
	if err := s.store.SaveDraft(ctx, d); err != nil {
		return err
	}
	if d.Status == model.DraftCompleted {
		if err := s.completeDraft(ctx, l, d); err != nil {
			return err
		}
	}
	s.broker.Publish(d)
	return nil
}

// completeDraft builds one portfolio per member from their picks and
// activates the league.
func (s *Service) completeDraft(ctx context.Context, l *model.League, d *model.DraftState) error {
	_, byID, err := s.assetsByID(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	picks := draft.PicksByUser(d)

	for _, uid := range d.Order {
		m := l.Member(uid)
		if m == nil {
			continue
		}
		p := portfolio.New(l.ID, uid, portfolioName(m), l.Settings.StartingBalance, now)
		if existing, err := s.store.GetPortfolioByUser(ctx, l.ID, uid); err == nil {
			p.ID = existing.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		portfolio.FillFromDraft(p, picks[uid], byID, l.Settings.ActiveSlots, now)
		if err := s.store.SavePortfolio(ctx, p); err != nil {
			return fmt.Errorf("save portfolio for %s: %w", uid, err)
		}
	}

	l.Status = model.LeagueStatusActive
	l.CurrentWeek = 1
	if l.Settings.StartDate == nil {
		l.Settings.StartDate = &now
	}
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return err
	}
	metrics.ActiveDrafts.Dec()

	slog.Info("draft completed", "league", l.ID, "picks", len(d.Picks))
	return nil
}

// DraftableAssets returns the assets still available in the league's draft,
// filtered by league settings and search, with IsLocked derived for userID.
func (s *Service) DraftableAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	d, err := s.GetDraft(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	viewer := s.viewer(ctx, l, userID)

	out := make([]model.Asset, 0, len(assets))
	for _, a := range draft.Available(d, assets, search) {
		if l.Settings.AllowsAsset(&a) {
			out = append(out, a.ForUser(viewer))
		}
	}
	return out, nil
}

// viewer resolves the user that IsLocked is derived for. Unknown users see
// every lesson-gated asset as locked.
func (s *Service) viewer(ctx context.Context, l *model.League, userID string) *model.User {
	if userID == "" {
		return nil
	}
	if u := l.Member(userID); u != nil {
		return u
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil
	}
	return u
}

// PauseDraft stops the league's draft clock. Admin only.
func (s *Service) PauseDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	return s.adminDraftAction(ctx, leagueID, userID, draft.Pause, "paused")
}

// ResumeDraft restarts a paused draft. Admin only.
func (s *Service) ResumeDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	return s.adminDraftAction(ctx, leagueID, userID, draft.Resume, "resumed")
}

func (s *Service) adminDraftAction(ctx context.Context, leagueID, userID string, action func(*model.DraftState) error, verb string) (*model.DraftState, error) {
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
		return nil, fmt.Errorf("%w: only the league admin can change the draft", ErrForbidden)
	}
	d, err := s.store.GetDraft(ctx, leagueID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, draft.ErrNotActive
	}
	if err != nil {
		return nil, err
	}
	if err := action(d); err != nil {
		return nil, err
	}
	if d.Status == model.DraftPaused {
		metrics.ActiveDrafts.Dec()
	} else {
		metrics.ActiveDrafts.Inc()
		if err := s.skipStranded(ctx, l, d); err != nil {
			return nil, err
		}
	}
	if err := s.afterPick(ctx, l, d); err != nil {
		return nil, err
	}

	slog.Info("draft "+verb, "league", leagueID, "by", userID)
	return d, nil
}

// TickDrafts runs every active draft's clock down by elapsed seconds. When
// a member's time runs out the first available asset they may draft is
// picked for them; a member with nothing left to draft forfeits the pick.
// The active drafts gauge is reset from the store on every tick.
func (s *Service) TickDrafts(ctx context.Context, elapsed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.store.ListDraftsByStatus(ctx, model.DraftActive)
	if err != nil {
		return err
	}

	var errs []error
	active := 0
	for i := range drafts {
		if err := s.tick(ctx, &drafts[i], elapsed); err != nil {
			slog.Error("draft tick failed", "league", drafts[i].LeagueID, "err", err)
			errs = append(errs, fmt.Errorf("league %s: %w", drafts[i].LeagueID, err))
		}
		if drafts[i].Status == model.DraftActive {
			active++
		}
	}
	metrics.ActiveDrafts.Set(float64(active))
	return errors.Join(errs...)
}

func (s *Service) tick(ctx context.Context, d *model.DraftState, elapsed int) error {
	expired, err := draft.Tick(d, elapsed)
	if err != nil {
		return err
	}
	if !expired {
		if err := s.store.SaveDraft(ctx, d); err != nil {
			return err
		}
		s.broker.Publish(d)
		return nil
	}

	l, err := s.league(ctx, d.LeagueID)
	if err != nil {
		return err
	}
	u := l.Member(d.CurrentUserID)
	asset, err := s.autoPickAsset(ctx, l, d, u)
	if errors.Is(err, errNothingToDraft) {
		return s.afterSkip(ctx, l, d)
	}
	if err != nil {
		return err
	}

	pick, err := draft.MakePick(d, u, asset, s.now())
	if err != nil {
		return err
	}
	d.Picks[len(d.Picks)-1].AutoPicked = true
	if err := s.skipStranded(ctx, l, d); err != nil {
		return err
	}
	if err := s.afterPick(ctx, l, d); err != nil {
		return err
	}

	metrics.DraftPicksTotal.WithLabelValues("true").Inc()
	slog.Info("draft auto-pick",
		"league", l.ID,
		"user", pick.UserID,
		"asset", asset.Ticker,
		"round", pick.Round,
		"pick", pick.PickNumber,
	)
	return nil
}

// afterSkip settles a draft whose member on the clock ran out of time with
// nothing to draft.
func (s *Service) afterSkip(ctx context.Context, l *model.League, d *model.DraftState) error {
	if err := s.skipStranded(ctx, l, d); err != nil {
		return err
	}
	return s.afterPick(ctx, l, d)
}

// skipStranded forfeits the turn of every member in a row who has nothing
// left to draft. When nobody in the order can draft anything the draft is
// finished with the picks already made.
func (s *Service) skipStranded(ctx context.Context, l *model.League, d *model.DraftState) error {
	for skipped := 0; d.Status == model.DraftActive; skipped++ {
		if skipped == len(d.Order) {
			slog.Warn("draft finished early, nothing left to draft", "league", l.ID, "picks", len(d.Picks))
			return draft.Finish(d)
		}
		_, err := s.autoPickAsset(ctx, l, d, l.Member(d.CurrentUserID))
		if !errors.Is(err, errNothingToDraft) {
			return err
		}
		slog.Warn("draft pick forfeited, nothing left to draft", "league", l.ID, "user", d.CurrentUserID)
		if err := draft.Skip(d); err != nil {
			return err
		}
	}
	return nil
}

// autoPickAsset returns the first asset, in catalog order, that u may take.
func (s *Service) autoPickAsset(ctx context.Context, l *model.League, d *model.DraftState, u *model.User) (*model.Asset, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, d.CurrentUserID)
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range draft.Available(d, assets, "") {
		if l.Settings.AllowsAsset(&a) && !a.LockedFor(u) {
			return &a, nil
		}
	}
	return nil, errNothingToDraft
}
