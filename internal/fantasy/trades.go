package fantasy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// TradeTTL is how long a proposal stays open.
const TradeTTL = 24 * time.Hour

// ProposeTradeRequest is the JSON body for POST /fantasy-leagues/{id}/trades.
type ProposeTradeRequest struct {
	ProposerID      string   `json:"proposerId"`
	RecipientID     string   `json:"recipientId"`
	OfferedAssets   []string `json:"offeredAssets"`
	RequestedAssets []string `json:"requestedAssets"`
}

// TradeAction is a recipient or proposer response to a trade.
type TradeAction string

const (
	TradeAccept TradeAction = "accept"
	TradeReject TradeAction = "reject"
	TradeCancel TradeAction = "cancel"
)

// ProposeTrade offers the proposer's assets for the recipient's.
func (s *Service) ProposeTrade(ctx context.Context, leagueID string, req ProposeTradeRequest) (*model.Trade, error) {
	if req.ProposerID == "" || req.RecipientID == "" {
		return nil, fmt.Errorf("%w: proposerId and recipientId are required", ErrInvalidInput)
	}
	if req.ProposerID == req.RecipientID {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidInput)
	}
	if len(req.OfferedAssets) == 0 || len(req.RequestedAssets) == 0 {
		return nil, fmt.Errorf("%w: a trade needs offered and requested assets", ErrInvalidInput)
	}
	if hasDuplicates(req.OfferedAssets) || hasDuplicates(req.RequestedAssets) {
		return nil, fmt.Errorf("%w: assets listed twice", ErrInvalidInput)
	}
	if err := authorize(ctx, req.ProposerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.tradingLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if l.Member(req.ProposerID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, req.ProposerID)
	}
	if l.Member(req.RecipientID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, req.RecipientID)
	}
	if _, _, err := s.tradePortfolios(ctx, l, req.ProposerID, req.RecipientID, req.OfferedAssets, req.RequestedAssets); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &model.Trade{
		ID:              uuid.NewString(),
		LeagueID:        l.ID,
		ProposerID:      req.ProposerID,
		RecipientID:     req.RecipientID,
		Status:          model.TradePending,
		OfferedAssets:   slices.Clone(req.OfferedAssets),
		RequestedAssets: slices.Clone(req.RequestedAssets),
		CreatedAt:       now,
		ExpiresAt:       now.Add(TradeTTL),
	}
	if err := s.store.SaveTrade(ctx, t); err != nil {
		return nil, err
	}
	metrics.TradesTotal.WithLabelValues(string(model.TradePending)).Inc()

	slog.Info("trade proposed",
		"id", t.ID,
		"league", l.ID,
		"from", t.ProposerID,
		"to", t.RecipientID,
		"offered", len(t.OfferedAssets),
		"requested", len(t.RequestedAssets),
	)
	return t, nil
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// tradingLeague loads a league that is active and before its trade deadline.
func (s *Service) tradingLeague(ctx context.Context, leagueID string) (*model.League, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.LeagueStatusActive {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueNotActive, l.Status)
	}
	if d := l.Settings.TradeDeadlineWeek; d > 0 && l.CurrentWeek > d {
		return nil, fmt.Errorf("%w: week %d is past week %d", ErrTradeDeadline, l.CurrentWeek, d)
	}
	return l, nil
}

// tradePortfolios loads both sides of a trade and checks each side still
// owns what it gives and has roster room for what it gets.
func (s *Service) tradePortfolios(ctx context.Context, l *model.League, fromID, toID string, offered, requested []string) (*model.Portfolio, *model.Portfolio, error) {
	from, err := s.portfolioOf(ctx, l.ID, fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.portfolioOf(ctx, l.ID, toID)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range offered {
		if from.SlotByAsset(id) == nil {
			return nil, nil, fmt.Errorf("%w: %s does not hold %s", ErrAssetNotOwned, fromID, id)
		}
	}
	for _, id := range requested {
		if to.SlotByAsset(id) == nil {
			return nil, nil, fmt.Errorf("%w: %s does not hold %s", ErrAssetNotOwned, toID, id)
		}
	}
	if size := l.Settings.PortfolioSize; size > 0 {
		if len(from.Slots)-len(offered)+len(requested) > size || len(to.Slots)-len(requested)+len(offered) > size {
			return nil, nil, fmt.Errorf("%w: trade would exceed the portfolio size of %d", ErrInvalidInput, size)
		}
	}
	return from, to, nil
}

// ListTrades returns a league's trades, oldest first, optionally only those
// involving userID. Pending trades past their expiry are cancelled first.
func (s *Service) ListTrades(ctx context.Context, leagueID, userID string) ([]model.Trade, error) {
	if _, err := s.league(ctx, leagueID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.store.ListTrades(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.Trade, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		if expired, err := s.expire(ctx, t, now); err != nil {
			return nil, err
		} else if expired {
			slog.Info("trade expired", "id", t.ID, "league", leagueID)
		}
		if userID != "" && t.ProposerID != userID && t.RecipientID != userID {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// expire cancels a pending trade past its expiry and reports whether it did.
func (s *Service) expire(ctx context.Context, t *model.Trade, now time.Time) (bool, error) {
	if t.Status != model.TradePending || now.Before(t.ExpiresAt) {
		return false, nil
	}
	t.Status = model.TradeCancelled
	if err := s.store.SaveTrade(ctx, t); err != nil {
		return false, err
	}
	metrics.TradesTotal.WithLabelValues(string(model.TradeCancelled)).Inc()
	return true, nil
}

// RespondToTrade applies an accept, reject or cancel by userID. Only the
// recipient accepts or rejects; only the proposer cancels.
func (s *Service) RespondToTrade(ctx context.Context, tradeID, userID string, action TradeAction) (*model.Trade, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, err)
	}

	actor := t.RecipientID
	if action == TradeCancel {
		actor = t.ProposerID
	}
	if userID != actor {
		return nil, fmt.Errorf("%w: only the %s may %s this trade", ErrForbidden, roleOf(action), action)
	}

	if expired, err := s.expire(ctx, t, s.now()); err != nil {
		return nil, err
	} else if expired {
		return nil, ErrTradeExpired
	}
	if t.Status != model.TradePending {
		return nil, fmt.Errorf("%w: trade is %s", ErrTradeNotPending, t.Status)
	}

	switch action {
	case TradeAccept:
		if err := s.executeTrade(ctx, t); err != nil {
			return nil, err
		}
		t.Status = model.TradeAccepted
	case TradeReject:
		t.Status = model.TradeRejected
	case TradeCancel:
		t.Status = model.TradeCancelled
	default:
		return nil, fmt.Errorf("%w: unknown trade action %q", ErrInvalidInput, action)
	}

	if err := s.store.SaveTrade(ctx, t); err != nil {
		return nil, err
	}
	metrics.TradesTotal.WithLabelValues(string(t.Status)).Inc()

	slog.Info("trade "+string(t.Status), "id", t.ID, "league", t.LeagueID, "by", userID)
	return t, nil
}

func roleOf(action TradeAction) string {
	if action == TradeCancel {
		return "proposer"
	}
	return "recipient"
}

// executeTrade swaps the traded slots between the two portfolios. Slots
// keep their purchase price and join the receiving lineup where it has room.
func (s *Service) executeTrade(ctx context.Context, t *model.Trade) error {
	l, err := s.tradingLeague(ctx, t.LeagueID)
	if err != nil {
		return err
	}
	from, to, err := s.tradePortfolios(ctx, l, t.ProposerID, t.RecipientID, t.OfferedAssets, t.RequestedAssets)
	if err != nil {
		return err
	}

	// Take both sides out before attaching so freed active spots are reused.
	take := func(src *model.Portfolio, assetIDs []string) ([]model.PortfolioSlot, error) {
		slots := make([]model.PortfolioSlot, 0, len(assetIDs))
		for _, id := range assetIDs {
			slot, err := portfolio.RemoveSlot(src, id)
			if err != nil {
				return nil, err
			}
			slots = append(slots, slot)
		}
		return slots, nil
	}
	offered, err := take(from, t.OfferedAssets)
	if err != nil {
		return err
	}
	requested, err := take(to, t.RequestedAssets)
	if err != nil {
		return err
	}

	now := s.now()
	for _, slot := range offered {
		portfolio.AttachSlot(to, slot, l.Settings.ActiveSlots, now)
	}
	for _, slot := range requested {
		portfolio.AttachSlot(from, slot, l.Settings.ActiveSlots, now)
	}

	from.UpdatedAt, to.UpdatedAt = now.UTC(), now.UTC()
	if err := s.store.SavePortfolio(ctx, from); err != nil {
		return err
	}
	return s.store.SavePortfolio(ctx, to)
}
