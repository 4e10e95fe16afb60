// Package portfolio implements valuation and the cash operations of a league
// portfolio: allocating liquid funds into buckets, buying stock with lesson
// rewards, marking positions to market and arranging the slot lineup.
//
// All monetary values use shopspring/decimal. Every operation validates
// before it mutates, so a rejected call leaves the portfolio untouched, and
// every successful one ends with Recalculate so TotalValue is always derived
// from its components rather than incremented.
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

var (
	ErrInvalidAmount     = errors.New("portfolio: amount must be positive")
	ErrInsufficientFunds = errors.New("portfolio: insufficient funds")
	ErrUnknownAssetClass = errors.New("portfolio: unknown asset class")
	ErrInvalidShares     = errors.New("portfolio: shares must be positive")
	ErrAssetLocked       = errors.New("portfolio: asset is locked for this user")
	ErrInvalidLineup     = errors.New("portfolio: invalid lineup")
	ErrSlotNotFound      = errors.New("portfolio: slot not found")
)

var hundred = decimal.NewFromInt(100)

// New creates an empty portfolio with the starting balance as liquid funds.
func New(leagueID, userID, name string, startingBalance decimal.Decimal, now time.Time) *model.Portfolio {
	p := &model.Portfolio{
		ID:              uuid.NewString(),
		LeagueID:        leagueID,
		UserID:          userID,
		Name:            name,
		Slots:           []model.PortfolioSlot{},
		StartingBalance: startingBalance,
		LiquidFunds:     startingBalance,
		Holdings:        []model.Holding{},
		UpdatedAt:       now.UTC(),
	}
	Recalculate(p)
	return p
}

// Recalculate derives TotalValue from liquid funds, allocation buckets,
// holdings and slot values. Lesson rewards are buying power outside the
// total until spent.
func Recalculate(p *model.Portfolio) {
	total := p.LiquidFunds.Add(p.Allocation.Total())
	for _, h := range p.Holdings {
		total = total.Add(h.TotalValue)
	}
	for _, s := range p.Slots {
		total = total.Add(s.CurrentValue)
	}
	p.TotalValue = total
}

// AllocateFunds moves amount from liquid funds into the bucket for class.
func AllocateFunds(p *model.Portfolio, class model.AssetClass, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(p.LiquidFunds) {
		return fmt.Errorf("%w: need %s, have %s liquid", ErrInsufficientFunds, amount, p.LiquidFunds)
	}
	bucket := p.Allocation.Bucket(class)
	if bucket == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAssetClass, class)
	}

	p.LiquidFunds = p.LiquidFunds.Sub(amount)
	*bucket = bucket.Add(amount)
	Recalculate(p)
	return nil
}

// BuyStock buys shares of asset at its current price using lesson rewards.
// Buying more of a held symbol updates its weighted-average cost.
func BuyStock(p *model.Portfolio, user *model.User, asset *model.Asset, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidShares
	}
	if asset.LockedFor(user) {
		return fmt.Errorf("%w: %s", ErrAssetLocked, asset.Ticker)
	}
	cost := asset.CurrentPrice.Mul(shares)
	if cost.GreaterThan(p.LessonRewards) {
		return fmt.Errorf("%w: need %s, have %s in rewards", ErrInsufficientFunds, cost, p.LessonRewards)
	}

	if h := holding(p, asset.Ticker); h != nil {
		newShares := h.Shares.Add(shares)
		h.AveragePrice = h.AveragePrice.Mul(h.Shares).Add(cost).Div(newShares)
		h.Shares = newShares
		h.CurrentPrice = asset.CurrentPrice
		h.TotalValue = asset.CurrentPrice.Mul(newShares)
		h.ChangePercent = percentChange(h.AveragePrice, asset.CurrentPrice)
	} else {
		p.Holdings = append(p.Holdings, model.Holding{
			Symbol:        asset.Ticker,
			Name:          asset.Name,
			Shares:        shares,
			AveragePrice:  asset.CurrentPrice,
			CurrentPrice:  asset.CurrentPrice,
			TotalValue:    cost,
			ChangePercent: decimal.Zero,
		})
	}

	p.LessonRewards = p.LessonRewards.Sub(cost)
	Recalculate(p)
	return nil
}

// AwardLessonReward credits buying power for a completed lesson.
func AwardLessonReward(p *model.Portfolio, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	p.LessonRewards = p.LessonRewards.Add(amount)
	return nil
}

func holding(p *model.Portfolio, symbol string) *model.Holding {
	for i := range p.Holdings {
		if p.Holdings[i].Symbol == symbol {
			return &p.Holdings[i]
		}
	}
	return nil
}

// percentChange returns (to - from) / from * 100, or zero when from is zero.
func percentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred)
}

// ValueSlot sets a slot's current value and derived gain/loss.
func ValueSlot(s *model.PortfolioSlot, price decimal.Decimal) {
	s.CurrentValue = price
	s.GainLossPercent = percentChange(s.PurchasePrice, price)
}

// AddSlot appends a slot for asset bought at its current price.
func AddSlot(p *model.Portfolio, asset *model.Asset, status model.SlotStatus, now time.Time) *model.PortfolioSlot {
	a := *asset
	p.Slots = append(p.Slots, model.PortfolioSlot{
		ID:            uuid.NewString(),
		AssetID:       asset.ID,
		Asset:         &a,
		Status:        status,
		AcquiredAt:    now.UTC(),
		PurchasePrice: asset.CurrentPrice,
	})
	s := &p.Slots[len(p.Slots)-1]
	ValueSlot(s, asset.CurrentPrice)
	Recalculate(p)
	return s
}

// RemoveSlot drops the slot holding assetID and returns it.
func RemoveSlot(p *model.Portfolio, assetID string) (model.PortfolioSlot, error) {
	for i, s := range p.Slots {
		if s.AssetID == assetID {
			p.Slots = append(p.Slots[:i], p.Slots[i+1:]...)
			Recalculate(p)
			return s, nil
		}
	}
	return model.PortfolioSlot{}, fmt.Errorf("%w: asset %s", ErrSlotNotFound, assetID)
}

// AttachSlot moves a slot taken from another portfolio into p. The slot
// keeps its purchase price and joins the active lineup if there is room.
func AttachSlot(p *model.Portfolio, s model.PortfolioSlot, activeSlots int, now time.Time) *model.PortfolioSlot {
	s.Status = OpenStatus(p, activeSlots)
	s.AcquiredAt = now.UTC()
	p.Slots = append(p.Slots, s)
	Recalculate(p)
	return &p.Slots[len(p.Slots)-1]
}

// FillFromDraft adds one slot per pick in pick order. The first activeSlots
// picks start ACTIVE and the rest sit on the BENCH; activeSlots <= 0 makes
// every slot active.
func FillFromDraft(p *model.Portfolio, picks []model.DraftPick, assets map[string]model.Asset, activeSlots int, now time.Time) {
	for i, pick := range picks {
		asset, ok := assets[pick.AssetID]
		if !ok {
			continue
		}
		status := model.SlotActive
		if activeSlots > 0 && i >= activeSlots {
			status = model.SlotBench
		}
		AddSlot(p, &asset, status, now)
	}
}

// OpenStatus picks the status for a slot joining p: ACTIVE while there is
// room in the active lineup, BENCH otherwise.
func OpenStatus(p *model.Portfolio, activeSlots int) model.SlotStatus {
	if activeSlots <= 0 {
		return model.SlotActive
	}
	active := 0
	for _, s := range p.Slots {
		if s.Status == model.SlotActive {
			active++
		}
	}
	if active < activeSlots {
		return model.SlotActive
	}
	return model.SlotBench
}

// UpdateLineup re-tags slots. Every slot must appear exactly once across the
// two lists and the active list may not exceed activeSlots (when positive).
func UpdateLineup(p *model.Portfolio, activeIDs, benchIDs []string, activeSlots int) error {
	if activeSlots > 0 && len(activeIDs) > activeSlots {
		return fmt.Errorf("%w: %d active slots, limit %d", ErrInvalidLineup, len(activeIDs), activeSlots)
	}
	if len(activeIDs)+len(benchIDs) != len(p.Slots) {
		return fmt.Errorf("%w: lineup must list all %d slots", ErrInvalidLineup, len(p.Slots))
	}

	next := make(map[string]model.SlotStatus, len(p.Slots))
	for _, list := range []struct {
		ids    []string
		status model.SlotStatus
	}{{activeIDs, model.SlotActive}, {benchIDs, model.SlotBench}} {
		for _, id := range list.ids {
			if p.Slot(id) == nil {
				return fmt.Errorf("%w: %s", ErrSlotNotFound, id)
			}
			if _, dup := next[id]; dup {
				return fmt.Errorf("%w: slot %s listed twice", ErrInvalidLineup, id)
			}
			next[id] = list.status
		}
	}

	for i := range p.Slots {
		p.Slots[i].Status = next[p.Slots[i].ID]
	}
	return nil
}

// MarkToMarket refreshes slots and holdings from the latest asset prices and
// recomputes the total. Assets missing from the catalog keep their values.
func MarkToMarket(p *model.Portfolio, assets []model.Asset) {
	byID := make(map[string]*model.Asset, len(assets))
	byTicker := make(map[string]*model.Asset, len(assets))
	for i := range assets {
		byID[assets[i].ID] = &assets[i]
		byTicker[assets[i].Ticker] = &assets[i]
	}

	for i := range p.Slots {
		if a, ok := byID[p.Slots[i].AssetID]; ok {
			ValueSlot(&p.Slots[i], a.CurrentPrice)
		}
	}
	for i := range p.Holdings {
		h := &p.Holdings[i]
		if a, ok := byTicker[h.Symbol]; ok {
			h.CurrentPrice = a.CurrentPrice
			h.TotalValue = a.CurrentPrice.Mul(h.Shares)
			h.ChangePercent = percentChange(h.AveragePrice, a.CurrentPrice)
		}
	}
	Recalculate(p)
}

// CostBasis is what the portfolio started with: its starting balance plus
// the purchase price of every slot it holds.
func CostBasis(p *model.Portfolio) decimal.Decimal {
	basis := p.StartingBalance
	for _, s := range p.Slots {
		basis = basis.Add(s.PurchasePrice)
	}
	return basis
}

// ReturnPercent is the total return of the portfolio over its cost basis.
func ReturnPercent(p *model.Portfolio) decimal.Decimal {
	return percentChange(CostBasis(p), p.TotalValue)
}
