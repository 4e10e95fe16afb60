package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var now = time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)

func newTestPortfolio() *model.Portfolio {
	p := New("league_1", "user_1", "To The Moon", d(10000), now)
	p.LessonRewards = d(500)
	return p
}

func apple(price float64) *model.Asset {
	return &model.Asset{ID: "1", Ticker: "AAPL", Name: "Apple Inc.", Type: model.AssetTypeStock, CurrentPrice: d(price)}
}

// totalFromComponents mirrors the valuation invariant independently.
func totalFromComponents(p *model.Portfolio) decimal.Decimal {
	total := p.LiquidFunds.Add(p.Allocation.Savings).Add(p.Allocation.Bonds).Add(p.Allocation.IndexFunds)
	for _, h := range p.Holdings {
		total = total.Add(h.TotalValue)
	}
	for _, s := range p.Slots {
		total = total.Add(s.CurrentValue)
	}
	return total
}

// --- AllocateFunds ---

func TestAllocateFunds_MovesCash(t *testing.T) {
	p := newTestPortfolio()

	if err := AllocateFunds(p, model.ClassBonds, d(600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.LiquidFunds.Equal(d(9400)) {
		t.Errorf("expected liquid 9400, got %s", p.LiquidFunds)
	}
	if !p.Allocation.Bonds.Equal(d(600)) {
		t.Errorf("expected bonds 600, got %s", p.Allocation.Bonds)
	}
	if !p.TotalValue.Equal(d(10000)) {
		t.Errorf("moving cash into a bucket must not create value, total=%s", p.TotalValue)
	}
	if !p.TotalValue.Equal(totalFromComponents(p)) {
		t.Error("total value invariant violated")
	}
}

func TestAllocateFunds_InsufficientFundsLeavesPortfolioUnchanged(t *testing.T) {
	p := newTestPortfolio()
	p.LiquidFunds = d(500)
	Recalculate(p)
	before := p.Clone()

	err := AllocateFunds(p, model.ClassBonds, d(600))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !p.LiquidFunds.Equal(before.LiquidFunds) || !p.Allocation.Bonds.Equal(before.Allocation.Bonds) ||
		!p.TotalValue.Equal(before.TotalValue) {
		t.Error("portfolio mutated by rejected allocation")
	}
}

func TestAllocateFunds_ExactBalanceAllowed(t *testing.T) {
	p := newTestPortfolio()
	if err := AllocateFunds(p, model.ClassSavings, d(10000)); err != nil {
		t.Fatalf("allocating the full balance should succeed: %v", err)
	}
	if !p.LiquidFunds.IsZero() {
		t.Errorf("expected zero liquid, got %s", p.LiquidFunds)
	}
}

func TestAllocateFunds_InvalidInput(t *testing.T) {
	p := newTestPortfolio()
	if err := AllocateFunds(p, model.ClassBonds, decimal.Zero); err != ErrInvalidAmount {
		t.Errorf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := AllocateFunds(p, model.ClassBonds, d(-5)); err != ErrInvalidAmount {
		t.Errorf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := AllocateFunds(p, "crypto", d(5)); !errors.Is(err, ErrUnknownAssetClass) {
		t.Errorf("expected ErrUnknownAssetClass, got %v", err)
	}
	if !p.LiquidFunds.Equal(d(10000)) {
		t.Error("rejected allocations must not move cash")
	}
}

// --- BuyStock ---

func TestBuyStock_NewHolding(t *testing.T) {
	p := newTestPortfolio()

	if err := BuyStock(p, nil, apple(100), d(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(p.Holdings))
	}
	h := p.Holdings[0]
	if !h.AveragePrice.Equal(d(100)) || !h.ChangePercent.IsZero() || !h.TotalValue.Equal(d(200)) {
		t.Errorf("unexpected holding %+v", h)
	}
	if !p.LessonRewards.Equal(d(300)) {
		t.Errorf("expected rewards 300, got %s", p.LessonRewards)
	}
	if !p.TotalValue.Equal(d(10200)) {
		t.Errorf("expected total to grow by cost, got %s", p.TotalValue)
	}
}

func TestBuyStock_WeightedAverage(t *testing.T) {
	p := newTestPortfolio()
	BuyStock(p, nil, apple(100), d(2))

	if err := BuyStock(p, nil, apple(50), d(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := p.Holdings[0]
	if !h.Shares.Equal(d(4)) {
		t.Errorf("expected 4 shares, got %s", h.Shares)
	}
	if !h.AveragePrice.Equal(d(75)) {
		t.Errorf("expected average 75, got %s", h.AveragePrice)
	}
	if !h.TotalValue.Equal(d(200)) {
		t.Errorf("expected value 4×50=200, got %s", h.TotalValue)
	}
	// (50 - 75) / 75 × 100
	want := d(-25).Div(d(75)).Mul(d(100))
	if !h.ChangePercent.Equal(want) {
		t.Errorf("expected change %s, got %s", want, h.ChangePercent)
	}
	if !p.TotalValue.Equal(totalFromComponents(p)) {
		t.Error("total value invariant violated")
	}
}

func TestBuyStock_ZeroSharesLeavesAverage(t *testing.T) {
	p := newTestPortfolio()
	BuyStock(p, nil, apple(100), d(1))
	avg := p.Holdings[0].AveragePrice

	if err := BuyStock(p, nil, apple(120), decimal.Zero); err != ErrInvalidShares {
		t.Fatalf("expected ErrInvalidShares, got %v", err)
	}
	if !p.Holdings[0].AveragePrice.Equal(avg) {
		t.Errorf("average changed to %s", p.Holdings[0].AveragePrice)
	}
}

func TestBuyStock_SplitEqualsBulk(t *testing.T) {
	split := newTestPortfolio()
	BuyStock(split, nil, apple(37.5), d(3))
	BuyStock(split, nil, apple(37.5), d(3))

	bulk := newTestPortfolio()
	BuyStock(bulk, nil, apple(37.5), d(6))

	a, b := split.Holdings[0], bulk.Holdings[0]
	if !a.Shares.Equal(b.Shares) || !a.AveragePrice.Equal(b.AveragePrice) || !a.TotalValue.Equal(b.TotalValue) {
		t.Errorf("split %+v != bulk %+v", a, b)
	}
	if !split.LessonRewards.Equal(bulk.LessonRewards) || !split.TotalValue.Equal(bulk.TotalValue) {
		t.Error("portfolio totals differ between split and bulk buys")
	}
}

func TestBuyStock_InsufficientRewards(t *testing.T) {
	p := newTestPortfolio()
	err := BuyStock(p, nil, apple(100), d(6))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(p.Holdings) != 0 || !p.LessonRewards.Equal(d(500)) {
		t.Error("rejected buy mutated portfolio")
	}
}

func TestBuyStock_LiquidFundsDoNotCount(t *testing.T) {
	p := newTestPortfolio()
	p.LessonRewards = decimal.Zero
	if err := BuyStock(p, nil, apple(1), d(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("liquid funds are not buying power, got %v", err)
	}
}

func TestBuyStock_LockedAsset(t *testing.T) {
	p := newTestPortfolio()
	asset := apple(10)
	asset.RequiredLessons = []string{"lesson_stocks"}
	user := &model.User{ID: "user_1", CompletedLessons: []string{"lesson_basics"}}

	err := BuyStock(p, user, asset, d(1))
	if !errors.Is(err, ErrAssetLocked) {
		t.Fatalf("expected ErrAssetLocked, got %v", err)
	}
	if len(p.Holdings) != 0 || !p.LessonRewards.Equal(d(500)) {
		t.Error("rejected buy mutated portfolio")
	}

	user.CompleteLesson("lesson_stocks")
	if err := BuyStock(p, user, asset, d(1)); err != nil {
		t.Errorf("unlocked asset should be buyable: %v", err)
	}
}

// --- Slots and lineup ---

func TestFillFromDraft_ActiveThenBench(t *testing.T) {
	p := New("league_1", "user_1", "p", decimal.Zero, now)
	assets := map[string]model.Asset{
		"1": {ID: "1", Ticker: "AAPL", CurrentPrice: d(180)},
		"2": {ID: "2", Ticker: "SPY", CurrentPrice: d(490)},
		"3": {ID: "3", Ticker: "MSFT", CurrentPrice: d(390)},
	}
	picks := []model.DraftPick{{AssetID: "1"}, {AssetID: "2"}, {AssetID: "3"}}

	FillFromDraft(p, picks, assets, 2, now)

	if len(p.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(p.Slots))
	}
	if p.Slots[0].Status != model.SlotActive || p.Slots[1].Status != model.SlotActive || p.Slots[2].Status != model.SlotBench {
		t.Errorf("unexpected statuses %s %s %s", p.Slots[0].Status, p.Slots[1].Status, p.Slots[2].Status)
	}
	if !p.TotalValue.Equal(d(1060)) {
		t.Errorf("expected total 1060, got %s", p.TotalValue)
	}
}

func TestValueSlot_GainLoss(t *testing.T) {
	s := model.PortfolioSlot{PurchasePrice: d(180)}
	ValueSlot(&s, d(198))
	if !s.GainLossPercent.Equal(d(10)) {
		t.Errorf("expected 10%%, got %s", s.GainLossPercent)
	}
}

func TestUpdateLineup(t *testing.T) {
	p := New("league_1", "user_1", "p", decimal.Zero, now)
	a := AddSlot(p, apple(100), model.SlotActive, now).ID
	b := AddSlot(p, &model.Asset{ID: "2", Ticker: "SPY", CurrentPrice: d(400)}, model.SlotBench, now).ID

	if err := UpdateLineup(p, []string{b}, []string{a}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Slot(a).Status != model.SlotBench || p.Slot(b).Status != model.SlotActive {
		t.Error("lineup not applied")
	}

	bad := []struct {
		name          string
		active, bench []string
	}{
		{"too many active", []string{a, b}, nil},
		{"missing slot", []string{a}, nil},
		{"duplicate", []string{a}, []string{a}},
		{"unknown slot", []string{a}, []string{"nope"}},
	}
	for _, tc := range bad {
		err := UpdateLineup(p, tc.active, tc.bench, 1)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if p.Slot(a).Status != model.SlotBench || p.Slot(b).Status != model.SlotActive {
			t.Errorf("%s: rejected lineup was applied", tc.name)
		}
	}
}

func TestRemoveSlot(t *testing.T) {
	p := New("league_1", "user_1", "p", decimal.Zero, now)
	AddSlot(p, apple(100), model.SlotActive, now)

	s, err := RemoveSlot(p, "1")
	if err != nil || s.AssetID != "1" {
		t.Fatalf("unexpected result %+v, %v", s, err)
	}
	if len(p.Slots) != 0 || !p.TotalValue.IsZero() {
		t.Error("slot not removed from valuation")
	}
	if _, err := RemoveSlot(p, "1"); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestMarkToMarketAndReturn(t *testing.T) {
	p := newTestPortfolio()
	AddSlot(p, &model.Asset{ID: "2", Ticker: "SPY", CurrentPrice: d(400)}, model.SlotActive, now)
	BuyStock(p, nil, apple(100), d(2))

	MarkToMarket(p, []model.Asset{
		{ID: "1", Ticker: "AAPL", CurrentPrice: d(110)},
		{ID: "2", Ticker: "SPY", CurrentPrice: d(440)},
	})

	if !p.Slots[0].GainLossPercent.Equal(d(10)) {
		t.Errorf("slot gain: %s", p.Slots[0].GainLossPercent)
	}
	if !p.Holdings[0].TotalValue.Equal(d(220)) {
		t.Errorf("holding value: %s", p.Holdings[0].TotalValue)
	}
	// 10000 liquid + 440 slot + 220 holding
	if !p.TotalValue.Equal(d(10660)) {
		t.Errorf("total: %s", p.TotalValue)
	}
	// basis 10000 + 400
	want := d(260).Div(d(10400)).Mul(d(100))
	if !ReturnPercent(p).Equal(want) {
		t.Errorf("return: got %s want %s", ReturnPercent(p), want)
	}
}

func TestOpenStatus(t *testing.T) {
	p := New("league_1", "user_1", "p", decimal.Zero, now)
	if OpenStatus(p, 1) != model.SlotActive {
		t.Error("empty lineup should have room")
	}
	AddSlot(p, apple(1), model.SlotActive, now)
	if OpenStatus(p, 1) != model.SlotBench {
		t.Error("full lineup should bench new slots")
	}
	if OpenStatus(p, 0) != model.SlotActive {
		t.Error("unlimited lineup is always active")
	}
}

func TestAwardLessonReward(t *testing.T) {
	p := newTestPortfolio()
	if err := AwardLessonReward(p, d(50)); err != nil {
		t.Fatal(err)
	}
	if !p.LessonRewards.Equal(d(550)) {
		t.Errorf("expected 550, got %s", p.LessonRewards)
	}
	if err := AwardLessonReward(p, decimal.Zero); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}
