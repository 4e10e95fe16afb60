// Package model defines the core domain types shared across the fantasy engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType is the asset class of a draftable asset.
type AssetType string

const (
	AssetTypeStock     AssetType = "Stock"
	AssetTypeETF       AssetType = "ETF"
	AssetTypeCommodity AssetType = "Commodity"
	AssetTypeREIT      AssetType = "REIT"
)

// AssetTier groups assets by how advanced they are.
type AssetTier string

const (
	AssetTier1 AssetTier = "Tier 1"
	AssetTier2 AssetTier = "Tier 2"
	AssetTier3 AssetTier = "Tier 3"
)

// Asset is immutable reference data within a session. IsLocked is a view
// value computed for a specific user, never stored.
type Asset struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name"`
	Type            AssetType       `json:"type"`
	Tier            AssetTier       `json:"tier"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	ChangePercent   decimal.Decimal `json:"changePercent"`
	MarketCap       string          `json:"marketCap,omitempty"`
	Exchange        string          `json:"exchange,omitempty"`
	Description     string          `json:"description,omitempty"`
	RequiredLessons []string        `json:"requiredLessons"`
	IsLocked        bool            `json:"isLocked"`
}

// LockedFor reports whether u has not yet completed every lesson the asset
// requires. A nil user has completed nothing.
func (a *Asset) LockedFor(u *User) bool {
	for _, lesson := range a.RequiredLessons {
		if u == nil || !u.HasCompleted(lesson) {
			return true
		}
	}
	return false
}

// ForUser returns a copy of the asset with IsLocked derived for u.
func (a Asset) ForUser(u *User) Asset {
	a.RequiredLessons = slices.Clone(a.RequiredLessons)
	a.IsLocked = a.LockedFor(u)
	return a
}

// User is a league member. CompletedLessons only ever grows.
type User struct {
	ID               string   `json:"id"`
	Username         string   `json:"username"`
	Name             string   `json:"name"`
	Avatar           string   `json:"avatar"`
	CompletedLessons []string `json:"completedLessons"`
}

// HasCompleted reports whether the lesson is in CompletedLessons.
func (u *User) HasCompleted(lessonID string) bool {
	return slices.Contains(u.CompletedLessons, lessonID)
}

// CompleteLesson records a lesson. Returns false if it was already recorded.
func (u *User) CompleteLesson(lessonID string) bool {
	if u.HasCompleted(lessonID) {
		return false
	}
	u.CompletedLessons = append(u.CompletedLessons, lessonID)
	return true
}

// Clone returns a deep copy.
func (u User) Clone() User {
	u.CompletedLessons = slices.Clone(u.CompletedLessons)
	return u
}

// LeagueStatus is the lifecycle state of a league.
type LeagueStatus string

const (
	LeagueStatusPending   LeagueStatus = "pending"
	LeagueStatusPreDraft  LeagueStatus = "pre-draft"
	LeagueStatusDrafting  LeagueStatus = "drafting"
	LeagueStatusActive    LeagueStatus = "active"
	LeagueStatusCompleted LeagueStatus = "completed"
)

// Open reports whether the league still accepts members and settings changes.
func (s LeagueStatus) Open() bool {
	return s == LeagueStatusPending || s == LeagueStatusPreDraft
}

type DraftType string

const (
	DraftTypeSnake   DraftType = "Snake"
	DraftTypeAuction DraftType = "Auction"
)

type ScoringMethod string

const (
	ScoringTotalReturn  ScoringMethod = "Total Return %"
	ScoringAbsoluteGain ScoringMethod = "Absolute Gain $"
)

type MatchupType string

const (
	MatchupHeadToHead MatchupType = "Head-to-head"
	MatchupRotisserie MatchupType = "Rotisserie"
)

type WaiverPriority string

const (
	WaiverRolling          WaiverPriority = "Rolling"
	WaiverReverseStandings WaiverPriority = "Reverse Standings"
)

// CompetitionPeriod is the length of a trading competition.
type CompetitionPeriod string

const (
	Period1Week   CompetitionPeriod = "1_week"
	Period2Weeks  CompetitionPeriod = "2_weeks"
	Period1Month  CompetitionPeriod = "1_month"
	Period3Months CompetitionPeriod = "3_months"
	Period6Months CompetitionPeriod = "6_months"
	Period1Year   CompetitionPeriod = "1_year"
)

// EndDate returns start advanced by the period. Unknown periods return start.
func (p CompetitionPeriod) EndDate(start time.Time) time.Time {
	switch p {
	case Period1Week:
		return start.AddDate(0, 0, 7)
	case Period2Weeks:
		return start.AddDate(0, 0, 14)
	case Period1Month:
		return start.AddDate(0, 1, 0)
	case Period3Months:
		return start.AddDate(0, 3, 0)
	case Period6Months:
		return start.AddDate(0, 6, 0)
	case Period1Year:
		return start.AddDate(1, 0, 0)
	}
	return start
}

// LeagueSettings is the season/draft settings shape. The trading competition
// fields are optional and never overlap the season fields: DraftDate is when
// the draft runs, StartDate is when the competition clock starts.
// Settings are frozen once the league leaves pending/pre-draft.
type LeagueSettings struct {
	LeagueSize          int             `json:"leagueSize"`
	SeasonLength        int             `json:"seasonLength"`
	DraftDate           *time.Time      `json:"draftDate,omitempty"`
	PortfolioSize       int             `json:"portfolioSize"`
	ActiveSlots         int             `json:"activeSlots"`
	BenchSlots          int             `json:"benchSlots"`
	ScoringMethod       ScoringMethod   `json:"scoringMethod"`
	EnabledAssetClasses []AssetType     `json:"enabledAssetClasses"`
	MinAssetPrice       decimal.Decimal `json:"minAssetPrice"`
	DraftType           DraftType       `json:"draftType"`
	DraftTimePerPick    int             `json:"draftTimePerPick"`
	MatchupType         MatchupType     `json:"matchupType"`
	PlayoffsEnabled     bool            `json:"playoffsEnabled"`
	TradeDeadlineWeek   int             `json:"tradeDeadlineWeek"`
	WaiverPriority      WaiverPriority  `json:"waiverPriority"`

	StartingBalance   decimal.Decimal   `json:"startingBalance"`
	StartDate         *time.Time        `json:"startDate,omitempty"`
	CompetitionPeriod CompetitionPeriod `json:"competitionPeriod,omitempty"`
	TradingEnabled    bool              `json:"tradingEnabled"`
	AllowShortSelling bool              `json:"allowShortSelling"`
}

// AllowsAsset reports whether the settings permit drafting the asset.
func (s *LeagueSettings) AllowsAsset(a *Asset) bool {
	if len(s.EnabledAssetClasses) > 0 && !slices.Contains(s.EnabledAssetClasses, a.Type) {
		return false
	}
	if s.MinAssetPrice.IsPositive() && a.CurrentPrice.LessThan(s.MinAssetPrice) {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (s LeagueSettings) Clone() LeagueSettings {
	s.EnabledAssetClasses = slices.Clone(s.EnabledAssetClasses)
	if s.DraftDate != nil {
		t := *s.DraftDate
		s.DraftDate = &t
	}
	if s.StartDate != nil {
		t := *s.StartDate
		s.StartDate = &t
	}
	return s
}

// League is created by exactly one admin user. Members are kept in join order,
// which is also the draft order.
type League struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AdminUserID string         `json:"adminUserId"`
	Members     []User         `json:"members"`
	Settings    LeagueSettings `json:"settings"`
	Status      LeagueStatus   `json:"status"`
	CurrentWeek int            `json:"currentWeek"`
	JoinCode    string         `json:"joinCode,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// MemberIDs returns member ids in join order.
func (l *League) MemberIDs() []string {
	ids := make([]string, len(l.Members))
	for i, m := range l.Members {
		ids[i] = m.ID
	}
	return ids
}

// Member returns the member with the given id, or nil.
func (l *League) Member(userID string) *User {
	for i := range l.Members {
		if l.Members[i].ID == userID {
			return &l.Members[i]
		}
	}
	return nil
}

// StartDate is the competition start, falling back to the draft date and
// then to creation time.
func (l *League) StartDate() time.Time {
	switch {
	case l.Settings.StartDate != nil:
		return *l.Settings.StartDate
	case l.Settings.DraftDate != nil:
		return *l.Settings.DraftDate
	}
	return l.CreatedAt
}

// Clone returns a deep copy.
func (l League) Clone() League {
	members := make([]User, len(l.Members))
	for i, m := range l.Members {
		members[i] = m.Clone()
	}
	l.Members = members
	l.Settings = l.Settings.Clone()
	return l
}

// Membership is returned when a user joins a league.
type Membership struct {
	LeagueID string    `json:"leagueId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// SlotStatus tags whether a slot counts toward scoring.
type SlotStatus string

const (
	SlotActive SlotStatus = "ACTIVE"
	SlotBench  SlotStatus = "BENCH"
)

// PortfolioSlot holds at most one drafted or claimed asset position.
type PortfolioSlot struct {
	ID              string          `json:"id"`
	AssetID         string          `json:"assetId"`
	Asset           *Asset          `json:"asset,omitempty"`
	Status          SlotStatus      `json:"status"`
	AcquiredAt      time.Time       `json:"acquiredAt"`
	PurchasePrice   decimal.Decimal `json:"purchasePrice"`
	CurrentValue    decimal.Decimal `json:"currentValue"`
	GainLossPercent decimal.Decimal `json:"gainLossPercent"`
}

// AssetClass names a cash allocation bucket.
type AssetClass string

const (
	ClassSavings    AssetClass = "savings"
	ClassBonds      AssetClass = "bonds"
	ClassIndexFunds AssetClass = "indexFunds"
)

// AssetAllocation is the cash moved into labeled buckets.
type AssetAllocation struct {
	Savings    decimal.Decimal `json:"savings"`
	Bonds      decimal.Decimal `json:"bonds"`
	IndexFunds decimal.Decimal `json:"indexFunds"`
}

// Bucket returns a pointer to the bucket for class, or nil if unknown.
func (a *AssetAllocation) Bucket(class AssetClass) *decimal.Decimal {
	switch class {
	case ClassSavings:
		return &a.Savings
	case ClassBonds:
		return &a.Bonds
	case ClassIndexFunds:
		return &a.IndexFunds
	}
	return nil
}

// Total is the sum of all buckets.
func (a AssetAllocation) Total() decimal.Decimal {
	return a.Savings.Add(a.Bonds).Add(a.IndexFunds)
}

// Holding is a stock position bought with lesson rewards.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Shares        decimal.Decimal `json:"shares"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// Portfolio belongs to exactly one (league, user) pair.
type Portfolio struct {
	ID              string          `json:"id"`
	LeagueID        string          `json:"leagueId"`
	UserID          string          `json:"userId"`
	Name            string          `json:"name"`
	Slots           []PortfolioSlot `json:"slots"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
	LiquidFunds     decimal.Decimal `json:"liquidFunds"`
	LessonRewards   decimal.Decimal `json:"lessonRewards"`
	Allocation      AssetAllocation `json:"allocation"`
	Holdings        []Holding       `json:"holdings"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	WeeklyReturn    decimal.Decimal `json:"weeklyReturn"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Slot returns the slot with the given id, or nil.
func (p *Portfolio) Slot(slotID string) *PortfolioSlot {
	for i := range p.Slots {
		if p.Slots[i].ID == slotID {
			return &p.Slots[i]
		}
	}
	return nil
}

// SlotByAsset returns the slot holding assetID, or nil.
func (p *Portfolio) SlotByAsset(assetID string) *PortfolioSlot {
	for i := range p.Slots {
		if p.Slots[i].AssetID == assetID {
			return &p.Slots[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Portfolio) Clone() Portfolio {
	slots := make([]PortfolioSlot, len(p.Slots))
	for i, s := range p.Slots {
		if s.Asset != nil {
			a := *s.Asset
			a.RequiredLessons = slices.Clone(a.RequiredLessons)
			s.Asset = &a
		}
		slots[i] = s
	}
	p.Slots = slots
	p.Holdings = slices.Clone(p.Holdings)
	return p
}

// DraftStatus is the lifecycle state of a league draft.
type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftActive    DraftStatus = "active"
	DraftPaused    DraftStatus = "paused"
	DraftCompleted DraftStatus = "completed"
)

// DraftPick is an immutable, append-only record.
type DraftPick struct {
	Round      int       `json:"round"`
	PickNumber int       `json:"pickNumber"`
	UserID     string    `json:"userId"`
	AssetID    string    `json:"assetId"`
	Timestamp  time.Time `json:"timestamp"`
	AutoPicked bool      `json:"autoPicked,omitempty"`
}

// DraftState is the single draft of a league. Order is the member order
// captured when the draft was created.
type DraftState struct {
	LeagueID             string      `json:"leagueId"`
	Status               DraftStatus `json:"status"`
	DraftType            DraftType   `json:"draftType"`
	Order                []string    `json:"order"`
	TotalPicks           int         `json:"totalPicks"`
	TimePerPick          int         `json:"timePerPick"`
	CurrentRound         int         `json:"currentRound"`
	CurrentPickNumber    int         `json:"currentPickNumber"`
	CurrentUserID        string      `json:"currentUserId"`
	Picks                []DraftPick `json:"picks"`
	RemainingTimeSeconds int         `json:"remainingTimeSeconds"`
}

// Picked reports whether assetID has been taken in this draft.
func (d *DraftState) Picked(assetID string) bool {
	for _, p := range d.Picks {
		if p.AssetID == assetID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (d DraftState) Clone() DraftState {
	d.Order = slices.Clone(d.Order)
	d.Picks = slices.Clone(d.Picks)
	return d
}

// Matchup is a weekly head-to-head pairing. Derived, never persisted.
type Matchup struct {
	ID                 string          `json:"id"`
	LeagueID           string          `json:"leagueId"`
	Week               int             `json:"week"`
	UserAID            string          `json:"userAId"`
	UserBID            string          `json:"userBId"`
	ScoreA             decimal.Decimal `json:"scoreA"`
	ScoreB             decimal.Decimal `json:"scoreB"`
	WinnerID           string          `json:"winnerId,omitempty"`
	UserAPortfolioName string          `json:"userAPortfolioName"`
	UserBPortfolioName string          `json:"userBPortfolioName"`
	UserAAvatar        string          `json:"userAAvatar"`
	UserBAvatar        string          `json:"userBAvatar"`
}

// Standing is one row of a league leaderboard.
type Standing struct {
	Rank          int             `json:"rank"`
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	PortfolioName string          `json:"portfolioName"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	ReturnPercent decimal.Decimal `json:"returnPercent"`
}

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeCancelled TradeStatus = "cancelled"
)

// Trade is a proposal to swap assets between two members.
type Trade struct {
	ID              string      `json:"id"`
	LeagueID        string      `json:"leagueId"`
	ProposerID      string      `json:"proposerId"`
	RecipientID     string      `json:"recipientId"`
	Status          TradeStatus `json:"status"`
	OfferedAssets   []string    `json:"offeredAssets"`
	RequestedAssets []string    `json:"requestedAssets"`
	CreatedAt       time.Time   `json:"createdAt"`
	ExpiresAt       time.Time   `json:"expiresAt"`
}

type WaiverStatus string

const (
	WaiverPending   WaiverStatus = "pending"
	WaiverProcessed WaiverStatus = "processed"
	WaiverFailed    WaiverStatus = "failed"
)

// WaiverClaim is a request to acquire an unowned asset outside the draft.
type WaiverClaim struct {
	ID          string       `json:"id"`
	LeagueID    string       `json:"leagueId"`
	UserID      string       `json:"userId"`
	AssetID     string       `json:"assetId"`
	DropAssetID string       `json:"dropAssetId,omitempty"`
	Status      WaiverStatus `json:"status"`
	Priority    int          `json:"priority"`
	CreatedAt   time.Time    `json:"createdAt"`
	ProcessedAt *time.Time   `json:"processedAt,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// PortfolioSnapshot is one point of a value time series.
type PortfolioSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}
