package fantasy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/flit/fantasy-engine/internal/draft"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
	"github.com/flit/fantasy-engine/internal/store"
)

// JoinCodeLength is the exact length of a league join code.
const JoinCodeLength = 6

const joinCodeAttempts = 5

// CreateLeagueRequest is the JSON body for POST /fantasy-leagues.
type CreateLeagueRequest struct {
	Name        string               `json:"name"`
	AdminUserID string               `json:"adminUserId"`
	Settings    model.LeagueSettings `json:"settings"`
}

// JoinResult is returned from join-by-code.
type JoinResult struct {
	League     *model.League    `json:"league"`
	Membership model.Membership `json:"membership"`
}

// LeaveResult is returned when a member leaves.
type LeaveResult struct {
	Message       string `json:"message"`
	LeagueDeleted bool   `json:"leagueDeleted"`
}

// withDefaults fills unset settings with the defaults of the league form.
func withDefaults(s model.LeagueSettings) model.LeagueSettings {
	if s.LeagueSize == 0 {
		s.LeagueSize = 12
	}
	if s.SeasonLength == 0 {
		s.SeasonLength = 10
	}
	if s.PortfolioSize == 0 {
		s.PortfolioSize = 10
	}
	if s.ActiveSlots == 0 {
		s.ActiveSlots = min(7, s.PortfolioSize)
	}
	if s.BenchSlots == 0 {
		s.BenchSlots = s.PortfolioSize - s.ActiveSlots
	}
	if s.ScoringMethod == "" {
		s.ScoringMethod = model.ScoringTotalReturn
	}
	if s.DraftType == "" {
		s.DraftType = model.DraftTypeSnake
	}
	if s.DraftTimePerPick == 0 {
		s.DraftTimePerPick = draft.DefaultTimePerPick
	}
	if s.MatchupType == "" {
		s.MatchupType = model.MatchupHeadToHead
	}
	if s.WaiverPriority == "" {
		s.WaiverPriority = model.WaiverReverseStandings
	}
	if !s.StartingBalance.IsPositive() {
		s.StartingBalance = DefaultStartingBalance
	}
	return s
}

func validateSettings(s *model.LeagueSettings) error {
	switch {
	case s.LeagueSize < 2:
		return fmt.Errorf("%w: leagueSize must be at least 2", ErrInvalidInput)
	case s.SeasonLength < 1:
		return fmt.Errorf("%w: seasonLength must be at least 1", ErrInvalidInput)
	case s.PortfolioSize < 1:
		return fmt.Errorf("%w: portfolioSize must be at least 1", ErrInvalidInput)
	case s.ActiveSlots < 1 || s.ActiveSlots > s.PortfolioSize:
		return fmt.Errorf("%w: activeSlots must be between 1 and portfolioSize", ErrInvalidInput)
	case s.BenchSlots < 0 || s.ActiveSlots+s.BenchSlots > s.PortfolioSize:
		return fmt.Errorf("%w: activeSlots + benchSlots exceeds portfolioSize", ErrInvalidInput)
	case s.DraftTimePerPick < 0:
		return fmt.Errorf("%w: draftTimePerPick must not be negative", ErrInvalidInput)
	case s.TradeDeadlineWeek < 0 || s.TradeDeadlineWeek > s.SeasonLength:
		return fmt.Errorf("%w: tradeDeadlineWeek must be within the season", ErrInvalidInput)
	case s.MinAssetPrice.IsNegative():
		return fmt.Errorf("%w: minAssetPrice must not be negative", ErrInvalidInput)
	}
	switch s.ScoringMethod {
	case model.ScoringTotalReturn, model.ScoringAbsoluteGain:
	default:
		return fmt.Errorf("%w: unknown scoringMethod %q", ErrInvalidInput, s.ScoringMethod)
	}
	switch s.WaiverPriority {
	case model.WaiverRolling, model.WaiverReverseStandings:
	default:
		return fmt.Errorf("%w: unknown waiverPriority %q", ErrInvalidInput, s.WaiverPriority)
	}
	return nil
}

// ListLeagues returns every league, or only userID's leagues when set.
func (s *Service) ListLeagues(ctx context.Context, userID string) ([]model.League, error) {
	var (
		leagues []model.League
		err     error
	)
	if userID != "" {
		leagues, err = s.store.ListLeaguesByUser(ctx, userID)
	} else {
		leagues, err = s.store.ListLeagues(ctx)
	}
	if err != nil {
		return nil, err
	}
	if leagues == nil {
		leagues = []model.League{}
	}
	return leagues, nil
}

// GetLeague returns a league by id.
func (s *Service) GetLeague(ctx context.Context, id string) (*model.League, error) {
	return s.league(ctx, id)
}

// CreateLeague creates a pending league with the admin as its only member.
func (s *Service) CreateLeague(ctx context.Context, req CreateLeagueRequest) (*model.League, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.AdminUserID == "" {
		return nil, fmt.Errorf("%w: adminUserId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, req.AdminUserID); err != nil {
		return nil, err
	}
	settings := withDefaults(req.Settings.Clone())
	// The competition clock starts with the league, never at creation.
	settings.StartDate = nil
	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	admin, err := s.GetUser(ctx, req.AdminUserID)
	if err != nil {
		return nil, err
	}

	l := &model.League{
		ID:          uuid.NewString(),
		Name:        name,
		AdminUserID: admin.ID,
		Members:     []model.User{*admin},
		Settings:    settings,
		Status:      model.LeagueStatusPending,
		CreatedAt:   s.now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		l.JoinCode = newJoinCode()
		err = s.store.CreateLeague(ctx, l)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) || attempt+1 >= joinCodeAttempts {
			return nil, fmt.Errorf("create league: %w", err)
		}
	}

	slog.Info("league created",
		"id", l.ID,
		"name", l.Name,
		"admin", admin.ID,
		"join_code", l.JoinCode,
	)
	return l, nil
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:JoinCodeLength])
}

// StartLeague starts the trading competition: the admin opens the league
// for play without a draft. Members without a portfolio get an empty one.
func (s *Service) StartLeague(ctx context.Context, leagueID, userID string) (*model.League, error) {
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
		return nil, fmt.Errorf("%w: only the league admin can start the league", ErrForbidden)
	}
	if !l.Status.Open() {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueClosed, l.Status)
	}

	now := s.now().UTC()
	for _, m := range l.Members {
		if _, err := s.store.GetPortfolioByUser(ctx, l.ID, m.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		p := portfolio.New(l.ID, m.ID, portfolioName(&m), l.Settings.StartingBalance, now)
		if err := s.store.SavePortfolio(ctx, p); err != nil {
			return nil, fmt.Errorf("save portfolio for %s: %w", m.ID, err)
		}
	}

	l.Settings.StartDate = &now
	l.Status = model.LeagueStatusActive
	l.CurrentWeek = 1
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return nil, err
	}

	slog.Info("league started", "id", l.ID, "members", len(l.Members))
	return l, nil
}

func portfolioName(u *model.User) string {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return name + "'s Portfolio"
}

// JoinByCode adds userID to the league with the given join code.
func (s *Service) JoinByCode(ctx context.Context, code, userID string) (*JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != JoinCodeLength {
		return nil, ErrInvalidJoinCode
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	l, err := s.store.GetLeagueByJoinCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("join code %s: %w", code, err)
	}
	if l.Member(userID) != nil {
		return nil, ErrAlreadyMember
	}
	if !l.Status.Open() {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueClosed, l.Status)
	}
	if len(l.Members) >= l.Settings.LeagueSize {
		return nil, fmt.Errorf("%w: %d of %d", ErrLeagueFull, len(l.Members), l.Settings.LeagueSize)
	}

	l.Members = append(l.Members, *u)
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	slog.Info("league joined", "league", l.ID, "user", userID, "members", len(l.Members))
	return &JoinResult{
		League:     l,
		Membership: model.Membership{LeagueID: l.ID, UserID: userID, JoinedAt: now},
	}, nil
}

// LeaveLeague removes userID from the league along with their portfolio.
// The admin role passes to the longest-standing member; the last member
// to leave deletes the league.
func (s *Service) LeaveLeague(ctx context.Context, leagueID, userID string) (*LeaveResult, error) {
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, _, err := s.member(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	if l.Status == model.LeagueStatusDrafting {
		return nil, ErrDraftInProgress
	}

	if len(l.Members) == 1 {
		if err := s.store.DeleteLeague(ctx, l.ID); err != nil {
			return nil, err
		}
		slog.Info("league deleted", "id", l.ID, "last_member", userID)
		return &LeaveResult{Message: "Left league; league deleted", LeagueDeleted: true}, nil
	}

	if p, err := s.store.GetPortfolioByUser(ctx, l.ID, userID); err == nil {
		if err := s.store.DeletePortfolio(ctx, p.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := s.closeOpenItems(ctx, l.ID, userID); err != nil {
		return nil, err
	}

	remaining := make([]model.User, 0, len(l.Members)-1)
	for _, m := range l.Members {
		if m.ID != userID {
			remaining = append(remaining, m)
		}
	}
	l.Members = remaining
	if l.AdminUserID == userID {
		l.AdminUserID = remaining[0].ID
	}
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return nil, err
	}

	slog.Info("league left", "league", l.ID, "user", userID, "admin", l.AdminUserID)
	return &LeaveResult{Message: "Left league"}, nil
}

// closeOpenItems cancels a departing member's pending trades and fails
// their pending waiver claims.
func (s *Service) closeOpenItems(ctx context.Context, leagueID, userID string) error {
	trades, err := s.store.ListTrades(ctx, leagueID)
	if err != nil {
		return err
	}
	for i := range trades {
		t := &trades[i]
		if t.Status != model.TradePending || (t.ProposerID != userID && t.RecipientID != userID) {
			continue
		}
		t.Status = model.TradeCancelled
		if err := s.store.SaveTrade(ctx, t); err != nil {
			return err
		}
	}

	claims, err := s.store.ListWaiverClaims(ctx, leagueID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	for i := range claims {
		c := &claims[i]
		if c.Status != model.WaiverPending || c.UserID != userID {
			continue
		}
		c.Status = model.WaiverFailed
		c.ProcessedAt = &now
		c.Reason = "member left the league"
		if err := s.store.SaveWaiverClaim(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceWeek moves an active league to its next week. Passing the last
// week of the season completes the league.
func (s *Service) AdvanceWeek(ctx context.Context, leagueID, userID string) (*model.League, error) {
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
		return nil, fmt.Errorf("%w: only the league admin can advance the week", ErrForbidden)
	}
	if l.Status != model.LeagueStatusActive {
		return nil, fmt.Errorf("%w: league is %s", ErrLeagueNotActive, l.Status)
	}

	if l.CurrentWeek >= l.Settings.SeasonLength {
		l.Status = model.LeagueStatusCompleted
	} else {
		l.CurrentWeek++
	}
	if err := s.store.UpdateLeague(ctx, l); err != nil {
		return nil, err
	}
	slog.Info("league week advanced", "id", l.ID, "week", l.CurrentWeek, "status", l.Status)
	return l, nil
}
