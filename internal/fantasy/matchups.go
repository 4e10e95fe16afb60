package fantasy

import (
	"context"
	"fmt"

	"github.com/flit/fantasy-engine/internal/matchup"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// markedPortfolios returns a league's portfolios marked to current prices.
func (s *Service) markedPortfolios(ctx context.Context, leagueID string) (map[string]*model.Portfolio, error) {
	byUser, err := s.portfolios(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range byUser {
		portfolio.MarkToMarket(p, assets)
	}
	return byUser, nil
}

// CurrentMatchup returns userID's matchup for the league's current week.
func (s *Service) CurrentMatchup(ctx context.Context, leagueID, userID string) (*model.Matchup, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if l.CurrentWeek < 1 {
		return nil, fmt.Errorf("%w: league %s has not started", matchup.ErrNotFound, leagueID)
	}
	return s.userMatchup(ctx, l, l.CurrentWeek, userID)
}

// WeekMatchup returns userID's matchup for a given week.
func (s *Service) WeekMatchup(ctx context.Context, leagueID string, week int, userID string) (*model.Matchup, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return s.userMatchup(ctx, l, week, userID)
}

func (s *Service) userMatchup(ctx context.Context, l *model.League, week int, userID string) (*model.Matchup, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	byUser, err := s.markedPortfolios(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	m, err := matchup.ForUser(l, week, userID, byUser)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// WeekMatchups returns every matchup of a week.
func (s *Service) WeekMatchups(ctx context.Context, leagueID string, week int) ([]model.Matchup, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	byUser, err := s.markedPortfolios(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return matchup.Week(l, week, byUser)
}

// Standings ranks the league's members.
func (s *Service) Standings(ctx context.Context, leagueID string) (*model.League, []model.Standing, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}
	byUser, err := s.markedPortfolios(ctx, l.ID)
	if err != nil {
		return nil, nil, err
	}
	return l, matchup.Standings(l, byUser), nil
}
