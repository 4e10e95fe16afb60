// Package matchup derives weekly head-to-head pairings, their scores and the
// league standings from portfolios. Nothing here is persisted.
package matchup

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

var (
	ErrInvalidWeek = errors.New("matchup: invalid week")
	ErrNotFound    = errors.New("matchup: no matchup for user")
)

var hundred = decimal.NewFromInt(100)

// Pairings returns the pairs for week (1-based) using the circle method: the
// first member stays put and the rest rotate one place per week. With an odd
// member count one member sits out each week.
func Pairings(memberIDs []string, week int) [][2]string {
	ids := slices.Clone(memberIDs)
	if len(ids)%2 == 1 {
		ids = append(ids, "")
	}
	n := len(ids)
	if n < 2 || week < 1 {
		return nil
	}

	rest := ids[1:]
	r := (week - 1) % (n - 1)
	rotated := append(slices.Clone(rest[len(rest)-r:]), rest[:len(rest)-r]...)
	order := append([]string{ids[0]}, rotated...)

	pairs := make([][2]string, 0, n/2)
	for i := 0; i < n/2; i++ {
		a, b := order[i], order[n-1-i]
		if a == "" || b == "" {
			continue
		}
		pairs = append(pairs, [2]string{a, b})
	}
	return pairs
}

// Score is the weekly score of a portfolio. Bench slots never count. A
// portfolio without slots, as in a trading competition, scores on its whole
// value against its cost basis.
func Score(p *model.Portfolio, method model.ScoringMethod) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if len(p.Slots) == 0 {
		if method == model.ScoringAbsoluteGain {
			return p.TotalValue.Sub(portfolio.CostBasis(p))
		}
		return portfolio.ReturnPercent(p).Round(2)
	}
	gain, basis := decimal.Zero, decimal.Zero
	for _, s := range p.Slots {
		if s.Status != model.SlotActive {
			continue
		}
		gain = gain.Add(s.CurrentValue.Sub(s.PurchasePrice))
		basis = basis.Add(s.PurchasePrice)
	}

	if method == model.ScoringAbsoluteGain {
		return gain
	}
	if basis.IsZero() {
		return decimal.Zero
	}
	return gain.Div(basis).Mul(hundred).Round(2)
}

// Week builds every matchup of week for the league. portfolios is keyed by
// user id. Weeks before the league's current week carry a winner.
func Week(league *model.League, week int, portfolios map[string]*model.Portfolio) ([]model.Matchup, error) {
	if week < 1 || (league.Settings.SeasonLength > 0 && week > league.Settings.SeasonLength) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeek, week)
	}

	pairs := Pairings(league.MemberIDs(), week)
	out := make([]model.Matchup, 0, len(pairs))
	for i, pair := range pairs {
		a, b := portfolios[pair[0]], portfolios[pair[1]]
		m := model.Matchup{
			ID:       fmt.Sprintf("%s-w%d-m%d", league.ID, week, i+1),
			LeagueID: league.ID,
			Week:     week,
			UserAID:  pair[0],
			UserBID:  pair[1],
			ScoreA:   Score(a, league.Settings.ScoringMethod),
			ScoreB:   Score(b, league.Settings.ScoringMethod),
		}
		if a != nil {
			m.UserAPortfolioName = a.Name
		}
		if b != nil {
			m.UserBPortfolioName = b.Name
		}
		if u := league.Member(pair[0]); u != nil {
			m.UserAAvatar = u.Avatar
		}
		if u := league.Member(pair[1]); u != nil {
			m.UserBAvatar = u.Avatar
		}
		if week < league.CurrentWeek {
			switch m.ScoreA.Cmp(m.ScoreB) {
			case 1:
				m.WinnerID = m.UserAID
			case -1:
				m.WinnerID = m.UserBID
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ForUser returns the matchup userID plays in week.
func ForUser(league *model.League, week int, userID string, portfolios map[string]*model.Portfolio) (model.Matchup, error) {
	all, err := Week(league, week, portfolios)
	if err != nil {
		return model.Matchup{}, err
	}
	for _, m := range all {
		if m.UserAID == userID || m.UserBID == userID {
			return m, nil
		}
	}
	return model.Matchup{}, fmt.Errorf("%w: %s week %d", ErrNotFound, userID, week)
}

// Standings ranks members by total return, then by total value. Members
// without a portfolio show zero values.
func Standings(league *model.League, portfolios map[string]*model.Portfolio) []model.Standing {
	rows := make([]model.Standing, 0, len(league.Members))
	for _, u := range league.Members {
		row := model.Standing{UserID: u.ID, Name: u.Name}
		if p := portfolios[u.ID]; p != nil {
			row.PortfolioName = p.Name
			row.TotalValue = p.TotalValue
			row.ReturnPercent = portfolio.ReturnPercent(p).Round(2)
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b model.Standing) int {
		if c := b.ReturnPercent.Cmp(a.ReturnPercent); c != 0 {
			return c
		}
		if c := b.TotalValue.Cmp(a.TotalValue); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
