// Package draft implements the turn scheduler for league drafts: whose turn
// it is, how round and pick counters advance, and which assets remain.
//
// Functions operate on a *model.DraftState passed in by the caller; the
// package holds no state of its own. Every mutating function validates
// first and only then mutates, so a rejected call leaves the state untouched.
package draft

import (
	"errors"
	"strings"
	"time"

	"github.com/flit/fantasy-engine/internal/model"
)

var (
	// ErrNotPending is returned when starting a draft that already started.
	ErrNotPending = errors.New("draft: draft is not pending")

	// ErrNotActive is returned when picking or ticking a draft that is not running.
	ErrNotActive = errors.New("draft: draft is not active")

	// ErrNotPaused is returned when resuming a draft that is not paused.
	ErrNotPaused = errors.New("draft: draft is not paused")

	// ErrInvalidTurn is returned when a user picks out of turn.
	ErrInvalidTurn = errors.New("draft: not this user's turn")

	// ErrAssetUnavailable is returned when the asset was already picked or is
	// locked for the picking user.
	ErrAssetUnavailable = errors.New("draft: asset is unavailable")

	// ErrNoMembers is returned when a draft has nobody to pick.
	ErrNoMembers = errors.New("draft: league has no members")

	// ErrPoolTooSmall is returned when the league's eligible assets cannot
	// fill a single round.
	ErrPoolTooSmall = errors.New("draft: not enough eligible assets for one round")
)

// DefaultTimePerPick is the per-pick clock in seconds when the league sets none.
const DefaultTimePerPick = 60

// New builds a pending draft for the league. The member order is captured
// now; later membership changes do not affect a created draft.
func New(league *model.League) *model.DraftState {
	portfolioSize := league.Settings.PortfolioSize
	if portfolioSize < 1 {
		portfolioSize = 1
	}
	timePerPick := league.Settings.DraftTimePerPick
	if timePerPick <= 0 {
		timePerPick = DefaultTimePerPick
	}
	order := league.MemberIDs()

	return &model.DraftState{
		LeagueID:             league.ID,
		Status:               model.DraftPending,
		DraftType:            league.Settings.DraftType,
		Order:                order,
		TotalPicks:           len(order) * portfolioSize,
		TimePerPick:          timePerPick,
		Picks:                []model.DraftPick{},
		RemainingTimeSeconds: timePerPick,
	}
}

// Start moves a pending draft to active with the first member on the clock.
func Start(d *model.DraftState) error {
	if d.Status != model.DraftPending {
		return ErrNotPending
	}
	if len(d.Order) == 0 {
		return ErrNoMembers
	}
	d.Status = model.DraftActive
	d.CurrentRound = 1
	d.CurrentPickNumber = 1
	d.CurrentUserID = UserForPick(d, 1, 1)
	d.RemainingTimeSeconds = d.TimePerPick
	return nil
}

// FitToPool trims TotalPicks to the whole rounds that pool eligible assets
// can fill, so a draft never waits on assets that do not exist.
func FitToPool(d *model.DraftState, pool int) error {
	n := len(d.Order)
	if n == 0 {
		return ErrNoMembers
	}
	if pool < n {
		return ErrPoolTooSmall
	}
	if rounds := pool / n; rounds*n < d.TotalPicks {
		d.TotalPicks = rounds * n
	}
	return nil
}

// UserForPick returns the member picking at (round, pickNumber). Snake
// drafts reverse the order on even rounds; every other draft type rotates
// through the order the same way each round.
func UserForPick(d *model.DraftState, round, pickNumber int) string {
	n := len(d.Order)
	if n == 0 || pickNumber < 1 {
		return ""
	}
	idx := (pickNumber - 1) % n
	if d.DraftType == model.DraftTypeSnake && round%2 == 0 {
		idx = n - 1 - idx
	}
	return d.Order[idx]
}

// MakePick validates and records a pick for user, then advances the turn.
// The returned pick is the record appended to d.Picks.
func MakePick(d *model.DraftState, user *model.User, asset *model.Asset, now time.Time) (model.DraftPick, error) {
	if d.Status != model.DraftActive {
		return model.DraftPick{}, ErrNotActive
	}
	if user == nil || user.ID != d.CurrentUserID {
		return model.DraftPick{}, ErrInvalidTurn
	}
	if asset == nil || d.Picked(asset.ID) || asset.LockedFor(user) {
		return model.DraftPick{}, ErrAssetUnavailable
	}

	pick := model.DraftPick{
		Round:      d.CurrentRound,
		PickNumber: d.CurrentPickNumber,
		UserID:     user.ID,
		AssetID:    asset.ID,
		Timestamp:  now.UTC(),
	}
	d.Picks = append(d.Picks, pick)
	advance(d)
	return pick, nil
}

// advance moves the counters to the next pick. Once every pick is made the
// draft completes and CurrentUserID stays on the last picker.
func advance(d *model.DraftState) {
	d.CurrentPickNumber++
	if d.CurrentPickNumber > len(d.Order) {
		d.CurrentRound++
		d.CurrentPickNumber = 1
	}

	if len(d.Picks) >= d.TotalPicks {
		d.Status = model.DraftCompleted
		d.RemainingTimeSeconds = 0
		return
	}

	d.CurrentUserID = UserForPick(d, d.CurrentRound, d.CurrentPickNumber)
	d.RemainingTimeSeconds = d.TimePerPick
}

// Skip forfeits the pick of the member on the clock and passes the turn.
// The forfeited pick comes off TotalPicks, so the draft completes once the
// remaining picks are made.
func Skip(d *model.DraftState) error {
	if d.Status != model.DraftActive {
		return ErrNotActive
	}
	d.TotalPicks--
	advance(d)
	return nil
}

// Finish completes an active draft with the picks made so far.
func Finish(d *model.DraftState) error {
	if d.Status != model.DraftActive {
		return ErrNotActive
	}
	d.TotalPicks = len(d.Picks)
	d.Status = model.DraftCompleted
	d.RemainingTimeSeconds = 0
	return nil
}

// Available returns the assets not yet picked, optionally filtered by a
// case-insensitive substring of ticker or name. Order is preserved.
func Available(d *model.DraftState, assets []model.Asset, query string) []model.Asset {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if d.Picked(a.ID) {
			continue
		}
		if q != "" && !MatchesQuery(&a, q) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MatchesQuery reports whether the lowercase query is a substring of the
// asset's ticker or name.
func MatchesQuery(a *model.Asset, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(a.Ticker), lowerQuery) ||
		strings.Contains(strings.ToLower(a.Name), lowerQuery)
}

// Tick runs the pick clock down by elapsed seconds. It reports true when the
// clock of the member on the clock has run out.
func Tick(d *model.DraftState, elapsed int) (bool, error) {
	if d.Status != model.DraftActive {
		return false, ErrNotActive
	}
	d.RemainingTimeSeconds -= elapsed
	if d.RemainingTimeSeconds <= 0 {
		d.RemainingTimeSeconds = 0
		return true, nil
	}
	return false, nil
}

// Pause stops an active draft's clock.
func Pause(d *model.DraftState) error {
	if d.Status != model.DraftActive {
		return ErrNotActive
	}
	d.Status = model.DraftPaused
	return nil
}

// Resume restarts a paused draft with a fresh clock for the member on it.
func Resume(d *model.DraftState) error {
	if d.Status != model.DraftPaused {
		return ErrNotPaused
	}
	d.Status = model.DraftActive
	d.RemainingTimeSeconds = d.TimePerPick
	return nil
}

// PicksByUser groups picks by member, in pick order.
func PicksByUser(d *model.DraftState) map[string][]model.DraftPick {
	out := make(map[string][]model.DraftPick, len(d.Order))
	for _, p := range d.Picks {
		out[p.UserID] = append(out[p.UserID], p)
	}
	return out
}
