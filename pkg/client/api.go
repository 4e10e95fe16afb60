package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

type CreateUserRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

type CreateLeagueRequest struct {
	Name        string               `json:"name"`
	AdminUserID string               `json:"adminUserId"`
	Settings    model.LeagueSettings `json:"settings"`
}

type JoinResult struct {
	League     *model.League    `json:"league"`
	Membership model.Membership `json:"membership"`
}

type LeaveResult struct {
	Message       string `json:"message"`
	LeagueDeleted bool   `json:"leagueDeleted"`
}

type LessonResult struct {
	User          *model.User `json:"user"`
	Newly         bool        `json:"newly"`
	RewardedCount int         `json:"rewardedPortfolios"`
}

type ProposeTradeRequest struct {
	ProposerID      string   `json:"proposerId"`
	RecipientID     string   `json:"recipientId"`
	OfferedAssets   []string `json:"offeredAssets"`
	RequestedAssets []string `json:"requestedAssets"`
}

type ClaimRequest struct {
	UserID      string `json:"userId"`
	AssetID     string `json:"assetId"`
	DropAssetID string `json:"dropAssetId,omitempty"`
}

// HistoryOptions selects a chart window. Zero values use the server defaults.
type HistoryOptions struct {
	Frame     string
	MaxPoints int
	Normalize bool
}

type History struct {
	PortfolioID string                    `json:"portfolioId"`
	Frame       string                    `json:"frame"`
	Normalized  bool                      `json:"normalized"`
	Series      []model.PortfolioSnapshot `json:"series"`
	Benchmark   []model.PortfolioSnapshot `json:"benchmark"`
}

type userBody struct {
	UserID string `json:"userId"`
}

func leaguePath(leagueID string, rest string) string {
	return "/fantasy-leagues/" + url.PathEscape(leagueID) + rest
}

func userQuery(userID string, extra ...string) map[string]string {
	q := map[string]string{}
	if userID != "" {
		q["userId"] = userID
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			q[extra[i]] = extra[i+1]
		}
	}
	return q
}

// --- users ---

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPost, "/users", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	if ok, err := c.get(ctx, "/users/"+url.PathEscape(userID), nil, &u); !ok {
		return nil, err
	}
	return &u, nil
}

func (c *Client) CompleteLesson(ctx context.Context, userID, lessonID string) (*LessonResult, error) {
	var res LessonResult
	path := "/users/" + url.PathEscape(userID) + "/lessons/" + url.PathEscape(lessonID) + "/complete"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IssueToken requests a bearer token for userID. It does not install it;
// call SetToken for that.
func (c *Client) IssueToken(ctx context.Context, userID string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, userBody{userID}, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}

// --- leagues ---

func (c *Client) ListLeagues(ctx context.Context, userID string) ([]model.League, error) {
	var out []model.League
	if _, err := c.get(ctx, "/fantasy-leagues", userQuery(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetLeague(ctx context.Context, leagueID string) (*model.League, error) {
	var l model.League
	if ok, err := c.get(ctx, leaguePath(leagueID, ""), nil, &l); !ok {
		return nil, err
	}
	return &l, nil
}

func (c *Client) CreateLeague(ctx context.Context, req CreateLeagueRequest) (*model.League, error) {
	var l model.League
	if err := c.do(ctx, http.MethodPost, "/fantasy-leagues", nil, req, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) JoinByCode(ctx context.Context, joinCode, userID string) (*JoinResult, error) {
	body := map[string]string{"joinCode": joinCode, "userId": userID}
	var res JoinResult
	if err := c.do(ctx, http.MethodPost, "/fantasy-leagues/join-by-code", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) StartLeague(ctx context.Context, leagueID, userID string) error {
	return c.do(ctx, http.MethodPost, leaguePath(leagueID, "/start"), nil, userBody{userID}, nil)
}

func (c *Client) LeaveLeague(ctx context.Context, leagueID, userID string) (*LeaveResult, error) {
	var res LeaveResult
	if err := c.do(ctx, http.MethodDelete, leaguePath(leagueID, "/leave"), nil, userBody{userID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AdvanceWeek(ctx context.Context, leagueID, userID string) (*model.League, error) {
	var l model.League
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/advance-week"), nil, userBody{userID}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// --- draft ---

func (c *Client) GetDraft(ctx context.Context, leagueID string) (*model.DraftState, error) {
	var d model.DraftState
	if ok, err := c.get(ctx, leaguePath(leagueID, "/draft"), nil, &d); !ok {
		return nil, err
	}
	return &d, nil
}

func (c *Client) StartDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	return c.draftAction(ctx, leagueID, "/draft/start", userID)
}

func (c *Client) PauseDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	return c.draftAction(ctx, leagueID, "/draft/pause", userID)
}

func (c *Client) ResumeDraft(ctx context.Context, leagueID, userID string) (*model.DraftState, error) {
	return c.draftAction(ctx, leagueID, "/draft/resume", userID)
}

func (c *Client) draftAction(ctx context.Context, leagueID, path, userID string) (*model.DraftState, error) {
	var d model.DraftState
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, path), nil, userBody{userID}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) MakePick(ctx context.Context, leagueID, userID, assetID string) (*model.DraftPick, error) {
	body := map[string]string{"userId": userID, "assetId": assetID}
	var p model.DraftPick
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/draft/pick"), nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DraftAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	return c.assets(ctx, leaguePath(leagueID, "/draft/assets"), userID, search)
}

func (c *Client) assets(ctx context.Context, path, userID, search string) ([]model.Asset, error) {
	var out []model.Asset
	if _, err := c.get(ctx, path, userQuery(userID, "search", search), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- portfolios ---

func (c *Client) GetPortfolio(ctx context.Context, leagueID, userID string) (*model.Portfolio, error) {
	var p model.Portfolio
	if ok, err := c.get(ctx, leaguePath(leagueID, "/portfolio/"+url.PathEscape(userID)), nil, &p); !ok {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PortfolioHistory(ctx context.Context, leagueID, userID string, opts HistoryOptions) (*History, error) {
	q := map[string]string{}
	if opts.Frame != "" {
		q["frame"] = opts.Frame
	}
	if opts.MaxPoints > 0 {
		q["maxPoints"] = strconv.Itoa(opts.MaxPoints)
	}
	if opts.Normalize {
		q["normalize"] = "true"
	}
	var h History
	if ok, err := c.get(ctx, leaguePath(leagueID, "/portfolio/"+url.PathEscape(userID)+"/history"), q, &h); !ok {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Allocate(ctx context.Context, leagueID, userID string, class model.AssetClass, amount decimal.Decimal) (*model.Portfolio, error) {
	body := map[string]any{"assetClass": class, "amount": amount}
	var p model.Portfolio
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/portfolio/"+url.PathEscape(userID)+"/allocate"), nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) BuyStock(ctx context.Context, leagueID, userID, assetID string, shares decimal.Decimal) (*model.Portfolio, error) {
	body := map[string]any{"assetId": assetID, "shares": shares}
	var p model.Portfolio
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/portfolio/"+url.PathEscape(userID)+"/buy"), nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateLineup(ctx context.Context, portfolioID string, activeSlotIDs, benchSlotIDs []string) error {
	body := map[string][]string{"activeSlotIds": activeSlotIDs, "benchSlotIds": benchSlotIDs}
	return c.do(ctx, http.MethodPut, "/fantasy-portfolios/"+url.PathEscape(portfolioID)+"/lineup", nil, body, nil)
}

// --- market, matchups, standings ---

func (c *Client) MarketAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	return c.assets(ctx, leaguePath(leagueID, "/market/assets"), userID, search)
}

func (c *Client) CurrentMatchup(ctx context.Context, leagueID, userID string) (*model.Matchup, error) {
	var m model.Matchup
	if ok, err := c.get(ctx, leaguePath(leagueID, "/matchup/current"), userQuery(userID), &m); !ok {
		return nil, err
	}
	return &m, nil
}

func (c *Client) WeekMatchup(ctx context.Context, leagueID string, week int, userID string) (*model.Matchup, error) {
	var m model.Matchup
	if ok, err := c.get(ctx, leaguePath(leagueID, "/matchup/week/"+strconv.Itoa(week)), userQuery(userID), &m); !ok {
		return nil, err
	}
	return &m, nil
}

func (c *Client) WeekMatchups(ctx context.Context, leagueID string, week int) ([]model.Matchup, error) {
	var out []model.Matchup
	if _, err := c.get(ctx, leaguePath(leagueID, "/matchup/week/"+strconv.Itoa(week)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Standings(ctx context.Context, leagueID string) ([]model.Standing, error) {
	var out []model.Standing
	if _, err := c.get(ctx, leaguePath(leagueID, "/standings"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StandingsWorkbook downloads the standings as an xlsx file.
func (c *Client) StandingsWorkbook(ctx context.Context, leagueID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{}).
		SetQueryParam("format", "xlsx").
		Get(leaguePath(leagueID, "/standings"))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fallbackMessage, Err: err}
	}
	if resp.IsError() {
		if e := responseError(resp); e.Kind != KindNotFound {
			return nil, e
		}
		return nil, nil
	}
	return resp.Body(), nil
}

// --- trades ---

func (c *Client) ListTrades(ctx context.Context, leagueID, userID string) ([]model.Trade, error) {
	var out []model.Trade
	if _, err := c.get(ctx, leaguePath(leagueID, "/trades"), userQuery(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProposeTrade(ctx context.Context, leagueID string, req ProposeTradeRequest) (*model.Trade, error) {
	var t model.Trade
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/trades"), nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) AcceptTrade(ctx context.Context, tradeID, userID string) (*model.Trade, error) {
	return c.tradeAction(ctx, tradeID, "accept", userID)
}

func (c *Client) RejectTrade(ctx context.Context, tradeID, userID string) (*model.Trade, error) {
	return c.tradeAction(ctx, tradeID, "reject", userID)
}

func (c *Client) CancelTrade(ctx context.Context, tradeID, userID string) (*model.Trade, error) {
	return c.tradeAction(ctx, tradeID, "cancel", userID)
}

func (c *Client) tradeAction(ctx context.Context, tradeID, action, userID string) (*model.Trade, error) {
	var t model.Trade
	if err := c.do(ctx, http.MethodPost, "/fantasy-trades/"+url.PathEscape(tradeID)+"/"+action, nil, userBody{userID}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- waivers ---

func (c *Client) WaiverAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	return c.assets(ctx, leaguePath(leagueID, "/waivers/available"), userID, search)
}

func (c *Client) ListClaims(ctx context.Context, leagueID, userID string) ([]model.WaiverClaim, error) {
	var out []model.WaiverClaim
	if _, err := c.get(ctx, leaguePath(leagueID, "/waivers"), userQuery(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitClaim(ctx context.Context, leagueID string, req ClaimRequest) (*model.WaiverClaim, error) {
	var claim model.WaiverClaim
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/waivers"), nil, req, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

func (c *Client) ProcessWaivers(ctx context.Context, leagueID, userID string) ([]model.WaiverClaim, error) {
	var out []model.WaiverClaim
	if err := c.do(ctx, http.MethodPost, leaguePath(leagueID, "/waivers/process"), nil, userBody{userID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
