package fantasy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flit/fantasy-engine/internal/auth"
	"github.com/flit/fantasy-engine/internal/history"
	"github.com/flit/fantasy-engine/internal/matchup"
	"github.com/flit/fantasy-engine/internal/report"
)

// userRequest is the body of endpoints that only name the acting user.
type userRequest struct {
	UserID string `json:"userId"`
}

type joinRequest struct {
	JoinCode string `json:"joinCode"`
	UserID   string `json:"userId"`
}

type pickRequest struct {
	UserID  string `json:"userId"`
	AssetID string `json:"assetId"`
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body", ErrInvalidInput)
	}
	return nil
}

// actor returns the user a request acts for: the explicit id when given,
// else the authenticated user.
func actor(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if id, ok := auth.UserID(r.Context()); ok {
		return id
	}
	return ""
}

// queryUser reads ?userId=, falling back to the authenticated user.
func queryUser(r *http.Request) string {
	return actor(r, r.URL.Query().Get("userId"))
}

// --- users ---

func (s *Service) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := s.CreateUser(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Service) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	res, err := s.CompleteLesson(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	token, err := s.IssueToken(r.Context(), req.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": req.UserID})
}

// --- leagues ---

func (s *Service) handleListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.ListLeagues(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leagues)
}

func (s *Service) handleGetLeague(w http.ResponseWriter, r *http.Request) {
	l, err := s.GetLeague(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Service) handleCreateLeague(w http.ResponseWriter, r *http.Request) {
	var req CreateLeagueRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	req.AdminUserID = actor(r, req.AdminUserID)
	l, err := s.CreateLeague(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Service) handleStartLeague(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := s.StartLeague(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID)); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := s.JoinByCode(r.Context(), req.JoinCode, actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleLeaveLeague(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := s.LeaveLeague(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleAdvanceWeek(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	l, err := s.AdvanceWeek(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// --- draft ---

func (s *Service) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.GetDraft(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Service) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.StartDraft(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Service) handleMakePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	pick, err := s.MakePick(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID), req.AssetID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pick)
}

func (s *Service) handlePauseDraft(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.PauseDraft(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Service) handleResumeDraft(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.ResumeDraft(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Service) handleDraftAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.DraftableAssets(r.Context(), chi.URLParam(r, "leagueID"), queryUser(r), r.URL.Query().Get("search"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// --- portfolios ---

func (s *Service) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.GetPortfolio(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	frame, err := history.ParseTimeFrame(q.Get("frame"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	hq := HistoryQuery{Frame: frame}
	if v := q.Get("maxPoints"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "maxPoints must be a positive integer", http.StatusBadRequest)
			return
		}
		hq.MaxPoints = n
	}
	if v := q.Get("normalize"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "normalize must be true or false", http.StatusBadRequest)
			return
		}
		hq.Normalize = b
	}

	res, err := s.PortfolioHistory(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "userID"), hq)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.AllocateFunds(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.BuyStock(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleUpdateLineup(w http.ResponseWriter, r *http.Request) {
	var req LineupRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := s.UpdateLineup(r.Context(), chi.URLParam(r, "portfolioID"), req); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- market ---

func (s *Service) handleMarketAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.MarketAssets(r.Context(), chi.URLParam(r, "leagueID"), queryUser(r), r.URL.Query().Get("search"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// --- matchups ---

func (s *Service) handleCurrentMatchup(w http.ResponseWriter, r *http.Request) {
	m, err := s.CurrentMatchup(r.Context(), chi.URLParam(r, "leagueID"), queryUser(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleWeekMatchup returns the caller's matchup when userId is known,
// else every matchup of the week.
func (s *Service) handleWeekMatchup(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		writeErr(w, r, fmt.Errorf("%w: %q", matchup.ErrInvalidWeek, chi.URLParam(r, "week")))
		return
	}
	leagueID := chi.URLParam(r, "leagueID")

	if userID := queryUser(r); userID != "" {
		m, err := s.WeekMatchup(r.Context(), leagueID, week, userID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}
	all, err := s.WeekMatchups(r.Context(), leagueID, week)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Service) handleStandings(w http.ResponseWriter, r *http.Request) {
	l, rows, err := s.Standings(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, rows)
		return
	}

	data, err := report.Standings(l, rows)
	if err != nil {
		if errors.Is(err, report.ErrNoStandings) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="standings-%s.xlsx"`, l.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// --- trades ---

func (s *Service) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ListTrades(r.Context(), chi.URLParam(r, "leagueID"), r.URL.Query().Get("userId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Service) handleProposeTrade(w http.ResponseWriter, r *http.Request) {
	var req ProposeTradeRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	req.ProposerID = actor(r, req.ProposerID)
	t, err := s.ProposeTrade(r.Context(), chi.URLParam(r, "leagueID"), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleTradeAction builds the accept, reject and cancel handlers.
func (s *Service) handleTradeAction(action TradeAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		t, err := s.RespondToTrade(r.Context(), chi.URLParam(r, "tradeID"), actor(r, req.UserID), action)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// --- waivers ---

func (s *Service) handleListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.ListClaims(r.Context(), chi.URLParam(r, "leagueID"), r.URL.Query().Get("userId"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (s *Service) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req SubmitClaimRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	req.UserID = actor(r, req.UserID)
	c, err := s.SubmitClaim(r.Context(), chi.URLParam(r, "leagueID"), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Service) handleWaiverAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.WaiverAssets(r.Context(), chi.URLParam(r, "leagueID"), queryUser(r), r.URL.Query().Get("search"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Service) handleProcessWaivers(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	claims, err := s.ProcessWaivers(r.Context(), chi.URLParam(r, "leagueID"), actor(r, req.UserID))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}
