package fantasy

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the fantasy API on r. Callers mount r under /api/v1.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/users", s.handleCreateUser)
	r.Get("/users/{userID}", s.handleGetUser)
	r.Post("/users/{userID}/lessons/{lessonID}/complete", s.handleCompleteLesson)
	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/fantasy-leagues", func(r chi.Router) {
		r.Get("/", s.handleListLeagues)
		r.Post("/", s.handleCreateLeague)
		r.Post("/join-by-code", s.handleJoinByCode)

		r.Route("/{leagueID}", func(r chi.Router) {
			r.Get("/", s.handleGetLeague)
			r.Post("/start", s.handleStartLeague)
			r.Delete("/leave", s.handleLeaveLeague)
			r.Post("/advance-week", s.handleAdvanceWeek)

			// Draft room.
			r.Get("/draft", s.handleGetDraft)
			r.Post("/draft/start", s.handleStartDraft)
			r.Post("/draft/pick", s.handleMakePick)
			r.Post("/draft/pause", s.handlePauseDraft)
			r.Post("/draft/resume", s.handleResumeDraft)
			r.Get("/draft/assets", s.handleDraftAssets)
			r.Get("/draft/ws", s.DraftWS)

			r.Get("/portfolio/{userID}", s.handleGetPortfolio)
			r.Get("/portfolio/{userID}/history", s.handlePortfolioHistory)
			r.Post("/portfolio/{userID}/allocate", s.handleAllocate)
			r.Post("/portfolio/{userID}/buy", s.handleBuy)

			r.Get("/market/assets", s.handleMarketAssets)

			r.Get("/matchup/current", s.handleCurrentMatchup)
			r.Get("/matchup/week/{week}", s.handleWeekMatchup)
			r.Get("/standings", s.handleStandings)

			r.Get("/trades", s.handleListTrades)
			r.Post("/trades", s.handleProposeTrade)

			r.Get("/waivers", s.handleListClaims)
			r.Post("/waivers", s.handleSubmitClaim)
			r.Get("/waivers/available", s.handleWaiverAssets)
			r.Post("/waivers/process", s.handleProcessWaivers)
		})
	})

	r.Put("/fantasy-portfolios/{portfolioID}/lineup", s.handleUpdateLineup)

	r.Post("/fantasy-trades/{tradeID}/accept", s.handleTradeAction(TradeAccept))
	r.Post("/fantasy-trades/{tradeID}/reject", s.handleTradeAction(TradeReject))
	r.Post("/fantasy-trades/{tradeID}/cancel", s.handleTradeAction(TradeCancel))
}
