package election

import (
	"net/http"

	"github.com/IgrejaConnect/Election-Backend/internal/auth"
	"github.com/IgrejaConnect/Election-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := auth.SessionInfo{}

	r.Get("/catalog", CatalogHandler)

	// Voter surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))

		r.Get("/configs", ListConfigsHandler)
		r.Get("/config/{config_id}", GetConfigHandler)
		r.Get("/active", ActiveElectionHandler)
		r.Get("/voting/{config_id}", VotingViewHandler)
		r.Post("/nominate", NominateHandler)
		r.Post("/vote", VoteHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitMiddleware(modConfig.DashboardRate, modConfig.DashboardBurst))
			r.Get("/dashboard/{config_id}", DashboardHandler)
		})
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Use(middleware.AdminMiddleware(sessionFetcher))

		r.Post("/config", CreateConfigHandler)
		r.Delete("/config/{config_id}", DeleteConfigHandler)
		r.Post("/preview-candidates", PreviewCandidatesHandler)

		r.Post("/start", StartHandler)
		r.Post("/advance-phase", AdvancePhaseHandler)
		r.Post("/advance-position", AdvancePositionHandler)
		r.Post("/skip-position", SkipPositionHandler)
		r.Post("/reset-voting", ResetVotingHandler)
		r.Post("/set-max-nominations", SetMaxNominationsHandler)
		r.Post("/force-complete", ForceCompleteHandler)
		r.Post("/override-candidate", OverrideCandidateHandler)
		r.Get("/vote-log/{session_id}", VoteLogHandler)
	})

	return r
}
