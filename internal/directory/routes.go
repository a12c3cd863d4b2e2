package directory

import (
	"net/http"

	"github.com/IgrejaConnect/Election-Backend/internal/auth"
	"github.com/IgrejaConnect/Election-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := auth.SessionInfo{}

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Get("/members", ListMembers)
		r.Get("/members/{member_id}", GetMember)
	})

	return r
}
