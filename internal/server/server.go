// internal/server/server.go
package server

import (
	"librarydesk/internal/assistant"
	"librarydesk/internal/auth"
	"librarydesk/internal/backend"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/history"
	"librarydesk/internal/httpx"
	"librarydesk/internal/membership"
	"librarydesk/internal/notify"
	"librarydesk/internal/wishlist"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the collaborators the router is built from. Searcher, Generator
// and Cache are optional.
type Deps struct {
	Backend          backend.Backend
	Verifier         *auth.Verifier
	Searcher         catalog.Searcher
	Publisher        notify.Publisher
	Generator        assistant.Generator
	Cache            assistant.Cache
	AssistantOptions assistant.Options
	Logger           *zap.Logger
}

// Services are the domain services behind the router. They are exposed so
// the CLI can reuse them without going through HTTP.
type Services struct {
	Membership  membership.Service
	Catalog     catalog.Service
	Circulation circulation.Service
	Wishlist    wishlist.Service
	History     history.Service
	Assistant   assistant.Service
}

// NewServices wires every domain service onto the backend.
func NewServices(d Deps) *Services {
	circ := circulation.NewService(d.Backend, d.Publisher, d.Logger)
	cat := catalog.NewService(d.Backend, d.Searcher, d.Logger)
	return &Services{
		Membership:  membership.NewService(d.Backend, d.Logger),
		Catalog:     cat,
		Circulation: circ,
		Wishlist:    wishlist.NewService(d.Backend, cat, circ, d.Logger),
		History:     history.NewService(circ, d.Backend, cat, d.Logger),
		Assistant:   assistant.NewService(d.Generator, d.Cache, cat, circ, d.AssistantOptions, d.Logger),
	}
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps, svcs *Services) http.Handler {
	membershipHandler := membership.NewHandler(svcs.Membership)
	catalogHandler := catalog.NewHandler(svcs.Catalog, svcs.Circulation)
	circulationHandler := circulation.NewHandler(svcs.Circulation)
	wishlistHandler := wishlist.NewHandler(svcs.Wishlist, circulation.WriteActionError)
	historyHandler := history.NewHandler(svcs.History)
	assistantHandler := assistant.NewHandler(svcs.Assistant)

	requireCap := membership.RequireCapability

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(d.Verifier.Middleware(d.Logger))
		r.Use(membership.LoadProfile(svcs.Membership, d.Logger))

		r.Get("/me", membershipHandler.HandleMe)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", catalogHandler.HandleList)
			r.Get("/search", catalogHandler.HandleSearch)
			r.With(requireCap(membership.CapManageCatalog)).Post("/", catalogHandler.HandleAdd)

			r.Route("/{bookID}", func(r chi.Router) {
				r.Get("/", catalogHandler.HandleGet)
				r.With(requireCap(membership.CapManageCatalog)).Patch("/", catalogHandler.HandleUpdate)
				r.With(requireCap(membership.CapManageCatalog)).Delete("/", catalogHandler.HandleRemove)

				r.Get("/status", circulationHandler.HandleStatus)
				r.Group(func(r chi.Router) {
					r.Use(requireCap(membership.CapBorrowBooks))
					r.Post("/issue", circulationHandler.HandleIssue)
					r.Post("/return", circulationHandler.HandleReturn)
					r.Post("/renew", circulationHandler.HandleRenew)
				})

				r.Group(func(r chi.Router) {
					r.Use(requireCap(membership.CapUseAssistant))
					r.Get("/ai/description", assistantHandler.HandleDescription)
					r.Get("/ai/summary", assistantHandler.HandleSummary)
				})
			})
		})

		r.With(requireCap(membership.CapUseAssistant)).Get("/ai/recommendations", assistantHandler.HandleRecommendations)

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.HandleList)
			r.Post("/{bookID}", wishlistHandler.HandleAdd)
			r.Delete("/{bookID}", wishlistHandler.HandleRemove)
			r.Group(func(r chi.Router) {
				r.Use(requireCap(membership.CapBorrowBooks))
				r.Post("/{bookID}/issue", wishlistHandler.HandleIssue)
				r.Post("/{bookID}/return", wishlistHandler.HandleReturn)
			})
		})

		r.Get("/transactions", historyHandler.HandleMine)
		r.Get("/transactions/export.csv", historyHandler.HandleExport)

		r.Route("/admin", func(r chi.Router) {
			r.With(requireCap(membership.CapViewAllTransactions)).Get("/transactions", historyHandler.HandleAll)
			r.With(requireCap(membership.CapManageUsers)).Get("/users", membershipHandler.HandleListUsers)
			r.With(requireCap(membership.CapManageUsers)).Patch("/users/{userID}/role", membershipHandler.HandleChangeRole)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
