package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/boediario/boediario/internal/api/handlers"
	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, dbclient core.DbClient) *Server {
	items := handlers.NewItemsHandler(dbclient)
	summaries := handlers.NewSummariesHandler(dbclient)
	engagement := handlers.NewEngagementHandler(dbclient)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", items.ListItems)
		r.Get("/items/{identificador}", items.GetItem)
		r.Get("/items/{identificador}/related", items.RelatedItems)
		r.Get("/items/{identificador}/comments", engagement.ListComments)
		r.Post("/items/{identificador}/comments", engagement.AddComment)
		r.Post("/items/{identificador}/reactions", engagement.ToggleReaction)

		r.Get("/catalogs", items.Catalogs)

		r.Get("/resumen/dates", summaries.ListDates)
		r.Get("/resumen/{fecha}", summaries.GetDaily)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
