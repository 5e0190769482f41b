// Package handler is the serverless entry point. All API endpoints are
// managed by a single Chi router so the whole backend deploys as one
// function.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/ai"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/handlers"
	customMiddleware "taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/utils"
)

var (
	routerOnce sync.Once
	router     *chi.Mux
	routerErr  error
)

// Handler is the function entry point. The router, store, realtime hub
// and AI service are built once per cold start and reused across warm
// invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	routerOnce.Do(func() {
		router, routerErr = buildRouter(config.GetCached())
	})
	if routerErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+routerErr.Error())
		return
	}
	router.ServeHTTP(w, r)
}

// NewRouter builds a fresh router for the local server binary.
func NewRouter(cfg *config.Config) (http.Handler, error) {
	return buildRouter(cfg)
}

func buildRouter(cfg *config.Config) (*chi.Mux, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := database.GetStore(database.StoreConfig{
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub()

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, genErr := ai.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if genErr != nil {
			log.Warn().Err(genErr).Msg("Gemini client unavailable, AI endpoints will use fallback")
		} else {
			gen = g
		}
	}
	aiService := ai.NewService(store, gen)

	r := chi.NewRouter()
	setupMiddleware(r, cfg)
	setupRoutes(r, cfg, store, hub, aiService)
	return r, nil
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	// Serverless functions have a hard time limit, keep a buffer.
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, store database.Store, hub *realtime.Hub, aiService *ai.Service) {
	workspacesHandler := handlers.NewWorkspacesHandler(cfg, store)
	tasksHandler := handlers.NewTasksHandler(cfg, store, hub)
	commentsHandler := handlers.NewCommentsHandler(cfg, store, hub)
	mentionsHandler := handlers.NewMentionsHandler(cfg, store)
	recurringHandler := handlers.NewRecurringHandler(cfg, store, hub)
	dashboardHandler := handlers.NewDashboardHandler(cfg, store)
	aiHandler := handlers.NewAIHandler(cfg, store, aiService)

	// Health check endpoint
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := store.HealthCheck(); err != nil {
			status = "degraded"
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"service": "taskboard-backend",
			"status":  status,
			"time":    time.Now().UTC(),
		})
	})

	router.Route("/api", func(r chi.Router) {
		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)

			// Realtime bridge. Clients subscribe to topics over one socket.
			r.Get("/realtime/ws", func(w http.ResponseWriter, req *http.Request) {
				user, ok := customMiddleware.GetUserFromContext(req.Context())
				if !ok {
					utils.WriteUnauthorizedResponse(w, "Authentication required")
					return
				}
				realtime.ServeWS(hub, user, w, req)
			})

			// Body-addressed AI entry points matching the original
			// serverless function call shape.
			r.Route("/ai", func(r chi.Router) {
				r.Post("/analyze-risks", aiHandler.AnalyzeRisks)
				r.Post("/estimate", aiHandler.Estimate)
			})

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", workspacesHandler.List)
				r.Post("/", workspacesHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", workspacesHandler.Get)
					r.Put("/", workspacesHandler.Update)
					r.Delete("/", workspacesHandler.Delete)

					r.Get("/members", workspacesHandler.ListMembers)
					r.Put("/members/{userID}", workspacesHandler.UpdateMemberRole)
					r.Delete("/members/{userID}", workspacesHandler.RemoveMember)
					r.Post("/invitations", workspacesHandler.InviteMember)

					r.Get("/tasks", tasksHandler.List)
					r.Post("/tasks", tasksHandler.Create)
					r.Get("/completion-history", tasksHandler.ListCompletionHistory)

					r.Get("/mentions", mentionsHandler.List)
					r.Post("/mentions/read-all", mentionsHandler.MarkAllRead)

					r.Get("/recurring-patterns", recurringHandler.ListByWorkspace)
					r.Post("/recurring-patterns", recurringHandler.Create)

					r.Get("/widgets", dashboardHandler.ListWidgets)
					r.Post("/widgets", dashboardHandler.CreateWidget)
					r.Get("/workload/metrics", dashboardHandler.ListWorkloadMetrics)
					r.Get("/workload/forecasts", dashboardHandler.ListWorkloadForecasts)

					r.Route("/ai", func(r chi.Router) {
						r.Post("/analyze-risks", aiHandler.AnalyzeRisks)
						r.Post("/estimate", aiHandler.Estimate)
						r.Get("/assessments", aiHandler.ListAssessments)
						r.Get("/alerts", aiHandler.ListAlerts)
						r.Post("/alerts/{alertID}/resolve", aiHandler.ResolveAlert)
						r.Get("/patterns", aiHandler.ListPatterns)
						r.Get("/estimations", aiHandler.ListEstimations)
					})
				})
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", workspacesHandler.ListMyInvitations)
				r.Post("/accept", workspacesHandler.AcceptInvitation)
				r.Post("/decline", workspacesHandler.DeclineInvitation)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/{id}", tasksHandler.Get)
				r.Patch("/{id}", tasksHandler.Update)
				r.Delete("/{id}", tasksHandler.Delete)
			})

			r.Route("/comments", func(r chi.Router) {
				r.Get("/", commentsHandler.ListByEntity)
				r.Post("/", commentsHandler.Create)
				r.Put("/{id}", commentsHandler.Update)
				r.Delete("/{id}", commentsHandler.Delete)
				r.Get("/{id}/reactions", commentsHandler.ListReactions)
				r.Post("/{id}/reactions", commentsHandler.AddReaction)
				r.Delete("/{id}/reactions/{emoji}", commentsHandler.RemoveReaction)
			})

			r.Post("/mentions/{id}/read", mentionsHandler.MarkRead)

			r.Route("/recurring-patterns", func(r chi.Router) {
				r.Get("/{id}", recurringHandler.Get)
				r.Put("/{id}", recurringHandler.Update)
				r.Delete("/{id}", recurringHandler.Delete)
				r.Get("/{id}/preview", recurringHandler.Preview)
				r.Post("/{id}/generate", recurringHandler.Generate)
			})

			r.Put("/widgets/{id}", dashboardHandler.UpdateWidget)
			r.Delete("/widgets/{id}", dashboardHandler.DeleteWidget)

			r.Get("/preferences", dashboardHandler.GetPreferences)
			r.Put("/preferences", dashboardHandler.SavePreferences)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
