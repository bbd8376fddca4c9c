package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/keygate/keygate/internal/api/handlers"
	"github.com/keygate/keygate/internal/api/middleware"
	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/audit"
	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/github"
	"github.com/keygate/keygate/internal/identity"
	"github.com/keygate/keygate/internal/llm"
	"github.com/keygate/keygate/internal/queue"
	"github.com/keygate/keygate/internal/summarize"
)

type Router struct {
	mux     *chi.Mux
	db      *pgxpool.Pool
	redis   *redis.Client
	cfg     *config.Config
	session *auth.SessionMiddleware
	keys    *apikeys.Service
	gate    *apikeys.Gate
	audit   *audit.Service
	queue   *queue.Client
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	store := apikeys.NewPostgresStore(db)
	queueClient := queue.NewClient(cfg.Redis)
	keys := apikeys.NewService(store, queueClient)

	return &Router{
		mux:     chi.NewRouter(),
		db:      db,
		redis:   rdb,
		cfg:     cfg,
		session: auth.NewSessionMiddleware(cfg.Auth.JWTSecret, identity.NewService(db)),
		keys:    keys,
		gate:    apikeys.NewGate(keys),
		audit:   audit.NewService(db),
		queue:   queueClient,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	gw := llm.NewGateway(rt.cfg.LLM)
	summarizer := summarize.NewService(gw, cache.NewCache(rt.redis), rt.cfg.LLM.Model)
	githubClient := github.NewClient(rt.cfg.GitHub.APIBaseURL, rt.cfg.GitHub.Token)

	r.Route("/api/v1", func(r chi.Router) {
		// Dashboard CRUD surface, session-authenticated
		keysH := handlers.NewKeysHandler(rt.keys, rt.audit)
		r.Group(func(r chi.Router) {
			r.Use(rt.session.Authenticate)
			r.Route("/api-keys", func(r chi.Router) {
				r.Post("/", keysH.Create)
				r.Get("/", keysH.List)
				r.Get("/{id}", keysH.Get)
				r.Patch("/{id}", keysH.Update)
				r.Delete("/{id}", keysH.Delete)
				r.Get("/{id}/events", keysH.Events)
			})
		})

		// Quota-protected surface, API-key authenticated via the gate
		summarizeH := handlers.NewSummarizeHandler(rt.gate, githubClient, summarizer)
		r.Post("/github-summarizer", summarizeH.Summarize)
	})

	return r
}
