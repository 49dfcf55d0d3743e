package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/recipe-app/apiserver/config"
	"github.com/recipe-app/apiserver/internal/db"
	"github.com/recipe-app/apiserver/internal/handlers"
	"github.com/recipe-app/apiserver/internal/logging"
	"github.com/recipe-app/apiserver/internal/metrics"
	"github.com/recipe-app/apiserver/internal/mq"
	"github.com/recipe-app/apiserver/internal/ratelimit"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/internal/storage"
	"github.com/recipe-app/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	storage    *storage.Storage
	queue      *mq.MQ
	redis      *redis.Client
	log        *logrus.Logger
}

// Dependencies are the collaborators the router serves.
type Dependencies struct {
	Users       *services.UserService
	Auth        *services.AuthService
	Tags        *services.TagService
	Ingredients *services.IngredientService
	Recipes     *services.RecipeService
	Images      *services.ImageService
	Limiter     *ratelimit.Limiter
	DB          handlers.Pinger
	Logger      *logrus.Logger
}

// New connects every backing service and constructs the Server.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{log: logger}
	if err := s.connect(ctx, cfg); err != nil {
		s.closeBackends()
		return nil, err
	}

	var publisher services.Publisher
	if s.queue != nil {
		publisher = s.queue
	}

	userService := services.NewUserService(store.NewUserRepository(s.db), cfg.Auth.MinPasswordLen)
	authService := services.NewAuthService(userService, store.NewTokenRepository(s.db), cfg.Auth.JWTSecret)
	tagService := services.NewTagService(store.NewTagRepository(s.db))
	ingredientService := services.NewIngredientService(store.NewIngredientRepository(s.db))

	recipeRepo := store.NewRecipeRepository(s.db)
	events := services.NewEventPublisher(publisher, logger)
	janitor := services.NewImageJanitor(s.storage, publisher, logger)
	recipeService := services.NewRecipeService(recipeRepo, tagService, ingredientService, janitor, events)
	imageService := services.NewImageService(
		recipeRepo,
		s.storage,
		janitor,
		events,
		logger,
		cfg.Media.BaseURL,
		cfg.Media.MaxUploadBytes,
	)

	var limiter *ratelimit.Limiter
	if s.redis != nil {
		limiter = ratelimit.NewLimiter(s.redis, cfg.RateLimit)
	}

	s.router = NewRouter(Dependencies{
		Users:       userService,
		Auth:        authService,
		Tags:        tagService,
		Ingredients: ingredientService,
		Recipes:     recipeService,
		Images:      imageService,
		Limiter:     limiter,
		DB:          s.db,
		Logger:      logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) connect(ctx context.Context, cfg config.Config) error {
	var err error
	if s.db, err = db.Open(ctx, cfg); err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if s.storage, err = storage.New(ctx, cfg.Storage); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if err := s.storage.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.storage.Bucket(), err)
	}

	if s.queue, err = mq.Open(ctx, cfg.MQ); err != nil {
		return fmt.Errorf("open mq: %w", err)
	}
	if s.queue == nil {
		s.log.Info("no mq backend configured, images are removed inline")
	}

	if cfg.RateLimit.Enabled {
		s.redis, err = ratelimit.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.log.WithError(err).Warn("redis unavailable, rate limiting disabled")
			s.redis = nil
		}
	}
	return nil
}

// NewRouter builds the chi router with middleware and every API route.
func NewRouter(deps Dependencies) *chi.Mux {
	authMiddleware := handlers.RequireAuth(deps.Auth)

	var tokenLimiter func(http.Handler) http.Handler
	if deps.Limiter != nil {
		tokenLimiter = ratelimit.Middleware(deps.Limiter, deps.Logger)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(deps.Logger),
		middleware.Recoverer,
		metrics.Middleware,
		middleware.StripSlashes,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	if deps.DB != nil {
		router.Get("/readyz", handlers.Readyz(deps.DB))
	}
	router.Handle("/metrics", metrics.Handler())
	router.Route("/media", func(r chi.Router) {
		handlers.MediaRouter(r, deps.Images)
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			handlers.UserRouter(r, deps.Users, deps.Auth, tokenLimiter)
		})
		r.Route("/recipe", func(r chi.Router) {
			r.Route("/tags", func(r chi.Router) {
				handlers.TagRouter(r, deps.Tags, authMiddleware)
			})
			r.Route("/ingredients", func(r chi.Router) {
				handlers.IngredientRouter(r, deps.Ingredients, authMiddleware)
			})
			r.Route("/recipes", func(r chi.Router) {
				handlers.RecipeRouter(r, deps.Recipes, deps.Images, authMiddleware)
			})
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, deps.Users, authMiddleware)
		})
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
