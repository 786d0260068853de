package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anoa.com/storerating/internal/config"
	"anoa.com/storerating/internal/metrics"
	"anoa.com/storerating/internal/middleware"
	"anoa.com/storerating/internal/policy"
	"anoa.com/storerating/internal/scheduler"
	"anoa.com/storerating/pkg/ratelimiter"
	"anoa.com/storerating/pkg/validator"

	adminHttp "anoa.com/storerating/internal/modules/admin/delivery/http"
	adminService "anoa.com/storerating/internal/modules/admin/service"

	ratingHttp "anoa.com/storerating/internal/modules/rating/delivery/http"
	ratingRepo "anoa.com/storerating/internal/modules/rating/repository"
	ratingService "anoa.com/storerating/internal/modules/rating/service"

	searchService "anoa.com/storerating/internal/modules/search/service"

	statHttp "anoa.com/storerating/internal/modules/stat/delivery/http"
	statService "anoa.com/storerating/internal/modules/stat/service"

	storeHttp "anoa.com/storerating/internal/modules/store/delivery/http"
	storeRepo "anoa.com/storerating/internal/modules/store/repository"
	storeService "anoa.com/storerating/internal/modules/store/service"

	userHttp "anoa.com/storerating/internal/modules/user/delivery/http"
	userRepo "anoa.com/storerating/internal/modules/user/repository"
	userService "anoa.com/storerating/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	scheduler   *scheduler.Scheduler
	log         logrus.FieldLogger
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log logrus.FieldLogger) (*Server, error) {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterGinRules(); err != nil {
		return nil, fmt.Errorf("register validation rules: %w", err)
	}

	m := metrics.New()

	userRepo := userRepo.NewUserRepository(db)
	storeRepo := storeRepo.NewStoreRepository(db)
	ratingRepo := ratingRepo.NewRatingRepository(db)

	meiliSvc := searchService.NewMeiliSearchService(
		searchService.NewClient(cfg.MeiliSearchHost, cfg.MeiliMasterKey),
		log.WithField("component", "search"),
	)
	if !meiliSvc.Enabled() {
		log.Warn("MEILISEARCH_HOST not set, store search uses the database")
	}

	statSvc := statService.NewStatService(userRepo, storeRepo, ratingRepo, redisClient, cfg.StatsCacheTTL, log.WithField("component", "stats"))
	statHandler := statHttp.NewStatHandler(statSvc)

	ratingSvc := ratingService.NewRatingService(
		ratingRepo,
		ratingService.NewRedisPublisher(redisClient),
		statSvc,
		meiliSvc,
		m,
		log.WithField("component", "ratings"),
	)
	ratingHandler := ratingHttp.NewRatingHandler(ratingSvc, redisClient, log.WithField("component", "ratings"))

	tokens := userService.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := userService.NewAuthService(userRepo, tokens, statSvc, log.WithField("component", "auth"))
	authHandler := userHttp.NewAuthHandler(authSvc)

	storeSvc := storeService.NewStoreService(storeRepo, userRepo, ratingRepo, meiliSvc, statSvc, log.WithField("component", "stores"))
	storeHandler := storeHttp.NewStoreHandler(storeSvc)

	adminSvc := adminService.NewAdminService(userRepo, storeRepo, ratingSvc, meiliSvc, statSvc, log.WithField("component", "admin"))
	adminHandler := adminHttp.NewAdminHandler(adminSvc)

	jobs := scheduler.New(log.WithField("component", "scheduler"))
	if err := jobs.Register(scheduler.NewReconcileJob(ratingSvc, cfg.ReconcileSchedule, log.WithField("component", "reconcile"))); err != nil {
		return nil, err
	}

	authLimiter := ratelimiter.New(redisClient, cfg.RateLimitAuth, cfg.RateLimitWindow)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log, "/health", "/metrics"))
	router.Use(m.Middleware())

	router.GET("/health", healthCheck(db, redisClient))
	router.GET("/metrics", m.Handler())

	authMiddleware := middleware.NewAuthMiddleware(userRepo, tokens)
	authorize := middleware.Authorize

	api := router.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	{
		limited := auth.Group("")
		limited.Use(middleware.RateLimit(authLimiter, "auth", log))
		limited.POST("/register", authorize(policy.ActionRegister), authHandler.Register)
		limited.POST("/login", authorize(policy.ActionLogin), authHandler.Login)

		auth.GET("/profile", authMiddleware.RequireAuth(), authorize(policy.ActionViewProfile), authHandler.Profile)
		auth.PUT("/password", authMiddleware.RequireAuth(), authorize(policy.ActionUpdatePassword), authHandler.UpdatePassword)
	}

	// Public store routes, the caller is identified when a token is sent
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/stores", authorize(policy.ActionListStores), storeHandler.ListStores)
		public.GET("/stores/search", authorize(policy.ActionSearchStores), storeHandler.SearchStores)
		public.GET("/stores/:id", authorize(policy.ActionViewStore), storeHandler.GetStore)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Store owner routes
		protected.GET("/stores/owned", authorize(policy.ActionViewOwnedStores), storeHandler.OwnedStores)
		protected.GET("/stores/:id/ratings", authorize(policy.ActionViewStoreRatings), ratingHandler.ListStoreRatings)
		protected.GET("/stores/:id/ratings/live", authorize(policy.ActionViewStoreRatings), ratingHandler.LiveFeed)

		// Rating routes
		protected.POST("/ratings", authorize(policy.ActionSubmitRating), ratingHandler.SubmitRating)
		protected.GET("/ratings/mine", authorize(policy.ActionListOwnRatings), ratingHandler.ListMyRatings)
		protected.DELETE("/ratings/:id", authorize(policy.ActionDeleteOwnRating), ratingHandler.DeleteRating)

		// Admin routes
		protected.POST("/stores", authorize(policy.ActionCreateStore), storeHandler.CreateStore)
		protected.PUT("/stores/:id", authorize(policy.ActionUpdateStore), storeHandler.UpdateStore)
		protected.DELETE("/stores/:id", authorize(policy.ActionDeleteStore), storeHandler.DeleteStore)

		protected.GET("/users/dashboard/stats", authorize(policy.ActionViewDashboard), statHandler.GetDashboardStats)
		protected.GET("/users", authorize(policy.ActionListUsers), adminHandler.GetAllUsers)
		protected.POST("/users", authorize(policy.ActionCreateUser), adminHandler.CreateUser)
		protected.GET("/users/:id", authorize(policy.ActionViewUser), adminHandler.GetUser)
		protected.PUT("/users/:id", authorize(policy.ActionUpdateUser), adminHandler.UpdateUser)
		protected.DELETE("/users/:id", authorize(policy.ActionDeleteUser), adminHandler.DeleteUser)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		engine:      router,
		httpServer:  httpServer,
		db:          db,
		redisClient: redisClient,
		scheduler:   jobs,
		log:         log,
	}, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts background jobs and serves until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.scheduler.Start()
	s.httpServer.Addr = addr

	s.log.WithField("addr", addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.scheduler.Stop(ctx)
	return err
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func healthCheck(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		code := http.StatusOK

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			status["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
				code = http.StatusServiceUnavailable
			}
		}

		if code == http.StatusOK {
			status["status"] = "ok"
		} else {
			status["status"] = "degraded"
		}
		c.JSON(code, status)
	}
}
