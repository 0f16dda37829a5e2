package server

import (
	"fmt"
	"net/http"
	"time"

	"ecommerce-api/internal/config"
	"ecommerce-api/internal/database"
	custommiddleware "ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"
	"ecommerce-api/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	dbService database.Service
}

func NewServer(cfg *config.Config, logger *zap.Logger, dbService database.Service) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env != "production"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Welcome endpoint
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"message": "Welcome to the Basic Ecommerce Platform",
		})
	})

	// Health check endpoint reports connectivity and pool statistics
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, dbService.Health())
	})

	// Initialize repositories
	db := dbService.DB()
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	// Initialize services
	tokenTTL := time.Duration(cfg.JWT.ExpiryHours) * time.Hour
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, tokenTTL)
	productService := service.NewProductService(productRepo)
	categoryService := service.NewCategoryService(categoryRepo)

	// Initialize handlers
	userHandler := transport.NewUserHandler(authService, logger)
	productHandler := transport.NewProductHandler(productService, logger)
	categoryHandler := transport.NewCategoryHandler(categoryService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware)
	categoryHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		dbService: dbService,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.dbService != nil {
		if err := s.dbService.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
