// Package server assembles the HTTP server: router, middleware, storage,
// and the import pipeline.
package server

import (
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/api"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/calculator"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/config"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/importer"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/oracle"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/retry"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/store"
)

// Server HTTP server.
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
}

// NewServer wires storage, the classifier, and the API handler.
func NewServer(cfg *config.AppConfig) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "costimport.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		return nil, err
	}

	classifier, err := oracle.NewClient(oracle.ClientConfig{
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		sqliteStore.Close()
		return nil, err
	}

	rates := calculator.LaborRates{
		BillingRatePerHour:    cfg.Rates.BillingRatePerHour,
		ActualCostRatePerHour: cfg.Rates.ActualCostRatePerHour,
	}
	retryCfg := retry.Config{
		MaxRetries: cfg.Oracle.MaxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	}

	coordinator, err := importer.NewCoordinator(classifier, rates, sqliteStore, retryCfg)
	if err != nil {
		sqliteStore.Close()
		return nil, err
	}

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		api:    api.NewHandler(coordinator, sqliteStore, cfg),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}
}

// Run starts the server.
func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("server listening")
	return s.router.Run(addr)
}

// Close releases server resources.
func (s *Server) Close() error {
	return s.store.Close()
}
