// Package api exposes the import pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/calculator"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/config"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/importer"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/sheet"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/store"
)

// Handler API handler. Sessions are held in memory; the store keeps the
// audit trail.
type Handler struct {
	coordinator *importer.Coordinator
	store       *store.Store

	cfg   *config.AppConfig
	cfgMu sync.RWMutex

	sessions   map[string]*importer.Session
	sessionsMu sync.RWMutex
}

// NewHandler creates the API handler. st may be nil in tests.
func NewHandler(coordinator *importer.Coordinator, st *store.Store, cfg *config.AppConfig) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       st,
		cfg:         cfg,
		sessions:    make(map[string]*importer.Session),
	}
}

// RegisterRoutes registers all endpoints on the given group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	router.POST("/imports", h.CreateImport)
	router.GET("/imports/:id", h.GetImport)
	router.POST("/imports/:id/process", h.ProcessImport)
	router.PATCH("/imports/:id/selection", h.UpdateSelection)
	router.POST("/imports/:id/confirm", h.ConfirmImport)
}

// GetConfig current configuration.
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	h.cfgMu.RLock()
	cfg := *h.cfg
	h.cfgMu.RUnlock()
	c.JSON(http.StatusOK, cfg)
}

type configUpdateRequest struct {
	BillingRatePerHour    *float64 `json:"billingRatePerHour"`
	ActualCostRatePerHour *float64 `json:"actualCostRatePerHour"`
}

// UpdateConfig changes labor rates, persists them, and applies them to
// subsequent processing.
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	rates := calculator.LaborRates{
		BillingRatePerHour:    h.cfg.Rates.BillingRatePerHour,
		ActualCostRatePerHour: h.cfg.Rates.ActualCostRatePerHour,
	}
	if req.BillingRatePerHour != nil {
		rates.BillingRatePerHour = *req.BillingRatePerHour
	}
	if req.ActualCostRatePerHour != nil {
		rates.ActualCostRatePerHour = *req.ActualCostRatePerHour
	}

	if err := h.coordinator.UpdateRates(rates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.cfg.Rates.BillingRatePerHour = rates.BillingRatePerHour
	h.cfg.Rates.ActualCostRatePerHour = rates.ActualCostRatePerHour
	if err := config.SaveConfig(h.cfg); err != nil {
		log.Warn().Err(err).Msg("config save failed")
	}

	c.JSON(http.StatusOK, h.cfg.Rates)
}

// GetStatus system status.
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	h.sessionsMu.RLock()
	active := len(h.sessions)
	h.sessionsMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"activeSessions": active,
		"time":           time.Now().Format(time.RFC3339),
	})
}

// CreateImport accepts an uploaded spreadsheet and creates a session.
// POST /api/imports
func (h *Handler) CreateImport(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	uploaded := files[0]

	// Uploads are kept in the data dir so a rejected or disputed import can
	// be inspected later.
	uploadName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(uploaded.Filename))
	h.cfgMu.RLock()
	uploadPath := config.GetDataPath(h.cfg, "uploads", uploadName)
	h.cfgMu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(uploadPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}
	if err := c.SaveUploadedFile(uploaded, uploadPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}

	rows, err := sheet.ReadRows(uploadPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.coordinator.Upload(uploaded.Filename, rows)
	if err != nil {
		var formatErr *importer.FormatNotRecognizedError
		switch {
		case errors.As(err, &formatErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          formatErr.Error(),
				"missingColumns": formatErr.MissingColumns,
				"confidence":     formatErr.Confidence,
			})
		case errors.Is(err, importer.ErrEmptyInput):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.sessionsMu.Lock()
	h.sessions[session.ID] = session
	h.sessionsMu.Unlock()

	c.JSON(http.StatusCreated, session.Snapshot())
}

// GetImport returns the session, its items, and summary.
// GET /api/imports/:id
func (h *Handler) GetImport(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// ProcessImport runs classification and calculation on an uploaded session.
// POST /api/imports/:id/process
func (h *Handler) ProcessImport(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	err := h.coordinator.Process(c.Request.Context(), session)
	if err != nil {
		var unavailable *importer.OracleUnavailableError
		var malformed *importer.OracleMalformedError
		switch {
		case errors.Is(err, importer.ErrSessionState):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &malformed):
			// upstream answered with garbage
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		case errors.As(err, &unavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, context.Canceled):
			c.JSON(499, gin.H{"error": "request cancelled"})
		default:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
}

type selectionRequest struct {
	Indexes []int `json:"indexes"`
}

// UpdateSelection replaces the selected item set during review.
// PATCH /api/imports/:id/selection
func (h *Handler) UpdateSelection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.coordinator.SetSelection(session, req.Indexes); err != nil {
		if errors.Is(err, importer.ErrSessionState) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"selected": session.SelectedIndexes()})
}

// ConfirmImport finalizes the session and returns estimate line items.
// POST /api/imports/:id/confirm
func (h *Handler) ConfirmImport(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	items, err := h.coordinator.Confirm(session)
	if err != nil {
		if errors.Is(err, importer.ErrSessionState) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	log.Info().Str("session", session.ID).Int("items", len(items)).Msg("estimate items returned")
	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"items":     items,
	})
}

func (h *Handler) session(c *gin.Context) (*importer.Session, bool) {
	id := c.Param("id")
	h.sessionsMu.RLock()
	session, ok := h.sessions[id]
	h.sessionsMu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return session, true
}
