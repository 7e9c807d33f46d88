// Package handlers exposes the monitoring control surface over HTTP: on-demand
// analysis, live-monitor lifecycle, entity registration, and the WebSocket
// event feed.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamepop/fin-x-watcher/internal/analysis"
	"github.com/gamepop/fin-x-watcher/internal/metrics"
	"github.com/gamepop/fin-x-watcher/internal/monitor"
	"github.com/gamepop/fin-x-watcher/internal/websocket"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
)

// Handlers carries the wired collaborators for the HTTP surface.
type Handlers struct {
	pipeline *analysis.Pipeline
	monitor  *monitor.Monitor
	hub      *websocket.Hub
	metrics  *metrics.Metrics
	breaker  func() (string, int, time.Time)
	logger   logging.Logger
}

// Config wires the handlers. Metrics and breaker are optional.
type Config struct {
	Pipeline *analysis.Pipeline
	Monitor  *monitor.Monitor
	Hub      *websocket.Hub
	Metrics  *metrics.Metrics
	Breaker  func() (string, int, time.Time)
	Logger   logging.Logger
}

// New creates the handler set.
func New(cfg Config) *Handlers {
	return &Handlers{
		pipeline: cfg.Pipeline,
		monitor:  cfg.Monitor,
		hub:      cfg.Hub,
		metrics:  cfg.Metrics,
		breaker:  cfg.Breaker,
		logger:   cfg.Logger,
	}
}

// RegisterRoutes attaches the control surface to the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.POST("/analyze", h.Analyze)
	router.GET("/institutions", h.Institutions)

	mon := router.Group("/monitor")
	{
		mon.POST("/start", h.StartMonitor)
		mon.POST("/stop", h.StopMonitor)
		mon.GET("/status", h.MonitorStatus)
		mon.POST("/entities", h.AddEntity)
		mon.POST("/analyze-buffer", h.AnalyzeBuffer)
	}

	router.GET("/ws", func(c *gin.Context) {
		h.hub.ServeWS(c.Writer, c.Request)
	})
}

type analyzeRequest struct {
	Entity string `json:"entity" binding:"required"`
}

// Analyze runs one on-demand risk assessment.
func (h *Handlers) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity is required"})
		return
	}

	start := time.Now()
	report, err := h.pipeline.Analyze(c.Request.Context(), req.Entity)
	if err != nil {
		var authErr *clients.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "upstream authentication failed"})
			return
		}
		h.logger.WithFields(logging.Fields{
			"entity": req.Entity,
			"error":  err.Error(),
		}).Error("Analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	if h.metrics != nil {
		deliveryStatus := ""
		if report.Delivery != nil {
			deliveryStatus = string(report.Delivery.Status)
		}
		h.metrics.ObserveReport(report.Entity.Name, string(report.Verdict.RiskLevel),
			time.Since(start).Seconds(), report.Verdict.PostCount, deliveryStatus)
		if report.Verdict.RiskLevel == models.RiskUnknown {
			source := report.Verdict.DataSource
			if source == "" {
				source = "unknown"
			}
			h.metrics.ClassifierFailures.WithLabelValues(source).Inc()
		}
	}

	c.JSON(http.StatusOK, report)
}

// Institutions lists the registered institutions and their categories.
func (h *Handlers) Institutions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"institutions": entities.KnownInstitutions()})
}

type startRequest struct {
	Entities []string `json:"entities" binding:"required,min=1"`
}

// StartMonitor installs stream rules and starts the live watch.
func (h *Handlers) StartMonitor(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entities list is required"})
		return
	}

	if err := h.monitor.Start(c.Request.Context(), req.Entities); err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "monitor already running"})
			return
		}
		h.logger.WithError(err).Error("Failed to start monitor")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "started", "entities": req.Entities})
}

// StopMonitor halts the live watch.
func (h *Handlers) StopMonitor(c *gin.Context) {
	if err := h.monitor.Stop(); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "monitor not running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// MonitorStatus reports monitor, hub and breaker state.
func (h *Handlers) MonitorStatus(c *gin.Context) {
	status := gin.H{"monitor": h.monitor.Status()}
	if h.hub != nil {
		status["websocket"] = h.hub.GetStats()
	}
	if h.breaker != nil {
		state, failures, lastFailure := h.breaker()
		breaker := gin.H{"state": state, "failure_count": failures}
		if !lastFailure.IsZero() {
			breaker["last_failure"] = lastFailure.UTC()
		}
		status["circuit_breaker"] = breaker
	}
	c.JSON(http.StatusOK, status)
}

type addEntityRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddEntity registers another institution with the live monitor.
func (h *Handlers) AddEntity(c *gin.Context) {
	var req addEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	entity, err := h.monitor.AddEntity(c.Request.Context(), req.Name)
	if err != nil {
		h.logger.WithError(err).Error("Failed to add entity")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entity)
}

// AnalyzeBuffer classifies the monitor's buffered posts as one batch.
func (h *Handlers) AnalyzeBuffer(c *gin.Context) {
	verdict, err := h.monitor.AnalyzeBuffer(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}
