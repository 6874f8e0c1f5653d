// Package httpapi exposes the check coordinator and rule catalog over a
// JSON HTTP API.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/planwerk/check"
	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

// Handler handles HTTP requests for check orders and rules
type Handler struct {
	coordinator *check.Coordinator
	registry    *rules.Registry
	logger      *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(coordinator *check.Coordinator, registry *rules.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coordinator: coordinator,
		registry:    registry,
		logger:      logger,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/checks", h.CreateCheck)
	api.GET("/checks/:id", h.GetCheck)
	api.GET("/checks/:id/results", h.GetResults)
	api.DELETE("/checks/:id", h.CancelCheck)
	api.GET("/rules", h.ListRules)
	api.GET("/rules/:id", h.GetRule)
	api.PUT("/rules/:id", h.PutRule)
	api.DELETE("/rules/:id", h.DeleteRule)
}

// CreateCheckRequest represents the request body for starting a check
type CreateCheckRequest struct {
	Project   model.Project            `json:"project" binding:"required"`
	Documents []model.DocumentMetadata `json:"documents" binding:"required"`
}

// CreateCheck handles POST /api/checks
func (h *Handler) CreateCheck(c *gin.Context) {
	var req CreateCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	id, err := h.coordinator.StartCheck(c.Request.Context(), req.Project, req.Documents)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			fail(c, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error())
			return
		}
		fail(c, http.StatusInternalServerError, "START_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"order_id": id,
	})
}

// GetCheck handles GET /api/checks/:id
func (h *Handler) GetCheck(c *gin.Context) {
	status, err := h.coordinator.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, check.ErrNotFound) {
			fail(c, http.StatusNotFound, "NOT_FOUND", "Check order not found")
			return
		}
		fail(c, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status,
	})
}

// GetResults handles GET /api/checks/:id/results
func (h *Handler) GetResults(c *gin.Context) {
	order, err := h.coordinator.Results(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, check.ErrNotFound):
			fail(c, http.StatusNotFound, "NOT_FOUND", "Check order not found")
		case errors.Is(err, check.ErrNotReady):
			fail(c, http.StatusConflict, "NOT_READY", err.Error())
		default:
			fail(c, http.StatusInternalServerError, "RESULTS_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// CancelCheck handles DELETE /api/checks/:id
func (h *Handler) CancelCheck(c *gin.Context) {
	if err := h.coordinator.Cancel(c.Param("id")); err != nil {
		switch {
		case errors.Is(err, check.ErrNotFound):
			fail(c, http.StatusNotFound, "NOT_FOUND", "Check order not found")
		case errors.Is(err, check.ErrNotCancelable):
			fail(c, http.StatusConflict, "NOT_CANCELABLE", "Check order already finished")
		default:
			fail(c, http.StatusInternalServerError, "CANCEL_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListRules handles GET /api/rules
func (h *Handler) ListRules(c *gin.Context) {
	defs := h.registry.All()
	if trade := c.Query("trade"); trade != "" {
		filtered := defs[:0]
		for _, def := range defs {
			if def.Trade == model.Trade(trade) {
				filtered = append(filtered, def)
			}
		}
		defs = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": h.registry.Version(),
		"rules":   defs,
	})
}

// GetRule handles GET /api/rules/:id
func (h *Handler) GetRule(c *gin.Context) {
	def, ok := h.registry.Get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "NOT_FOUND", "Rule not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rule":    def,
	})
}

// PutRule handles PUT /api/rules/:id
func (h *Handler) PutRule(c *gin.Context) {
	var def rules.RuleDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if def.ID == "" {
		def.ID = c.Param("id")
	}
	if def.ID != c.Param("id") {
		fail(c, http.StatusBadRequest, "ID_MISMATCH", "Rule ID in body does not match URL")
		return
	}
	if err := def.Validate(); err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	if err := h.registry.Replace(def); err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	h.logger.Info("Rule replaced",
		slog.String("rule_id", def.ID),
		slog.Uint64("version", h.registry.Version()))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": h.registry.Version(),
	})
}

// DeleteRule handles DELETE /api/rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	if !h.registry.Remove(c.Param("id")) {
		fail(c, http.StatusNotFound, "NOT_FOUND", "Rule not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": h.registry.Version(),
	})
}

// fail writes the standard error envelope.
func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
