package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	conflictRepo "slotwise/database/repository/conflict"
	"slotwise/models"
	"slotwise/services/reservation"
	"slotwise/utils"
)

// AdminHandler exposes the operational surface: scheduler control, grace
// policy management, and conflict scanning and resolution.
type AdminHandler struct {
	Scheduler *reservation.ProgressionScheduler
	Grace     *reservation.GracePolicy
	Detector  *reservation.Detector
	Resolver  *reservation.Resolver
	Conflicts conflictRepo.ConflictRepository
	Clock     reservation.Clock
	Logger    *zap.Logger
}

// SchedulerStatusHandler reports the outcome of the most recent run.
func (h *AdminHandler) SchedulerStatusHandler(c *gin.Context) {
	last := h.Scheduler.Status()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"lastRun": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastRun": last})
}

// SchedulerRunNowHandler triggers an immediate progression run.
func (h *AdminHandler) SchedulerRunNowHandler(c *gin.Context) {
	metrics, err := h.Scheduler.RunNow(c.Request.Context())
	if errors.Is(err, reservation.ErrRunInFlight) {
		utils.JSONErrorCode(c, http.StatusConflict, "run_in_flight", "A progression run is already in flight", "")
		return
	}
	if err != nil {
		h.Logger.Error("manual progression run failed", zap.Error(err))
		utils.JSONErrorCode(c, http.StatusInternalServerError, "run_failed", "Progression run failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetGraceConfigHandler returns the current grace-window configuration.
func (h *AdminHandler) GetGraceConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Grace.Config())
}

// UpdateGraceConfigHandler swaps in a new grace-window configuration. The
// whole config is validated and applied atomically; a bad payload leaves the
// previous configuration untouched.
func (h *AdminHandler) UpdateGraceConfigHandler(c *gin.Context) {
	var cfg reservation.GraceConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Invalid grace configuration payload", err.Error())
		return
	}
	if err := h.Grace.Update(cfg); err != nil {
		utils.JSONErrorCode(c, http.StatusUnprocessableEntity, "policy_violation", "Grace configuration rejected", err.Error())
		return
	}
	h.Logger.Info("grace configuration updated")
	c.JSON(http.StatusOK, h.Grace.Config())
}

// ScanConflictsHandler sweeps a shop's calendar day for overlapping active
// reservations and records any clusters found as open conflicts.
func (h *AdminHandler) ScanConflictsHandler(c *gin.Context) {
	shopID := c.Query("shopId")
	date := c.Query("date")
	if shopID == "" || date == "" {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "shopId and date query parameters are required", "")
		return
	}

	records, err := h.Detector.ScanShop(c.Request.Context(), shopID, date, h.Clock.Now())
	if err != nil {
		h.Logger.Error("conflict scan failed", zap.String("shopID", shopID), zap.Error(err))
		utils.JSONErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", "Conflict scan failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"shopId": shopID, "date": date, "conflicts": records})
}

// ListConflictsHandler lists open conflict records, optionally per shop.
func (h *AdminHandler) ListConflictsHandler(c *gin.Context) {
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := h.Conflicts.ListOpen(c.Request.Context(), c.Query("shopId"), limit)
	if err != nil {
		utils.JSONErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", "Listing conflicts failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": records})
}

type resolveConflictRequest struct {
	Strategy models.ResolutionStrategy `json:"strategy" binding:"required"`
	Reason   string                    `json:"reason"`
}

// ResolveConflictHandler applies a resolution strategy to an open conflict.
func (h *AdminHandler) ResolveConflictHandler(c *gin.Context) {
	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Invalid resolution payload", err.Error())
		return
	}
	switch req.Strategy {
	case models.StrategyKeepWinner, models.StrategyRescheduleLosers, models.StrategySplit:
	default:
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Unknown resolution strategy", string(req.Strategy))
		return
	}

	rec, err := h.Resolver.Resolve(c.Request.Context(), c.Param("id"), req.Strategy, models.ActorAdmin, req.Reason)
	if err != nil {
		var notFound *reservation.NotFoundError
		var transient *reservation.TransientStoreError
		switch {
		case errors.As(err, &notFound):
			utils.JSONErrorCode(c, http.StatusNotFound, "not_found", "Conflict not found", err.Error())
		case errors.As(err, &transient):
			utils.JSONErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", "Resolution could not complete; conflict remains open", err.Error())
		default:
			h.Logger.Error("conflict resolution failed", zap.String("conflictID", c.Param("id")), zap.Error(err))
			utils.JSONErrorCode(c, http.StatusConflict, "resolution_failed", "Resolution could not complete; conflict remains open", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, rec)
}
