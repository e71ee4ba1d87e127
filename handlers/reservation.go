package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotwise/models"
	"slotwise/services/reservation"
	"slotwise/utils"
)

// ReservationHandler exposes the lifecycle engine over HTTP.
type ReservationHandler struct {
	Service reservation.ReservationService
	Logger  *zap.Logger
}

func NewReservationHandler(svc reservation.ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Service: svc, Logger: logger}
}

// actorFromContext maps the authenticated role onto the audit actor.
func actorFromContext(c *gin.Context) models.Actor {
	if role, _ := c.Get("role"); role == "shop" {
		return models.ActorShop
	}
	return models.ActorUser
}

// authorizeAccess loads the reservation and checks the authenticated subject
// owns it: customers reach only their own bookings, shops only their own
// shop's. A foreign id reads as not found so existence is not leaked. On
// failure the response has already been written.
func (h *ReservationHandler) authorizeAccess(c *gin.Context, id string) (*models.Reservation, bool) {
	r, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err)
		return nil, false
	}

	subject, _ := c.Get("subjectID")
	subjectID, _ := subject.(string)
	owned := true
	switch role, _ := c.Get("role"); role {
	case "customer":
		owned = subjectID == r.CustomerID
	case "shop":
		owned = subjectID == r.ShopID
	}
	if !owned {
		utils.JSONErrorCode(c, http.StatusNotFound, "not_found", "Resource not found", "")
		return nil, false
	}
	return r, true
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Window models.Window `json:"window" binding:"required"`
	Reason string        `json:"reason"`
}

// CreateReservationHandler books a new requested reservation. The customer id
// always comes from the authenticated token, never the payload.
func (h *ReservationHandler) CreateReservationHandler(c *gin.Context) {
	var input reservation.CreateReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Invalid reservation payload", err.Error())
		return
	}
	if role, _ := c.Get("role"); role == "customer" {
		if subject, ok := c.Get("subjectID"); ok {
			input.CustomerID = subject.(string)
		}
	}

	r, err := h.Service.Create(c.Request.Context(), input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *ReservationHandler) GetReservationHandler(c *gin.Context) {
	r, ok := h.authorizeAccess(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

// ConfirmReservationHandler is the shop accepting a requested reservation.
func (h *ReservationHandler) ConfirmReservationHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	r, err := h.Service.Transition(c.Request.Context(), c.Param("id"),
		models.StatusConfirmed, models.ActorShop, "confirmed by shop")
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CompleteReservationHandler closes out a visit from the shop side without
// waiting for the automatic completion grace to elapse.
func (h *ReservationHandler) CompleteReservationHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	r, err := h.Service.Transition(c.Request.Context(), c.Param("id"),
		models.StatusCompleted, models.ActorShop, "completed by shop")
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CancelReservationHandler cancels on behalf of whoever is authenticated; the
// role decides which terminal state and refund policy applies.
func (h *ReservationHandler) CancelReservationHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	actor := actorFromContext(c)
	target := models.StatusCancelledByUser
	if actor == models.ActorShop {
		target = models.StatusCancelledByShop
	}

	r, err := h.Service.Transition(c.Request.Context(), c.Param("id"), target, actor, req.Reason)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// MarkNoShowHandler records a customer no-show from the shop side.
func (h *ReservationHandler) MarkNoShowHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	reason := req.Reason
	if reason == "" {
		reason = "customer did not arrive"
	}
	r, err := h.Service.Transition(c.Request.Context(), c.Param("id"),
		models.StatusNoShow, models.ActorShop, reason)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CheckInHandler records the customer's arrival at the shop.
func (h *ReservationHandler) CheckInHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	r, err := h.Service.CheckIn(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ValidateRescheduleHandler dry-runs a window move and returns conflicts and
// alternative slots without changing anything.
func (h *ReservationHandler) ValidateRescheduleHandler(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Invalid reschedule payload", err.Error())
		return
	}
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	v, err := h.Service.ValidateReschedule(c.Request.Context(), c.Param("id"), req.Window)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// RescheduleHandler moves a reservation to a new window.
func (h *ReservationHandler) RescheduleHandler(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONErrorCode(c, http.StatusBadRequest, "invalid_payload", "Invalid reschedule payload", err.Error())
		return
	}
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	r, err := h.Service.Reschedule(c.Request.Context(), c.Param("id"), req.Window, actorFromContext(c), req.Reason)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// AuditHandler lists the reservation's change history, oldest first.
func (h *ReservationHandler) AuditHandler(c *gin.Context) {
	if _, ok := h.authorizeAccess(c, c.Param("id")); !ok {
		return
	}
	entries, err := h.Service.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservationId": c.Param("id"), "entries": entries})
}

// respondServiceError translates the engine's error taxonomy to HTTP.
func (h *ReservationHandler) respondServiceError(c *gin.Context, err error) {
	var (
		notFound   *reservation.NotFoundError
		invalid    *reservation.InvalidTransitionError
		conflict   *reservation.ConflictDetectedError
		concurrent *reservation.ConcurrentModificationError
		policy     *reservation.PolicyValidationError
		rejected   *reservation.RescheduleRejectedError
		transient  *reservation.TransientStoreError
	)
	switch {
	case errors.As(err, &notFound):
		utils.JSONErrorCode(c, http.StatusNotFound, "not_found", "Resource not found", err.Error())
	case errors.As(err, &invalid):
		utils.JSONErrorCode(c, http.StatusConflict, "invalid_transition", "Transition not allowed", err.Error())
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"code":           "conflict_detected",
			"message":        "Requested window overlaps an active reservation",
			"conflictingIds": conflict.ConflictingIDs,
		})
	case errors.As(err, &concurrent):
		utils.JSONErrorCode(c, http.StatusConflict, "concurrent_modification", "Reservation was modified concurrently, retry", err.Error())
	case errors.As(err, &policy):
		utils.JSONErrorCode(c, http.StatusUnprocessableEntity, "policy_violation", "Request violates reservation policy", err.Error())
	case errors.As(err, &rejected):
		utils.JSONErrorCode(c, http.StatusUnprocessableEntity, "reschedule_rejected", "Reschedule rejected", err.Error())
	case errors.As(err, &transient):
		utils.JSONErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", "Temporary storage error, retry", err.Error())
	default:
		h.Logger.Error("unhandled service error", zap.Error(err))
		utils.JSONErrorCode(c, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
