// Package handler contains the HTTP handlers of the bookings module.
package handler

import (
	"net/http"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/internal/bookings/service"
	"booking_portal_backend/internal/bookings/transport"
	"booking_portal_backend/platform/httpkit"
	"booking_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PortalHandler serves the authenticated partner endpoints.
type PortalHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewPortalHandler creates the portal handler.
func NewPortalHandler(svc *service.Service, val *validator.Validator) *PortalHandler {
	return &PortalHandler{svc: svc, val: val}
}

// RegisterRoutes mounts the portal routes on the authenticated group.
func (h *PortalHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/bookings", h.ListBookings)
	group.GET("/bookings/stats", h.Stats)
	group.GET("/decline-reasons", h.ListDeclineReasons)
	group.POST("/bookings/:id/confirm", h.ConfirmBooking)
	group.POST("/bookings/:id/decline", h.DeclineBooking)
	group.POST("/bookings/:id/regenerate-token", httpkit.RequireRole("manager"), h.RegenerateToken)
}

// ListBookings returns the merged order/confirmation listing.
func (h *PortalHandler) ListBookings(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var query transport.ListBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	views, err := h.svc.ListBookings(c.Request.Context(), actorFrom(identity), service.ListFilter{
		Status:     domain.StatusKind(query.Status),
		FutureOnly: query.FutureOnly,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.BookingResponse, len(views))
	for i, view := range views {
		responses[i] = transport.NewBookingResponse(view)
	}
	httpkit.OK(c, gin.H{"bookings": responses})
}

// Stats returns the partner's confirmation counts.
func (h *PortalHandler) Stats(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// ListDeclineReasons returns the active decline reasons.
func (h *PortalHandler) ListDeclineReasons(c *gin.Context) {
	items, err := h.svc.ListDeclineReasons(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"reasons": transport.NewDeclineReasonResponses(items)})
}

// ConfirmBooking confirms a booking group via the portal.
func (h *PortalHandler) ConfirmBooking(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req transport.ConfirmBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	relatedIDs, ok := parseRelatedIDs(c, req.RelatedConfirmationIDs)
	if !ok {
		return
	}

	result, err := h.svc.ConfirmByPortal(c.Request.Context(), actorFrom(identity), id, relatedIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	writeGroupResult(c, result)
}

// DeclineBooking declines a booking group via the portal.
func (h *PortalHandler) DeclineBooking(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	var req transport.DeclineBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	relatedIDs, ok := parseRelatedIDs(c, req.RelatedConfirmationIDs)
	if !ok {
		return
	}

	result, err := h.svc.DeclineByPortal(c.Request.Context(), actorFrom(identity), id, relatedIDs, req.ReasonCode, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	writeGroupResult(c, result)
}

// RegenerateToken issues a fresh confirmation token. Manager only.
func (h *PortalHandler) RegenerateToken(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	confirmation, err := h.svc.RegenerateToken(c.Request.Context(), actorFrom(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RegenerateTokenResponse{
		ID:             confirmation.ID.String(),
		Token:          confirmation.Token,
		TokenExpiresAt: confirmation.TokenExpiresAt,
	})
}

func actorFrom(identity httpkit.Identity) service.Actor {
	return service.Actor{
		UserID:          identity.UserID(),
		CustomerNumbers: identity.CustomerNumbers(),
	}
}

func parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid booking id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseRelatedIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid related confirmation id", value)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func writeGroupResult(c *gin.Context, result *service.GroupResult) {
	switch {
	case result.InvalidReason != "":
		httpkit.Error(c, http.StatusBadRequest, result.InvalidReason, nil)
	case result.AlreadyProcessed:
		httpkit.Error(c, http.StatusConflict, "booking already processed",
			gin.H{"status": string(result.CurrentStatus)})
	default:
		httpkit.OK(c, transport.NewGroupActionResponse(result))
	}
}
