package handler

import (
	"net/http"

	"booking_portal_backend/internal/bookings/service"
	"booking_portal_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the anonymous email-link endpoints. These are
// browser navigations, so outcomes are communicated as redirects to the
// portal result pages, never as JSON.
type PublicHandler struct {
	svc *service.Service
	cfg config.NotificationConfig
}

// NewPublicHandler creates the public token handler.
func NewPublicHandler(svc *service.Service, cfg config.NotificationConfig) *PublicHandler {
	return &PublicHandler{svc: svc, cfg: cfg}
}

// RegisterRoutes mounts the token routes on the public group.
func (h *PublicHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/confirm/:token", h.ConfirmByToken)
	group.GET("/decline/:token", h.DeclineByToken)
}

// ConfirmByToken confirms a booking from the email link and redirects
// to the result page.
func (h *PublicHandler) ConfirmByToken(c *gin.Context) {
	outcome, err := h.svc.ConfirmByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.Redirect(http.StatusFound, errorResultURL(h.cfg.GetAppBaseURL()))
		return
	}
	c.Redirect(http.StatusFound, outcome.ResultURL(h.cfg.GetAppBaseURL()))
}

// DeclineByToken resolves a decline link. A live token redirects to the
// portal decline page where a reason is chosen; everything else lands on
// the result page. The row is not touched here.
func (h *PublicHandler) DeclineByToken(c *gin.Context) {
	outcome, err := h.svc.ResolveDeclineToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.Redirect(http.StatusFound, errorResultURL(h.cfg.GetAppBaseURL()))
		return
	}
	if outcome.Status == service.TokenDeclinable {
		c.Redirect(http.StatusFound, outcome.DeclinePageURL(h.cfg.GetAppBaseURL()))
		return
	}
	c.Redirect(http.StatusFound, outcome.ResultURL(h.cfg.GetAppBaseURL()))
}

func errorResultURL(baseURL string) string {
	return baseURL + "/booking/result?status=error&code=server_error"
}
