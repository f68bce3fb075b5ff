package handler

import (
	"booking_portal_backend/internal/bookings/sweep"
	"booking_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// CronHandler exposes the HTTP sweep trigger for external cron services.
// The route group is already guarded by the cron shared secret.
type CronHandler struct {
	sweeper *sweep.Sweeper
}

// NewCronHandler creates the cron handler.
func NewCronHandler(sweeper *sweep.Sweeper) *CronHandler {
	return &CronHandler{sweeper: sweeper}
}

// RegisterRoutes mounts the cron routes.
func (h *CronHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/booking-reminders", h.RunSweep)
}

// RunSweep executes one sweep synchronously and reports the result.
// A run skipped because another sweep holds the lock still returns 200;
// the caller reads the skipped flag.
func (h *CronHandler) RunSweep(c *gin.Context) {
	result, err := h.sweeper.Run(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
