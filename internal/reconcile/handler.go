package reconcile

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the administrative sweep trigger.
type Handler struct {
	service *Service
}

// NewHandler creates a new reconcile handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleSweep runs the reconciliation sweep on demand.
// POST /api/v1/admin/reconcile (JWT, admin role)
//
// Responds 200 when every step succeeded, 207 Multi-Status when some steps
// erred; the errors array always tells the full story either way.
func (h *Handler) HandleSweep(c *gin.Context) {
	result := h.service.Run(c.Request.Context(), "admin")

	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}
