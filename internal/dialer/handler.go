package dialer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agency_backoffice_backend/platform/httpkit"
	"agency_backoffice_backend/platform/validator"
)

// Handler handles outbound dialer push requests.
type Handler struct {
	service  *Service
	validate *validator.Validator
}

// NewHandler creates a new dialer handler.
func NewHandler(service *Service, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// pushRequest is the outbound push body. The agency_id stays a string so
// the UUID check happens in the service, ahead of any lookup.
type pushRequest struct {
	AgencyID       string         `json:"agency_id" validate:"required"`
	LeadData       map[string]any `json:"lead_data" validate:"required"`
	InternalLeadID *uuid.UUID     `json:"internal_lead_id"`
}

type pushResponse struct {
	Success       bool   `json:"success"`
	ConvosoLeadID string `json:"convoso_lead_id"`
	ListID        string `json:"list_id"`
	Message       string `json:"message"`
}

// HandlePushLead routes a lead into the agency's dialer.
// POST /api/v1/dialer/leads (JWT)
func (h *Handler) HandlePushLead(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "agency_id and lead_data are required", nil)
		return
	}

	result, err := h.service.PushLead(c.Request.Context(), req.AgencyID, req.LeadData, req.InternalLeadID)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, pushResponse{
		Success:       true,
		ConvosoLeadID: result.ConvosoLeadID,
		ListID:        result.ListID,
		Message:       result.Message,
	})
}
