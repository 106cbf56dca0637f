package leads

import (
	"net/http"
	"time"

	"agency_backoffice_backend/platform/apperr"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles lead ingestion HTTP requests.
type Handler struct {
	service         *Service
	cfg             config.WebhookConfig
	defaultAgencyID uuid.UUID
}

// NewHandler creates a new leads handler.
func NewHandler(service *Service, cfg config.WebhookConfig, defaultAgencyID uuid.UUID) *Handler {
	return &Handler{service: service, cfg: cfg, defaultAgencyID: defaultAgencyID}
}

// webhookResponse is the success envelope for webhook deliveries.
type webhookResponse struct {
	Success bool          `json:"success"`
	Data    webhookResult `json:"data"`
}

type webhookResult struct {
	LeadID          string     `json:"lead_id"`
	Status          string     `json:"status"`
	AgentAssignment *uuid.UUID `json:"agent_assignment"`
	ProcessedAt     time.Time  `json:"processed_at"`
}

// HandleConvosoWebhook processes an inbound dialer delivery.
// POST /api/v1/webhook/convoso
// Authenticated by WebhookAuthMiddleware (secret or HMAC signature).
func (h *Handler) HandleConvosoWebhook(c *gin.Context) {
	raw, ok := rawPayload(c)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "missing request body", nil)
		return
	}

	agencyID := h.defaultAgencyID
	if param := c.Query("agency_id"); param != "" {
		parsed, err := uuid.Parse(param)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "agency_id must be a valid UUID", nil)
			return
		}
		agencyID = parsed
	}

	result, err := h.service.ProcessWebhook(c.Request.Context(), agencyID, raw)
	if err != nil {
		h.handleWebhookError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Success: true,
		Data: webhookResult{
			LeadID:          result.LeadID,
			Status:          result.Status,
			AgentAssignment: result.AgentAssignment,
			ProcessedAt:     result.ProcessedAt,
		},
	})
}

// HandleGetLead fetches one lead for back-office clients.
// GET /api/v1/leads/:leadId (JWT)
func (h *Handler) HandleGetLead(c *gin.Context) {
	agencyID, ok := httpkit.GetAgencyID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "no agency context", nil)
		return
	}

	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	lead, err := h.service.GetLead(c.Request.Context(), agencyID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadResponse(lead))
}

// handleWebhookError applies the production redaction rule: internal error
// detail is only exposed when running in development mode.
func (h *Handler) handleWebhookError(c *gin.Context, err error) {
	if domainErr, ok := err.(*apperr.Error); ok {
		message := domainErr.Message
		if domainErr.Kind == apperr.KindInternal && !h.cfg.IsDevelopment() {
			message = "internal server error"
		}
		httpkit.Error(c, domainErr.HTTPStatus(), message, domainErr.Details)
		return
	}
	httpkit.Error(c, http.StatusInternalServerError, "internal server error", nil)
}

func rawPayload(c *gin.Context) ([]byte, bool) {
	value, ok := c.Get(ContextRawPayloadKey)
	if !ok {
		return nil, false
	}
	raw, ok := value.([]byte)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
