package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type EscalationHandler struct {
	store escalations.Store
	sync  services.SyncService
}

func NewEscalationHandler(store escalations.Store, sync services.SyncService) *EscalationHandler {
	return &EscalationHandler{store: store, sync: sync}
}

func (h *EscalationHandler) List(c *gin.Context) {
	all, err := h.store.List(c.Request.Context(), types.EscalationStatus(c.Query("status")))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"escalations": all, "total": len(all)})
}

func (h *EscalationHandler) Get(c *gin.Context) {
	esc, err := h.store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, esc)
}

type updateEscalationRequest struct {
	Status           *types.EscalationStatus `json:"status"`
	Priority         *types.TicketPriority   `json:"priority"`
	Department       *string                 `json:"department"`
	Summary          *string                 `json:"summary"`
	Reason           *string                 `json:"reason"`
	OperatorResponse *string                 `json:"operator_response"`
}

func (h *EscalationHandler) Update(c *gin.Context) {
	var req updateEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	esc, err := h.sync.UpdateEscalation(c.Request.Context(), c.Param("key"), types.EscalationPatch{
		Status:           req.Status,
		Priority:         req.Priority,
		Department:       req.Department,
		Summary:          req.Summary,
		Reason:           req.Reason,
		OperatorResponse: req.OperatorResponse,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, esc)
}

type replyRequest struct {
	Message string `json:"message" binding:"required"`
}

// Reply is the operator's answer. It lands on the escalation, mirrors into
// the linked ticket and is pushed back over the client's channel.
func (h *EscalationHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	esc, err := h.sync.OperatorReply(c.Request.Context(), c.Param("key"), req.Message)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, esc)
}

type clientMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *EscalationHandler) AddClientMessage(c *gin.Context) {
	var req clientMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	esc, err := h.store.AddClientMessage(c.Request.Context(), c.Param("key"), req.Message)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, esc)
}

func (h *EscalationHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("key")); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (h *EscalationHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}
