package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/helpdesk-backend/internal/repos"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type TicketHandler struct {
	tickets services.TicketService
	sync    services.SyncService
}

func NewTicketHandler(tickets services.TicketService, sync services.SyncService) *TicketHandler {
	return &TicketHandler{tickets: tickets, sync: sync}
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req services.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ticket, err := h.tickets.Create(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *TicketHandler) Get(c *gin.Context) {
	ticket, err := h.tickets.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ticket)
}

func (h *TicketHandler) List(c *gin.Context) {
	filter := repos.TicketFilter{Limit: 50}
	if v := c.Query("status"); v != "" {
		status := types.TicketStatus(v)
		filter.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := types.TicketPriority(v)
		filter.Priority = &priority
	}
	if v := c.Query("source"); v != "" {
		source := types.TicketSource(v)
		filter.Source = &source
	}
	if v := c.Query("department_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_department_id", err)
			return
		}
		filter.DepartmentID = &id
	}
	filter.Search = c.Query("search")
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	tickets, total, err := h.tickets.List(c.Request.Context(), filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"tickets": tickets, "total": total})
}

type updateTicketRequest struct {
	Subject      *string               `json:"subject"`
	Status       *types.TicketStatus   `json:"status"`
	Priority     *types.TicketPriority `json:"priority"`
	DepartmentID *uuid.UUID            `json:"department_id"`
}

// Update patches a ticket and propagates status changes into its escalation.
func (h *TicketHandler) Update(c *gin.Context) {
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ticket, err := h.tickets.Update(c.Request.Context(), c.Param("key"), types.TicketPatch{
		Subject:      req.Subject,
		Status:       req.Status,
		Priority:     req.Priority,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if req.Status != nil {
		if err := h.sync.SyncFromTicket(c.Request.Context(), ticket); err != nil {
			RespondServiceError(c, err)
			return
		}
	}
	RespondOK(c, ticket)
}

func (h *TicketHandler) AddMessage(c *gin.Context) {
	var req services.AddTicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ticket, err := h.tickets.AddMessage(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ticket)
}

func (h *TicketHandler) Stats(c *gin.Context) {
	stats, err := h.tickets.Stats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}
