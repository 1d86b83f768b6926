package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/ragcache"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type StatusHandler struct {
	store escalations.Store
	cache ragcache.Cache
}

func NewStatusHandler(store escalations.Store, cache ragcache.Cache) *StatusHandler {
	return &StatusHandler{store: store, cache: cache}
}

// Status reports which backends the degradable stores are currently on.
func (h *StatusHandler) Status(c *gin.Context) {
	RespondOK(c, gin.H{
		"status":             "ok",
		"escalation_backend": h.store.Backend(c.Request.Context()),
		"cache_backend":      h.cache.Backend(),
	})
}
