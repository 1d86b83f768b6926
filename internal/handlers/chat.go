package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/knowledge"
	"github.com/yungbote/helpdesk-backend/internal/ragcache"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type ChatHandler struct {
	conversation services.ConversationService
	retriever    knowledge.Retriever
	cache        ragcache.Cache
}

func NewChatHandler(conversation services.ConversationService, retriever knowledge.Retriever, cache ragcache.Cache) *ChatHandler {
	return &ChatHandler{conversation: conversation, retriever: retriever, cache: cache}
}

type chatRequest struct {
	Message    string `json:"message" binding:"required"`
	Language   string `json:"language"`
	SessionID  string `json:"session_id"`
	ClientName string `json:"client_name"`
	Email      string `json:"email"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.conversation.Handle(c.Request.Context(), services.ConversationRequest{
		Message:     req.Message,
		Language:    req.Language,
		Source:      types.TicketSourceChat,
		Identity:    req.SessionID,
		ClientName:  req.ClientName,
		ClientEmail: req.Email,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *ChatHandler) Search(c *gin.Context) {
	query := c.Query("q")
	topK := 3
	if v := c.Query("top_k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_top_k", fmt.Errorf("top_k must be a non-negative integer"))
			return
		}
		topK = parsed
	}
	RespondOK(c, gin.H{"matches": h.retriever.Search(query, topK)})
}

func (h *ChatHandler) Categories(c *gin.Context) {
	RespondOK(c, gin.H{"categories": h.retriever.Categories()})
}

type addArticleRequest struct {
	Category    string `json:"category" binding:"required"`
	Subcategory string `json:"subcategory" binding:"required"`
	Question    string `json:"question" binding:"required"`
	Answer      string `json:"answer" binding:"required"`
	QuestionKZ  string `json:"question_kz"`
	AnswerKZ    string `json:"answer_kz"`
	AutoResolve bool   `json:"can_auto_resolve"`
	Priority    string `json:"priority"`
}

// AddArticle extends the knowledge base and drops every cached response,
// since any of them could now be stale.
func (h *ChatHandler) AddArticle(c *gin.Context) {
	var req addArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	priority := types.TicketPriority(req.Priority)
	if priority == "" {
		priority = types.TicketPriorityMedium
	}
	ok := h.retriever.AddArticle(req.Category, req.Subcategory, knowledge.Article{
		Question:       req.Question,
		QuestionKZ:     req.QuestionKZ,
		Answer:         req.Answer,
		AnswerKZ:       req.AnswerKZ,
		CanAutoResolve: req.AutoResolve,
		Priority:       priority,
	})
	if !ok {
		RespondError(c, http.StatusNotFound, "unknown_category",
			fmt.Errorf("category %q / subcategory %q not found", req.Category, req.Subcategory))
		return
	}
	invalidated := h.cache.InvalidateAll(c.Request.Context())
	RespondOK(c, gin.H{"added": true, "cache_invalidated": invalidated})
}
