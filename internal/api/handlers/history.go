package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/search"
)

// HistoryHandler queries the closed-order history index. Registered only
// when Elasticsearch is enabled for the terminal.
type HistoryHandler struct {
	client *search.ElasticClient
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(client *search.ElasticClient) *HistoryHandler {
	return &HistoryHandler{client: client}
}

// HistorySearchRequest wraps a raw Elasticsearch query body.
type HistorySearchRequest struct {
	Query map[string]interface{} `json:"query" binding:"required"`
}

// HandleSearchHistory runs a query against the history index.
func (h *HistoryHandler) HandleSearchHistory(c *gin.Context) {
	var req HistorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs, err := h.client.SearchHistory(c.Request.Context(), map[string]interface{}{"query": req.Query})
	if err != nil {
		log.Error().Err(err).Msg("History search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history search failed"})
		return
	}
	if docs == nil {
		docs = []map[string]interface{}{}
	}
	c.JSON(http.StatusOK, docs)
}

// RegisterRoutes registers the handler's routes.
func (h *HistoryHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/history/search", h.HandleSearchHistory)
}
