package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/models"
)

// MenuSource is the slice of the local cache the menu handler needs.
type MenuSource interface {
	LoadMenu(ctx context.Context) ([]models.MenuItem, error)
	LoadSettings(ctx context.Context) (models.AppSettings, error)
}

// MenuHandler serves the cached menu and tenant settings.
type MenuHandler struct {
	source MenuSource
}

// NewMenuHandler creates a new menu handler.
func NewMenuHandler(source MenuSource) *MenuHandler {
	return &MenuHandler{source: source}
}

// HandleGetMenu returns the menu snapshot.
func (h *MenuHandler) HandleGetMenu(c *gin.Context) {
	menu, err := h.source.LoadMenu(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load menu snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load menu"})
		return
	}
	if menu == nil {
		menu = []models.MenuItem{}
	}
	c.JSON(http.StatusOK, menu)
}

// HandleGetSettings returns the tenant settings snapshot.
func (h *MenuHandler) HandleGetSettings(c *gin.Context) {
	settings, err := h.source.LoadSettings(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load settings snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// RegisterRoutes registers the handler's routes.
func (h *MenuHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/menu", h.HandleGetMenu)
	router.GET("/settings", h.HandleGetSettings)
}
