package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/catalog"
	"example.com/tavolo/possync/internal/models"
)

// AdminHandler exposes menu and settings administration.
type AdminHandler struct {
	catalog *catalog.Manager
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(catalog *catalog.Manager) *AdminHandler {
	return &AdminHandler{catalog: catalog}
}

// HandleUpsertMenuItem creates or replaces a menu item.
func (h *AdminHandler) HandleUpsertMenuItem(c *gin.Context) {
	var item models.MenuItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.Name == "" || item.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "menu item needs a name and a non-negative price"})
		return
	}

	saved, err := h.catalog.UpsertMenuItem(c.Request.Context(), item)
	if err != nil {
		log.Error().Err(err).Str("name", item.Name).Msg("Failed to upsert menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save menu item"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// HandleDeleteMenuItem removes a menu item.
func (h *AdminHandler) HandleDeleteMenuItem(c *gin.Context) {
	if err := h.catalog.DeleteMenuItem(c.Request.Context(), c.Param("id")); err != nil {
		log.Error().Err(err).Str("item_id", c.Param("id")).Msg("Failed to delete menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete menu item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleSaveSettings replaces the tenant settings.
func (h *AdminHandler) HandleSaveSettings(c *gin.Context) {
	var settings models.AppSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.SaveSettings(c.Request.Context(), settings); err != nil {
		var unrouted *models.UnroutedCategoryError
		if errors.As(err, &unrouted) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("Failed to save settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes registers the handler's routes.
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/menu", h.HandleUpsertMenuItem)
	router.DELETE("/menu/:id", h.HandleDeleteMenuItem)
	router.PUT("/settings", h.HandleSaveSettings)
}
