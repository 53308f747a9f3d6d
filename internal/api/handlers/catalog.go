package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-atlas/internal/services"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListCatalog(c *gin.Context) {
	entries, err := h.catalog.ListCatalogIndex(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": entries, "total_count": len(entries)})
}

func (h *CatalogHandler) ListCatalogDetails(c *gin.Context) {
	details, err := h.catalog.ListCatalogDetails(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": details, "total_count": len(details)})
}

func (h *CatalogHandler) GetCard(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card id is required"})
		return
	}

	card, err := h.catalog.GetCardDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CatalogHandler) ListTypes(c *gin.Context) {
	types, err := h.catalog.ListCardTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

func (h *CatalogHandler) ListCardsByType(c *gin.Context) {
	cardType := c.Param("type")
	ids, err := h.catalog.ListCardIDsByType(c.Request.Context(), cardType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": cardType, "card_ids": ids})
}

// respondError maps the service error taxonomy onto HTTP statuses: a miss is
// 404, an upstream failure is 502, anything else is 500.
func respondError(c *gin.Context, err error) {
	var nfe *services.NotFoundError
	if errors.As(err, &nfe) {
		c.JSON(http.StatusNotFound, gin.H{"error": nfe.Error()})
		return
	}
	var pe *services.ProviderError
	if errors.As(err, &pe) {
		log.Printf("upstream failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream provider unavailable"})
		return
	}
	log.Printf("request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
