package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleet-rental-backend/internal/command"
)

// ListVehicles serves a mechanic listing from the cache, loading it on a miss.
func (h *Handler) ListVehicles(c *gin.Context) {
	filter, err := command.ParseFilter(c.DefaultQuery("filter", string(command.FilterAll)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if list, ok := h.cache.Vehicles(filter); ok {
		c.JSON(http.StatusOK, gin.H{"vehicles": list, "version": h.cache.Version()})
		return
	}

	list, err := h.vehicles.Vehicles(c.Request.Context(), filter)
	if err != nil {
		log.Printf("Error loading %s vehicles: %v", filter, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load vehicles"})
		return
	}
	h.cache.SetVehicles(filter, list)
	c.JSON(http.StatusOK, gin.H{"vehicles": list, "version": h.cache.Version()})
}

// SearchVehicles proxies a free-text search; results are not cached.
func (h *Handler) SearchVehicles(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	list, err := h.vehicles.Search(c.Request.Context(), query)
	if err != nil {
		log.Printf("Error searching vehicles for %q: %v", query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to search vehicles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": list})
}

// GetDelivery returns the drop-off point of the active delivery, if any.
func (h *Handler) GetDelivery(c *gin.Context) {
	coords, ok := h.cache.Delivery()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "coordinates": coords})
}
