package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelplanner/database"
)

func (h *Handler) GetItinerary(c *gin.Context) {
	archived, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, archived)
}

func (h *Handler) DownloadItineraryPDF(c *gin.Context) {
	archived, ok := h.lookup(c)
	if !ok {
		return
	}
	h.writePDF(c, archived.Itinerary.Itinerary(), "itinerary-"+archived.ID+".pdf")
}

// lookup loads the archived itinerary named by the :id path parameter and
// writes the error response itself when it cannot.
func (h *Handler) lookup(c *gin.Context) (*database.ArchivedItinerary, bool) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Itinerary archive is not enabled"})
		return nil, false
	}

	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing itinerary ID"})
		return nil, false
	}

	archived, err := h.archive.GetItinerary(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Itinerary not found"})
		return nil, false
	}
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to load itinerary", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load itinerary"})
		return nil, false
	}
	return archived, true
}

func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
	}

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "ok"
		if err := h.archive.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "database ping failed", "error", err)
			dbStatus = "error"
		}
		body["database"] = dbStatus
	}

	c.JSON(http.StatusOK, body)
}
