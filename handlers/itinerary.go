package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelplanner/database"
	"travelplanner/services"
)

type GenerateRequest struct {
	Destination string   `json:"destination" binding:"required"`
	Duration    int      `json:"duration" binding:"required,gt=0"`
	Interests   []string `json:"interests" binding:"required"`
	Budget      string   `json:"budget" binding:"required"`
	TravelStyle string   `json:"travel_style" binding:"required"`
	ArrivalTime *string  `json:"arrival_time"`
}

// EmailRequest carries the itinerary as posted; fields the email cannot use
// are ignored and mistyped ones fall back to empty values.
type EmailRequest struct {
	Email           string                 `json:"email" binding:"required,email"`
	Itinerary       map[string]any         `json:"itinerary"`
	PersonalMessage *string                `json:"personal_message"`
	SelectedFlight  *services.FlightOption `json:"selected_flight"`
	ItineraryID     *string                `json:"itinerary_id"`
}

const itineraryIDHeader = "X-Itinerary-ID"

func (h *Handler) GenerateItinerary(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	q := services.ItineraryQuery{
		Destination: strings.TrimSpace(req.Destination),
		Duration:    req.Duration,
		Interests:   req.Interests,
		Budget:      req.Budget,
		TravelStyle: req.TravelStyle,
	}
	if req.ArrivalTime != nil {
		q.ArrivalTime = *req.ArrivalTime
	}

	ctx := c.Request.Context()
	doc, err := h.itineraries.Generate(ctx, q)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Archiving is best effort; the caller still gets the itinerary.
	if h.archive != nil {
		id, err := h.archive.SaveItinerary(ctx, doc)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to archive itinerary", "destination", doc.Destination(), "error", err)
		} else {
			c.Header(itineraryIDHeader, id)
		}
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) SendItineraryEmail(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	it := services.ItineraryDocument(req.Itinerary).Itinerary()
	if req.SelectedFlight != nil {
		services.MergeArrival(&it, req.SelectedFlight)
	}
	msg := services.EmailMessage{To: req.Email, Itinerary: it}
	if req.PersonalMessage != nil {
		msg.PersonalMessage = *req.PersonalMessage
	}

	ctx := c.Request.Context()
	status, err := h.email.Send(ctx, msg)
	h.recordDelivery(c, req, status, err)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Itinerary sent successfully",
	})
}

func (h *Handler) recordDelivery(c *gin.Context, req EmailRequest, status int, sendErr error) {
	if h.archive == nil {
		return
	}
	d := database.EmailDelivery{
		ItineraryID: req.ItineraryID,
		Recipient:   req.Email,
		Status:      status,
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	}
	if err := h.archive.SaveEmailDelivery(c.Request.Context(), d); err != nil {
		h.logger.WarnContext(c.Request.Context(), "failed to record email delivery", "error", err)
	}
}

// ItineraryPDF renders the posted itinerary without touching the archive.
func (h *Handler) ItineraryPDF(c *gin.Context) {
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}
	h.writePDF(c, services.ItineraryDocument(doc).Itinerary(), "itinerary.pdf")
}

func (h *Handler) writePDF(c *gin.Context, it services.GeneratedItinerary, filename string) {
	data, err := services.RenderItineraryPDF(it)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "PDF generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
