package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelplanner/services"
)

type FlightSearchRequest struct {
	Origin       string `json:"origin" binding:"required"`
	Destination  string `json:"destination" binding:"required"`
	OutboundDate string `json:"outbound_date" binding:"required"`
	ReturnDate   string `json:"return_date" binding:"required"`
	CabinClass   string `json:"cabin_class"`
	Nonstop      bool   `json:"nonstop"`
	SearchReturn bool   `json:"search_return"`
}

type HotelSearchRequest struct {
	Location     string `json:"location" binding:"required"`
	CheckInDate  string `json:"check_in_date" binding:"required"`
	CheckOutDate string `json:"check_out_date" binding:"required"`
	Stars        *int   `json:"stars"`
}

func (h *Handler) SearchFlights(c *gin.Context) {
	var req FlightSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cabin := strings.ToLower(strings.TrimSpace(req.CabinClass))
	if cabin == "" {
		cabin = "economy"
	}

	results, err := h.flights.Search(c.Request.Context(), services.FlightQuery{
		Origin:       strings.ToUpper(strings.TrimSpace(req.Origin)),
		Destination:  strings.ToUpper(strings.TrimSpace(req.Destination)),
		OutboundDate: req.OutboundDate,
		ReturnDate:   req.ReturnDate,
		CabinClass:   cabin,
		Nonstop:      req.Nonstop,
		SearchReturn: req.SearchReturn,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) SearchHotels(c *gin.Context) {
	var req HotelSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	hotels, err := h.hotels.Search(c.Request.Context(), services.HotelQuery{
		Location:     strings.TrimSpace(req.Location),
		CheckInDate:  req.CheckInDate,
		CheckOutDate: req.CheckOutDate,
		Stars:        req.Stars,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if hotels == nil {
		hotels = []services.HotelListing{}
	}

	c.JSON(http.StatusOK, gin.H{"hotels": hotels})
}
