package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelplanner/database"
	"travelplanner/services"
)

type FlightSearcher interface {
	Search(ctx context.Context, q services.FlightQuery) (*services.FlightResults, error)
}

type HotelSearcher interface {
	Search(ctx context.Context, q services.HotelQuery) ([]services.HotelListing, error)
}

type ItineraryGenerator interface {
	Generate(ctx context.Context, q services.ItineraryQuery) (services.ItineraryDocument, error)
}

type EmailSender interface {
	Send(ctx context.Context, msg services.EmailMessage) (int, error)
}

// Archive is optional; a nil Archive disables the archive routes.
type Archive interface {
	SaveItinerary(ctx context.Context, doc services.ItineraryDocument) (string, error)
	GetItinerary(ctx context.Context, id string) (*database.ArchivedItinerary, error)
	SaveEmailDelivery(ctx context.Context, d database.EmailDelivery) error
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Flights     FlightSearcher
	Hotels      HotelSearcher
	Itineraries ItineraryGenerator
	Email       EmailSender
	Archive     Archive
	Logger      *slog.Logger
}

type Handler struct {
	flights     FlightSearcher
	hotels      HotelSearcher
	itineraries ItineraryGenerator
	email       EmailSender
	archive     Archive
	logger      *slog.Logger
	now         func() time.Time
}

func New(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		flights:     deps.Flights,
		hotels:      deps.Hotels,
		itineraries: deps.Itineraries,
		email:       deps.Email,
		archive:     deps.Archive,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/search_flights", h.SearchFlights)
	r.POST("/search_hotels", h.SearchHotels)
	r.POST("/generate_itinerary", h.GenerateItinerary)
	r.POST("/send_itinerary_email", h.SendItineraryEmail)
	r.POST("/itinerary_pdf", h.ItineraryPDF)

	r.GET("/itineraries/:id", h.GetItinerary)
	r.GET("/itineraries/:id/pdf", h.DownloadItineraryPDF)
}

// fail writes the uniform {"error": message} body. Upstream detail has
// already been logged by the service and is not exposed here.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if services.IsValidation(err) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": services.PublicMessage(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}
