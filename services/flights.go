package services

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// ─── Types ────────────────────────────────────────────────────────────────────

type FlightSegment struct {
	Airline           string   `json:"airline"`
	FlightNumber      string   `json:"flight_number"`
	DepartureAirport  string   `json:"departure_airport"`
	DepartureTerminal *string  `json:"departure_terminal"`
	DepartureTime     string   `json:"departure_time"`
	ArrivalAirport    string   `json:"arrival_airport"`
	ArrivalTerminal   *string  `json:"arrival_terminal"`
	ArrivalTime       string   `json:"arrival_time"`
	Duration          int      `json:"duration"`
	Aircraft          string   `json:"aircraft"`
	Baggage           string   `json:"baggage"`
	CabinClass        string   `json:"cabin_class"`
	Amenities         []string `json:"amenities"`
}

type FlightOption struct {
	TotalPrice    string            `json:"total_price"`
	TotalDuration int               `json:"total_duration"`
	Stops         int               `json:"stops"`
	Segments      []FlightSegment   `json:"segments"`
	BookingLink   string            `json:"booking_link"`
	FareRules     map[string]string `json:"fare_rules"`
}

// FlightResults keeps the two directions in separate buckets. No combined
// round-trip price is computed.
type FlightResults struct {
	Outbound []FlightOption `json:"outbound"`
	Return   []FlightOption `json:"return"`
}

type FlightQuery struct {
	Origin       string
	Destination  string
	OutboundDate string
	ReturnDate   string
	CabinClass   string
	Nonstop      bool
	SearchReturn bool
}

const (
	economyClass    = "economy"
	currencySymbol  = "₹"
	defaultBaggage  = "1 x 15kg"
	noBookingLink   = "#"
	providerDateFmt = "2006-01-02"
)

func fareRules() map[string]string {
	return map[string]string{
		"cancellation": "Free within 24h",
		"baggage":      "1 checked + 1 cabin",
	}
}

// ─── Validation ───────────────────────────────────────────────────────────────

// Validate checks the travel dates against today's date in now's location.
func (q FlightQuery) Validate(now time.Time) error {
	outbound, err := time.ParseInLocation(providerDateFmt, q.OutboundDate, now.Location())
	if err != nil {
		return ValidationError{Msg: "Invalid outbound date format. Use YYYY-MM-DD"}
	}
	ret, err := time.ParseInLocation(providerDateFmt, q.ReturnDate, now.Location())
	if err != nil {
		return ValidationError{Msg: "Invalid return date format. Use YYYY-MM-DD"}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if outbound.Before(today) {
		return ValidationError{Msg: "Departure date must be in future"}
	}
	if !ret.After(outbound) {
		return ValidationError{Msg: "Return date must be after departure"}
	}
	return nil
}

// ─── Flight Search ────────────────────────────────────────────────────────────

type searcher interface {
	Search(ctx context.Context, params url.Values) (map[string]any, error)
}

type FlightService struct {
	client searcher
	logger *slog.Logger
	now    func() time.Time
}

func NewFlightService(client searcher, logger *slog.Logger) *FlightService {
	return &FlightService{client: client, logger: logger, now: time.Now}
}

// Search validates q, then runs the outbound search and, when requested, an
// independent return search.
func (s *FlightService) Search(ctx context.Context, q FlightQuery) (*FlightResults, error) {
	if err := q.Validate(s.now()); err != nil {
		return nil, err
	}

	results := &FlightResults{Outbound: []FlightOption{}, Return: []FlightOption{}}

	outbound, err := s.client.Search(ctx, flightParams(q, false))
	if err != nil {
		return nil, s.failed("outbound", err)
	}
	results.Outbound = AssembleFlights(outbound, q.CabinClass)

	if q.SearchReturn {
		ret, err := s.client.Search(ctx, flightParams(q, true))
		if err != nil {
			return nil, s.failed("return", err)
		}
		results.Return = AssembleFlights(ret, q.CabinClass)
	}

	s.logger.InfoContext(ctx, "flight search done",
		"origin", q.Origin, "destination", q.Destination,
		"outbound", len(results.Outbound), "return", len(results.Return))
	return results, nil
}

func (s *FlightService) failed(direction string, err error) error {
	s.logger.Error("flight search failed", "direction", direction, "error", err)
	return UpstreamError{Op: "flight search " + direction, Message: "Flight search failed", Err: err}
}

// flightParams builds the provider query. The nonstop flag maps to num=0,
// which is passed through without assuming it filters anything.
func flightParams(q FlightQuery, returnLeg bool) url.Values {
	p := url.Values{}
	p.Set("engine", "google_flights")
	p.Set("currency", "INR")
	p.Set("hl", "en")

	if returnLeg {
		p.Set("departure_id", strings.ToUpper(q.Destination))
		p.Set("arrival_id", strings.ToUpper(q.Origin))
		p.Set("outbound_date", q.ReturnDate)
		p.Set("type", "2")
	} else {
		p.Set("departure_id", strings.ToUpper(q.Origin))
		p.Set("arrival_id", strings.ToUpper(q.Destination))
		p.Set("outbound_date", q.OutboundDate)
		p.Set("return_date", q.ReturnDate)
	}

	if q.Nonstop {
		p.Set("num", "0")
	}
	if q.CabinClass != economyClass {
		p.Set("cabin_class", q.CabinClass)
	}
	return p
}

// ─── Assembly ─────────────────────────────────────────────────────────────────

// AssembleFlights turns a raw google_flights document into flight options.
// Candidates without any leg are dropped; everything else is defaulted.
func AssembleFlights(raw map[string]any, cabinClass string) []FlightOption {
	candidates := listOfMaps(raw, "best_flights")
	options := make([]FlightOption, 0, len(candidates))

	for _, candidate := range candidates {
		legs := listOfMaps(candidate, "flights")
		if len(legs) == 0 {
			continue
		}

		segments := make([]FlightSegment, 0, len(legs))
		for _, leg := range legs {
			segments = append(segments, assembleSegment(leg, cabinClass))
		}

		options = append(options, FlightOption{
			TotalPrice:    currencySymbol + textOr(candidate, "price", notAvailable),
			TotalDuration: intOr(candidate, "total_duration", 0),
			Stops:         len(segments) - 1,
			Segments:      segments,
			BookingLink:   bookingLink(candidate),
			FareRules:     fareRules(),
		})
	}
	return options
}

func assembleSegment(leg map[string]any, cabinClass string) FlightSegment {
	dep := mapAt(leg, "departure_airport")
	arr := mapAt(leg, "arrival_airport")

	amenities := []string{}
	if cabinClass != economyClass {
		amenities = []string{"entertainment"}
	}

	return FlightSegment{
		Airline:           textOr(leg, "airline", "Unknown"),
		FlightNumber:      textOr(leg, "flight_number", notAvailable),
		DepartureAirport:  textOr(dep, "name", notAvailable),
		DepartureTerminal: optionalText(dep, "terminal"),
		DepartureTime:     NormalizeTime(textOr(dep, "time", "")),
		ArrivalAirport:    textOr(arr, "name", notAvailable),
		ArrivalTerminal:   optionalText(arr, "terminal"),
		ArrivalTime:       NormalizeTime(textOr(arr, "time", "")),
		Duration:          intOr(leg, "duration", 0),
		Aircraft:          firstTextOr(leg, []string{"aircraft", "airplane"}, "Unknown"),
		Baggage:           textOr(leg, "baggage", defaultBaggage),
		CabinClass:        cabinClass,
		Amenities:         amenities,
	}
}

func bookingLink(candidate map[string]any) string {
	ads := listOfMaps(candidate, "travel_ads")
	if len(ads) == 0 {
		return noBookingLink
	}
	return textOr(ads[0], "link", noBookingLink)
}
