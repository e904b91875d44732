package services

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

type HotelListing struct {
	Name      string   `json:"name"`
	Price     string   `json:"price"`
	Rating    string   `json:"rating"`
	Stars     int      `json:"stars"`
	Address   string   `json:"address"`
	Photos    []string `json:"photos"`
	Amenities []string `json:"amenities"`
	MapsLink  string   `json:"maps_link"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
}

type HotelQuery struct {
	Location     string
	CheckInDate  string
	CheckOutDate string
	Stars        *int
}

const mapsSearchURL = "https://www.google.com/maps/search/?api=1&query="

type HotelService struct {
	client searcher
	logger *slog.Logger
}

func NewHotelService(client searcher, logger *slog.Logger) *HotelService {
	return &HotelService{client: client, logger: logger}
}

func (s *HotelService) Search(ctx context.Context, q HotelQuery) ([]HotelListing, error) {
	p := url.Values{}
	p.Set("engine", "google_hotels")
	p.Set("q", q.Location)
	p.Set("check_in_date", q.CheckInDate)
	p.Set("check_out_date", q.CheckOutDate)
	p.Set("currency", "INR")
	p.Set("hl", "en")
	if q.Stars != nil && *q.Stars != 0 {
		p.Set("stars", strconv.Itoa(*q.Stars))
	}

	raw, err := s.client.Search(ctx, p)
	if err != nil {
		s.logger.ErrorContext(ctx, "hotel search failed", "location", q.Location, "error", err)
		return nil, UpstreamError{Op: "hotel search", Message: "Hotel search failed", Err: err}
	}

	hotels := AssembleHotels(raw, q)
	s.logger.InfoContext(ctx, "hotel search done", "location", q.Location, "hotels", len(hotels))
	return hotels, nil
}

// AssembleHotels cleans every property of a google_hotels document.
func AssembleHotels(raw map[string]any, q HotelQuery) []HotelListing {
	properties := listOfMaps(raw, "properties")
	hotels := make([]HotelListing, 0, len(properties))
	for _, p := range properties {
		hotels = append(hotels, CleanHotel(p, q))
	}
	return hotels
}

// CleanHotel builds one listing. Check-in/out dates come from the record when
// the provider echoes them, otherwise from the query.
func CleanHotel(record map[string]any, q HotelQuery) HotelListing {
	name := strings.TrimSpace(textOr(record, "name", "Unknown Hotel"))
	address := NormalizeAddress(record, q.Location)

	return HotelListing{
		Name:      name,
		Price:     NormalizePrice(record),
		Rating:    NormalizeRating(record["rating"], record["review_score"], record["stars"], record["user_rating"]),
		Stars:     NormalizeStars(record["stars"]),
		Address:   address,
		Photos:    NormalizePhotos(record["photos"]),
		Amenities: NormalizeAmenities(record["amenities"]),
		MapsLink:  MapsLink(name, address),
		CheckIn:   firstTextOr(record, []string{"check_in_date"}, q.CheckInDate),
		CheckOut:  firstTextOr(record, []string{"check_out_date"}, q.CheckOutDate),
	}
}

// MapsLink builds a maps search URL for "{name} {address}", spaces as %20.
func MapsLink(name, address string) string {
	return mapsSearchURL + strings.ReplaceAll(url.QueryEscape(name+" "+address), "+", "%20")
}
