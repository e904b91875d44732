package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"

	"travelplanner/database"
	"travelplanner/services"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

// ─── Stubs ────────────────────────────────────────────────────────────────────

type countingSerp struct {
	calls  int
	params []url.Values
	doc    map[string]any
	err    error
}

func (s *countingSerp) Search(_ context.Context, p url.Values) (map[string]any, error) {
	s.calls++
	s.params = append(s.params, p)
	return s.doc, s.err
}

type scriptedChat struct {
	available []string
	replies   map[string]string
	failures  map[string]error
	tried     []string
}

func (c *scriptedChat) ListModels(context.Context) (openai.ModelsList, error) {
	var list openai.ModelsList
	for _, id := range c.available {
		list.Models = append(list.Models, openai.Model{ID: id})
	}
	return list, nil
}

func (c *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.tried = append(c.tried, req.Model)
	if err, ok := c.failures[req.Model]; ok {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.replies[req.Model]}},
		},
	}, nil
}

type stubEmail struct {
	got    services.EmailMessage
	status int
	err    error
}

func (s *stubEmail) Send(_ context.Context, msg services.EmailMessage) (int, error) {
	s.got = msg
	return s.status, s.err
}

type memoryArchive struct {
	saved      map[string]services.ItineraryDocument
	deliveries []database.EmailDelivery
	pingErr    error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{saved: map[string]services.ItineraryDocument{}}
}

func (a *memoryArchive) SaveItinerary(_ context.Context, doc services.ItineraryDocument) (string, error) {
	id := "it-" + doc.Destination()
	a.saved[id] = doc
	return id, nil
}

func (a *memoryArchive) GetItinerary(_ context.Context, id string) (*database.ArchivedItinerary, error) {
	doc, ok := a.saved[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &database.ArchivedItinerary{ID: id, Destination: doc.Destination(), Itinerary: doc}, nil
}

func (a *memoryArchive) SaveEmailDelivery(_ context.Context, d database.EmailDelivery) error {
	a.deliveries = append(a.deliveries, d)
	return nil
}

func (a *memoryArchive) Ping(context.Context) error { return a.pingErr }

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newRouter(deps Dependencies) (*gin.Engine, *Handler) {
	if deps.Logger == nil {
		deps.Logger = quietLogger
	}
	h := New(deps)
	r := gin.New()
	r.Use(RequestLogger(deps.Logger))
	h.Register(r)
	return r, h
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

// ─── Flights & hotels ─────────────────────────────────────────────────────────

func TestSearchFlightsPastDateMakesNoProviderCall(t *testing.T) {
	serp := &countingSerp{}
	r, _ := newRouter(Dependencies{Flights: services.NewFlightService(serp, quietLogger)})

	w := doJSON(t, r, http.MethodPost, "/search_flights", map[string]any{
		"origin":        "BOM",
		"destination":   "GOI",
		"outbound_date": "2020-01-01",
		"return_date":   "2020-01-05",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
	}
	if got := errorBody(t, w); got != "Departure date must be in future" {
		t.Errorf("error = %q", got)
	}
	if serp.calls != 0 {
		t.Errorf("provider called %d times, want 0", serp.calls)
	}
}

func TestSearchFlightsReturnsBothBuckets(t *testing.T) {
	serp := &countingSerp{doc: map[string]any{
		"best_flights": []any{
			map[string]any{
				"price":          json.Number("4520"),
				"total_duration": json.Number("75"),
				"flights": []any{
					map[string]any{
						"airline":           "IndiGo",
						"flight_number":     "6E 123",
						"departure_airport": map[string]any{"id": "BOM", "time": "2026-12-01 06:15"},
						"arrival_airport":   map[string]any{"id": "GOI", "time": "2026-12-01 07:30"},
						"duration":          json.Number("75"),
					},
				},
			},
		},
	}}
	r, _ := newRouter(Dependencies{Flights: services.NewFlightService(serp, quietLogger)})

	w := doJSON(t, r, http.MethodPost, "/search_flights", map[string]any{
		"origin":        "bom",
		"destination":   "goi",
		"outbound_date": futureDate(10),
		"return_date":   futureDate(14),
		"cabin_class":   "Business",
		"search_return": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	var res services.FlightResults
	decode(t, w, &res)
	if len(res.Outbound) != 1 || len(res.Return) != 1 {
		t.Fatalf("buckets = %d/%d, want 1/1", len(res.Outbound), len(res.Return))
	}
	if res.Outbound[0].TotalPrice != "₹4520" {
		t.Errorf("price = %q", res.Outbound[0].TotalPrice)
	}
	if serp.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", serp.calls)
	}
	if got := serp.params[0].Get("cabin_class"); got != "business" {
		t.Errorf("cabin_class = %q, want lowercased business", got)
	}
	if got := serp.params[0].Get("departure_id"); got != "BOM" {
		t.Errorf("departure_id = %q, want BOM", got)
	}
}

func TestSearchFlightsProviderFailureIsGeneric(t *testing.T) {
	serp := &countingSerp{err: errors.New("serpapi error (401): invalid key")}
	r, _ := newRouter(Dependencies{Flights: services.NewFlightService(serp, quietLogger)})

	w := doJSON(t, r, http.MethodPost, "/search_flights", map[string]any{
		"origin":        "BOM",
		"destination":   "GOI",
		"outbound_date": futureDate(3),
		"return_date":   futureDate(6),
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := errorBody(t, w); got != "Flight search failed" {
		t.Errorf("error = %q, provider detail must not leak", got)
	}
}

func TestSearchFlightsMissingFieldIsBadRequest(t *testing.T) {
	serp := &countingSerp{}
	r, _ := newRouter(Dependencies{Flights: services.NewFlightService(serp, quietLogger)})

	w := doJSON(t, r, http.MethodPost, "/search_flights", map[string]any{"origin": "BOM"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if serp.calls != 0 {
		t.Errorf("provider called %d times", serp.calls)
	}
}

func TestSearchHotels(t *testing.T) {
	serp := &countingSerp{doc: map[string]any{
		"properties": []any{
			map[string]any{"name": "Sea View", "rating": json.Number("4.42")},
		},
	}}
	r, _ := newRouter(Dependencies{Hotels: services.NewHotelService(serp, quietLogger)})

	w := doJSON(t, r, http.MethodPost, "/search_hotels", map[string]any{
		"location":       "Goa",
		"check_in_date":  futureDate(10),
		"check_out_date": futureDate(12),
		"stars":          4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	var res struct {
		Hotels []services.HotelListing `json:"hotels"`
	}
	decode(t, w, &res)
	if len(res.Hotels) != 1 || res.Hotels[0].Name != "Sea View" || res.Hotels[0].Rating != "4.4" {
		t.Errorf("hotels = %+v", res.Hotels)
	}
	if got := serp.params[0].Get("stars"); got != "4" {
		t.Errorf("stars param = %q", got)
	}
}

// ─── Itinerary ────────────────────────────────────────────────────────────────

func TestGenerateItineraryFallsThroughToThirdModel(t *testing.T) {
	reply := `{"summary":"Three days of beaches","estimated_budget":"INR 40000","daily_plans":[{"day":"1","date":"Day 1","time_slots":{"morning":{"time":"9:00 AM–12:00 PM","activities":["Baga beach"]}},"highlights":["sunset"]}],"packing_list":["hat"],"local_tips":["carry cash"],"destination":"Somewhere else"}`
	chat := &scriptedChat{
		available: []string{"m1", "m2", "m3"},
		failures: map[string]error{
			"m1": errors.New("rate limited"),
			"m2": errors.New("model overloaded"),
		},
		replies: map[string]string{"m3": reply},
	}
	archive := newMemoryArchive()
	r, _ := newRouter(Dependencies{
		Itineraries: services.NewItineraryGenerator(chat, []string{"m1", "m2", "m3"}, quietLogger),
		Archive:     archive,
	})

	w := doJSON(t, r, http.MethodPost, "/generate_itinerary", map[string]any{
		"destination":  "Goa",
		"duration":     3,
		"interests":    []string{"beaches"},
		"budget":       "moderate",
		"travel_style": "relaxed",
		"arrival_time": "2:00 PM",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	var got map[string]any
	decode(t, w, &got)
	var want map[string]any
	if err := json.Unmarshal([]byte(reply), &want); err != nil {
		t.Fatal(err)
	}
	want["destination"] = "Goa"

	if !reflect.DeepEqual(got, want) {
		t.Errorf("itinerary mismatch\n got: %v\nwant: %v", got, want)
	}
	if archived := archive.saved["it-Goa"]; archived["estimated_budget"] != "INR 40000" {
		t.Errorf("archived = %v", archived)
	}
	if strings.Join(chat.tried, ",") != "m1,m2,m3" {
		t.Errorf("tried = %v", chat.tried)
	}
	if id := w.Header().Get(itineraryIDHeader); id != "it-Goa" {
		t.Errorf("%s = %q", itineraryIDHeader, id)
	}
}

func TestGenerateItineraryAllModelsFail(t *testing.T) {
	chat := &scriptedChat{
		available: []string{"m1"},
		failures:  map[string]error{"m1": errors.New("boom")},
	}
	r, _ := newRouter(Dependencies{
		Itineraries: services.NewItineraryGenerator(chat, []string{"m1"}, quietLogger),
	})

	w := doJSON(t, r, http.MethodPost, "/generate_itinerary", map[string]any{
		"destination":  "Goa",
		"duration":     2,
		"interests":    []string{},
		"budget":       "low",
		"travel_style": "fast",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	msg := errorBody(t, w)
	if !strings.HasPrefix(msg, "Itinerary generation failed: No working model found. Last error:") {
		t.Errorf("error = %q", msg)
	}
	if w.Header().Get(itineraryIDHeader) != "" {
		t.Error("failed generation must not be archived")
	}
}

func TestGenerateItineraryRejectsZeroDuration(t *testing.T) {
	chat := &scriptedChat{}
	r, _ := newRouter(Dependencies{
		Itineraries: services.NewItineraryGenerator(chat, []string{"m1"}, quietLogger),
	})

	w := doJSON(t, r, http.MethodPost, "/generate_itinerary", map[string]any{
		"destination":  "Goa",
		"duration":     0,
		"interests":    []string{},
		"budget":       "low",
		"travel_style": "fast",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(chat.tried) != 0 {
		t.Errorf("model called for invalid request")
	}
}

// ─── Email ────────────────────────────────────────────────────────────────────

func sampleItinerary() services.GeneratedItinerary {
	return services.GeneratedItinerary{
		Summary:     "A short trip",
		Destination: "Goa",
		DailyPlans: []services.DailyPlan{
			{Day: 1, Date: "Day 1", TimeSlots: map[string]services.TimeSlot{
				"morning": {Time: "9:00 AM–12:00 PM", Activities: []string{"Fort Aguada"}},
			}},
		},
		PackingList: []string{"hat"},
		LocalTips:   []string{"rent a scooter"},
	}
}

func TestSendItineraryEmailMergesArrival(t *testing.T) {
	email := &stubEmail{status: http.StatusAccepted}
	archive := newMemoryArchive()
	r, _ := newRouter(Dependencies{Email: email, Archive: archive})

	itID := "it-Goa"
	w := doJSON(t, r, http.MethodPost, "/send_itinerary_email", map[string]any{
		"email":            "traveler@example.com",
		"itinerary":        sampleItinerary(),
		"personal_message": "Have fun!",
		"itinerary_id":     itID,
		"selected_flight": services.FlightOption{
			Segments: []services.FlightSegment{
				{ArrivalAirport: "BOM", ArrivalTime: "09:00 AM"},
				{ArrivalAirport: "GOI", ArrivalTime: "11:30 AM"},
			},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "success" || body["message"] != "Itinerary sent successfully" {
		t.Errorf("body = %v", body)
	}

	if email.got.To != "traveler@example.com" || email.got.PersonalMessage != "Have fun!" {
		t.Errorf("message = %+v", email.got)
	}
	info := email.got.Itinerary.DailyPlans[0].ArrivalInfo
	if info == nil || *info != "Flight arrives at 11:30 AM at GOI" {
		t.Errorf("arrival_info = %v", info)
	}

	if len(archive.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(archive.deliveries))
	}
	d := archive.deliveries[0]
	if d.Status != http.StatusAccepted || d.Error != "" || d.ItineraryID == nil || *d.ItineraryID != itID {
		t.Errorf("delivery = %+v", d)
	}
}

func TestSendItineraryEmailAcceptsLooseItinerary(t *testing.T) {
	email := &stubEmail{status: http.StatusAccepted}
	r, _ := newRouter(Dependencies{Email: email})

	w := doJSON(t, r, http.MethodPost, "/send_itinerary_email", map[string]any{
		"email": "traveler@example.com",
		"itinerary": map[string]any{
			"summary":          "Loose",
			"destination":      "Goa",
			"estimated_budget": 40000,
			"daily_plans":      []any{map[string]any{"day": "1", "date": "Day 1", "time_slots": map[string]any{"morning": "Beach"}}},
		},
		"selected_flight": services.FlightOption{
			Segments: []services.FlightSegment{{ArrivalAirport: "GOI", ArrivalTime: "11:30 AM"}},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}

	plans := email.got.Itinerary.DailyPlans
	if len(plans) != 1 || plans[0].Day != 1 || plans[0].TimeSlots["morning"].Activities[0] != "Beach" {
		t.Fatalf("plans = %+v", plans)
	}
	if info := plans[0].ArrivalInfo; info == nil || *info != "Flight arrives at 11:30 AM at GOI" {
		t.Errorf("arrival_info = %v", info)
	}
}

func TestSendItineraryEmailProviderFailure(t *testing.T) {
	cause := errors.New("SendGrid error: 401 - unauthorized")
	email := &stubEmail{
		status: http.StatusUnauthorized,
		err:    services.UpstreamError{Op: "send email", Message: "Failed to send email: " + cause.Error(), Err: cause},
	}
	archive := newMemoryArchive()
	r, _ := newRouter(Dependencies{Email: email, Archive: archive})

	w := doJSON(t, r, http.MethodPost, "/send_itinerary_email", map[string]any{
		"email":     "traveler@example.com",
		"itinerary": sampleItinerary(),
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := errorBody(t, w); got != "Failed to send email: SendGrid error: 401 - unauthorized" {
		t.Errorf("error = %q", got)
	}
	if len(archive.deliveries) != 1 || archive.deliveries[0].Status != http.StatusUnauthorized {
		t.Errorf("deliveries = %+v", archive.deliveries)
	}
}

func TestSendItineraryEmailRejectsBadAddress(t *testing.T) {
	email := &stubEmail{status: http.StatusAccepted}
	r, _ := newRouter(Dependencies{Email: email})

	w := doJSON(t, r, http.MethodPost, "/send_itinerary_email", map[string]any{
		"email":     "not-an-address",
		"itinerary": sampleItinerary(),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if email.got.To != "" {
		t.Error("email sent for invalid request")
	}
}

// ─── PDF, archive, health ─────────────────────────────────────────────────────

func TestItineraryPDF(t *testing.T) {
	r, _ := newRouter(Dependencies{})

	w := doJSON(t, r, http.MethodPost, "/itinerary_pdf", sampleItinerary())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestItineraryPDFAcceptsStringDay(t *testing.T) {
	r, _ := newRouter(Dependencies{})

	w := doJSON(t, r, http.MethodPost, "/itinerary_pdf", map[string]any{
		"summary":     "Loose",
		"daily_plans": []any{map[string]any{"day": "1", "date": "Day 1"}},
	})
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("status = %d (body %.80s)", w.Code, w.Body.String())
	}
}

func sampleDocument(t *testing.T) services.ItineraryDocument {
	t.Helper()
	raw, err := json.Marshal(sampleItinerary())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := services.ParseItineraryDocument(raw)
	if err != nil {
		t.Fatal(err)
	}
	doc["weather"] = "sunny"
	return doc
}

func TestArchiveRoutes(t *testing.T) {
	archive := newMemoryArchive()
	archive.saved["abc"] = sampleDocument(t)
	r, _ := newRouter(Dependencies{Archive: archive})

	w := doJSON(t, r, http.MethodGet, "/itineraries/abc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got database.ArchivedItinerary
	decode(t, w, &got)
	if got.ID != "abc" || got.Itinerary["summary"] != "A short trip" || got.Itinerary["weather"] != "sunny" {
		t.Errorf("archived = %+v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/itineraries/abc/pdf", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("pdf download status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "itinerary-abc.pdf") {
		t.Errorf("content disposition = %q", cd)
	}

	w = doJSON(t, r, http.MethodGet, "/itineraries/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestArchiveRoutesDisabled(t *testing.T) {
	r, _ := newRouter(Dependencies{})

	for _, path := range []string{"/itineraries/abc", "/itineraries/abc/pdf"} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	t.Run("without archive", func(t *testing.T) {
		r, h := newRouter(Dependencies{})
		h.now = func() time.Time { return fixed }

		w := doJSON(t, r, http.MethodGet, "/health", nil)
		var body map[string]string
		decode(t, w, &body)
		if w.Code != http.StatusOK || body["status"] != "healthy" || body["timestamp"] != "2026-10-18T12:00:00Z" {
			t.Errorf("health = %d %v", w.Code, body)
		}
		if _, ok := body["database"]; ok {
			t.Error("database status reported without an archive")
		}
	})

	t.Run("with failing archive", func(t *testing.T) {
		archive := newMemoryArchive()
		archive.pingErr = errors.New("connection refused")
		r, _ := newRouter(Dependencies{Archive: archive})

		w := doJSON(t, r, http.MethodGet, "/health", nil)
		var body map[string]string
		decode(t, w, &body)
		if body["database"] != "error" {
			t.Errorf("database = %q, want bare error status", body["database"])
		}
		if strings.Contains(w.Body.String(), "connection refused") {
			t.Errorf("ping failure leaked: %s", w.Body.String())
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	r, _ := newRouter(Dependencies{})

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("request id = %q, want req-42", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newRouter(Dependencies{})

	w := doJSON(t, r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("default collectors missing from exposition")
	}
}
