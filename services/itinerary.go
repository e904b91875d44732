package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ─── Types ────────────────────────────────────────────────────────────────────

type TimeSlot struct {
	Time       string   `json:"time"`
	Activities []string `json:"activities"`
}

type DailyPlan struct {
	Day         int                 `json:"day"`
	Date        string              `json:"date"`
	TimeSlots   map[string]TimeSlot `json:"time_slots"`
	Highlights  []string            `json:"highlights"`
	ArrivalInfo *string             `json:"arrival_info"`
}

type GeneratedItinerary struct {
	Summary     string      `json:"summary"`
	DailyPlans  []DailyPlan `json:"daily_plans"`
	PackingList []string    `json:"packing_list"`
	LocalTips   []string    `json:"local_tips"`
	Destination string      `json:"destination"`
}

// ItineraryDocument is a model reply exactly as parsed, with destination set
// by the caller's request. Keys the model adds are kept.
type ItineraryDocument map[string]any

type ItineraryQuery struct {
	Destination string
	Duration    int
	Interests   []string
	Budget      string
	TravelStyle string
	ArrivalTime string
}

// ─── Generator ────────────────────────────────────────────────────────────────

type chatClient interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewGroqClient returns an OpenAI-compatible client pointed at baseURL.
func NewGroqClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return openai.NewClientWithConfig(cfg)
}

// ItineraryGenerator tries its models in preference order and stops at the
// first one that returns a usable itinerary.
type ItineraryGenerator struct {
	client chatClient
	models []string
	logger *slog.Logger
}

func NewItineraryGenerator(client chatClient, models []string, logger *slog.Logger) *ItineraryGenerator {
	return &ItineraryGenerator{
		client: client,
		models: append([]string(nil), models...),
		logger: logger,
	}
}

func (g *ItineraryGenerator) Generate(ctx context.Context, q ItineraryQuery) (ItineraryDocument, error) {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		return nil, g.failed(fmt.Errorf("list models: %w", err))
	}
	available := make(map[string]bool, len(list.Models))
	for _, m := range list.Models {
		available[m.ID] = true
	}

	prompt := BuildItineraryPrompt(q, PlanTimeSlots(q.ArrivalTime))

	var lastErr error
	for _, model := range g.models {
		if !available[model] {
			g.logger.DebugContext(ctx, "model not available", "model", model)
			continue
		}

		doc, err := g.attempt(ctx, model, prompt)
		modelAttempts.WithLabelValues(model, outcome(err)).Inc()
		if err != nil {
			lastErr = err
			g.logger.WarnContext(ctx, "model failed", "model", model, "error", err)
			continue
		}

		doc["destination"] = q.Destination
		g.logger.InfoContext(ctx, "itinerary generated", "model", model, "keys", len(doc))
		return doc, nil
	}

	if lastErr == nil {
		lastErr = errors.New("none of the preferred models is available")
	}
	return nil, g.failed(fmt.Errorf("No working model found. Last error: %v", lastErr))
}

// attempt fails only when the reply is missing or is not a single JSON
// object. Field types are not checked here.
func (g *ItineraryGenerator) attempt(ctx context.Context, model, prompt string) (ItineraryDocument, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("empty response from %s", model)
	}

	doc, err := ParseItineraryDocument([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", model, err)
	}
	return doc, nil
}

// ParseItineraryDocument decodes one JSON object, keeping numbers as
// json.Number. Trailing data after the object is an error.
func ParseItineraryDocument(raw []byte) (ItineraryDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("reply is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return ItineraryDocument(doc), nil
}

func (d ItineraryDocument) Destination() string {
	return textOr(d, "destination", "")
}

// Itinerary reads the document into the typed shape used for email, PDF and
// the archive. Wrongly typed fields degrade to zero values, a numeric string
// day is accepted, and a slot given as plain text becomes its one activity.
func (d ItineraryDocument) Itinerary() GeneratedItinerary {
	it := GeneratedItinerary{
		Summary:     textOr(d, "summary", ""),
		DailyPlans:  []DailyPlan{},
		PackingList: stringList(d["packing_list"]),
		LocalTips:   stringList(d["local_tips"]),
		Destination: d.Destination(),
	}
	for _, day := range listOfMaps(d, "daily_plans") {
		plan := DailyPlan{
			Day:        intOr(day, "day", 0),
			Date:       textOr(day, "date", ""),
			TimeSlots:  map[string]TimeSlot{},
			Highlights: stringList(day["highlights"]),
		}
		for name, raw := range mapAt(day, "time_slots") {
			switch slot := raw.(type) {
			case map[string]any:
				plan.TimeSlots[name] = TimeSlot{
					Time:       textOr(slot, "time", ""),
					Activities: stringList(slot["activities"]),
				}
			case string:
				plan.TimeSlots[name] = TimeSlot{Activities: []string{slot}}
			}
		}
		if info, ok := day["arrival_info"].(string); ok && info != "" {
			plan.ArrivalInfo = &info
		}
		it.DailyPlans = append(it.DailyPlans, plan)
	}
	return it
}

func (g *ItineraryGenerator) failed(err error) error {
	g.logger.Error("itinerary generation failed", "error", err)
	return UpstreamError{
		Op:      "itinerary generation",
		Message: "Itinerary generation failed: " + err.Error(),
		Err:     err,
	}
}

// ─── Prompt ───────────────────────────────────────────────────────────────────

func BuildItineraryPrompt(q ItineraryQuery, w SlotWindows) string {
	arrival := q.ArrivalTime
	if arrival == "" {
		arrival = "morning"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed %d-day travel itinerary for %s.\n", q.Duration, q.Destination)
	fmt.Fprintf(&b, "Travel style: %s\n", q.TravelStyle)
	fmt.Fprintf(&b, "Budget: %s\n", q.Budget)
	fmt.Fprintf(&b, "Interests: %s\n", strings.Join(q.Interests, ", "))
	fmt.Fprintf(&b, "Flight arrives at: %s\n\n", arrival)

	b.WriteString("For Day 1, use these time slots:\n")
	fmt.Fprintf(&b, "Morning: %s (after arrival activities)\n", w.Morning)
	fmt.Fprintf(&b, "Afternoon: %s (main activities)\n", w.Afternoon)
	fmt.Fprintf(&b, "Evening: %s (dinner/relaxation)\n\n", w.Evening)

	b.WriteString("Return JSON with these exact fields:\n")
	b.WriteString(promptSchema(w))
	return b.String()
}

func promptSchema(w SlotWindows) string {
	example := map[string]any{
		"summary": "brief overview",
		"daily_plans": []map[string]any{{
			"day":  1,
			"date": "Day 1",
			"time_slots": map[string]TimeSlot{
				SlotMorning:   {Time: w.Morning, Activities: []string{"light activity after arrival"}},
				SlotAfternoon: {Time: w.Afternoon, Activities: []string{"main activity"}},
				SlotEvening:   {Time: w.Evening, Activities: []string{"dinner", "relax"}},
			},
			"highlights": []string{"key attractions"},
		}},
		"packing_list": []string{"essential items"},
		"local_tips":   []string{"useful advice"},
	}
	out, _ := json.MarshalIndent(example, "", "  ")
	return string(out)
}

// ─── Arrival ──────────────────────────────────────────────────────────────────

// MergeArrival records on day 1 when and where the selected outbound flight
// lands. It is a no-op without a day plan or a segment.
func MergeArrival(it *GeneratedItinerary, flight *FlightOption) {
	if it == nil || flight == nil || len(it.DailyPlans) == 0 || len(flight.Segments) == 0 {
		return
	}
	last := flight.Segments[len(flight.Segments)-1]
	info := fmt.Sprintf("Flight arrives at %s at %s", last.ArrivalTime, last.ArrivalAirport)
	it.DailyPlans[0].ArrivalInfo = &info
}
