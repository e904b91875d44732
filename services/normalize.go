package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Provider payloads are decoded into map[string]any with json.Number for
// numbers, so every helper here is total: a missing or oddly typed field
// degrades to a default instead of failing the batch.

const (
	notAvailable = "N/A"
	notRated     = "Not rated"
	maxPhotos    = 3
	maxAmenities = 5
)

var defaultHotelAmenities = []string{"WiFi", "Pool", "AC"}

// ─── Time ─────────────────────────────────────────────────────────────────────

// NormalizeTime renders a 24-hour "HH:MM" value as "HH:MM AM/PM". Anything
// that does not parse is returned as-is, and an empty value becomes "N/A".
func NormalizeTime(raw string) string {
	// Single-digit hours and minutes are accepted, as in "9:5".
	t, err := time.Parse("15:4", raw)
	if err != nil {
		if raw == "" {
			return notAvailable
		}
		return raw
	}
	return t.Format("03:04 PM")
}

// ─── Hotel fields ─────────────────────────────────────────────────────────────

// NormalizeRating takes the first non-null candidate and accepts it only if
// it is numeric and within [0,5].
func NormalizeRating(candidates ...any) string {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		r, ok := toFloat(c)
		if !ok || math.IsNaN(r) || r < 0 || r > 5 {
			return notRated
		}
		return strconv.FormatFloat(r, 'f', 1, 64)
	}
	return notRated
}

// NormalizeAddress returns the first non-blank of address, location and
// full_address, else "Near {fallback}".
func NormalizeAddress(record map[string]any, fallback string) string {
	for _, key := range []string{"address", "location", "full_address"} {
		if s, ok := record[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return "Near " + fallback
}

// NormalizePhotos keeps http(s) URL strings, at most three, in source order.
func NormalizePhotos(raw any) []string {
	list, _ := raw.([]any)
	photos := make([]string, 0, maxPhotos)
	for _, p := range list {
		if len(photos) == maxPhotos {
			break
		}
		s, ok := p.(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			photos = append(photos, s)
		}
	}
	return photos
}

// NormalizePrice reads rate_per_night.lowest and strips currency glyphs.
func NormalizePrice(record map[string]any) string {
	rate, _ := record["rate_per_night"].(map[string]any)
	raw, ok := scalarText(rate["lowest"])
	if !ok {
		return notAvailable
	}
	price := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, raw))
	if price == "" {
		return notAvailable
	}
	return price
}

// NormalizeStars coerces a star count to an int, truncating fractions.
func NormalizeStars(raw any) int {
	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// NormalizeAmenities keeps up to five amenity names. Only an absent list
// falls back to the default set; an empty one stays empty.
func NormalizeAmenities(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return append([]string(nil), defaultHotelAmenities...)
	}
	amenities := make([]string, 0, maxAmenities)
	for _, a := range list {
		if len(amenities) == maxAmenities {
			break
		}
		if s, ok := a.(string); ok {
			amenities = append(amenities, s)
		}
	}
	return amenities
}

// ─── Generic getters ──────────────────────────────────────────────────────────

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// scalarText renders strings and numbers verbatim; anything else is absent.
func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

func textOr(record map[string]any, key, fallback string) string {
	if s, ok := scalarText(record[key]); ok {
		return s
	}
	return fallback
}

func firstTextOr(record map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if s, ok := scalarText(record[key]); ok && s != "" {
			return s
		}
	}
	return fallback
}

func optionalText(record map[string]any, key string) *string {
	s, ok := scalarText(record[key])
	if !ok {
		return nil
	}
	return &s
}

func intOr(record map[string]any, key string, fallback int) int {
	f, ok := toFloat(record[key])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return int(f)
}

// stringList keeps the scalar entries of a list as text.
func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := scalarText(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapAt(record map[string]any, key string) map[string]any {
	m, _ := record[key].(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func listOfMaps(record map[string]any, key string) []map[string]any {
	list, _ := record[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
