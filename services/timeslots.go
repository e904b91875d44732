package services

import (
	"strings"
	"time"
)

// SlotWindows are the day-1 display ranges for each slot.
type SlotWindows struct {
	Morning   string `json:"morning"`
	Afternoon string `json:"afternoon"`
	Evening   string `json:"evening"`
}

const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"

	alreadyTraveling = "Already traveling"
	rangeSep         = "–"

	morningEnd   = "12:00 PM"
	afternoonEnd = "5:00 PM"
	eveningEnd   = "10:00 PM"
)

// DefaultSlotWindows is used when no arrival time is known.
var DefaultSlotWindows = SlotWindows{
	Morning:   "9:00 AM" + rangeSep + morningEnd,
	Afternoon: "1:00 PM" + rangeSep + afternoonEnd,
	Evening:   "6:00 PM" + rangeSep + eveningEnd,
}

// PlanTimeSlots partitions day 1 around an arrival time given as "HH:MM AM/PM".
// Windows that end before arrival collapse to "Already traveling"; the window
// containing arrival starts at it. An empty or unparseable arrival yields the
// default windows.
func PlanTimeSlots(arrival string) SlotWindows {
	t, ok := parseArrival(arrival)
	if !ok {
		return DefaultSlotWindows
	}

	from := t.Format("03:04 PM") + rangeSep
	w := DefaultSlotWindows
	switch h := t.Hour(); {
	case h < 9:
	case h < 13:
		w.Morning = from + morningEnd
	case h < 18:
		w.Morning = alreadyTraveling
		w.Afternoon = from + afternoonEnd
	default:
		w.Morning = alreadyTraveling
		w.Afternoon = alreadyTraveling
		w.Evening = from + eveningEnd
	}
	return w
}

func parseArrival(arrival string) (time.Time, bool) {
	s := strings.ToUpper(strings.TrimSpace(arrival))
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("3:04 PM", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
