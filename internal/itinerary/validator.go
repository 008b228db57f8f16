package itinerary

import (
	"fmt"

	"github.com/tidwall/gjson"
)

const (
	MsgNotProvided   = "itinerary not provided"
	MsgMissingTrip   = "missing tripInfo section"
	MsgMissingDays   = "missing itinerary section"
	MsgDaysNotArray  = "itinerary must be an array"
	MsgValidDocument = "itinerary is valid and compatible"
)

const (
	tripInfoKey   = "tripInfo"
	itineraryKey  = "itinerary"
	dayKey        = "day"
	movementsKey  = "movements"
	activitiesKey = "activities"
)

// tripInfoFields are checked in order, each one producing its own error.
var tripInfoFields = []string{"from", "to", "duration"}

// Report is the outcome of validating one itinerary document.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Report) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateBytes validates a raw JSON payload. Bytes that are not valid JSON are
// reported the same way as an absent document.
func ValidateBytes(data []byte) Report {
	if !gjson.ValidBytes(data) {
		return Validate(gjson.Result{})
	}
	return Validate(gjson.ParseBytes(data))
}

// Validate checks doc against the itinerary shape. It never fails: every
// anomaly ends up in the returned report.
func Validate(doc gjson.Result) Report {
	r := Report{
		Errors:   []string{},
		Warnings: []string{},
	}

	if !present(doc) {
		r.addError(MsgNotProvided)
		return r
	}

	checkTripInfo(doc, &r)
	checkDays(doc, &r)

	if len(r.Errors) == 0 {
		r.addWarning(MsgValidDocument)
	}
	r.Valid = len(r.Errors) == 0

	return r
}

func checkTripInfo(doc gjson.Result, r *Report) {
	trip := doc.Get(tripInfoKey)
	if !present(trip) {
		r.addError(MsgMissingTrip)
		return
	}

	for _, field := range tripInfoFields {
		if !present(trip.Get(field)) {
			r.addError("missing %s.%s", tripInfoKey, field)
		}
	}
}

func checkDays(doc gjson.Result, r *Report) {
	days := doc.Get(itineraryKey)
	if !present(days) {
		r.addError(MsgMissingDays)
		return
	}
	if !days.IsArray() {
		r.addError(MsgDaysNotArray)
		return
	}

	entries := days.Array()
	r.addWarning("itinerary contains %d days", len(entries))

	for i, day := range entries {
		id := day.Get(dayKey)
		if !present(id) {
			r.addError("%s[%d]: missing %s", itineraryKey, i, dayKey)
		}

		movements := day.Get(movementsKey)
		if !present(movements) {
			r.addError("%s[%d]: missing %s", itineraryKey, i, movementsKey)
			continue
		}
		if !movements.IsArray() {
			continue
		}

		label := id.String()
		if !present(id) {
			label = "unknown"
		}
		r.addWarning("day %s: %d activities", label, countActivities(movements))
	}
}

func countActivities(movements gjson.Result) int {
	total := 0
	movements.ForEach(func(_, movement gjson.Result) bool {
		if activities := movement.Get(activitiesKey); activities.IsArray() {
			total += len(activities.Array())
		}
		return true
	})
	return total
}

// present reports whether a value exists and is not an explicit null.
func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}
