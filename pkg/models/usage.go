package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SlotsPerDay is the number of 30-minute intervals in a day
const SlotsPerDay = 48

// Credentials are the login details for a portal account
type Credentials struct {
	Username string
	Password string
}

// MonthlyUsage represents one month of billed usage. Nil fields mean the
// portal showed no data for that month.
type MonthlyUsage struct {
	Period       string // e.g. "2017/10" or the header text from the portal
	BillableDays *int
	KWh          *float64
	Payment      *float64
}

type monthlyValue struct {
	Day     *int     `json:"day"`
	KWh     *float64 `json:"kWh"`
	Payment *float64 `json:"payment"`
}

// MarshalJSON encodes the record as {"month": ..., "value": {...}}
func (m MonthlyUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Month string       `json:"month"`
		Value monthlyValue `json:"value"`
	}{
		Month: m.Period,
		Value: monthlyValue{Day: m.BillableDays, KWh: m.KWh, Payment: m.Payment},
	})
}

// UnmarshalJSON decodes the format written by MarshalJSON
func (m *MonthlyUsage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Month string       `json:"month"`
		Value monthlyValue `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MonthlyUsage{
		Period:       raw.Month,
		BillableDays: raw.Value.Day,
		KWh:          raw.Value.KWh,
		Payment:      raw.Value.Payment,
	}
	return nil
}

// MonthlyReport is the result of a monthly fetch, in chronological order
type MonthlyReport struct {
	Monthly []MonthlyUsage `json:"monthly"`
}

// HalfHourUsage represents a single day's usage in 30-minute slots
type HalfHourUsage struct {
	Day       string    `json:"day"`   // Date token as shown by the portal, e.g. "2017/10/05"
	Intervals []float64 `json:"value"` // One value per slot, zero is a real reading
}

// Complete reports whether the day has a value for every slot
func (h *HalfHourUsage) Complete() bool {
	return len(h.Intervals) == SlotsPerDay
}

// Date parses the day token
func (h *HalfHourUsage) Date() (time.Time, error) {
	s := strings.TrimSpace(h.Day)
	for _, layout := range []string{"2006/01/02", "2006/1/2", "06/01/02"} {
		if t, err := time.ParseInLocation(layout, s, Tokyo); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse day: %s", h.Day)
}

// SlotStart returns the start time of the given slot
func (h *HalfHourUsage) SlotStart(slot int) (time.Time, error) {
	day, err := h.Date()
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(slot) * 30 * time.Minute), nil
}

// IntervalReading is one stored 30-minute reading
type IntervalReading struct {
	ID        int
	Portal    string
	StartTime time.Time
	EndTime   time.Time
	KWh       float64
}

// Readings expands the day into one reading per slot
func (h *HalfHourUsage) Readings(portal string) ([]IntervalReading, error) {
	day, err := h.Date()
	if err != nil {
		return nil, err
	}
	readings := make([]IntervalReading, 0, len(h.Intervals))
	for slot, kwh := range h.Intervals {
		start := day.Add(time.Duration(slot) * 30 * time.Minute)
		readings = append(readings, IntervalReading{
			Portal:    portal,
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			KWh:       kwh,
		})
	}
	return readings, nil
}

// Tokyo is the timezone the portals report in
var Tokyo = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()
