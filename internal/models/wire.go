package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stored conditions use a compact schema with abbreviated field names so
// the engine stays bit-for-bit compatible with definitions written by
// earlier front-ends. Changing any tag here is a breaking change for
// existing stores.

type storedRange struct {
	Start string `json:"s"`
	End   string `json:"e"`
}

type storedDay struct {
	Day     string        `json:"d"`
	Enabled bool          `json:"e"`
	Ranges  []storedRange `json:"r,omitempty"`
}

type storedHoliday struct {
	ID          string `json:"id"`
	Name        string `json:"n"`
	Date        string `json:"dt"`
	Recurring   bool   `json:"r,omitempty"`
	Destination string `json:"ds,omitempty"`
	Description string `json:"de,omitempty"`
}

type storedCondition struct {
	ID                 string          `json:"id"`
	Name               string          `json:"n"`
	Description        string          `json:"d,omitempty"`
	Schedule           []storedDay     `json:"s"`
	Holidays           []storedHoliday `json:"h,omitempty"`
	OverrideMode       string          `json:"om,omitempty"`
	OverrideExpires    string          `json:"oe,omitempty"`
	Timezone           string          `json:"tz,omitempty"`
	Enabled            bool            `json:"en"`
	OpenDestination    string          `json:"od,omitempty"`
	ClosedDestination  string          `json:"cd,omitempty"`
	HolidayDestination string          `json:"hd,omitempty"`
}

// EncodeCondition serializes a condition into its stored form.
func EncodeCondition(c *TimeCondition) ([]byte, error) {
	sc := storedCondition{
		ID:                 c.ID,
		Name:               c.Name,
		Description:        c.Description,
		Timezone:           c.Timezone,
		Enabled:            c.Enabled,
		OpenDestination:    c.OpenDestination,
		ClosedDestination:  c.ClosedDestination,
		HolidayDestination: c.HolidayDestination,
	}
	if c.OverrideMode != "" && c.OverrideMode != OverrideNone {
		sc.OverrideMode = string(c.OverrideMode)
	}
	if c.OverrideExpires != nil && !c.OverrideExpires.IsZero() {
		sc.OverrideExpires = c.OverrideExpires.Format(time.RFC3339)
	}
	for _, ds := range c.Schedule {
		sd := storedDay{Day: string(ds.Day), Enabled: ds.Enabled}
		for _, r := range ds.Ranges {
			sd.Ranges = append(sd.Ranges, storedRange{Start: r.Start, End: r.End})
		}
		sc.Schedule = append(sc.Schedule, sd)
	}
	for _, h := range c.Holidays {
		sc.Holidays = append(sc.Holidays, storedHoliday{
			ID:          h.ID,
			Name:        h.Name,
			Date:        h.Date,
			Recurring:   h.Recurring,
			Destination: h.Destination,
			Description: h.Description,
		})
	}
	return json.Marshal(sc)
}

// DecodeCondition parses a stored condition back into the full model.
func DecodeCondition(data []byte) (*TimeCondition, error) {
	var sc storedCondition
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}

	c := &TimeCondition{
		ID:                 sc.ID,
		Name:               sc.Name,
		Description:        sc.Description,
		OverrideMode:       OverrideMode(sc.OverrideMode),
		Timezone:           sc.Timezone,
		Enabled:            sc.Enabled,
		OpenDestination:    sc.OpenDestination,
		ClosedDestination:  sc.ClosedDestination,
		HolidayDestination: sc.HolidayDestination,
	}
	if c.OverrideMode == "" {
		c.OverrideMode = OverrideNone
	}
	if sc.OverrideExpires != "" {
		exp, err := time.Parse(time.RFC3339, sc.OverrideExpires)
		if err != nil {
			return nil, fmt.Errorf("decode condition %s: override expiry: %w", sc.ID, err)
		}
		c.OverrideExpires = &exp
	}
	for _, sd := range sc.Schedule {
		ds := DailySchedule{Day: Day(sd.Day), Enabled: sd.Enabled}
		for _, r := range sd.Ranges {
			ds.Ranges = append(ds.Ranges, TimeRange{Start: r.Start, End: r.End})
		}
		c.Schedule = append(c.Schedule, ds)
	}
	for _, sh := range sc.Holidays {
		c.Holidays = append(c.Holidays, Holiday{
			ID:          sh.ID,
			Name:        sh.Name,
			Date:        sh.Date,
			Recurring:   sh.Recurring,
			Destination: sh.Destination,
			Description: sh.Description,
		})
	}
	return c, nil
}
