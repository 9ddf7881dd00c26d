// Package engine holds the pure status-resolution functions of the
// time-condition engine. Nothing here performs I/O or mutates its inputs,
// so every function is safe to call concurrently.
package engine

import (
	"time"

	"tollgate/internal/models"
)

// IsWithinRange reports whether the instant's time of day falls inside the
// range. The end bound is exclusive, which fixes the exact minute of
// closing. A range whose end precedes its start spans midnight: 22:00-06:00
// matches [22:00, 24:00) and [00:00, 06:00). A range with equal bounds is
// empty and never matches. Malformed bounds never match; they are rejected
// at mutation time.
func IsWithinRange(at time.Time, r models.TimeRange) bool {
	s, err := models.MinuteOfDay(r.Start)
	if err != nil {
		return false
	}
	e, err := models.MinuteOfDay(r.End)
	if err != nil {
		return false
	}
	m := at.Hour()*60 + at.Minute()
	if e < s {
		return m >= s || m < e
	}
	return m >= s && m < e
}

// IsScheduledOpen reports whether the weekly schedule alone considers the
// condition open at the instant, ignoring holidays, overrides and the
// enabled flag.
func IsScheduledOpen(c *models.TimeCondition, at time.Time) bool {
	ds := c.DaySchedule(models.DayOf(at))
	if ds == nil || !ds.Enabled || len(ds.Ranges) == 0 {
		return false
	}
	for _, r := range ds.Ranges {
		if IsWithinRange(at, r) {
			return true
		}
	}
	return false
}
