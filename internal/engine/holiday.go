package engine

import (
	"sort"
	"time"

	"tollgate/internal/models"
)

const dateLayout = "2006-01-02"

// FindHoliday returns the first holiday whose date matches the instant's
// calendar date, or nil. Recurring holidays compare month and day only.
// List order is the tie-break when several holidays share a date: the
// earliest entry wins, duplicates are not collapsed.
func FindHoliday(c *models.TimeCondition, at time.Time) *models.Holiday {
	date := at.Format(dateLayout)
	monthDay := date[5:]
	for i := range c.Holidays {
		h := &c.Holidays[i]
		if h.Recurring {
			if len(h.Date) == len(dateLayout) && h.Date[5:] == monthDay {
				return h
			}
		} else if h.Date == date {
			return h
		}
	}
	return nil
}

// HolidayOccurrence is a holiday projected onto a concrete calendar date.
type HolidayOccurrence struct {
	Holiday models.Holiday
	Date    time.Time
}

// UpcomingHolidays projects each holiday's next occurrence on or after
// from, keeps those within the horizon, and returns them sorted by date.
// Recurring holidays roll over to the following year when this year's date
// has already passed.
func UpcomingHolidays(c *models.TimeCondition, from time.Time, horizonDays int) []HolidayOccurrence {
	startOfDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	limit := startOfDay.AddDate(0, 0, horizonDays)

	var out []HolidayOccurrence
	for _, h := range c.Holidays {
		parsed, err := time.ParseInLocation(dateLayout, h.Date, from.Location())
		if err != nil {
			continue
		}
		occ := parsed
		if h.Recurring {
			occ = yearlyOccurrence(parsed, startOfDay)
			if occ.IsZero() {
				continue
			}
		}
		if occ.Before(startOfDay) || !occ.Before(limit) {
			continue
		}
		out = append(out, HolidayOccurrence{Holiday: h, Date: occ})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// yearlyOccurrence returns the next date with parsed's month and day on or
// after from. Feb 29 simply has no occurrence in a non-leap year.
func yearlyOccurrence(parsed, from time.Time) time.Time {
	for year := from.Year(); year <= from.Year()+1; year++ {
		occ := time.Date(year, parsed.Month(), parsed.Day(), 0, 0, 0, 0, from.Location())
		if occ.Day() != parsed.Day() {
			continue
		}
		if !occ.Before(from) {
			return occ
		}
	}
	return time.Time{}
}
