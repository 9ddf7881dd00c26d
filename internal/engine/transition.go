package engine

import (
	"time"

	"tollgate/internal/models"
)

// NextTransition projects the next instant at which the condition's
// schedule or override state would change, or nil if none is known within
// a 7-day horizon. Persistent force overrides pin the state, so for them
// the projection reports the underlying schedule boundary.
func NextTransition(c *models.TimeCondition, at time.Time) *models.NextChange {
	// A live temporary override changes state exactly at its expiry. The
	// projected state is the schedule's verdict at that future instant;
	// the holiday calendar is not consulted for it.
	if EffectiveOverride(c, at) == models.OverrideTemporary && c.OverrideExpires != nil {
		exp := *c.OverrideExpires
		state := models.StateClosed
		if c.Enabled && IsScheduledOpen(c, exp) {
			state = models.StateOpen
		}
		return &models.NextChange{State: state, At: exp, Reason: models.ReasonOverrideExpiry}
	}

	// A disabled condition stays closed; no schedule boundary changes it.
	if !c.Enabled {
		return nil
	}

	nowMin := at.Hour()*60 + at.Minute()

	// Remaining boundaries today, in the order the ranges are given.
	if ds := c.DaySchedule(models.DayOf(at)); ds != nil && ds.Enabled {
		for _, r := range ds.Ranges {
			s, err := models.MinuteOfDay(r.Start)
			if err != nil {
				continue
			}
			e, err := models.MinuteOfDay(r.End)
			if err != nil {
				continue
			}
			if s > nowMin {
				return &models.NextChange{State: models.StateOpen, At: atMinute(at, s), Reason: models.ReasonScheduleOpen}
			}
			if e > nowMin {
				return &models.NextChange{State: models.StateClosed, At: atMinute(at, e), Reason: models.ReasonScheduleClose}
			}
		}
	}

	// Nothing left today: the next enabled day with ranges opens at its
	// first range start.
	for i := 1; i <= 7; i++ {
		day := at.AddDate(0, 0, i)
		ds := c.DaySchedule(models.DayOf(day))
		if ds == nil || !ds.Enabled || len(ds.Ranges) == 0 {
			continue
		}
		s, err := models.MinuteOfDay(ds.Ranges[0].Start)
		if err != nil {
			continue
		}
		return &models.NextChange{State: models.StateOpen, At: atMinute(day, s), Reason: models.ReasonScheduleOpen}
	}

	return nil
}

func atMinute(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}
