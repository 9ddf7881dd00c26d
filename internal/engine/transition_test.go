package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/models"
)

func TestNextTransition(t *testing.T) {
	t.Run("BeforeOpening", func(t *testing.T) {
		nc := NextTransition(weekdayCondition(), onMonday(8, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateOpen, nc.State)
		assert.Equal(t, onMonday(9, 0), nc.At)
		assert.Equal(t, models.ReasonScheduleOpen, nc.Reason)
	})

	t.Run("DuringHours", func(t *testing.T) {
		nc := NextTransition(weekdayCondition(), onMonday(10, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateClosed, nc.State)
		assert.Equal(t, onMonday(17, 0), nc.At)
		assert.Equal(t, models.ReasonScheduleClose, nc.Reason)
	})

	t.Run("AfterHoursRollsToNextDay", func(t *testing.T) {
		nc := NextTransition(weekdayCondition(), onMonday(18, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateOpen, nc.State)
		assert.Equal(t, time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC), nc.At)
	})

	t.Run("FridayEveningSkipsWeekend", func(t *testing.T) {
		// 2025-01-10 is a Friday.
		friday := time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)
		nc := NextTransition(weekdayCondition(), friday)
		require.NotNil(t, nc)
		assert.Equal(t, time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC), nc.At, "next opening is Monday")
	})

	t.Run("SplitRanges", func(t *testing.T) {
		c := weekdayCondition()
		c.DaySchedule(models.Monday).Ranges = []models.TimeRange{
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		}

		nc := NextTransition(c, onMonday(12, 15))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateOpen, nc.State)
		assert.Equal(t, onMonday(13, 0), nc.At)

		nc = NextTransition(c, onMonday(11, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateClosed, nc.State)
		assert.Equal(t, onMonday(12, 0), nc.At)
	})

	t.Run("BoundaryIsNotItsOwnTransition", func(t *testing.T) {
		nc := NextTransition(weekdayCondition(), onMonday(9, 0))
		require.NotNil(t, nc)
		assert.Equal(t, onMonday(17, 0), nc.At, "at the open boundary the next change is the close")
	})

	t.Run("DisabledReturnsNil", func(t *testing.T) {
		c := weekdayCondition()
		c.Enabled = false
		assert.Nil(t, NextTransition(c, onMonday(10, 0)))
	})

	t.Run("AllDaysOffReturnsNil", func(t *testing.T) {
		c := weekdayCondition()
		for i := range c.Schedule {
			c.Schedule[i].Enabled = false
		}
		assert.Nil(t, NextTransition(c, onMonday(10, 0)))
	})

	t.Run("TemporaryOverrideProjectsExpiry", func(t *testing.T) {
		c := weekdayCondition()
		exp := onMonday(14, 30)
		c.OverrideMode = models.OverrideTemporary
		c.OverrideExpires = &exp

		nc := NextTransition(c, onMonday(10, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.ReasonOverrideExpiry, nc.Reason)
		assert.Equal(t, exp, nc.At)
		assert.Equal(t, models.StateOpen, nc.State, "schedule is open at the expiry instant")

		// Expiry after hours projects closed.
		late := onMonday(19, 0)
		c.OverrideExpires = &late
		nc = NextTransition(c, onMonday(10, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateClosed, nc.State)
	})

	t.Run("OverrideExpiryIgnoresHolidays", func(t *testing.T) {
		c := weekdayCondition()
		c.Holidays = []models.Holiday{{ID: "xmas", Name: "Christmas", Date: "2024-12-25", Recurring: true}}
		exp := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
		c.OverrideMode = models.OverrideTemporary
		c.OverrideExpires = &exp

		nc := NextTransition(c, time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC))
		require.NotNil(t, nc)
		assert.Equal(t, models.StateOpen, nc.State, "the projection reads the weekly schedule only")
	})

	t.Run("LapsedOverrideFallsThroughToSchedule", func(t *testing.T) {
		c := weekdayCondition()
		exp := onMonday(9, 30)
		c.OverrideMode = models.OverrideTemporary
		c.OverrideExpires = &exp

		nc := NextTransition(c, onMonday(10, 0))
		require.NotNil(t, nc)
		assert.Equal(t, models.ReasonScheduleClose, nc.Reason)
		assert.Equal(t, onMonday(17, 0), nc.At)
	})

	t.Run("ForceOverrideStillReportsScheduleBoundary", func(t *testing.T) {
		c := weekdayCondition()
		c.OverrideMode = models.OverrideForceClosed
		nc := NextTransition(c, onMonday(10, 0))
		require.NotNil(t, nc)
		assert.Equal(t, onMonday(17, 0), nc.At)
	})
}
