package engine

import (
	"fmt"
	"time"

	"tollgate/internal/models"
)

// ComputeStatus resolves a condition's status at an instant. Precedence:
// override, then holiday, then the weekly schedule. A disabled condition
// resolves as closed unless an override applies; its schedule and holiday
// data stay untouched.
func ComputeStatus(c *models.TimeCondition, at time.Time) models.ComputedStatus {
	scheduledOpen := c.Enabled && IsScheduledOpen(c, at)

	st := models.ComputedStatus{
		ConditionID:     c.ID,
		IsScheduledOpen: scheduledOpen,
		OverrideMode:    EffectiveOverride(c, at),
		CheckedAt:       at,
	}

	switch st.OverrideMode {
	case models.OverrideForceOpen:
		st.State = models.StateOverrideOpen
		st.IsOverrideActive = true
		st.StatusText = "Override: Forced Open"
	case models.OverrideForceClosed:
		st.State = models.StateOverrideClosed
		st.IsOverrideActive = true
		st.StatusText = "Override: Forced Closed"
	case models.OverrideTemporary:
		st.State = models.StateOverrideClosed
		st.IsOverrideActive = true
		st.OverrideExpires = c.OverrideExpires
		if c.OverrideExpires != nil {
			st.StatusText = fmt.Sprintf("Override: Closed until %s", c.OverrideExpires.Format("2006-01-02 15:04"))
		} else {
			// Legacy data can carry a temporary override with no expiry.
			st.StatusText = "Override: Temporarily Closed"
		}
	default:
		if c.Enabled {
			if h := FindHoliday(c, at); h != nil {
				st.State = models.StateHoliday
				st.CurrentHoliday = h
				st.StatusText = fmt.Sprintf("Holiday: %s", h.Name)
			}
		}
		if st.State == "" {
			if scheduledOpen {
				st.State = models.StateOpen
				st.StatusText = "Open"
			} else {
				st.State = models.StateClosed
				st.StatusText = "Closed"
			}
		}
	}

	st.NextChange = NextTransition(c, at)
	return st
}
