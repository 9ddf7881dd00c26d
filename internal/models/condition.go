package models

import "time"

// Day is a weekday tag as stored in a condition's weekly schedule.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// WeekDays lists all weekday tags in Monday-first order.
var WeekDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DayOf returns the weekday tag for an instant.
func DayOf(t time.Time) Day {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// TimeRange is a wall-clock span within a day, "HH:MM" inclusive start,
// exclusive end. End before start denotes an overnight span crossing
// midnight (22:00-06:00). Start equal to end is an empty range and never
// matches.
type TimeRange struct {
	Start string
	End   string
}

// DailySchedule holds the ranges for one weekday.
type DailySchedule struct {
	Day     Day
	Enabled bool
	Ranges  []TimeRange
}

// Holiday is a one-off or yearly recurring closed date. Date is always a
// full "YYYY-MM-DD"; for recurring holidays only the month-day part is
// compared and the year is ignored.
type Holiday struct {
	ID          string
	Name        string
	Date        string
	Recurring   bool
	Destination string
	Description string
}

// OverrideMode is the manual override applied on top of schedule and
// holidays.
type OverrideMode string

const (
	OverrideNone        OverrideMode = "none"
	OverrideForceOpen   OverrideMode = "force_open"
	OverrideForceClosed OverrideMode = "force_closed"
	OverrideTemporary   OverrideMode = "temporary"
)

// ConditionState is the resolved routing state of a condition.
type ConditionState string

const (
	StateOpen           ConditionState = "open"
	StateClosed         ConditionState = "closed"
	StateHoliday        ConditionState = "holiday"
	StateOverrideOpen   ConditionState = "override_open"
	StateOverrideClosed ConditionState = "override_closed"
)

// TimeCondition is the persisted unit: a named weekly schedule plus
// holidays and an optional manual override. Destinations are opaque
// routing targets passed through to callers unmodified, as is Timezone.
type TimeCondition struct {
	ID              string
	Name            string
	Description     string
	Schedule        []DailySchedule // exactly 7 entries, one per weekday
	Holidays        []Holiday
	OverrideMode    OverrideMode
	OverrideExpires *time.Time // required iff OverrideMode is temporary
	Timezone        string
	Enabled         bool

	OpenDestination    string
	ClosedDestination  string
	HolidayDestination string
}

// DaySchedule returns the schedule entry for a weekday, or nil if the
// condition has no entry for it.
func (c *TimeCondition) DaySchedule(d Day) *DailySchedule {
	for i := range c.Schedule {
		if c.Schedule[i].Day == d {
			return &c.Schedule[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Mutations build the next version on a clone
// and only swap it in after persistence succeeds.
func (c *TimeCondition) Clone() *TimeCondition {
	out := *c
	if c.OverrideExpires != nil {
		exp := *c.OverrideExpires
		out.OverrideExpires = &exp
	}
	out.Schedule = make([]DailySchedule, len(c.Schedule))
	for i, ds := range c.Schedule {
		out.Schedule[i] = ds
		out.Schedule[i].Ranges = append([]TimeRange(nil), ds.Ranges...)
	}
	out.Holidays = append([]Holiday(nil), c.Holidays...)
	return &out
}

// DefaultWeeklySchedule returns Monday-Friday 09:00-17:00 with the
// weekend disabled. Used when a condition is created without a schedule.
func DefaultWeeklySchedule() []DailySchedule {
	schedule := make([]DailySchedule, 0, len(WeekDays))
	for _, d := range WeekDays {
		ds := DailySchedule{Day: d}
		if d != Saturday && d != Sunday {
			ds.Enabled = true
			ds.Ranges = []TimeRange{{Start: "09:00", End: "17:00"}}
		}
		schedule = append(schedule, ds)
	}
	return schedule
}

// Transition reasons reported in NextChange.
const (
	ReasonScheduleOpen   = "schedule_open"
	ReasonScheduleClose  = "schedule_close"
	ReasonOverrideExpiry = "override_expiry"
)

// NextChange is the next projected state transition.
type NextChange struct {
	State  ConditionState
	At     time.Time
	Reason string
}

// ComputedStatus is the derived status of a condition at an instant. It is
// never persisted.
type ComputedStatus struct {
	ConditionID      string
	State            ConditionState
	StatusText       string
	IsScheduledOpen  bool
	IsOverrideActive bool
	OverrideMode     OverrideMode // effective mode, after expiry lapse
	OverrideExpires  *time.Time
	CurrentHoliday   *Holiday
	NextChange       *NextChange
	CheckedAt        time.Time
}
