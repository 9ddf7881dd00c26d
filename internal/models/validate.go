package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError reports a malformed field in a mutation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation checks if error is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MinuteOfDay parses "HH:MM" into minutes since midnight.
func MinuteOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}

// ValidateClock checks that s is a well-formed "HH:MM" time of day.
func ValidateClock(field, s string) error {
	if _, err := MinuteOfDay(s); err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	return nil
}

// ValidateDate checks that s is a real calendar date "YYYY-MM-DD".
func ValidateDate(field, s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return nil
}

// ValidateID checks a condition or holiday identifier.
func ValidateID(field, id string) error {
	if id == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	if len(id) > 128 {
		return &ValidationError{Field: field, Message: "too long"}
	}
	if strings.ContainsAny(id, " \t\n") {
		return &ValidationError{Field: field, Message: "must not contain whitespace"}
	}
	return nil
}

// ParseDay maps a weekday tag string onto a Day.
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToLower(s))
	for _, known := range WeekDays {
		if d == known {
			return d, nil
		}
	}
	return "", &ValidationError{Field: "day", Message: fmt.Sprintf("unknown weekday %q", s)}
}

// ValidateRange checks both bounds of a time range.
func (r TimeRange) Validate(field string) error {
	if err := ValidateClock(field+".start", r.Start); err != nil {
		return err
	}
	return ValidateClock(field+".end", r.End)
}

// ValidateDailySchedule checks one weekday entry.
func ValidateDailySchedule(ds DailySchedule) error {
	if _, err := ParseDay(string(ds.Day)); err != nil {
		return err
	}
	for i, r := range ds.Ranges {
		if err := r.Validate(fmt.Sprintf("schedule.%s.ranges[%d]", ds.Day, i)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateWeeklySchedule checks that schedule has exactly 7 entries with
// each weekday appearing exactly once. Order is insignificant.
func ValidateWeeklySchedule(schedule []DailySchedule) error {
	if len(schedule) != len(WeekDays) {
		return &ValidationError{Field: "schedule", Message: fmt.Sprintf("want %d day entries, got %d", len(WeekDays), len(schedule))}
	}
	seen := make(map[Day]bool, len(WeekDays))
	for _, ds := range schedule {
		if err := ValidateDailySchedule(ds); err != nil {
			return err
		}
		if seen[ds.Day] {
			return &ValidationError{Field: "schedule", Message: fmt.Sprintf("weekday %s appears more than once", ds.Day)}
		}
		seen[ds.Day] = true
	}
	return nil
}

// ValidateHoliday checks a holiday entry.
func ValidateHoliday(h Holiday) error {
	if err := ValidateID("holiday.id", h.ID); err != nil {
		return err
	}
	if h.Name == "" {
		return &ValidationError{Field: "holiday.name", Message: "must not be empty"}
	}
	return ValidateDate("holiday.date", h.Date)
}

// ValidateOverride checks an override mode and its expiry requirement.
func ValidateOverride(mode OverrideMode, expires *time.Time) error {
	switch mode {
	case OverrideNone, OverrideForceOpen, OverrideForceClosed:
		return nil
	case OverrideTemporary:
		if expires == nil || expires.IsZero() {
			return &ValidationError{Field: "overrideExpires", Message: "required for temporary override"}
		}
		return nil
	default:
		return &ValidationError{Field: "overrideMode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}
}

// Validate checks the whole condition definition.
func (c *TimeCondition) Validate() error {
	if err := ValidateID("id", c.ID); err != nil {
		return err
	}
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if err := ValidateWeeklySchedule(c.Schedule); err != nil {
		return err
	}
	for _, h := range c.Holidays {
		if err := ValidateHoliday(h); err != nil {
			return err
		}
	}
	return ValidateOverride(c.OverrideMode, c.OverrideExpires)
}
