package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinuteOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"9:00", 0, false},
		{"12:5", 0, false},
		{"noon", 0, false},
		{"", 0, false},
		{"12:00:00", 0, false},
	}
	for _, tc := range cases {
		got, err := MinuteOfDay(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("d", "2024-12-25"))
	assert.NoError(t, ValidateDate("d", "2024-02-29"))
	assert.Error(t, ValidateDate("d", "2025-02-29"), "not a leap year")
	assert.Error(t, ValidateDate("d", "2024-13-01"))
	assert.Error(t, ValidateDate("d", "25.12.2024"))
	assert.Error(t, ValidateDate("d", ""))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("id", "tc-main"))
	assert.Error(t, ValidateID("id", ""))
	assert.Error(t, ValidateID("id", "has space"))

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateID("id", string(long)))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("Monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, d)

	_, err = ParseDay("someday")
	assert.True(t, IsValidation(err))
}

func TestValidateWeeklySchedule(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		assert.NoError(t, ValidateWeeklySchedule(DefaultWeeklySchedule()))
	})

	t.Run("MissingDay", func(t *testing.T) {
		s := DefaultWeeklySchedule()[:6]
		err := ValidateWeeklySchedule(s)
		assert.True(t, IsValidation(err))
	})

	t.Run("DuplicateDay", func(t *testing.T) {
		s := DefaultWeeklySchedule()
		s[1].Day = Monday
		err := ValidateWeeklySchedule(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("BadRange", func(t *testing.T) {
		s := DefaultWeeklySchedule()
		s[0].Ranges = []TimeRange{{Start: "09:00", End: "25:00"}}
		assert.True(t, IsValidation(ValidateWeeklySchedule(s)))
	})
}

func TestValidateOverride(t *testing.T) {
	now := time.Now()
	assert.NoError(t, ValidateOverride(OverrideNone, nil))
	assert.NoError(t, ValidateOverride(OverrideForceOpen, nil))
	assert.NoError(t, ValidateOverride(OverrideForceClosed, nil))
	assert.NoError(t, ValidateOverride(OverrideTemporary, &now))
	assert.Error(t, ValidateOverride(OverrideTemporary, nil))
	assert.Error(t, ValidateOverride(OverrideMode("open_forever"), nil))
}

func TestConditionValidate(t *testing.T) {
	valid := func() *TimeCondition {
		return &TimeCondition{
			ID:       "tc-1",
			Name:     "Main",
			Schedule: DefaultWeeklySchedule(),
			Enabled:  true,
		}
	}

	assert.NoError(t, valid().Validate())

	t.Run("EmptyName", func(t *testing.T) {
		c := valid()
		c.Name = ""
		err := c.Validate()
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "name", ve.Field)
	})

	t.Run("BadHoliday", func(t *testing.T) {
		c := valid()
		c.Holidays = []Holiday{{ID: "h1", Name: "X", Date: "soon"}}
		assert.True(t, IsValidation(c.Validate()))
	})

	t.Run("TemporaryNeedsExpiry", func(t *testing.T) {
		c := valid()
		c.OverrideMode = OverrideTemporary
		assert.True(t, IsValidation(c.Validate()))
	})
}

func TestClone(t *testing.T) {
	exp := time.Now()
	c := &TimeCondition{
		ID:              "tc-1",
		Name:            "Main",
		Schedule:        DefaultWeeklySchedule(),
		Holidays:        []Holiday{{ID: "h1", Name: "X", Date: "2025-01-01"}},
		OverrideMode:    OverrideTemporary,
		OverrideExpires: &exp,
		Enabled:         true,
	}

	cp := c.Clone()
	cp.Schedule[0].Ranges[0].Start = "00:01"
	cp.Holidays[0].Name = "Y"
	*cp.OverrideExpires = exp.Add(time.Hour)

	assert.Equal(t, "09:00", c.Schedule[0].Ranges[0].Start)
	assert.Equal(t, "X", c.Holidays[0].Name)
	assert.Equal(t, exp, *c.OverrideExpires)
}
