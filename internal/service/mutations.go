package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tollgate/internal/engine"
	"tollgate/internal/events"
	"tollgate/internal/models"
	"tollgate/internal/store"
	"tollgate/shared/audit"
)

// Every mutation follows the same protocol: validate, build the next full
// definition on a clone, persist the complete serialized definition, and
// only on persistence success swap the cache and recompute. A failed
// persist leaves the previous cached definition untouched.

// CreateConditionInput describes a new condition. An empty schedule gets
// the Monday-Friday 09:00-17:00 default; Enabled defaults to true.
type CreateConditionInput struct {
	Name        string
	Description string
	Timezone    string
	Schedule    []models.DailySchedule
	Holidays    []models.Holiday
	Enabled     *bool

	OpenDestination    string
	ClosedDestination  string
	HolidayDestination string
}

// UpdateConditionInput carries optional field updates; nil fields are
// left unchanged.
type UpdateConditionInput struct {
	Name        *string
	Description *string
	Timezone    *string
	Enabled     *bool

	OpenDestination    *string
	ClosedDestination  *string
	HolidayDestination *string
}

// HolidayInput describes a holiday to add or the new values for an update.
type HolidayInput struct {
	Name        string
	Date        string
	Recurring   bool
	Destination string
	Description string
}

// CreateCondition persists a new condition with a generated id and caches
// it.
func (s *Service) CreateCondition(ctx context.Context, in CreateConditionInput) (*models.TimeCondition, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	c := &models.TimeCondition{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Description:        in.Description,
		Timezone:           in.Timezone,
		OverrideMode:       models.OverrideNone,
		Enabled:            true,
		OpenDestination:    in.OpenDestination,
		ClosedDestination:  in.ClosedDestination,
		HolidayDestination: in.HolidayDestination,
	}
	if in.Enabled != nil {
		c.Enabled = *in.Enabled
	}
	if len(in.Schedule) == 0 {
		c.Schedule = models.DefaultWeeklySchedule()
	} else {
		c.Schedule = (&models.TimeCondition{Schedule: in.Schedule}).Clone().Schedule
	}
	for _, h := range in.Holidays {
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		c.Holidays = append(c.Holidays, h)
	}

	if err := c.Validate(); err != nil {
		s.metrics.IncMutation("create", "invalid")
		return nil, err
	}
	if err := s.persistSwap(ctx, c, "create", c.Name); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// UpdateCondition applies a partial update and persists the full result.
func (s *Service) UpdateCondition(ctx context.Context, id string, in UpdateConditionInput) (*models.TimeCondition, error) {
	return s.mutate(ctx, id, "update", "", func(next *models.TimeCondition) error {
		if in.Name != nil {
			next.Name = *in.Name
		}
		if in.Description != nil {
			next.Description = *in.Description
		}
		if in.Timezone != nil {
			next.Timezone = *in.Timezone
		}
		if in.Enabled != nil {
			next.Enabled = *in.Enabled
		}
		if in.OpenDestination != nil {
			next.OpenDestination = *in.OpenDestination
		}
		if in.ClosedDestination != nil {
			next.ClosedDestination = *in.ClosedDestination
		}
		if in.HolidayDestination != nil {
			next.HolidayDestination = *in.HolidayDestination
		}
		return nil
	})
}

// DeleteCondition removes the definition and its cached status.
func (s *Service) DeleteCondition(ctx context.Context, id string) error {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	if _, err := s.condition(id); err != nil {
		s.metrics.IncMutation("delete", "invalid")
		return err
	}
	if err := s.kv.Delete(ctx, conditionsFamily, id); err != nil {
		serr := &store.StoreError{Op: "delete", Family: conditionsFamily, Key: id, Err: err}
		s.fail(serr)
		s.metrics.IncMutation("delete", "failure")
		return serr
	}

	s.mu.Lock()
	delete(s.conditions, id)
	delete(s.statuses, id)
	s.metrics.SetConditionsCached(len(s.conditions))
	s.mu.Unlock()

	s.record("delete", id, "")
	s.metrics.IncMutation("delete", "success")
	s.logger.Info().Str("condition_id", id).Msg("condition deleted")
	return nil
}

// SetOverride applies a manual override. For a temporary override,
// expiresIn sets the expiry relative to now and must be positive; other
// modes ignore it. Mode none is equivalent to ClearOverride.
func (s *Service) SetOverride(ctx context.Context, id string, mode models.OverrideMode, expiresIn time.Duration) error {
	if mode == models.OverrideNone {
		return s.ClearOverride(ctx, id)
	}
	if mode == models.OverrideTemporary && expiresIn <= 0 {
		s.metrics.IncMutation("set_override", "invalid")
		return &models.ValidationError{Field: "expiresIn", Message: "must be positive for temporary override"}
	}

	_, err := s.mutate(ctx, id, "set_override", string(mode), func(next *models.TimeCondition) error {
		next.OverrideMode = mode
		if mode == models.OverrideTemporary {
			exp := s.now().Add(expiresIn)
			next.OverrideExpires = &exp
		} else {
			next.OverrideExpires = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish(events.Event{Type: events.TypeOverrideSet, ConditionID: id, Mode: mode})
	return nil
}

// ClearOverride removes any manual override, restoring the schedule- and
// holiday-derived state.
func (s *Service) ClearOverride(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, "clear_override", "", func(next *models.TimeCondition) error {
		next.OverrideMode = models.OverrideNone
		next.OverrideExpires = nil
		return nil
	})
	if err != nil {
		return err
	}

	s.bus.Publish(events.Event{Type: events.TypeOverrideCleared, ConditionID: id})
	return nil
}

// ToggleOverride forces the condition into the opposite of its current
// computed state: currently open becomes force_closed, anything else
// becomes force_open. The new mode is returned.
func (s *Service) ToggleOverride(ctx context.Context, id string) (models.OverrideMode, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	cur, err := s.condition(id)
	if err != nil {
		s.metrics.IncMutation("toggle_override", "invalid")
		return "", err
	}

	st := engine.ComputeStatus(cur, s.now())
	mode := models.OverrideForceOpen
	if st.State == models.StateOpen || st.State == models.StateOverrideOpen {
		mode = models.OverrideForceClosed
	}

	next := cur.Clone()
	next.OverrideMode = mode
	next.OverrideExpires = nil
	if err := s.persistSwap(ctx, next, "toggle_override", string(mode)); err != nil {
		return "", err
	}

	s.bus.Publish(events.Event{Type: events.TypeOverrideSet, ConditionID: id, Mode: mode})
	return mode, nil
}

// AddHoliday appends a holiday with a generated id.
func (s *Service) AddHoliday(ctx context.Context, id string, in HolidayInput) (*models.Holiday, error) {
	h := models.Holiday{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Date:        in.Date,
		Recurring:   in.Recurring,
		Destination: in.Destination,
		Description: in.Description,
	}
	_, err := s.mutate(ctx, id, "add_holiday", h.Name, func(next *models.TimeCondition) error {
		next.Holidays = append(next.Holidays, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// RemoveHoliday deletes a holiday by id.
func (s *Service) RemoveHoliday(ctx context.Context, id, holidayID string) error {
	_, err := s.mutate(ctx, id, "remove_holiday", holidayID, func(next *models.TimeCondition) error {
		for i := range next.Holidays {
			if next.Holidays[i].ID == holidayID {
				next.Holidays = append(next.Holidays[:i], next.Holidays[i+1:]...)
				return nil
			}
		}
		return &models.ValidationError{Field: "holiday.id", Message: "holiday not found"}
	})
	return err
}

// UpdateHoliday replaces a holiday's fields, keeping its id.
func (s *Service) UpdateHoliday(ctx context.Context, id, holidayID string, in HolidayInput) error {
	_, err := s.mutate(ctx, id, "update_holiday", holidayID, func(next *models.TimeCondition) error {
		for i := range next.Holidays {
			if next.Holidays[i].ID == holidayID {
				next.Holidays[i] = models.Holiday{
					ID:          holidayID,
					Name:        in.Name,
					Date:        in.Date,
					Recurring:   in.Recurring,
					Destination: in.Destination,
					Description: in.Description,
				}
				return nil
			}
		}
		return &models.ValidationError{Field: "holiday.id", Message: "holiday not found"}
	})
	return err
}

// UpdateDaySchedule replaces one weekday's schedule entry.
func (s *Service) UpdateDaySchedule(ctx context.Context, id string, ds models.DailySchedule) error {
	_, err := s.mutate(ctx, id, "update_day_schedule", string(ds.Day), func(next *models.TimeCondition) error {
		for i := range next.Schedule {
			if next.Schedule[i].Day == ds.Day {
				next.Schedule[i] = ds
				next.Schedule[i].Ranges = append([]models.TimeRange(nil), ds.Ranges...)
				return nil
			}
		}
		return &models.ValidationError{Field: "day", Message: fmt.Sprintf("no schedule entry for weekday %q", ds.Day)}
	})
	return err
}

// SetWeeklySchedule replaces the whole weekly schedule.
func (s *Service) SetWeeklySchedule(ctx context.Context, id string, schedule []models.DailySchedule) error {
	_, err := s.mutate(ctx, id, "set_weekly_schedule", "", func(next *models.TimeCondition) error {
		next.Schedule = (&models.TimeCondition{Schedule: schedule}).Clone().Schedule
		return nil
	})
	return err
}

// mutate runs the shared mutation protocol for an existing condition.
func (s *Service) mutate(ctx context.Context, id, action, detail string, apply func(next *models.TimeCondition) error) (*models.TimeCondition, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	cur, err := s.condition(id)
	if err != nil {
		s.metrics.IncMutation(action, "invalid")
		return nil, err
	}

	next := cur.Clone()
	if err := apply(next); err != nil {
		s.metrics.IncMutation(action, "invalid")
		return nil, err
	}
	if err := next.Validate(); err != nil {
		s.metrics.IncMutation(action, "invalid")
		return nil, err
	}

	if err := s.persistSwap(ctx, next, action, detail); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// persistSwap writes the full definition to the store and, only on
// success, swaps the cache entry and recomputes. Callers hold mutMu.
func (s *Service) persistSwap(ctx context.Context, next *models.TimeCondition, action, detail string) error {
	data, err := models.EncodeCondition(next)
	if err != nil {
		// Encoding a validated condition failing is a defect, not an
		// input or store problem.
		return fmt.Errorf("encode condition %s: %w", next.ID, err)
	}

	if err := s.kv.Put(ctx, conditionsFamily, next.ID, data); err != nil {
		serr := &store.StoreError{Op: "put", Family: conditionsFamily, Key: next.ID, Err: err}
		s.fail(serr)
		s.metrics.IncMutation(action, "failure")
		return serr
	}

	s.mu.Lock()
	s.conditions[next.ID] = next
	s.mu.Unlock()

	s.recomputeOne(next.ID)
	s.record(action, next.ID, detail)
	s.metrics.IncMutation(action, "success")
	s.logger.Info().
		Str("condition_id", next.ID).
		Str("action", action).
		Msg("condition persisted")
	return nil
}

func (s *Service) record(action, id, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(audit.Entry{ConditionID: id, Action: action, Detail: detail})
}
