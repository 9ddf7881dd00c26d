package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/models"
	"tollgate/internal/store"
)

// 2025-01-06 is a Monday; the default schedule is open 09:00-17:00.
var monday10 = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	svc := New(DefaultConfig(), kv, zerolog.Nop())
	svc.now = func() time.Time { return monday10 }
	return svc, kv
}

func createDefault(t *testing.T, svc *Service, name string) *models.TimeCondition {
	t.Helper()
	c, err := svc.CreateCondition(context.Background(), CreateConditionInput{Name: name})
	require.NoError(t, err)
	return c
}

func TestCreateConditionDefaults(t *testing.T) {
	svc, kv := newTestService(t)

	c, err := svc.CreateCondition(context.Background(), CreateConditionInput{
		Name:     "Main Office",
		Holidays: []models.Holiday{{Name: "Christmas", Date: "2024-12-25", Recurring: true}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.True(t, c.Enabled)
	assert.Equal(t, models.OverrideNone, c.OverrideMode)
	assert.Equal(t, models.DefaultWeeklySchedule(), c.Schedule)
	require.Len(t, c.Holidays, 1)
	assert.NotEmpty(t, c.Holidays[0].ID, "holiday ids are generated")

	// The full definition is persisted before the cache is touched.
	data, err := kv.Get(context.Background(), "conditions", c.ID)
	require.NoError(t, err)
	stored, err := models.DecodeCondition(data)
	require.NoError(t, err)
	assert.Equal(t, c, stored)
}

func TestCreateConditionInvalid(t *testing.T) {
	svc, kv := newTestService(t)

	_, err := svc.CreateCondition(context.Background(), CreateConditionInput{})
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 0, kv.Len("conditions"), "invalid input writes nothing")
}

func TestGetConditionReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	created := createDefault(t, svc, "Main")

	got, err := svc.GetCondition(created.ID)
	require.NoError(t, err)
	got.Name = "tampered"
	got.Schedule[0].Ranges[0].Start = "00:00"

	again, err := svc.GetCondition(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", again.Name)
	assert.Equal(t, "09:00", again.Schedule[0].Ranges[0].Start)
}

func TestUnknownConditionID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetCondition("nope")
	assert.True(t, models.IsValidation(err))

	_, err = svc.GetStatus("nope")
	assert.True(t, models.IsValidation(err))

	_, err = svc.CheckStatusAt("nope", monday10)
	assert.True(t, models.IsValidation(err))

	_, err = svc.IsOpen("nope")
	assert.True(t, models.IsValidation(err))

	err = svc.SetOverride(context.Background(), "nope", models.OverrideForceOpen, 0)
	assert.True(t, models.IsValidation(err))

	err = svc.DeleteCondition(context.Background(), "nope")
	assert.True(t, models.IsValidation(err))
}

func TestListConditionsSorted(t *testing.T) {
	svc, _ := newTestService(t)
	createDefault(t, svc, "Zeta")
	createDefault(t, svc, "Alpha")
	createDefault(t, svc, "Mid")

	list := svc.ListConditions()
	require.Len(t, list, 3)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Mid", list[1].Name)
	assert.Equal(t, "Zeta", list[2].Name)
}

func TestStatusAndChecks(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")

	st, err := svc.GetStatus(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateOpen, st.State)

	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.True(t, open)

	closed, err := svc.IsClosed(c.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	hol, err := svc.IsHoliday(c.ID)
	require.NoError(t, err)
	assert.False(t, hol)

	ov, err := svc.HasOverride(c.ID)
	require.NoError(t, err)
	assert.False(t, ov)

	nc, err := svc.GetNextChange(c.ID)
	require.NoError(t, err)
	require.NotNil(t, nc)
	assert.Equal(t, models.ReasonScheduleClose, nc.Reason)
	assert.Equal(t, time.Date(2025, 1, 6, 17, 0, 0, 0, time.UTC), nc.At)
}

func TestCheckStatusAtDoesNotTouchCache(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")

	before, err := svc.GetStatus(c.ID)
	require.NoError(t, err)

	st, err := svc.CheckStatusAt(c.ID, time.Date(2025, 1, 6, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.StateClosed, st.State)

	after, err := svc.GetStatus(c.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "point-in-time checks leave the cache alone")
}

func TestTemporaryOverrideLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	var setModes []models.OverrideMode
	var cleared int
	svc.OnOverrideSet(func(id string, mode models.OverrideMode) { setModes = append(setModes, mode) })
	svc.OnOverrideCleared(func(id string) { cleared++ })

	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideTemporary, 2*time.Hour))
	require.Equal(t, []models.OverrideMode{models.OverrideTemporary}, setModes)

	st, err := svc.GetStatus(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateOverrideClosed, st.State)
	require.NotNil(t, st.OverrideExpires)
	assert.Equal(t, monday10.Add(2*time.Hour), *st.OverrideExpires)
	require.NotNil(t, st.NextChange)
	assert.Equal(t, models.ReasonOverrideExpiry, st.NextChange.Reason)

	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.False(t, open)

	// Advance past the expiry; the override lapses without any mutation.
	svc.now = func() time.Time { return monday10.Add(3 * time.Hour) }

	open, err = svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.True(t, open)

	ov, err := svc.HasOverride(c.ID)
	require.NoError(t, err)
	assert.False(t, ov)

	// The stored definition still carries the lapsed mode until cleared.
	def, err := svc.GetCondition(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideTemporary, def.OverrideMode)

	require.NoError(t, svc.ClearOverride(ctx, c.ID))
	assert.Equal(t, 1, cleared)

	def, err = svc.GetCondition(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideNone, def.OverrideMode)
	assert.Nil(t, def.OverrideExpires)
}

func TestForceClosedThenClearRestoresSchedule(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideForceClosed, 0))
	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, svc.ClearOverride(ctx, c.ID))
	open, err = svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.True(t, open, "clearing restores the schedule-derived state")
}

func TestTemporaryOverridePreviewedAtFutureInstants(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideTemporary, time.Minute))

	st, err := svc.CheckStatusAt(c.ID, monday10.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StateOverrideClosed, st.State)

	st, err = svc.CheckStatusAt(c.ID, monday10.Add(61*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StateOpen, st.State, "past the expiry the schedule decides")
	assert.False(t, st.IsOverrideActive)
}

func TestSetOverrideValidation(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	err := svc.SetOverride(ctx, c.ID, models.OverrideTemporary, 0)
	assert.True(t, models.IsValidation(err))

	err = svc.SetOverride(ctx, c.ID, models.OverrideTemporary, -time.Hour)
	assert.True(t, models.IsValidation(err))

	// Mode none clears instead.
	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideForceOpen, 0))
	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideNone, 0))
	def, err := svc.GetCondition(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideNone, def.OverrideMode)
}

func TestToggleOverride(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	// Open by schedule: toggling forces closed.
	mode, err := svc.ToggleOverride(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideForceClosed, mode)

	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.False(t, open)

	// Toggling again flips to forced open.
	mode, err = svc.ToggleOverride(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideForceOpen, mode)

	open, err = svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.True(t, open)
}

// flakyKV injects a Put failure while putErr is set.
type flakyKV struct {
	*store.MemoryKV
	putErr error
}

func (f *flakyKV) Put(ctx context.Context, family, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryKV.Put(ctx, family, key, value)
}

func TestPersistFailureLeavesCacheUntouched(t *testing.T) {
	kv := &flakyKV{MemoryKV: store.NewMemoryKV()}
	svc := New(DefaultConfig(), kv, zerolog.Nop())
	svc.now = func() time.Time { return monday10 }
	ctx := context.Background()

	var hookErr error
	svc.OnError(func(err error) { hookErr = err })

	c, err := svc.CreateCondition(ctx, CreateConditionInput{Name: "Main"})
	require.NoError(t, err)

	kv.putErr = errors.New("disk full")
	err = svc.SetOverride(ctx, c.ID, models.OverrideForceClosed, 0)
	require.Error(t, err)
	assert.True(t, store.IsStoreFailure(err))
	assert.False(t, models.IsValidation(err))

	// Cache still serves the pre-mutation definition and status.
	def, err := svc.GetCondition(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideNone, def.OverrideMode)

	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.True(t, open)

	assert.True(t, store.IsStoreFailure(svc.LastError()))
	assert.True(t, store.IsStoreFailure(hookErr), "error hook mirrors the failure")

	// The store recovers and the same mutation goes through.
	kv.putErr = nil
	require.NoError(t, svc.SetOverride(ctx, c.ID, models.OverrideForceClosed, 0))
	def, err = svc.GetCondition(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideForceClosed, def.OverrideMode)
}

func TestStateChangeNotifications(t *testing.T) {
	svc, _ := newTestService(t)

	type change struct {
		id    string
		state models.ConditionState
	}
	var changes []change
	svc.OnStateChange(func(id string, st models.ComputedStatus) {
		changes = append(changes, change{id: id, state: st.State})
	})

	c := createDefault(t, svc, "Main")
	require.Len(t, changes, 1, "creation announces the initial state")
	assert.Equal(t, models.StateOpen, changes[0].state)

	// Same instant: recompute changes nothing.
	svc.RecomputeNow()
	assert.Len(t, changes, 1)

	// Past closing time: one transition fires.
	svc.now = func() time.Time { return time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC) }
	svc.RecomputeNow()
	require.Len(t, changes, 2)
	assert.Equal(t, c.ID, changes[1].id)
	assert.Equal(t, models.StateClosed, changes[1].state)

	// Repeated recomputes at the same state stay quiet.
	svc.RecomputeNow()
	assert.Len(t, changes, 2)
}

func TestHolidayMutations(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	h, err := svc.AddHoliday(ctx, c.ID, HolidayInput{Name: "Christmas", Date: "2024-12-25", Recurring: true})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)

	_, err = svc.AddHoliday(ctx, c.ID, HolidayInput{Name: "Broken", Date: "someday"})
	assert.True(t, models.IsValidation(err))

	holidays, err := svc.GetHolidays(c.ID)
	require.NoError(t, err)
	require.Len(t, holidays, 1)

	require.NoError(t, svc.UpdateHoliday(ctx, c.ID, h.ID, HolidayInput{Name: "Xmas", Date: "2024-12-25", Recurring: true}))
	holidays, err = svc.GetHolidays(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Xmas", holidays[0].Name)
	assert.Equal(t, h.ID, holidays[0].ID, "update keeps the id")

	err = svc.RemoveHoliday(ctx, c.ID, "missing")
	assert.True(t, models.IsValidation(err))

	require.NoError(t, svc.RemoveHoliday(ctx, c.ID, h.ID))
	holidays, err = svc.GetHolidays(c.ID)
	require.NoError(t, err)
	assert.Empty(t, holidays)
}

func TestUpcomingHolidaysThroughService(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	_, err := svc.AddHoliday(ctx, c.ID, HolidayInput{Name: "Christmas", Date: "2020-12-25", Recurring: true})
	require.NoError(t, err)

	occ, err := svc.GetUpcomingHolidays(c.ID, 365)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), occ[0].Date)
}

func TestScheduleMutations(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	require.NoError(t, svc.UpdateDaySchedule(ctx, c.ID, models.DailySchedule{
		Day:     models.Saturday,
		Enabled: true,
		Ranges:  []models.TimeRange{{Start: "10:00", End: "14:00"}},
	}))

	ds, err := svc.GetDaySchedule(c.ID, models.Saturday)
	require.NoError(t, err)
	assert.True(t, ds.Enabled)
	require.Len(t, ds.Ranges, 1)

	// Invalid ranges are rejected before anything is persisted.
	err = svc.UpdateDaySchedule(ctx, c.ID, models.DailySchedule{
		Day:     models.Monday,
		Enabled: true,
		Ranges:  []models.TimeRange{{Start: "09:00", End: "25:00"}},
	})
	assert.True(t, models.IsValidation(err))

	ds, err = svc.GetDaySchedule(c.ID, models.Monday)
	require.NoError(t, err)
	assert.Equal(t, "17:00", ds.Ranges[0].End, "rejected update leaves the schedule alone")

	// A full weekly replacement must still cover all seven days.
	err = svc.SetWeeklySchedule(ctx, c.ID, []models.DailySchedule{{Day: models.Monday, Enabled: true}})
	assert.True(t, models.IsValidation(err))
}

func TestUpdateCondition(t *testing.T) {
	svc, _ := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	name := "Branch"
	disabled := false
	dest := "queue-7"
	got, err := svc.UpdateCondition(ctx, c.ID, UpdateConditionInput{
		Name:            &name,
		Enabled:         &disabled,
		OpenDestination: &dest,
	})
	require.NoError(t, err)
	assert.Equal(t, "Branch", got.Name)
	assert.False(t, got.Enabled)
	assert.Equal(t, "queue-7", got.OpenDestination)
	assert.Equal(t, models.DefaultWeeklySchedule(), got.Schedule, "untouched fields persist")

	// Disabled conditions resolve closed.
	open, err := svc.IsOpen(c.ID)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestDeleteCondition(t *testing.T) {
	svc, kv := newTestService(t)
	c := createDefault(t, svc, "Main")
	ctx := context.Background()

	require.NoError(t, svc.DeleteCondition(ctx, c.ID))
	assert.Equal(t, 0, kv.Len("conditions"))

	_, err := svc.GetCondition(c.ID)
	assert.True(t, models.IsValidation(err))
	_, err = svc.GetStatus(c.ID)
	assert.True(t, models.IsValidation(err))
}

func TestRefreshHydratesFromStore(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()

	// Seed the store the way a previous process would have.
	seeder := New(DefaultConfig(), kv, zerolog.Nop())
	seeder.now = func() time.Time { return monday10 }
	a := createDefault(t, seeder, "Alpha")
	b := createDefault(t, seeder, "Beta")

	// Garbage entries are skipped, not fatal.
	require.NoError(t, kv.Put(ctx, "conditions", "junk", []byte("not json")))

	svc := New(DefaultConfig(), kv, zerolog.Nop())
	svc.now = func() time.Time { return monday10 }
	require.NoError(t, svc.Refresh(ctx))

	list := svc.ListConditions()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	st, err := svc.GetStatus(a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateOpen, st.State)
}

func TestRefreshStoreFailure(t *testing.T) {
	kv := &flakyKV{MemoryKV: store.NewMemoryKV()}
	svc := New(DefaultConfig(), kv, zerolog.Nop())
	svc.now = func() time.Time { return monday10 }
	ctx := context.Background()

	c, err := svc.CreateCondition(ctx, CreateConditionInput{Name: "Main"})
	require.NoError(t, err)

	broken := &failingGetAllKV{MemoryKV: kv.MemoryKV}
	svc.kv = broken
	err = svc.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, store.IsStoreFailure(err))

	// The previous cache keeps serving.
	_, err = svc.GetCondition(c.ID)
	assert.NoError(t, err)
}

type failingGetAllKV struct {
	*store.MemoryKV
}

func (f *failingGetAllKV) GetAll(ctx context.Context, family string) ([]store.Entry, error) {
	return nil, errors.New("connection reset")
}

func TestStartStop(t *testing.T) {
	kv := store.NewMemoryKV()
	svc := New(&Config{TickInterval: 10 * time.Millisecond}, kv, zerolog.Nop())
	svc.now = func() time.Time { return monday10 }

	c := createDefault(t, svc, "Main")

	svc.Start()
	svc.Start() // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
	svc.Stop() // and so is a second stop

	st, err := svc.GetStatus(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateOpen, st.State)
}
