// Package service holds the condition registry: the in-memory cache of
// condition definitions and their computed statuses, the periodic
// recompute tick, the mutation entry points and the notification hooks.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tollgate/internal/engine"
	"tollgate/internal/events"
	"tollgate/internal/models"
	"tollgate/internal/store"
	"tollgate/shared/audit"
)

const conditionsFamily = "conditions"

// Config holds configuration for the condition service.
type Config struct {
	// TickInterval is how often cached statuses are recomputed.
	// Default: 1 minute.
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{TickInterval: time.Minute}
}

// Service resolves and caches time-condition statuses. Reads are served
// from the cache or computed ad hoc; mutations persist the full definition
// through the key-value store before the cache is touched, so the cache
// never diverges from what is stored.
type Service struct {
	config  *Config
	kv      store.KV
	bus     *events.Bus
	logger  zerolog.Logger
	metrics *Metrics
	audit   audit.Recorder
	now     func() time.Time

	mu         sync.RWMutex
	conditions map[string]*models.TimeCondition
	statuses   map[string]models.ComputedStatus

	// mutMu serializes mutations so two concurrent writers cannot build
	// next-versions from the same snapshot and silently drop one update.
	mutMu sync.Mutex

	errMu   sync.Mutex
	lastErr error

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a condition service on top of a key-value store.
func New(config *Config, kv store.KV, logger zerolog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}

	return &Service{
		config:     config,
		kv:         kv,
		bus:        events.NewBus(),
		logger:     logger.With().Str("component", "timecond").Logger(),
		now:        time.Now,
		conditions: make(map[string]*models.TimeCondition),
		statuses:   make(map[string]models.ComputedStatus),
		stopCh:     make(chan struct{}),
	}
}

// UseMetrics attaches Prometheus metrics.
func (s *Service) UseMetrics(m *Metrics) { s.metrics = m }

// UseAudit attaches a mutation audit recorder.
func (s *Service) UseAudit(rec audit.Recorder) { s.audit = rec }

// Start begins the periodic recompute loop.
func (s *Service) Start() {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.runMu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Dur("tick_interval", s.config.TickInterval).Msg("condition service started")
}

// Stop cancels the periodic tick. Safe to call multiple times; no tick
// fires after it returns.
func (s *Service) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	s.runMu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("condition service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	// Recompute immediately on start.
	s.RecomputeNow()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RecomputeNow()
		}
	}
}

// RecomputeNow recomputes every cached condition's status at the current
// instant and notifies subscribers of conditions whose state changed.
func (s *Service) RecomputeNow() {
	at := s.now()
	start := time.Now()

	type stateChange struct {
		id string
		st models.ComputedStatus
	}
	var changed []stateChange

	s.mu.Lock()
	for id, c := range s.conditions {
		st := engine.ComputeStatus(c, at)
		prev, ok := s.statuses[id]
		s.statuses[id] = st
		if ok && prev.State != st.State {
			changed = append(changed, stateChange{id: id, st: st})
		}
	}
	s.metrics.SetConditionsCached(len(s.conditions))
	s.mu.Unlock()

	s.metrics.IncRecompute()
	s.metrics.ObserveComputeDuration(time.Since(start).Seconds())

	for _, ch := range changed {
		s.publishStateChange(ch.id, ch.st)
	}
}

// recomputeOne refreshes one condition's cached status after a mutation
// and notifies subscribers if the state changed.
func (s *Service) recomputeOne(id string) {
	at := s.now()

	s.mu.Lock()
	c, ok := s.conditions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	st := engine.ComputeStatus(c, at)
	prev, had := s.statuses[id]
	s.statuses[id] = st
	s.metrics.SetConditionsCached(len(s.conditions))
	s.mu.Unlock()

	s.metrics.IncRecompute()

	if !had || prev.State != st.State {
		s.publishStateChange(id, st)
	}
}

func (s *Service) publishStateChange(id string, st models.ComputedStatus) {
	s.metrics.IncStateChange(string(st.State))
	s.logger.Debug().
		Str("condition_id", id).
		Str("state", string(st.State)).
		Msg("condition state changed")
	s.bus.Publish(events.Event{Type: events.TypeStateChange, ConditionID: id, Status: &st})
}

// fail records a persistence or unexpected failure for observability.
func (s *Service) fail(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()

	s.metrics.IncStoreFailure()
	s.logger.Error().Err(err).Msg("store operation failed")
	s.bus.Publish(events.Event{Type: events.TypeError, Err: err})
}

// LastError returns the most recent persistence or unexpected failure.
func (s *Service) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Refresh reloads every stored condition from the key-value store,
// replacing the cache, and recomputes all statuses. Entries that fail to
// decode are skipped with a warning.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.kv.GetAll(ctx, conditionsFamily)
	if err != nil {
		serr := &store.StoreError{Op: "getall", Family: conditionsFamily, Err: err}
		s.fail(serr)
		return serr
	}

	loaded := make(map[string]*models.TimeCondition, len(entries))
	for _, e := range entries {
		c, err := models.DecodeCondition(e.Value)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", e.Key).Msg("skipping undecodable condition")
			continue
		}
		loaded[c.ID] = c
	}

	at := s.now()

	type stateChange struct {
		id string
		st models.ComputedStatus
	}
	var changed []stateChange

	s.mu.Lock()
	prevStatuses := s.statuses
	s.conditions = loaded
	s.statuses = make(map[string]models.ComputedStatus, len(loaded))
	for id, c := range loaded {
		st := engine.ComputeStatus(c, at)
		s.statuses[id] = st
		if prev, ok := prevStatuses[id]; ok && prev.State != st.State {
			changed = append(changed, stateChange{id: id, st: st})
		}
	}
	s.metrics.SetConditionsCached(len(loaded))
	s.mu.Unlock()

	for _, ch := range changed {
		s.publishStateChange(ch.id, ch.st)
	}

	s.logger.Info().Int("conditions", len(loaded)).Msg("conditions reloaded from store")
	return nil
}

// condition returns the cached definition, or a validation error for an
// unknown id. The pointer is the live cache entry; callers must not
// mutate it.
func (s *Service) condition(id string) (*models.TimeCondition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conditions[id]
	if !ok {
		return nil, &models.ValidationError{Field: "id", Message: "condition not found"}
	}
	return c, nil
}

// GetCondition returns a copy of a condition definition.
func (s *Service) GetCondition(id string) (*models.TimeCondition, error) {
	c, err := s.condition(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// ListConditions returns copies of all cached definitions, sorted by name.
func (s *Service) ListConditions() []*models.TimeCondition {
	s.mu.RLock()
	out := make([]*models.TimeCondition, 0, len(s.conditions))
	for _, c := range s.conditions {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetStatus returns the last cached status of a condition.
func (s *Service) GetStatus(id string) (models.ComputedStatus, error) {
	s.mu.RLock()
	st, ok := s.statuses[id]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}
	// Known condition whose status was never cached: compute ad hoc.
	c, err := s.condition(id)
	if err != nil {
		return models.ComputedStatus{}, err
	}
	return engine.ComputeStatus(c, s.now()), nil
}

// CheckStatusAt resolves a condition's status at an arbitrary instant.
// It bypasses the cache entirely: no cache update, no notification.
func (s *Service) CheckStatusAt(id string, at time.Time) (models.ComputedStatus, error) {
	c, err := s.condition(id)
	if err != nil {
		return models.ComputedStatus{}, err
	}
	return engine.ComputeStatus(c, at), nil
}

// GetNextChange returns the next projected state transition, or nil when
// none is known within the search horizon.
func (s *Service) GetNextChange(id string) (*models.NextChange, error) {
	c, err := s.condition(id)
	if err != nil {
		return nil, err
	}
	return engine.NextTransition(c, s.now()), nil
}

// IsOpen reports whether the condition currently routes to its open
// destination.
func (s *Service) IsOpen(id string) (bool, error) {
	st, err := s.CheckStatusAt(id, s.now())
	if err != nil {
		return false, err
	}
	return st.State == models.StateOpen || st.State == models.StateOverrideOpen, nil
}

// IsClosed reports whether the condition currently resolves closed,
// whether by schedule, holiday or override.
func (s *Service) IsClosed(id string) (bool, error) {
	open, err := s.IsOpen(id)
	if err != nil {
		return false, err
	}
	return !open, nil
}

// IsHoliday reports whether the condition is currently on holiday.
func (s *Service) IsHoliday(id string) (bool, error) {
	st, err := s.CheckStatusAt(id, s.now())
	if err != nil {
		return false, err
	}
	return st.State == models.StateHoliday, nil
}

// HasOverride reports whether an override is currently in force.
func (s *Service) HasOverride(id string) (bool, error) {
	st, err := s.CheckStatusAt(id, s.now())
	if err != nil {
		return false, err
	}
	return st.IsOverrideActive, nil
}

// GetHolidays returns a copy of a condition's holiday list.
func (s *Service) GetHolidays(id string) ([]models.Holiday, error) {
	c, err := s.condition(id)
	if err != nil {
		return nil, err
	}
	// Cached conditions are immutable snapshots; copying needs no lock.
	return append([]models.Holiday(nil), c.Holidays...), nil
}

// GetUpcomingHolidays projects holiday occurrences within the next days.
func (s *Service) GetUpcomingHolidays(id string, days int) ([]engine.HolidayOccurrence, error) {
	c, err := s.condition(id)
	if err != nil {
		return nil, err
	}
	return engine.UpcomingHolidays(c, s.now(), days), nil
}

// GetDaySchedule returns a copy of one weekday's schedule entry.
func (s *Service) GetDaySchedule(id string, day models.Day) (models.DailySchedule, error) {
	c, err := s.condition(id)
	if err != nil {
		return models.DailySchedule{}, err
	}
	ds := c.DaySchedule(day)
	if ds == nil {
		return models.DailySchedule{}, &models.ValidationError{Field: "day", Message: "no schedule entry for weekday"}
	}
	out := *ds
	out.Ranges = append([]models.TimeRange(nil), ds.Ranges...)
	return out, nil
}

// OnStateChange registers a hook fired when a condition's computed state
// changes.
func (s *Service) OnStateChange(fn func(id string, st models.ComputedStatus)) {
	s.bus.Subscribe(events.TypeStateChange, func(e events.Event) {
		if e.Status != nil {
			fn(e.ConditionID, *e.Status)
		}
	})
}

// OnOverrideSet registers a hook fired when an override is applied.
func (s *Service) OnOverrideSet(fn func(id string, mode models.OverrideMode)) {
	s.bus.Subscribe(events.TypeOverrideSet, func(e events.Event) {
		fn(e.ConditionID, e.Mode)
	})
}

// OnOverrideCleared registers a hook fired when an override is removed.
func (s *Service) OnOverrideCleared(fn func(id string)) {
	s.bus.Subscribe(events.TypeOverrideCleared, func(e events.Event) {
		fn(e.ConditionID)
	})
}

// OnError registers a hook mirroring persistence and unexpected failures.
func (s *Service) OnError(fn func(err error)) {
	s.bus.Subscribe(events.TypeError, func(e events.Event) {
		fn(e.Err)
	})
}
