package domain

import "fmt"

// Source identifies the effect that produced an observation.
type Source string

const (
	SourceSearch         Source = "search"
	SourceDetails        Source = "details"
	SourceCalendarRead   Source = "calendar_read"
	SourceCalendarCreate Source = "calendar_create"
	SourceRegistration   Source = "registration"
)

// CanCreate reports whether observations from s may introduce a new entity.
// Only lookups (search results and calendar reads) create entries.
func (s Source) CanCreate() bool {
	switch s {
	case SourceSearch, SourceDetails, SourceCalendarRead:
		return true
	}
	return false
}

// IsCalendar reports whether s is a calendar read or write.
func (s Source) IsCalendar() bool {
	return s == SourceCalendarRead || s == SourceCalendarCreate
}

// EntityStatus tracks the progress of one external entity (an event, keyed by URL).
// Nil pointers mean unknown.
type EntityStatus struct {
	Found      bool           `json:"found"`
	Registered *bool          `json:"registered"`
	Scheduled  *bool          `json:"scheduled"`
	Details    map[string]any `json:"details,omitempty"`

	// Origin is the source of the observation that created the entry.
	Origin Source `json:"origin"`
}

func (s *EntityStatus) clone() *EntityStatus {
	c := *s
	c.Details = cloneMap(s.Details)
	if s.Registered != nil {
		v := *s.Registered
		c.Registered = &v
	}
	if s.Scheduled != nil {
		v := *s.Scheduled
		c.Scheduled = &v
	}
	return &c
}

// Observation is a status update emitted by an effect.
// Fields left nil are not touched.
type Observation struct {
	Key        string         `json:"key"`
	Source     Source         `json:"source"`
	Found      *bool          `json:"found,omitempty"`
	Registered *bool          `json:"registered,omitempty"`
	Scheduled  *bool          `json:"scheduled,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Bool returns a pointer to v, for building observations.
func Bool(v bool) *bool { return &v }

// Apply merges an observation into the entity table.
// It returns false when the observation was dropped because it refers to an
// unknown entity and its source cannot create one.
func (s *TaskState) Apply(obs Observation) (bool, error) {
	if obs.Key == "" {
		return false, fmt.Errorf("observation from %s has no key", obs.Source)
	}
	if obs.Scheduled != nil && !obs.Source.IsCalendar() {
		return false, fmt.Errorf("%w (source %s, key %s)", ErrScheduledWithoutCalendar, obs.Source, obs.Key)
	}

	if s.Entities == nil {
		s.Entities = make(map[string]*EntityStatus)
	}
	ent, ok := s.Entities[obs.Key]
	if !ok {
		if !obs.Source.CanCreate() {
			return false, nil
		}
		ent = &EntityStatus{Origin: obs.Source}
		s.Entities[obs.Key] = ent
	}

	if obs.Found != nil {
		ent.Found = *obs.Found
	}
	if obs.Registered != nil {
		// A fresh search reports registered=false; it must not undo a known registration.
		if obs.Source != SourceSearch || ent.Registered == nil {
			v := *obs.Registered
			ent.Registered = &v
		}
	}
	if obs.Scheduled != nil {
		v := *obs.Scheduled
		ent.Scheduled = &v
	}
	if obs.Details != nil {
		ent.Details = cloneMap(obs.Details)
	}
	return true, nil
}
