package lane

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry is one queued submission. Its JSON form is the persisted format.
type Entry struct {
	ID                  string          `json:"id"`
	Priority            Priority        `json:"priority"`
	OriginalPriority    Priority        `json:"original_priority,omitempty"`
	Payload             json.RawMessage `json:"payload"`
	Attempts            int             `json:"attempts"`
	MaxAttempts         int             `json:"max_attempts"`
	SLATargetSeconds    float64         `json:"sla_target_seconds"`
	EnqueuedAt          time.Time       `json:"enqueued_at"`
	LastAttemptedAt     *time.Time      `json:"last_attempted_at,omitempty"`
	LastError           string          `json:"last_error,omitempty"`
	FailureClass        string          `json:"failure_class,omitempty"`
	NextAttemptAt       *time.Time      `json:"next_attempt_at,omitempty"`
	MovedToDeadLetterAt *time.Time      `json:"moved_to_dead_letter_at,omitempty"`
}

// SLATarget returns the latency budget as a duration.
func (e *Entry) SLATarget() time.Duration {
	return time.Duration(e.SLATargetSeconds * float64(time.Second))
}

// Exhausted reports whether no attempts remain.
func (e *Entry) Exhausted() bool { return e.Attempts >= e.MaxAttempts }

// Due reports whether the entry may be attempted at now.
func (e *Entry) Due(now time.Time) bool {
	return e.NextAttemptAt == nil || !now.Before(*e.NextAttemptAt)
}

// PolicyLane is the lane whose retry policy governs the entry.
func (e *Entry) PolicyLane() Priority {
	if e.OriginalPriority != "" {
		return e.OriginalPriority
	}
	return e.Priority
}

// Validate checks structural invariants.
func (e *Entry) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("lane: entry id is required")
	case !e.Priority.Valid():
		return fmt.Errorf("lane: entry %s has unknown priority %q", e.ID, e.Priority)
	case e.MaxAttempts <= 0:
		return fmt.Errorf("lane: entry %s has max_attempts %d", e.ID, e.MaxAttempts)
	case e.Attempts < 0 || e.Attempts > e.MaxAttempts:
		return fmt.Errorf("lane: entry %s has attempts %d outside [0,%d]", e.ID, e.Attempts, e.MaxAttempts)
	}
	return nil
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Payload = append(json.RawMessage(nil), e.Payload...)
	c.LastAttemptedAt = cloneTime(e.LastAttemptedAt)
	c.NextAttemptAt = cloneTime(e.NextAttemptAt)
	c.MovedToDeadLetterAt = cloneTime(e.MovedToDeadLetterAt)
	return &c
}

// Marshal encodes e with every timestamp in UTC.
func Marshal(e *Entry) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	c := e.Clone()
	c.EnqueuedAt = c.EnqueuedAt.UTC()
	c.LastAttemptedAt = utc(c.LastAttemptedAt)
	c.NextAttemptAt = utc(c.NextAttemptAt)
	c.MovedToDeadLetterAt = utc(c.MovedToDeadLetterAt)
	return json.Marshal(c)
}

// Unmarshal decodes and validates an entry.
func Unmarshal(b []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("lane: decode entry: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
