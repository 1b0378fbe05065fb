package lane

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testEntry(id string, p Priority) *Entry {
	return &Entry{
		ID:               id,
		Priority:         p,
		Payload:          json.RawMessage(`{"transaction_id":"T1","amount":500}`),
		MaxAttempts:      3,
		SLATargetSeconds: 2,
		EnqueuedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEntryJSONUsesISOTimestamps(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	e := testEntry("e1", Retry)
	next := time.Date(2025, 1, 2, 5, 4, 7, 0, loc)
	e.NextAttemptAt = &next

	b, err := Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"enqueued_at":"2025-01-02T03:04:05Z"`, `"next_attempt_at":"2025-01-02T04:04:07Z"`, `"priority":"retry"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in %s", want, s)
		}
	}
	if strings.Contains(s, "moved_to_dead_letter_at") {
		t.Fatalf("unset optional timestamp should be omitted: %s", s)
	}

	back, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.NextAttemptAt.Equal(next) || back.ID != "e1" || back.MaxAttempts != 3 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestEntryValidate(t *testing.T) {
	cases := map[string]func(e *Entry){
		"missing id":       func(e *Entry) { e.ID = "" },
		"unknown priority": func(e *Entry) { e.Priority = "urgent" },
		"zero max":         func(e *Entry) { e.MaxAttempts = 0 },
		"over max":         func(e *Entry) { e.Attempts = 4 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := testEntry("e1", High)
			mutate(e)
			if err := e.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEntryDue(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 10, 0, time.UTC)
	e := testEntry("e1", Retry)
	if !e.Due(now) {
		t.Fatalf("entry without next_attempt_at is due")
	}
	later := now.Add(time.Second)
	e.NextAttemptAt = &later
	if e.Due(now) {
		t.Fatalf("entry should not be due before next_attempt_at")
	}
	if !e.Due(later) {
		t.Fatalf("entry should be due at next_attempt_at")
	}
}

func TestParsePriority(t *testing.T) {
	p, err := Parse("Dead-Letter")
	if err != nil || p != DeadLetter {
		t.Fatalf("parse: %v %v", p, err)
	}
	if _, err := Parse("urgent"); err == nil {
		t.Fatalf("expected error")
	}
	if Retry.Enqueueable() || !Immediate.Enqueueable() {
		t.Fatalf("enqueueable mismatch")
	}
}
