package lane

import (
	"fmt"
	"strings"
)

// Priority names a lane.
type Priority string

const (
	Immediate  Priority = "immediate"
	High       Priority = "high"
	Standard   Priority = "standard"
	Retry      Priority = "retry"
	DeadLetter Priority = "dead_letter"
)

// All lists every lane in display order.
var All = []Priority{Immediate, High, Standard, Retry, DeadLetter}

// Valid reports whether p names a known lane.
func (p Priority) Valid() bool {
	switch p {
	case Immediate, High, Standard, Retry, DeadLetter:
		return true
	}
	return false
}

// Enqueueable reports whether callers may submit new entries to p.
func (p Priority) Enqueueable() bool {
	return p == Immediate || p == High || p == Standard
}

func (p Priority) String() string { return string(p) }

// Parse converts a lane name, accepting "dead-letter" and any case.
func Parse(s string) (Priority, error) {
	p := Priority(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !p.Valid() {
		return "", fmt.Errorf("lane: unknown priority %q", s)
	}
	return p, nil
}
