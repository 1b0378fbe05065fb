package pipeline

import (
	"context"

	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/pkg/log"
)

// EventRecorder journals entry transitions. *eventlog.Log implements it.
type EventRecorder interface {
	Append(ctx context.Context, events ...eventlog.Event) ([]uint64, error)
}

// emit journals one transition of e. Journal failures never fail delivery.
func (m *Manager) emit(ctx context.Context, typ eventlog.Type, p lane.Priority, e *lane.Entry, er *EntryResult) {
	if m.deps.Events == nil {
		return
	}
	ev := eventlog.Event{
		EntryID:  e.ID,
		Type:     typ,
		Lane:     p.String(),
		Attempts: e.Attempts,
		At:       m.cfg.Now(),
	}
	if er != nil {
		ev.Error = er.Error
		ev.FailureClass = er.FailureClass
		ev.NextAttemptAt = er.NextAttemptAt
	}
	if _, err := m.deps.Events.Append(context.WithoutCancel(ctx), ev); err != nil {
		m.logger.Warn("event not journaled", log.Str("entry_id", e.ID), log.Str("type", string(typ)), log.Err(err))
	}
}

// emitInline journals a successful inline attempt of an immediate entry.
func (m *Manager) emitInline(ctx context.Context, e *lane.Entry) {
	if m.deps.Events == nil {
		return
	}
	ev := eventlog.Event{EntryID: e.ID, Type: eventlog.Succeeded, Lane: lane.Immediate.String(), Attempts: e.Attempts, Inline: true, At: m.cfg.Now()}
	if _, err := m.deps.Events.Append(context.WithoutCancel(ctx), ev); err != nil {
		m.logger.Warn("event not journaled", log.Str("entry_id", e.ID), log.Str("type", string(ev.Type)), log.Err(err))
	}
}
