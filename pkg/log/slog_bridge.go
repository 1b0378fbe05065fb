package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

const redacted = "[REDACTED]"

// bridgeHandler is the slog.Handler behind BaseLogger. It flattens attrs
// into an Entry and hands it to the pipeline's formatter and outputs.
type bridgeHandler struct {
	p      *pipeline
	attrs  []slog.Attr
	prefix string
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return levelOf(level) >= h.p.level
}

func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	if h.p.sampler != nil && !h.p.sampler.allow(r.Level, r.Message) {
		return nil
	}
	fields := make(Fields, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		h.put(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(fields, h.prefix, a)
		return true
	})

	entry := &Entry{
		Level:     levelOf(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    caller(r.PC),
	}
	out, err := h.p.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, o := range h.p.outputs {
		_ = o.Write(entry, out)
	}
	return nil
}

// put stores a under prefix, expanding groups as dotted keys.
func (h *bridgeHandler) put(fields Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.put(fields, p, ga)
		}
		return
	}
	key := prefix + a.Key
	if _, ok := h.p.redact[a.Key]; ok {
		fields[key] = redacted
		return
	}
	fields[key] = a.Value.Any()
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func caller(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}

// sampler counts lines per level and message.
type sampler struct {
	initial, thereafter uint64

	mu     sync.Mutex
	counts map[string]uint64
}

func newSampler(initial, thereafter int) *sampler {
	return &sampler{
		initial:    uint64(max(initial, 0)),
		thereafter: uint64(thereafter),
		counts:     make(map[string]uint64),
	}
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	key := level.String() + ":" + msg
	s.mu.Lock()
	n := s.counts[key]
	s.counts[key] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.thereafter == 0
}
