package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/runtime"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventController serves the entry transition journal.
type EventController struct {
	rt *runtime.Runtime
}

func NewEventController(rt *runtime.Runtime) *EventController {
	return &EventController{rt: rt}
}

// RegisterRoutes registers GET /v1/queue/events.
func (c *EventController) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/queue/events", c.handleRead)
}

// handleRead pages through the journal.
// Query: entry_id, after (sequence cursor), limit, reverse.
func (c *EventController) handleRead(ctx *gin.Context) {
	events := c.rt.Events()
	if events == nil {
		writeError(ctx, http.StatusNotFound, "Event journal is not available on this backend")
		return
	}
	opts := eventlog.ReadOptions{EntryID: ctx.Query("entry_id")}
	if s := ctx.Query("after"); s != "" {
		after, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(ctx, http.StatusBadRequest, "after must be a sequence number")
			return
		}
		opts.After = after
	}
	if s := ctx.Query("reverse"); s != "" {
		reverse, err := strconv.ParseBool(s)
		if err != nil {
			writeError(ctx, http.StatusBadRequest, "reverse must be a boolean")
			return
		}
		opts.Reverse = reverse
	}
	opts.Limit = min(parseLimit(ctx.Query("limit")), maxEventLimit)
	if opts.Limit == 0 {
		opts.Limit = defaultEventLimit
	}
	list, next := events.Read(opts)
	writeJSON(ctx, eventPage{Events: list, NextSeq: next})
}
