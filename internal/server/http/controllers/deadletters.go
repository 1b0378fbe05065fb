package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/runtime"
	"github.com/rzbill/txq/pkg/log"
)

const defaultDeadLetterLimit = 100

// DeadLetterController lets operators inspect and replay parked entries.
type DeadLetterController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewDeadLetterController creates a new dead-letter controller.
func NewDeadLetterController(rt *runtime.Runtime) *DeadLetterController {
	return &DeadLetterController{rt: rt, logger: rt.Logger().WithComponent("http.dlq")}
}

// RegisterRoutes registers dead-letter routes:
// - GET  /v1/queue/dlq?limit=N
// - POST /v1/queue/dlq/replay
func (c *DeadLetterController) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/queue/dlq", c.handleList)
	r.POST("/v1/queue/dlq/replay", c.handleReplay)
}

// handleList returns the oldest entries in the dead-letter lane without
// removing them.
func (c *DeadLetterController) handleList(ctx *gin.Context) {
	limit := parseLimit(ctx.Query("limit"))
	if limit == 0 {
		limit = defaultDeadLetterLimit
	}
	dlq := c.rt.DeadLetters()
	n, err := dlq.Len(ctx.Request.Context())
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, "Failed to read dead-letter lane")
		return
	}
	entries, err := dlq.List(ctx.Request.Context(), limit)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, "Failed to read dead-letter lane")
		return
	}
	if entries == nil {
		entries = []*lane.Entry{}
	}
	writeJSON(ctx, deadLetterList{Length: n, Entries: entries})
}

// handleReplay requeues dead-lettered entries with a fresh attempt budget.
// Target defaults to standard.
func (c *DeadLetterController) handleReplay(ctx *gin.Context) {
	var req replayReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Target == "" {
		req.Target = lane.Standard.String()
	}
	target, err := lane.Parse(req.Target)
	if err != nil || !target.Enqueueable() {
		writeError(ctx, http.StatusBadRequest, "target must be immediate, high or standard")
		return
	}
	res, err := c.rt.DeadLetters().Replay(ctx.Request.Context(), req.IDs, target)
	if err != nil {
		c.logger.Error("replay failed", log.Err(err))
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, res)
}
