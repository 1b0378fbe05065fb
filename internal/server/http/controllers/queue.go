package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/runtime"
	"github.com/rzbill/txq/pkg/log"
)

// QueueController exposes the priority queue manager.
type QueueController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewQueueController creates a new queue controller.
func NewQueueController(rt *runtime.Runtime) *QueueController {
	return &QueueController{rt: rt, logger: rt.Logger().WithComponent("http.queue")}
}

// RegisterRoutes registers queue routes:
// - POST /v1/queue/enqueue
// - POST /v1/queue/process
// - GET  /v1/queue/status
func (c *QueueController) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/v1/queue")
	g.POST("/enqueue", c.handleEnqueue)
	g.POST("/process", c.handleProcess)
	g.GET("/status", c.handleStatus)
}

// handleEnqueue validates and stores a transaction. Returns 202 with the
// receipt, 400 for a bad payload or priority.
func (c *QueueController) handleEnqueue(ctx *gin.Context) {
	var req enqueueReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Priority == "" {
		req.Priority = lane.Standard.String()
	}
	p, err := lane.Parse(req.Priority)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	if req.SLATarget < 0 {
		writeError(ctx, http.StatusBadRequest, "sla_target must not be negative")
		return
	}
	sla := time.Duration(req.SLATarget * float64(time.Second))
	receipt, err := c.rt.Manager().Enqueue(ctx.Request.Context(), req.Payload, p, sla)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			c.logger.Error("enqueue failed", log.Err(err))
		}
		writeError(ctx, status, err.Error())
		return
	}
	ctx.JSON(http.StatusAccepted, receipt)
}

// handleProcess runs one batch synchronously and returns its summary.
func (c *QueueController) handleProcess(ctx *gin.Context) {
	var req processReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := lane.Parse(req.Lane)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	size := req.BatchSize
	if size == 0 {
		if lc, ok := c.rt.Manager().LaneConfig(p); ok {
			size = lc.BatchSize
		}
	}
	res, err := c.rt.Manager().ProcessBatch(ctx.Request.Context(), p, size)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			c.logger.Error("process batch failed", log.Str("lane", p.String()), log.Err(err))
		}
		writeError(ctx, status, err.Error())
		return
	}
	writeJSON(ctx, res)
}

func (c *QueueController) handleStatus(ctx *gin.Context) {
	st, err := c.rt.Manager().Status(ctx.Request.Context())
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, "Failed to read queue status")
		return
	}
	writeJSON(ctx, st)
}
