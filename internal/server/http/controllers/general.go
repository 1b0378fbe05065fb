package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/txq/internal/runtime"
)

// GeneralController serves liveness and the Prometheus scrape endpoint.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes:
// - Health checks (/v1/healthz)
// - Prometheus metrics (/metrics)
func (c *GeneralController) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/healthz", c.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.rt.Registry(), promhttp.HandlerOpts{})))
}

// handleHealth returns 200 with the breaker position when the store answers,
// 503 otherwise. An open breaker does not make the service unhealthy.
func (c *GeneralController) handleHealth(ctx *gin.Context) {
	if err := c.rt.CheckHealth(ctx.Request.Context()); err != nil {
		writeError(ctx, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(ctx, gin.H{
		"status":          "ok",
		"circuit_breaker": c.rt.Breaker().State().String(),
	})
}
