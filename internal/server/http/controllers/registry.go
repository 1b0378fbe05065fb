package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/rzbill/txq/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general     *GeneralController
	queue       *QueueController
	deadLetters *DeadLetterController
	events      *EventController
}

// NewControllerRegistry creates a new controller registry backed by rt.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		general:     NewGeneralController(rt),
		queue:       NewQueueController(rt),
		deadLetters: NewDeadLetterController(rt),
		events:      NewEventController(rt),
	}
}

// RegisterAllRoutes registers all controller routes on r.
func (r *ControllerRegistry) RegisterAllRoutes(router gin.IRouter) {
	r.general.RegisterRoutes(router)
	r.queue.RegisterRoutes(router)
	r.deadLetters.RegisterRoutes(router)
	r.events.RegisterRoutes(router)
}
