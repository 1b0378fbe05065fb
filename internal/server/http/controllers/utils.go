package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rzbill/txq/internal/pipeline"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// writeJSON writes a 200 JSON response with the given data.
func writeJSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// errorStatus maps pipeline errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidPayload),
		errors.Is(err, pipeline.ErrInvalidPriority),
		errors.Is(err, pipeline.ErrUnknownLane),
		errors.Is(err, pipeline.ErrLaneNotProcessable),
		errors.Is(err, pipeline.ErrInvalidBatchSize):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}
