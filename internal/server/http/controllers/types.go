package controllers

import (
	"encoding/json"

	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/lane"
)

// Common request/response types for HTTP controllers

// enqueueReq submits one transaction.
type enqueueReq struct {
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority"`
	// SLATarget is in seconds; zero uses the lane default.
	SLATarget float64 `json:"sla_target"`
}

// processReq drains one batch from a lane. A zero BatchSize uses the lane's
// configured batch size.
type processReq struct {
	Lane      string `json:"lane"`
	BatchSize int    `json:"batch_size"`
}

// replayReq moves dead-lettered entries back into Target. Empty IDs replays
// the whole dead-letter lane.
type replayReq struct {
	IDs    []string `json:"ids"`
	Target string   `json:"target"`
}

// deadLetterList is the response of GET /v1/queue/dlq.
type deadLetterList struct {
	Length  int           `json:"length"`
	Entries []*lane.Entry `json:"entries"`
}

type eventPage struct {
	Events  []eventlog.Event `json:"events"`
	NextSeq uint64           `json:"next_seq,omitempty"`
}
