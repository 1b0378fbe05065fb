package txqv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// EnqueueRequest submits one transaction payload.
type EnqueueRequest struct {
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority,omitempty"`
	// SLATarget is in seconds; zero uses the lane default.
	SLATarget float64 `json:"sla_target,omitempty"`
}

// ProcessBatchRequest drains up to BatchSize entries from Lane. Zero uses
// the lane's configured batch size.
type ProcessBatchRequest struct {
	Lane      string `json:"lane"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// ListDeadLettersRequest reads the oldest Limit dead-lettered entries.
type ListDeadLettersRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ReplayDeadLettersRequest requeues IDs (all when empty) into Target.
type ReplayDeadLettersRequest struct {
	IDs    []string `json:"ids,omitempty"`
	Target string   `json:"target,omitempty"`
}

// ToStruct converts any JSON-encodable value into a Struct. v must encode
// as a JSON object; nil yields an empty Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if v == nil {
		return out, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("txqv1: encode %T: %w", v, err)
	}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("txqv1: %T is not a JSON object: %w", v, err)
	}
	return out, nil
}

// FromStruct decodes s into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("txqv1: encode struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("txqv1: decode into %T: %w", v, err)
	}
	return nil
}
