package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Validator checks a payload before it is queued. Returned errors should
// match ErrInvalidPayload.
type Validator interface {
	Validate(payload json.RawMessage) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(payload json.RawMessage) error

func (f ValidatorFunc) Validate(payload json.RawMessage) error { return f(payload) }

// Field kinds understood by SchemaValidator.
const (
	KindAny    = "any"
	KindString = "string"
	KindNumber = "number"
	KindBool   = "bool"
	KindObject = "object"
	KindArray  = "array"
)

// FieldRule requires a top-level field of the given kind.
type FieldRule struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
}

// SchemaValidator requires a JSON object with the configured fields, then
// optionally evaluates a CEL rule over it as `payload`.
type SchemaValidator struct {
	fields   []FieldRule
	rule     cel.Program
	ruleExpr string
}

// NewSchemaValidator compiles rule (which may be empty).
func NewSchemaValidator(fields []FieldRule, rule string) (*SchemaValidator, error) {
	v := &SchemaValidator{}
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
		if f.Kind == "" {
			f.Kind = KindAny
		}
		if f.Name == "" {
			return nil, fmt.Errorf("pipeline: schema field without name")
		}
		switch f.Kind {
		case KindAny, KindString, KindNumber, KindBool, KindObject, KindArray:
		default:
			return nil, fmt.Errorf("pipeline: schema field %q has unknown kind %q", f.Name, f.Kind)
		}
		v.fields = append(v.fields, f)
	}
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return v, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("payload", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("pipeline: payload rule: %w", iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("pipeline: payload rule must return bool, got %s", out)
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	v.rule = prog
	v.ruleExpr = rule
	return v, nil
}

func (v *SchemaValidator) Validate(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return &InvalidPayloadError{Reason: "payload is empty"}
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return &InvalidPayloadError{Reason: "payload must be a JSON object"}
	}
	for _, f := range v.fields {
		val, ok := obj[f.Name]
		if !ok || val == nil {
			return &InvalidPayloadError{Field: f.Name, Reason: "is required"}
		}
		if !kindMatches(f.Kind, val) {
			return &InvalidPayloadError{Field: f.Name, Reason: "must be of kind " + f.Kind}
		}
	}
	if v.rule == nil {
		return nil
	}
	out, _, err := v.rule.Eval(map[string]any{"payload": obj})
	if err != nil {
		return &InvalidPayloadError{Reason: fmt.Sprintf("rule %q: %v", v.ruleExpr, err)}
	}
	if ok, _ := out.Value().(bool); !ok {
		return &InvalidPayloadError{Reason: fmt.Sprintf("rejected by rule %q", v.ruleExpr)}
	}
	return nil
}

func kindMatches(kind string, v any) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		_, ok := v.(float64)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	case KindArray:
		_, ok := v.([]any)
		return ok
	}
	return true
}
