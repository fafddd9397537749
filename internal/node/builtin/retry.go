package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/workflow/internal/node"
)

// RetryParams is the declared shape of a `retry` control node's parameters.
// The node itself has no Execute of its own: it wraps its single
// downstream action, and internal/executor applies initial_delay *
// multiplier^attempt (capped at max_delay) up to max_attempts when that
// action fails, short-circuiting on first success. Validate here only
// checks the declared budget is sane; the scheduler reads these same
// fields to drive the wrapped re-execution.
type RetryParams struct {
	MaxAttempts  int     `json:"max_attempts"`
	InitialDelay float64 `json:"initial_delay_seconds"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	MaxDelay     float64 `json:"max_delay_seconds,omitempty"`
}

// RetryParameterSchema is shared by the node registry's "retry" entry and
// by internal/executor when it decodes a retry node's parameters.
func RetryParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"max_attempts": {"type": "integer", "minimum": 1},
			"initial_delay_seconds": {"type": "number", "minimum": 0},
			"multiplier": {"type": "number", "minimum": 1},
			"max_delay_seconds": {"type": "number", "minimum": 0}
		},
		"required": ["max_attempts", "initial_delay_seconds"]
	}`)
}

// ValidateRetryParams applies the cross-field checks JSON Schema can't
// express.
func ValidateRetryParams(parameters json.RawMessage) error {
	if err := validateSchema(RetryParameterSchema(), parameters); err != nil {
		return err
	}
	var p RetryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max_delay_seconds must be >= initial_delay_seconds")
	}
	return nil
}

// DecodeRetryParams parses a retry node's parameters, defaulting Multiplier
// to 2.0 when unset.
func DecodeRetryParams(parameters json.RawMessage) (RetryParams, error) {
	var p RetryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return p, err
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p, nil
}

// Retry is the registry-visible handler for the `retry` control node. The
// scheduler special-cases this node type to wrap its downstream action in
// backoff retries rather than calling Execute directly; Execute here exists
// only so the node satisfies the registry contract and behaves sanely if
// ever invoked outside that special case (it passes its input through).
type Retry struct{}

func NewRetry() *Retry { return &Retry{} }

func (h *Retry) TypeName() string               { return "retry" }
func (h *Retry) Category() node.Category        { return node.CategoryControl }
func (h *Retry) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Retry) RequiredCredentialType() string { return "" }

func (h *Retry) ParameterSchema() json.RawMessage { return RetryParameterSchema() }

func (h *Retry) Validate(parameters json.RawMessage) error {
	return ValidateRetryParams(parameters)
}

func (h *Retry) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var input any
	for _, v := range nctx.Inputs {
		input = v
		break
	}
	return success(input), nil
}
