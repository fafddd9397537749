package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// Delay pauses the run for a fixed duration before passing its input
// through unchanged. The duration string may itself be a $-token.
type Delay struct{}

func NewDelay() *Delay { return &Delay{} }

type delayParams struct {
	Duration string `json:"duration"`
}

func (h *Delay) TypeName() string               { return "delay" }
func (h *Delay) Category() node.Category        { return node.CategoryAction }
func (h *Delay) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Delay) RequiredCredentialType() string { return "" }

func (h *Delay) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"duration": {"type": "string"}},
		"required": ["duration"]
	}`)
}

func (h *Delay) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p delayParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Duration == "" {
		return fmt.Errorf("duration is required")
	}
	return nil
}

func (h *Delay) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p delayParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	durationStr := p.Duration
	if resolved, ok := resolver.Resolve(p.Duration, nctx.Variables).(string); ok {
		durationStr = resolved
	}

	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return failure(fmt.Errorf("invalid duration %q: %w", durationStr, err))
	}
	if duration < 0 {
		return failure(fmt.Errorf("duration must not be negative"))
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return failure(ctx.Err())
	case <-timer.C:
	}

	var input any
	for _, v := range nctx.Inputs {
		input = v
		break
	}
	return success(input), nil
}
