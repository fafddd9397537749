package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowforge/workflow/internal/executor/javascript"
	"github.com/flowforge/workflow/internal/node"
)

// Code runs a short JavaScript snippet in a sandboxed goja VM pool. The
// script sees its node's bound inputs as `input` and the execution's full
// variable environment as `vars`; its return value becomes the node's
// output data.
type Code struct {
	engine *javascript.Engine
}

func NewCode(engine *javascript.Engine) *Code {
	return &Code{engine: engine}
}

type codeParams struct {
	Script         string `json:"script"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (h *Code) TypeName() string               { return "code" }
func (h *Code) Category() node.Category        { return node.CategoryAction }
func (h *Code) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Code) RequiredCredentialType() string { return "" }

func (h *Code) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"script": {"type": "string"},
			"timeout_seconds": {"type": "integer", "minimum": 1}
		},
		"required": ["script"]
	}`)
}

func (h *Code) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p codeParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Script == "" {
		return fmt.Errorf("script is required")
	}
	return h.engine.Validate(p.Script)
}

func (h *Code) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p codeParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	timeout := time.Duration(0)
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}

	execCtx := javascript.NewExecutionContext()
	execCtx.Input = nctx.Inputs
	execCtx.Vars = nctx.Variables

	result, err := h.engine.Execute(ctx, &javascript.ExecuteConfig{
		Script:      p.Script,
		Context:     execCtx,
		Timeout:     timeout,
		ExecutionID: nctx.ExecutionID,
	})
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
	}

	return success(result.Result), nil
}
