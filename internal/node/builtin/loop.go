package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// Loop declares iteration over a $-resolved array. Per spec, loop and split
// expand to sequential iteration in the core scheduler: each call to
// Execute here only resolves the items to iterate; the scheduler
// (internal/executor) runs the node directly downstream of the loop once
// per item with a fresh per-iteration variable snapshot. Nodes further
// downstream are not repeated per item: they run once, on the combined
// iteration results.
type Loop struct{}

func NewLoop() *Loop { return &Loop{} }

type loopParams struct {
	Items       string `json:"items"`
	IterationAs string `json:"iteration_as,omitempty"`
}

func (h *Loop) TypeName() string               { return "loop" }
func (h *Loop) Category() node.Category        { return node.CategoryControl }
func (h *Loop) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Loop) RequiredCredentialType() string { return "" }

func (h *Loop) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"items": {"type": "string"},
			"iteration_as": {"type": "string"}
		},
		"required": ["items"]
	}`)
}

func (h *Loop) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p loopParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Items == "" {
		return fmt.Errorf("items is required")
	}
	return nil
}

func (h *Loop) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p loopParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	resolved := resolver.Resolve(p.Items, nctx.Variables)
	items, ok := resolved.([]any)
	if !ok {
		return failure(fmt.Errorf("items did not resolve to an array: %q", p.Items))
	}

	return success(map[string]any{"items": items, "count": len(items)}), nil
}

// IterationVariable returns the name the per-iteration value is bound to
// inside a loop's downstream variable environment.
func IterationVariable(parameters json.RawMessage) string {
	var p loopParams
	_ = decodeParameters(parameters, &p)
	if p.IterationAs == "" {
		return "item"
	}
	return p.IterationAs
}

// Split is the parallel-branch declaration: it names a fixed set of
// downstream ports, each already activated independently by the scheduler's
// ordinary per-edge readiness rule, and echoes its input data onto every
// one of them.
type Split struct{}

func NewSplit() *Split { return &Split{} }

type splitParams struct {
	Branches []string `json:"branches"`
}

func (h *Split) TypeName() string               { return "split" }
func (h *Split) Category() node.Category        { return node.CategoryControl }
func (h *Split) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Split) RequiredCredentialType() string { return "" }

func (h *Split) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"branches": {"type": "array", "items": {"type": "string"}}},
		"required": ["branches"]
	}`)
}

func (h *Split) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p splitParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if len(p.Branches) == 0 {
		return fmt.Errorf("branches must not be empty")
	}
	return nil
}

func (h *Split) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p splitParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	var input any
	for _, v := range nctx.Inputs {
		input = v
		break
	}
	return success(map[string]any{"branches": p.Branches, "data": input}), nil
}
