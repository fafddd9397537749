package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/workflow/internal/executor/expression"
	"github.com/flowforge/workflow/internal/node"
)

// Condition is the `condition`/`if` control node: it evaluates a boolean
// expression and names which outgoing port ("true" or "false") the
// scheduler should follow. The handler only computes the branch; the
// scheduler (internal/executor) applies the skip propagation described for
// control nodes.
type Condition struct {
	evaluator *expression.Evaluator
}

func NewCondition() *Condition {
	return &Condition{evaluator: expression.NewEvaluator()}
}

type conditionParams struct {
	Expression string `json:"expression"`
}

func (h *Condition) TypeName() string               { return "condition" }
func (h *Condition) Category() node.Category        { return node.CategoryCondition }
func (h *Condition) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Condition) RequiredCredentialType() string { return "" }

func (h *Condition) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"expression": {"type": "string"}},
		"required": ["expression"]
	}`)
}

func (h *Condition) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p conditionParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Expression == "" {
		return fmt.Errorf("expression is required")
	}
	return nil
}

func (h *Condition) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p conditionParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	result, err := h.evaluator.EvaluateCondition(p.Expression, nctx.Variables)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
	}

	branch := "false"
	if result {
		branch = "true"
	}
	return success(map[string]any{"branch": branch, "result": result}), nil
}

// Switch is the N-way generalisation of Condition: it evaluates an ordered
// list of named expressions and reports the first one that matches as
// selected_path, falling back to "default" if declared and none match.
type Switch struct {
	evaluator *expression.Evaluator
}

func NewSwitch() *Switch {
	return &Switch{evaluator: expression.NewEvaluator()}
}

type switchCase struct {
	Path       string `json:"path"`
	Expression string `json:"expression"`
}

type switchParams struct {
	Cases          []switchCase `json:"cases"`
	DefaultPath    string       `json:"default_path,omitempty"`
}

func (h *Switch) TypeName() string               { return "switch" }
func (h *Switch) Category() node.Category        { return node.CategoryCondition }
func (h *Switch) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Switch) RequiredCredentialType() string { return "" }

func (h *Switch) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"cases": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"path": {"type": "string"},
						"expression": {"type": "string"}
					},
					"required": ["path", "expression"]
				}
			},
			"default_path": {"type": "string"}
		},
		"required": ["cases"]
	}`)
}

func (h *Switch) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p switchParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if len(p.Cases) == 0 {
		return fmt.Errorf("at least one case is required")
	}
	return nil
}

func (h *Switch) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p switchParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	for _, c := range p.Cases {
		matched, err := h.evaluator.EvaluateCondition(c.Expression, nctx.Variables)
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
		}
		if matched {
			return success(map[string]any{"selected_path": c.Path}), nil
		}
	}

	if p.DefaultPath != "" {
		return success(map[string]any{"selected_path": p.DefaultPath}), nil
	}
	return failure(fmt.Errorf("no case matched and no default_path declared"))
}
