package builtin

import (
	"context"
	"encoding/json"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// Transform reshapes upstream data: either a field mapping (target key ->
// $-path source) or a single dotted-path extraction. With neither set, it
// passes its bound inputs through unchanged.
type Transform struct{}

func NewTransform() *Transform { return &Transform{} }

type transformParams struct {
	Mapping    map[string]string `json:"mapping,omitempty"`
	Expression string            `json:"expression,omitempty"`
}

func (h *Transform) TypeName() string               { return "transform" }
func (h *Transform) Category() node.Category        { return node.CategoryAction }
func (h *Transform) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Transform) RequiredCredentialType() string { return "" }

func (h *Transform) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"mapping": {"type": "object"},
			"expression": {"type": "string"}
		}
	}`)
}

func (h *Transform) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *Transform) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p transformParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	if len(p.Mapping) > 0 {
		out := make(map[string]any, len(p.Mapping))
		for target, source := range p.Mapping {
			out[target] = resolver.Resolve(source, nctx.Variables)
		}
		return success(out), nil
	}

	if p.Expression != "" {
		return success(resolver.Resolve(p.Expression, nctx.Variables)), nil
	}

	if len(nctx.Inputs) == 1 {
		for _, v := range nctx.Inputs {
			return success(v), nil
		}
	}
	return success(nctx.Inputs), nil
}
