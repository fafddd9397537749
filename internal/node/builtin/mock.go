package builtin

import (
	"context"
	"encoding/json"

	"github.com/flowforge/workflow/internal/node"
)

// Mock is a deterministic fixture handler: it returns its parameters
// verbatim as output data. Used in definition tests and as a stand-in for
// unwritten integrations during workflow authoring.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (h *Mock) TypeName() string               { return "mock" }
func (h *Mock) Category() node.Category        { return node.CategoryAction }
func (h *Mock) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Mock) RequiredCredentialType() string  { return "" }

func (h *Mock) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (h *Mock) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *Mock) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var data any
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &data); err != nil {
			return failure(err)
		}
	}
	return success(data), nil
}
