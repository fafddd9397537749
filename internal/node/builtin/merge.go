package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/workflow/internal/node"
)

// Merge is the join control node: the scheduler invokes it once its
// declared strategy ("all"/"any"/"majority") over its incoming edges is
// satisfied, passing the result of every incoming edge whose producer
// produced output as nctx.Inputs; skipped producers are absent from it.
// Execute only applies combine_mode; the join-readiness rule
// itself lives in the scheduler.
type Merge struct{}

func NewMerge() *Merge { return &Merge{} }

type mergeParams struct {
	Strategy    string `json:"strategy,omitempty"`     // all | any | majority
	CombineMode string `json:"combine_mode,omitempty"` // array | object | first | last
}

func (h *Merge) TypeName() string               { return "merge" }
func (h *Merge) Category() node.Category        { return node.CategoryControl }
func (h *Merge) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *Merge) RequiredCredentialType() string { return "" }

func (h *Merge) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"strategy": {"type": "string", "enum": ["all","any","majority"]},
			"combine_mode": {"type": "string", "enum": ["array","object","first","last"]}
		}
	}`)
}

func (h *Merge) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *Merge) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p mergeParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	mode := p.CombineMode
	if mode == "" {
		mode = "object"
	}

	switch mode {
	case "object":
		return success(nctx.Inputs), nil
	case "array":
		values := make([]any, 0, len(nctx.Inputs))
		for _, v := range nctx.Inputs {
			values = append(values, v)
		}
		return success(values), nil
	case "first", "last":
		var picked any
		havePicked := false
		for _, v := range nctx.Inputs {
			if mode == "first" && havePicked {
				continue
			}
			picked = v
			havePicked = true
		}
		return success(picked), nil
	default:
		return failure(fmt.Errorf("unknown combine_mode %q", mode))
	}
}

// strategyOrDefault returns the declared join strategy, defaulting to "all";
// MergeStrategy exposes it for the scheduler's join-readiness check.
func (p mergeParams) strategyOrDefault() string {
	if p.Strategy == "" {
		return "all"
	}
	return p.Strategy
}

// MergeStrategy decodes a merge node's declared join strategy from its raw
// parameters, for use by the scheduler when deciding readiness.
func MergeStrategy(parameters json.RawMessage) string {
	var p mergeParams
	_ = decodeParameters(parameters, &p)
	return p.strategyOrDefault()
}

// MergeCombineMode decodes a merge node's declared combine mode.
func MergeCombineMode(parameters json.RawMessage) string {
	var p mergeParams
	_ = decodeParameters(parameters, &p)
	if p.CombineMode == "" {
		return "object"
	}
	return p.CombineMode
}
