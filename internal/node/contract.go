// Package node defines the node contract and the process-wide registry that
// maps a node_type string to its handler. A Handler is the only interface
// an integration author implements; the scheduler never knows the concrete
// type behind it.
package node

import (
	"context"
	"encoding/json"
)

// Category classifies a handler for scheduling purposes. Control and
// condition nodes have scheduling semantics the executor applies in
// addition to calling Execute; trigger and action nodes are scheduled like
// any other DAG node.
type Category string

const (
	CategoryTrigger   Category = "trigger"
	CategoryAction    Category = "action"
	CategoryControl   Category = "control"
	CategoryCondition Category = "condition"
)

// Subcategory is informational grouping surfaced to callers (UI, CLI
// listings); it has no effect on scheduling.
type Subcategory string

const (
	SubcategoryGeneral  Subcategory = "general"
	SubcategoryAI       Subcategory = "ai"
	SubcategoryDatabase Subcategory = "database"
	SubcategoryStorage  Subcategory = "storage"
)

// Handler implements a single node_type. Implementations must be stateless
// across invocations except through the persistence layer or dependencies
// injected at construction — the scheduler may invoke Execute for distinct
// contexts concurrently.
type Handler interface {
	// TypeName is the node_type string this handler is registered under.
	TypeName() string
	Category() Category
	Subcategory() Subcategory

	// ParameterSchema returns the JSON Schema (draft-07 compatible) that
	// NodeDefinition.parameters is validated against before Validate runs.
	ParameterSchema() json.RawMessage

	// RequiredCredentialType names the credential type a node using this
	// handler must reference, or "" if none is required.
	RequiredCredentialType() string

	// Validate performs handler-specific checks JSON Schema cannot express
	// (cross-field rules, "one of A or B must be set"). Parameters have
	// already passed schema validation.
	Validate(parameters json.RawMessage) error

	// Execute runs the node. It is the only I/O path a handler has; it may
	// block, must honour ctx cancellation at its next suspension point, and
	// must be safe for concurrent invocation across distinct Contexts.
	Execute(ctx context.Context, nctx *Context, parameters json.RawMessage) (*Output, error)
}
