package node

import "context"

// Output is a handler's return value, carried onto outgoing edges.
type Output struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResolvedCredential is a decrypted view of a Credential scoped to a single
// Execute call. Handlers must not retain it beyond that call.
type ResolvedCredential struct {
	Name   string
	Type   string
	Values map[string]string
}

// CredentialResolver fetches and decrypts a credential by name. The core
// never hands a handler the encrypted bytes directly.
type CredentialResolver interface {
	Resolve(ctx context.Context, name string) (*ResolvedCredential, error)
}

// Context is the handler-visible run state for one node invocation.
type Context struct {
	ExecutionID string
	NodeID      string

	// Inputs maps the node's input port name to the JSON value bound on
	// that edge (the producer's Output.Data, or the selected slice when the
	// producer is a condition/switch/merge node).
	Inputs map[string]any

	// Variables is a read-only snapshot of the execution's variable
	// environment at the moment the node was scheduled: "input", one key
	// per completed node id, and "context".
	Variables map[string]any

	// Credential is the node's declared credential (NodeDefinition.Credentials),
	// already resolved and decrypted by the scheduler before Execute runs. It
	// is nil when the node declares none.
	Credential *ResolvedCredential

	Credentials CredentialResolver
}
