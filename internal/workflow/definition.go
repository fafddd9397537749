package workflow

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/flowforge/workflow/internal/node"
)

// ParseDefinition decodes raw JSON or YAML-derived JSON into a
// WorkflowDefinition. Callers loading YAML files must first convert them to
// JSON (see internal/yamlloader) before calling this.
func ParseDefinition(raw json.RawMessage) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decoding workflow definition: %w", err)
	}
	return &def, nil
}

// Validate checks a WorkflowDefinition for structural and semantic
// correctness: every node type must be registered, every node's parameters
// must satisfy its handler's own validation, every connection must
// reference nodes that exist, and the node graph must be acyclic.
func (d *WorkflowDefinition) Validate(registry *node.Registry) error {
	if len(d.Nodes) == 0 {
		return NewValidationError("", "nodes", "workflow must contain at least one node")
	}

	nodesByID := make(map[string]NodeDefinition, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return NewValidationError("", "id", "node id must not be empty")
		}
		if _, exists := nodesByID[n.ID]; exists {
			return NewValidationError(n.ID, "id", "duplicate node id")
		}
		nodesByID[n.ID] = n
	}

	for _, n := range d.Nodes {
		handler, err := registry.Get(n.NodeType)
		if err != nil {
			return NewValidationError(n.ID, "node_type", fmt.Sprintf("unknown node type %q", n.NodeType))
		}
		if err := handler.Validate(n.Parameters); err != nil {
			return NewValidationError(n.ID, "parameters", err.Error())
		}
	}

	for sourceID, ports := range d.Connections {
		if _, ok := nodesByID[sourceID]; !ok {
			return NewValidationError(sourceID, "connections", "connection source node does not exist")
		}
		for port, targets := range ports {
			for _, target := range targets {
				if _, ok := nodesByID[target.NodeID]; !ok {
					return NewValidationError(sourceID, "connections", fmt.Sprintf("port %q targets unknown node %q", port, target.NodeID))
				}
			}
		}
	}

	if cyclePath, ok := findCycle(d); ok {
		return NewValidationError("", "connections", fmt.Sprintf("cycle detected: %v", cyclePath))
	}

	return nil
}

// NewValidationError is a convenience constructor matching node.ValidationError,
// kept in this package so callers of workflow.Validate don't need to import
// internal/node directly for error construction.
func NewValidationError(nodeID, field, message string) error {
	return node.NewValidationError(nodeID, field, message)
}

// adjacency builds a deterministic node-id -> downstream-node-id list from
// the definition's port connections, ignoring port names (topology only
// cares about node reachability).
func adjacency(d *WorkflowDefinition) map[string][]string {
	adj := make(map[string][]string, len(d.Nodes))
	for _, n := range d.Nodes {
		adj[n.ID] = nil
	}
	for sourceID, ports := range d.Connections {
		seen := make(map[string]bool)
		var downstream []string
		for _, targets := range ports {
			for _, t := range targets {
				if !seen[t.NodeID] {
					seen[t.NodeID] = true
					downstream = append(downstream, t.NodeID)
				}
			}
		}
		sort.Strings(downstream)
		adj[sourceID] = append(adj[sourceID], downstream...)
	}
	return adj
}

// findCycle detects a cycle in the node graph via depth-first search,
// returning the cycle's node ids in traversal order if one exists.
func findCycle(d *WorkflowDefinition) ([]string, bool) {
	adj := adjacency(d)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(adj))

	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				cycle = append(append([]string{}, path...), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle, true
			}
		}
	}
	return nil, false
}

// TopologicalOrder returns node ids in an order where every node appears
// after all of its upstream dependencies (Kahn's algorithm), or an error if
// the graph contains a cycle. Ties are broken lexicographically by node id
// so the order is deterministic across runs.
func TopologicalOrder(d *WorkflowDefinition) ([]string, error) {
	adj := adjacency(d)

	inDegree := make(map[string]int, len(adj))
	for id := range adj {
		inDegree[id] = 0
	}
	for _, downstream := range adj {
		for _, next := range downstream {
			inDegree[next]++
		}
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(adj) {
		return nil, fmt.Errorf("cycle detected in workflow graph")
	}
	return order, nil
}
