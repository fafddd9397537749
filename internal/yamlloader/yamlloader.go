// Package yamlloader reads a declarative workflow document off disk and
// turns it into the canonical JSON definition blob workflow.Service.Import
// stores. It owns identifier normalisation and duplicate/graph validation
// up front so a bad file never reaches the database as a half-imported
// workflow.
package yamlloader

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/workflow"
)

// document mirrors the stored definition format: name, description?,
// active?, nodes, connections, settings?, each node entry carrying `type`
// for the node_type tag (YAML spelling differs from the stored JSON's
// node_type to match how the rest of the ecosystem writes node manifests).
type document struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description"`
	Active      *bool                      `yaml:"active"`
	Nodes       []nodeDoc                  `yaml:"nodes"`
	Connections map[string]map[string][]workflow.ConnectionTarget `yaml:"connections"`
	Settings    map[string]interface{}     `yaml:"settings"`
}

type nodeDoc struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"`
	Parameters  map[string]interface{} `yaml:"parameters"`
	Credentials string                 `yaml:"credentials"`
	Disabled    bool                   `yaml:"disabled"`
	Position    *workflow.Position     `yaml:"position"`
}

// Result is a loaded and validated workflow, ready for workflow.Service.Import.
type Result struct {
	Name        string
	Description string
	Active      bool
	Definition  json.RawMessage
}

// LoadFile reads path, normalises and validates it against registry, and
// returns the canonical definition JSON. Validate failures return before
// any workflow row could be created, matching the "refuse unless" contract:
// a document with a cycle, an unregistered node_type, or a parameter block
// that fails the handler's own validation is rejected outright.
func LoadFile(path string, registry *node.Registry) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Load(raw, registry)
}

// Load parses yamlSrc the same way LoadFile does, for callers that already
// have the document in memory (tests, embedded fixtures).
func Load(yamlSrc []byte, registry *node.Registry) (*Result, error) {
	var doc document
	if err := yaml.Unmarshal(yamlSrc, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow yaml: %w", err)
	}

	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("workflow must declare at least one node")
	}

	def := workflow.WorkflowDefinition{
		Name:        strings.TrimSpace(doc.Name),
		Description: doc.Description,
		Connections: doc.Connections,
	}
	if def.Connections == nil {
		def.Connections = map[string]map[string][]workflow.ConnectionTarget{}
	}

	seen := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			return nil, fmt.Errorf("node is missing an id")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate node id %q", id)
		}
		seen[id] = true

		params, err := json.Marshal(n.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encoding parameters for node %q: %w", id, err)
		}

		def.Nodes = append(def.Nodes, workflow.NodeDefinition{
			ID:          id,
			Name:        n.Name,
			NodeType:    n.Type,
			Parameters:  params,
			Credentials: n.Credentials,
			Disabled:    n.Disabled,
			Position:    n.Position,
		})
	}

	if doc.Settings != nil {
		settings, err := json.Marshal(doc.Settings)
		if err != nil {
			return nil, fmt.Errorf("encoding settings: %w", err)
		}
		def.Settings = settings
	}

	if err := def.Validate(registry); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("serializing workflow definition: %w", err)
	}

	active := true
	if doc.Active != nil {
		active = *doc.Active
	}

	return &Result{
		Name:        def.Name,
		Description: def.Description,
		Active:      active,
		Definition:  raw,
	}, nil
}
