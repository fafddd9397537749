package yamlloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/node/builtin"
)

func testRegistry(t *testing.T) *node.Registry {
	t.Helper()
	r := node.NewRegistry(nil)
	require.NoError(t, r.Register(builtin.NewMock()))
	require.NoError(t, r.Register(builtin.NewWebhookTrigger()))
	return r
}

const validYAML = `
name: sample
description: a sample workflow
active: true
nodes:
  - id: hook
    name: hook
    type: webhook_trigger
    parameters: {}
  - id: a
    name: a
    type: mock
    parameters:
      x: 1
connections:
  hook:
    out:
      - node: a
        port: in
`

func TestLoad_ValidDocument(t *testing.T) {
	registry := testRegistry(t)

	result, err := Load([]byte(validYAML), registry)
	require.NoError(t, err)
	assert.Equal(t, "sample", result.Name)
	assert.True(t, result.Active)
	assert.Contains(t, string(result.Definition), `"node_type":"mock"`)
}

func TestLoad_DuplicateNodeIDRejected(t *testing.T) {
	registry := testRegistry(t)
	src := `
name: dup
nodes:
  - id: a
    name: a
    type: mock
    parameters: {}
  - id: a
    name: a2
    type: mock
    parameters: {}
connections: {}
`
	_, err := Load([]byte(src), registry)
	assert.ErrorContains(t, err, "duplicate node id")
}

func TestLoad_UnknownNodeTypeRejected(t *testing.T) {
	registry := testRegistry(t)
	src := `
name: bad-type
nodes:
  - id: a
    name: a
    type: nonexistent
    parameters: {}
connections: {}
`
	_, err := Load([]byte(src), registry)
	assert.Error(t, err)
}

func TestLoad_CycleRejected(t *testing.T) {
	registry := testRegistry(t)
	src := `
name: cyclic
nodes:
  - id: a
    name: a
    type: mock
    parameters: {}
  - id: b
    name: b
    type: mock
    parameters: {}
connections:
  a:
    out:
      - node: b
        port: in
  b:
    out:
      - node: a
        port: in
`
	_, err := Load([]byte(src), registry)
	assert.ErrorContains(t, err, "cycle")
}

func TestLoad_MissingNameRejected(t *testing.T) {
	registry := testRegistry(t)
	_, err := Load([]byte("nodes: []\n"), registry)
	assert.Error(t, err)
}

func TestLoad_RoundTripIsSemanticallyIdentity(t *testing.T) {
	registry := testRegistry(t)

	first, err := Load([]byte(validYAML), registry)
	require.NoError(t, err)

	second, err := Load([]byte(validYAML), registry)
	require.NoError(t, err)

	assert.JSONEq(t, string(first.Definition), string(second.Definition))
}
