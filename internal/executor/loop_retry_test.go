package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/node/builtin"
	"github.com/flowforge/workflow/internal/workflow"
)

func nodeExecRows(id, execID, nodeID string, status workflow.NodeStatus, attempt int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "execution_id", "node_id", "status", "started_at", "finished_at",
		"input_data", "output_data", "error", "attempt",
	}).AddRow(id, execID, nodeID, status, time.Now(), nil, nil, nil, nil, attempt)
}

func TestRetryWrapper_DetectsSoleRetrySource(t *testing.T) {
	r := &run{
		incoming: map[string][]string{"action": {"r"}},
		nodes: map[string]workflow.NodeDefinition{
			"r": {ID: "r", NodeType: "retry", Parameters: json.RawMessage(`{"max_attempts":3,"initial_delay_seconds":1}`)},
		},
	}

	params, wrapped := r.retryWrapper("action")
	require.True(t, wrapped)
	assert.Equal(t, 3, params.MaxAttempts)
}

func TestRetryWrapper_FalseForMultipleIncomingEdges(t *testing.T) {
	r := &run{incoming: map[string][]string{"action": {"r", "other"}}}
	_, wrapped := r.retryWrapper("action")
	assert.False(t, wrapped)
}

func TestRetryWrapper_FalseWhenSourceIsNotRetry(t *testing.T) {
	r := &run{
		incoming: map[string][]string{"action": {"a"}},
		nodes:    map[string]workflow.NodeDefinition{"a": {ID: "a", NodeType: "mock"}},
	}
	_, wrapped := r.retryWrapper("action")
	assert.False(t, wrapped)
}

func TestRetryDelay_ExponentialBackoffCappedAtMaxDelay(t *testing.T) {
	p := builtin.RetryParams{InitialDelay: 1, Multiplier: 2, MaxDelay: 5}

	assert.Equal(t, time.Second, retryDelay(p, 0))
	assert.Equal(t, 2*time.Second, retryDelay(p, 1))
	assert.Equal(t, 4*time.Second, retryDelay(p, 2))
	assert.Equal(t, 5*time.Second, retryDelay(p, 3)) // would be 8s, capped at max_delay_seconds
}

func TestExecNode_RetryWrapped_SucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	handler := &fakeHandler{typeName: "flaky", result: &node.Output{Success: true, Data: "ok"}}
	registry := node.NewRegistry(nil)
	require.NoError(t, registry.Register(&retryingHandler{fakeHandler: handler, attempts: &attempts}))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := workflow.NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`INSERT INTO node_executions`).WillReturnRows(nodeExecRows("ne-1", "exec-1", "action", workflow.NodeRunning, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO node_executions`).WillReturnRows(nodeExecRows("ne-2", "exec-1", "action", workflow.NodeRunning, 2))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))

	ex := New(repo, registry, nil, nil)
	r := &run{
		e:   ex,
		def: &workflow.WorkflowDefinition{Nodes: []workflow.NodeDefinition{{ID: "r"}, {ID: "action"}}},
		nodes: map[string]workflow.NodeDefinition{
			"r":      {ID: "r", NodeType: "retry", Parameters: json.RawMessage(`{"max_attempts":3,"initial_delay_seconds":0.001}`)},
			"action": {ID: "action", NodeType: "flaky", Parameters: json.RawMessage(`{}`)},
		},
		outgoing:  map[string]map[string][]workflow.ConnectionTarget{},
		incoming:  map[string][]string{"action": {"r"}},
		variables: map[string]any{},
		outputs:   map[string]*node.Output{},
		status:    map[string]workflow.NodeStatus{},
		nodeExecs: map[string]*workflow.NodeExecution{},
		execution: &workflow.WorkflowExecution{ID: "exec-1"},
	}

	_, terminate, err := r.execNode(context.Background(), "action")
	require.NoError(t, err)
	assert.False(t, terminate)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, workflow.NodeSuccess, r.status["action"])
}

// retryingHandler fails its first call and succeeds thereafter, to exercise
// execNode's retry-wrapped path.
type retryingHandler struct {
	*fakeHandler
	attempts *int
}

func (h *retryingHandler) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	*h.attempts++
	if *h.attempts == 1 {
		return &node.Output{Success: false, Error: "transient"}, nil
	}
	return h.fakeHandler.Execute(ctx, nctx, parameters)
}

func TestLoopWrapper_DetectsResolvedLoopSource(t *testing.T) {
	r := &run{
		incoming: map[string][]string{"action": {"l"}},
		nodes: map[string]workflow.NodeDefinition{
			"l": {ID: "l", NodeType: "loop", Parameters: json.RawMessage(`{"items":"$src.rows","iteration_as":"row"}`)},
		},
		outputs: map[string]*node.Output{
			"l": {Success: true, Data: map[string]any{"items": []any{"x", "y"}, "count": 2}},
		},
	}

	items, iterVar, wrapped := r.loopWrapper("action")
	require.True(t, wrapped)
	assert.Equal(t, "row", iterVar)
	assert.Equal(t, []any{"x", "y"}, items)
}

func TestExecNode_LoopWrapped_RunsOncePerItemWithFreshVariables(t *testing.T) {
	var seen []any
	handler := &capturingHandler{typeName: "per_item", seen: &seen}

	registry := node.NewRegistry(nil)
	require.NoError(t, registry.Register(handler))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := workflow.NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`INSERT INTO node_executions`).WillReturnRows(nodeExecRows("ne-1", "exec-1", "action", workflow.NodeRunning, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO node_executions`).WillReturnRows(nodeExecRows("ne-2", "exec-1", "action", workflow.NodeRunning, 2))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))

	ex := New(repo, registry, nil, nil)
	r := &run{
		e:   ex,
		def: &workflow.WorkflowDefinition{Nodes: []workflow.NodeDefinition{{ID: "l"}, {ID: "action"}}},
		nodes: map[string]workflow.NodeDefinition{
			"l":      {ID: "l", NodeType: "loop", Parameters: json.RawMessage(`{"items":"$src.rows","iteration_as":"row"}`)},
			"action": {ID: "action", NodeType: "per_item", Parameters: json.RawMessage(`{}`)},
		},
		outgoing:  map[string]map[string][]workflow.ConnectionTarget{},
		incoming:  map[string][]string{"action": {"l"}},
		variables: map[string]any{},
		outputs: map[string]*node.Output{
			"l": {Success: true, Data: map[string]any{"items": []any{"x", "y"}, "count": 2}},
		},
		status:    map[string]workflow.NodeStatus{},
		nodeExecs: map[string]*workflow.NodeExecution{},
		execution: &workflow.WorkflowExecution{ID: "exec-1"},
	}

	_, terminate, err := r.execNode(context.Background(), "action")
	require.NoError(t, err)
	assert.False(t, terminate)
	assert.Equal(t, []any{"x", "y"}, seen)

	results, ok := r.outputs["action"].Data.([]any)
	require.True(t, ok)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, 0, first["index"])
	assert.Equal(t, "x", first["row"])
}

// capturingHandler records the value bound to the "row" iteration variable
// on each call.
type capturingHandler struct {
	typeName string
	seen     *[]any
}

func (h *capturingHandler) TypeName() string                { return h.typeName }
func (h *capturingHandler) Category() node.Category         { return node.CategoryAction }
func (h *capturingHandler) Subcategory() node.Subcategory    { return node.SubcategoryGeneral }
func (h *capturingHandler) ParameterSchema() json.RawMessage { return json.RawMessage(`{}`) }
func (h *capturingHandler) RequiredCredentialType() string   { return "" }
func (h *capturingHandler) Validate(json.RawMessage) error   { return nil }
func (h *capturingHandler) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	*h.seen = append(*h.seen, nctx.Variables["row"])
	return &node.Output{Success: true, Data: nctx.Variables["row"]}, nil
}
