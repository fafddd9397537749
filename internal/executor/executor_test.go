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
	"github.com/flowforge/workflow/internal/workflow"
)

// fakeHandler is a minimal node.Handler for exercising the scheduler
// without any real I/O. result and err are returned verbatim from Execute.
type fakeHandler struct {
	typeName string
	result   *node.Output
	err      error
	calls    *[]string
}

func (h *fakeHandler) TypeName() string               { return h.typeName }
func (h *fakeHandler) Category() node.Category        { return node.CategoryAction }
func (h *fakeHandler) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *fakeHandler) ParameterSchema() json.RawMessage { return json.RawMessage(`{}`) }
func (h *fakeHandler) RequiredCredentialType() string  { return "" }
func (h *fakeHandler) Validate(json.RawMessage) error  { return nil }
func (h *fakeHandler) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	if h.calls != nil {
		*h.calls = append(*h.calls, nctx.NodeID)
	}
	return h.result, h.err
}

func newTestExecutor(t *testing.T, handlers ...*fakeHandler) (*Executor, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := node.NewRegistry(nil)
	for _, h := range handlers {
		require.NoError(t, registry.Register(h))
	}

	repo := workflow.NewRepository(sqlx.NewDb(db, "sqlmock"))
	return New(repo, registry, nil, nil), mock
}

func simpleDef(nodeA, nodeB string) *workflow.WorkflowDefinition {
	return &workflow.WorkflowDefinition{
		Name: "chain",
		Nodes: []workflow.NodeDefinition{
			{ID: nodeA, NodeType: "noop_a", Parameters: json.RawMessage(`{}`)},
			{ID: nodeB, NodeType: "noop_b", Parameters: json.RawMessage(`{}`)},
		},
		Connections: map[string]map[string][]workflow.ConnectionTarget{
			nodeA: {"default": {{NodeID: nodeB, Port: "default"}}},
		},
	}
}

func TestExecutor_Run_SimpleChainSucceeds(t *testing.T) {
	var calls []string
	ha := &fakeHandler{typeName: "noop_a", result: &node.Output{Success: true, Data: map[string]any{"v": 1}}, calls: &calls}
	hb := &fakeHandler{typeName: "noop_b", result: &node.Output{Success: true, Data: map[string]any{"v": 2}}, calls: &calls}

	ex, mock := newTestExecutor(t, ha, hb)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`INSERT INTO node_executions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "execution_id", "node_id", "status", "started_at", "finished_at",
			"input_data", "output_data", "error", "attempt",
		}).AddRow("ne-1", "exec-1", "a", workflow.NodeRunning, time.Now(), nil, nil, nil, nil, 1))
	mock.ExpectQuery(`INSERT INTO node_executions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "execution_id", "node_id", "status", "started_at", "finished_at",
			"input_data", "output_data", "error", "attempt",
		}).AddRow("ne-2", "exec-1", "b", workflow.NodeRunning, time.Now(), nil, nil, nil, nil, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE workflow_executions`).WillReturnResult(sqlmock.NewResult(0, 1))

	def := simpleDef("a", "b")
	exec := &workflow.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}

	out, err := ex.Run(context.Background(), def, exec, json.RawMessage(`{"x":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)

	var final map[string]any
	require.NoError(t, json.Unmarshal(out, &final))
	assert.Contains(t, final, "b")
}

func TestExecutor_Run_FailurePropagatesAndSkipsDownstream(t *testing.T) {
	ha := &fakeHandler{typeName: "noop_a", result: &node.Output{Success: false, Error: "boom"}}
	hb := &fakeHandler{typeName: "noop_b", result: &node.Output{Success: true}}

	ex, mock := newTestExecutor(t, ha, hb)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`INSERT INTO node_executions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "execution_id", "node_id", "status", "started_at", "finished_at",
			"input_data", "output_data", "error", "attempt",
		}).AddRow("ne-1", "exec-1", "a", workflow.NodeRunning, time.Now(), nil, nil, nil, nil, 1))
	mock.ExpectExec(`UPDATE node_executions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO node_executions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "execution_id", "node_id", "status", "started_at", "finished_at",
			"input_data", "output_data", "error", "attempt",
		}).AddRow("ne-2", "exec-1", "b", workflow.NodeSkipped, time.Now(), time.Now(), nil, nil, nil, 1))
	mock.ExpectExec(`UPDATE workflow_executions`).WillReturnResult(sqlmock.NewResult(0, 1))

	def := simpleDef("a", "b")
	exec := &workflow.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}

	_, err := ex.Run(context.Background(), def, exec, nil, "")
	assert.Error(t, err)
}

func TestExecutor_ResolveBranch_ConditionSkipsUnselectedPort(t *testing.T) {
	ex, mock := newTestExecutor(t)
	mock.ExpectQuery(`INSERT INTO node_executions`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "execution_id", "node_id", "status", "started_at", "finished_at",
			"input_data", "output_data", "error", "attempt",
		}).AddRow("ne-f", "exec-1", "f", workflow.NodeSkipped, time.Now(), time.Now(), nil, nil, nil, 1))

	r := &run{
		def: &workflow.WorkflowDefinition{},
		outgoing: map[string]map[string][]workflow.ConnectionTarget{
			"cond": {
				"true":  {{NodeID: "t", Port: "default"}},
				"false": {{NodeID: "f", Port: "default"}},
			},
		},
		incoming:  map[string][]string{"t": {"cond"}, "f": {"cond"}},
		nodes:     map[string]workflow.NodeDefinition{"t": {ID: "t"}, "f": {ID: "f"}},
		status:    map[string]workflow.NodeStatus{"cond": workflow.NodeSuccess},
		execution: &workflow.WorkflowExecution{ID: "exec-1"},
		e:         ex,
	}

	ready := r.resolveBranch("cond", workflow.NodeDefinition{NodeType: "condition"}, &node.Output{Data: map[string]any{"branch": "true"}})
	assert.Equal(t, []string{"t"}, ready)
	assert.Equal(t, workflow.NodeSkipped, r.status["f"])
}

func TestExecutor_AllInputsResolved_MergeAny(t *testing.T) {
	r := &run{
		incoming: map[string][]string{"m": {"a", "b"}},
		nodes: map[string]workflow.NodeDefinition{
			"m": {ID: "m", NodeType: "merge", Parameters: json.RawMessage(`{"strategy":"any"}`)},
		},
		status: map[string]workflow.NodeStatus{"a": workflow.NodeSuccess, "b": workflow.NodeRunning},
	}
	assert.True(t, r.allInputsResolved("m"))
}

func TestExecutor_AllInputsResolved_MergeAllWaitsForEveryEdge(t *testing.T) {
	r := &run{
		incoming: map[string][]string{"m": {"a", "b"}},
		nodes: map[string]workflow.NodeDefinition{
			"m": {ID: "m", NodeType: "merge", Parameters: json.RawMessage(`{}`)},
		},
		status: map[string]workflow.NodeStatus{"a": workflow.NodeSuccess, "b": workflow.NodeRunning},
	}
	assert.False(t, r.allInputsResolved("m"))
}
