package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/workflow/internal/workflow"
)

type fakeWorkflowTrigger struct {
	triggerNodeResult      *workflow.WorkflowExecution
	triggerNodeErr         error
	triggerNodeAsyncResult *workflow.WorkflowExecution
	triggerNodeAsyncErr    error

	lastWorkflowID, lastTriggerNodeID string
	lastInput                         json.RawMessage
}

func (f *fakeWorkflowTrigger) TriggerNode(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*workflow.WorkflowExecution, error) {
	f.lastWorkflowID, f.lastTriggerNodeID, f.lastInput = workflowID, triggerNodeID, input
	return f.triggerNodeResult, f.triggerNodeErr
}

func (f *fakeWorkflowTrigger) TriggerNodeAsync(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*workflow.WorkflowExecution, error) {
	f.lastWorkflowID, f.lastTriggerNodeID, f.lastInput = workflowID, triggerNodeID, input
	return f.triggerNodeAsyncResult, f.triggerNodeAsyncErr
}

func newWebhookRequest(workflowID, triggerNodeID, target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("workflow_id", workflowID)
	rctx.URLParams.Add("trigger_node_id", triggerNodeID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestWebhookHandler_Trigger_FireAndForgetDefault(t *testing.T) {
	trigger := &fakeWorkflowTrigger{
		triggerNodeAsyncResult: &workflow.WorkflowExecution{ID: "exec-1", Status: workflow.ExecutionRunning},
	}
	h := NewWebhookHandler(trigger, nil, false, 5*time.Second)

	req := newWebhookRequest("wf-1", "trig-1", "/api/v1/webhook/wf-1/trigger/trig-1", `{"hello":"world"}`)
	w := httptest.NewRecorder()
	h.Trigger(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "exec-1", resp.ExecutionID)
	assert.Equal(t, "wf-1", trigger.lastWorkflowID)
	assert.Equal(t, "trig-1", trigger.lastTriggerNodeID)
}

func TestWebhookHandler_Trigger_WaitBlocksAndReturnsExecution(t *testing.T) {
	trigger := &fakeWorkflowTrigger{
		triggerNodeResult: &workflow.WorkflowExecution{ID: "exec-2", Status: workflow.ExecutionSuccess},
	}
	h := NewWebhookHandler(trigger, nil, false, 5*time.Second)

	req := newWebhookRequest("wf-1", "trig-1", "/api/v1/webhook/wf-1/trigger/trig-1?wait=true", `{}`)
	w := httptest.NewRecorder()
	h.Trigger(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "exec-2")
}

func TestWebhookHandler_Trigger_NotFound(t *testing.T) {
	trigger := &fakeWorkflowTrigger{triggerNodeAsyncErr: workflow.ErrNotFound}
	h := NewWebhookHandler(trigger, nil, false, 5*time.Second)

	req := newWebhookRequest("missing", "trig-1", "/api/v1/webhook/missing/trigger/trig-1", `{}`)
	w := httptest.NewRecorder()
	h.Trigger(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_Trigger_PropagatesQueryAndHeaders(t *testing.T) {
	trigger := &fakeWorkflowTrigger{
		triggerNodeAsyncResult: &workflow.WorkflowExecution{ID: "exec-3", Status: workflow.ExecutionRunning},
	}
	h := NewWebhookHandler(trigger, nil, false, 5*time.Second)

	req := newWebhookRequest("wf-1", "trig-1", "/api/v1/webhook/wf-1/trigger/trig-1?foo=bar", `{"a":1}`)
	req.Header.Set("X-Custom", "value")
	w := httptest.NewRecorder()
	h.Trigger(w, req)

	require.NotEmpty(t, trigger.lastInput)
	var parsed triggerInput
	require.NoError(t, json.Unmarshal(trigger.lastInput, &parsed))
	assert.Equal(t, "bar", parsed.Query["foo"])
	assert.Equal(t, "value", parsed.Headers["X-Custom"])
	assert.Equal(t, `{"a":1}`, string(parsed.Body))
}
