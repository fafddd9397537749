package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowforge/workflow/internal/api/response"
	"github.com/flowforge/workflow/internal/workflow"
)

// WorkflowTrigger is the subset of *workflow.Service the webhook handler
// depends on.
type WorkflowTrigger interface {
	TriggerNode(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*workflow.WorkflowExecution, error)
	TriggerNodeAsync(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*workflow.WorkflowExecution, error)
}

// WebhookHandler fires a workflow's webhook_trigger node on inbound HTTP
// requests.
type WebhookHandler struct {
	workflows   WorkflowTrigger
	logger      *slog.Logger
	defaultWait bool
	maxWait     time.Duration
}

// NewWebhookHandler wires a WorkflowTrigger into a WebhookHandler. maxWait
// bounds how long a `?wait=true` request will block before the response is
// sent with whatever state the execution has reached.
func NewWebhookHandler(workflows WorkflowTrigger, logger *slog.Logger, defaultWait bool, maxWait time.Duration) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{workflows: workflows, logger: logger, defaultWait: defaultWait, maxWait: maxWait}
}

// TriggerResponse is returned for a fire-and-forget webhook call.
type TriggerResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// Trigger handles POST /api/v1/webhook/{workflow_id}/trigger/{trigger_node_id}.
//
// By default the call is fire-and-forget: the execution row is created and
// the response carries its id while the run continues in the background.
// Passing ?wait=true blocks until the execution reaches a terminal state
// (bounded by the configured wait ceiling) and returns the full execution.
// @Summary Fire a workflow's webhook trigger node
// @Tags Webhook
// @Accept json
// @Produce json
// @Param workflow_id path string true "Workflow ID"
// @Param trigger_node_id path string true "Trigger node ID"
// @Param wait query bool false "Block until the execution finishes"
// @Success 200 {object} response.DataResponse
// @Success 202 {object} TriggerResponse
// @Failure 404 {object} response.APIError
// @Failure 500 {object} response.APIError
// @Router /api/v1/webhook/{workflow_id}/trigger/{trigger_node_id} [post]
func (h *WebhookHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflow_id")
	triggerNodeID := chi.URLParam(r, "trigger_node_id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, h.logger, "failed to read request body")
		return
	}

	input := buildTriggerInput(r, body)

	wait := h.defaultWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait = raw == "true" || raw == "1"
	}

	if !wait {
		exec, err := h.workflows.TriggerNodeAsync(r.Context(), workflowID, triggerNodeID, input, "webhook")
		if err != nil {
			h.handleTriggerError(w, err)
			return
		}
		response.JSON(w, h.logger, http.StatusAccepted, TriggerResponse{
			ExecutionID: exec.ID,
			Status:      string(exec.Status),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.maxWait)
	defer cancel()

	exec, runErr := h.workflows.TriggerNode(ctx, workflowID, triggerNodeID, input, "webhook")
	if exec == nil {
		h.handleTriggerError(w, runErr)
		return
	}
	if runErr != nil {
		h.logger.Warn("webhook-triggered execution finished with an error", "execution_id", exec.ID, "error", runErr)
	}
	response.OK(w, h.logger, exec)
}

func (h *WebhookHandler) handleTriggerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		response.NotFound(w, h.logger, "workflow or trigger node not found")
	case err != nil:
		h.logger.Error("webhook trigger failed", "error", err)
		response.BadRequest(w, h.logger, err.Error())
	default:
		response.InternalError(w, h.logger, "trigger failed")
	}
}

// triggerInput is what a webhook_trigger node receives as its node input:
// the posted envelope's `data` field (the value a webhook_trigger node's
// Execute surfaces), the raw JSON body it was extracted from, and enough
// request metadata for downstream nodes to branch on headers or query
// parameters.
type triggerInput struct {
	Data    json.RawMessage   `json:"data,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Method  string            `json:"method"`
}

func buildTriggerInput(r *http.Request, body []byte) json.RawMessage {
	ti := triggerInput{
		Headers: flattenHeaders(r.Header),
		Query:   flattenQuery(r.URL.Query()),
		Method:  r.Method,
	}
	if len(body) > 0 && json.Valid(body) {
		ti.Body = json.RawMessage(body)
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(body, &envelope) == nil && len(envelope.Data) > 0 {
			ti.Data = envelope.Data
		}
	} else if len(body) > 0 {
		encoded, _ := json.Marshal(string(body))
		ti.Body = encoded
	}
	out, _ := json.Marshal(ti)
	return out
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func flattenQuery(q map[string][]string) map[string]string {
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
