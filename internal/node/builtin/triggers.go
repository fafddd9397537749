package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/schedule"
)

// WebhookTrigger marks a node as the entry point for
// POST /api/v1/webhook/{workflow_id}/trigger/{trigger_node_id}. It is a
// root node: it has no incoming edges, so nctx.Inputs is always empty.
// Execute instead reads the execution's input_data off nctx.Variables
// ("input" never changes after a run starts) and surfaces its `data` field,
// matching the `{data?: any}` envelope the webhook handler accepts.
type WebhookTrigger struct{}

func NewWebhookTrigger() *WebhookTrigger { return &WebhookTrigger{} }

func (h *WebhookTrigger) TypeName() string              { return "webhook_trigger" }
func (h *WebhookTrigger) Category() node.Category       { return node.CategoryTrigger }
func (h *WebhookTrigger) Subcategory() node.Subcategory { return node.SubcategoryGeneral }
func (h *WebhookTrigger) RequiredCredentialType() string { return "" }

func (h *WebhookTrigger) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (h *WebhookTrigger) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *WebhookTrigger) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	envelope, _ := nctx.Variables["input"].(map[string]any)
	return success(envelope["data"]), nil
}

// ScheduleTrigger marks a node as the entry point for a cron-scheduled run.
// Its cron expression is validated at definition time (six-field format,
// second minute hour day-of-month month day-of-week) but never evaluated by
// Execute — firing schedule_trigger nodes in-process is out of scope; the
// engine only stores and validates the string.
type ScheduleTrigger struct{}

func NewScheduleTrigger() *ScheduleTrigger { return &ScheduleTrigger{} }

func (h *ScheduleTrigger) TypeName() string              { return "schedule_trigger" }
func (h *ScheduleTrigger) Category() node.Category       { return node.CategoryTrigger }
func (h *ScheduleTrigger) Subcategory() node.Subcategory { return node.SubcategoryGeneral }
func (h *ScheduleTrigger) RequiredCredentialType() string { return "" }

type scheduleTriggerParams struct {
	Cron string `json:"cron"`
}

func (h *ScheduleTrigger) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"cron": {"type": "string"}},
		"required": ["cron"]
	}`)
}

var scheduleCronParser = schedule.NewCronParser()

func (h *ScheduleTrigger) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p scheduleTriggerParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if len(strings.Fields(p.Cron)) != 6 {
		return fmt.Errorf("invalid cron expression %q: expected six fields (second minute hour day-of-month month day-of-week)", p.Cron)
	}
	if _, err := scheduleCronParser.ParseCron(p.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", p.Cron, err)
	}
	return nil
}

func (h *ScheduleTrigger) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	return success(nctx.Variables["context"]), nil
}
