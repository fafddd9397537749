package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowforge/workflow/internal/node"
)

// SlackMessage posts a message to a Slack channel via the chat.postMessage
// web API, using a plain net/http client rather than an SDK — matching the
// same choice the credential's bot token demands: a single bearer-token
// POST, no OAuth dance needed at send time.
type SlackMessage struct {
	client *http.Client
}

func NewSlackMessage() *SlackMessage {
	return &SlackMessage{client: &http.Client{Timeout: 15 * time.Second}}
}

type slackMessageParams struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

func (h *SlackMessage) TypeName() string               { return "slack_message" }
func (h *SlackMessage) Category() node.Category        { return node.CategoryAction }
func (h *SlackMessage) Subcategory() node.Subcategory   { return node.SubcategoryGeneral }
func (h *SlackMessage) RequiredCredentialType() string { return "slack" }

func (h *SlackMessage) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"channel": {"type": "string"},
			"text": {"type": "string"}
		},
		"required": ["channel", "text"]
	}`)
}

func (h *SlackMessage) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *SlackMessage) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p slackMessageParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("slack_message requires a %q credential", h.RequiredCredentialType()))
	}
	token := nctx.Credential.Values["bot_token"]
	if token == "" {
		return failure(fmt.Errorf("credential %q has no bot_token", nctx.Credential.Name))
	}

	body, err := json.Marshal(map[string]string{"channel": p.Channel, "text": p.Text})
	if err != nil {
		return failure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://slack.com/api/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.client.Do(req)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}

	var apiResp slackAPIResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return failure(fmt.Errorf("decoding slack response: %w", err))
	}
	if !apiResp.OK {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), fmt.Errorf("slack API error: %s", apiResp.Error), false))
	}

	return success(map[string]any{"ts": apiResp.TS, "channel": p.Channel}), nil
}
