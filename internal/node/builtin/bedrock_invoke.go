package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// BedrockInvoke sends a chat-style prompt to an Amazon Bedrock foundation
// model, reached through an "aws" credential. The request/response body
// shape is model-family specific; this handler assumes the Messages API
// shape Bedrock exposes for its Anthropic-family models.
type BedrockInvoke struct{}

func NewBedrockInvoke() *BedrockInvoke { return &BedrockInvoke{} }

type bedrockInvokeParams struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequestBody struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponseBody struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (h *BedrockInvoke) TypeName() string               { return "bedrock_invoke" }
func (h *BedrockInvoke) Category() node.Category        { return node.CategoryAction }
func (h *BedrockInvoke) Subcategory() node.Subcategory   { return node.SubcategoryAI }
func (h *BedrockInvoke) RequiredCredentialType() string { return "aws" }

func (h *BedrockInvoke) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"model": {"type": "string"},
			"prompt": {"type": "string"},
			"max_tokens": {"type": "integer", "minimum": 1},
			"temperature": {"type": "number", "minimum": 0, "maximum": 1}
		},
		"required": ["model", "prompt"]
	}`)
}

func (h *BedrockInvoke) Validate(parameters json.RawMessage) error {
	return validateSchema(h.ParameterSchema(), parameters)
}

func (h *BedrockInvoke) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p bedrockInvokeParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("bedrock_invoke requires an %q credential", h.RequiredCredentialType()))
	}
	accessKey := nctx.Credential.Values["access_key_id"]
	secretKey := nctx.Credential.Values["secret_access_key"]
	region := nctx.Credential.Values["region"]
	if accessKey == "" || secretKey == "" || region == "" {
		return failure(fmt.Errorf("credential %q must set access_key_id, secret_access_key, and region", nctx.Credential.Name))
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return failure(fmt.Errorf("loading aws config: %w", err))
	}
	client := bedrockruntime.NewFromConfig(cfg)

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	prompt, _ := resolver.Resolve(p.Prompt, nctx.Variables).(string)
	if prompt == "" {
		prompt = p.Prompt
	}

	reqBody := bedrockRequestBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      p.Temperature,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return failure(err)
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &p.Model,
		ContentType: strPtr("application/json"),
		Accept:      strPtr("application/json"),
		Body:        payload,
	})
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}

	var resp bedrockResponseBody
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return failure(fmt.Errorf("decoding bedrock response: %w", err))
	}

	text := ""
	if len(resp.Content) > 0 {
		text = resp.Content[0].Text
	}
	return success(map[string]any{"text": text, "model": p.Model}), nil
}

func strPtr(s string) *string { return &s }
