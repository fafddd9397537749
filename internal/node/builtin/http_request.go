package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// HTTPRequest performs an outbound HTTP call. The node's parameters are
// resolved against the execution's variables before Execute runs, so URL,
// headers, and body may all contain $-tokens.
type HTTPRequest struct {
	client *http.Client
}

func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{client: &http.Client{}}
}

type httpRequestParams struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            json.RawMessage   `json:"body,omitempty"`
	TimeoutSeconds  int               `json:"timeout_seconds,omitempty"`
	FollowRedirects bool              `json:"follow_redirects,omitempty"`
}

type httpRequestResult struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
}

func (h *HTTPRequest) TypeName() string               { return "http_request" }
func (h *HTTPRequest) Category() node.Category        { return node.CategoryAction }
func (h *HTTPRequest) Subcategory() node.Subcategory  { return node.SubcategoryGeneral }
func (h *HTTPRequest) RequiredCredentialType() string { return "" }

func (h *HTTPRequest) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"method": {"type": "string", "enum": ["GET","POST","PUT","PATCH","DELETE","HEAD"]},
			"url": {"type": "string"},
			"headers": {"type": "object"},
			"body": {},
			"timeout_seconds": {"type": "integer", "minimum": 1},
			"follow_redirects": {"type": "boolean"}
		},
		"required": ["url"]
	}`)
}

func (h *HTTPRequest) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p httpRequestParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

func (h *HTTPRequest) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p httpRequestParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}

	method := strings.ToUpper(p.Method)
	if method == "" {
		method = "GET"
	}

	timeout := 30 * time.Second
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: timeout}
	if !p.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var body io.Reader
	if len(p.Body) > 0 {
		resolved := resolver.Resolve(json.RawMessage(p.Body), nctx.Variables)
		b, err := json.Marshal(resolved)
		if err != nil {
			return failure(fmt.Errorf("encoding request body: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, p.URL, body)
	if err != nil {
		return failure(fmt.Errorf("building request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}

	var parsedBody any
	if len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, &parsedBody); err != nil {
			parsedBody = string(respBytes)
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	result := httpRequestResult{StatusCode: resp.StatusCode, Headers: headers, Body: parsedBody}
	if resp.StatusCode >= 400 {
		retryable := resp.StatusCode == 408 || resp.StatusCode == 429 || resp.StatusCode >= 500
		err := fmt.Errorf("http request returned status %d", resp.StatusCode)
		out := &node.Output{Success: false, Data: result, Error: err.Error()}
		return out, node.NewExecutionError(nctx.NodeID, h.TypeName(), err, retryable)
	}

	return success(result), nil
}

// targetHost returns an http_request/slack_message node's resolved url
// parameter unchanged (the full URL, not only its host). The executor keys
// its circuit breakers with its own targetHost, not with this function.
func targetHost(parameters json.RawMessage) string {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(parameters, &p); err != nil {
		return ""
	}
	return p.URL
}
