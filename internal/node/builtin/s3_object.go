package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// S3Object gets or puts a single S3 object, reached through an "aws"
// credential holding an access key pair and region.
type S3Object struct{}

func NewS3Object() *S3Object { return &S3Object{} }

type s3ObjectParams struct {
	Operation string `json:"operation"` // get | put | delete
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Body      string `json:"body,omitempty"`
}

func (h *S3Object) TypeName() string               { return "s3_object" }
func (h *S3Object) Category() node.Category        { return node.CategoryAction }
func (h *S3Object) Subcategory() node.Subcategory   { return node.SubcategoryStorage }
func (h *S3Object) RequiredCredentialType() string { return "aws" }

func (h *S3Object) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["get","put","delete"]},
			"bucket": {"type": "string"},
			"key": {"type": "string"},
			"body": {"type": "string"}
		},
		"required": ["operation", "bucket", "key"]
	}`)
}

func (h *S3Object) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p s3ObjectParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Operation == "put" && p.Body == "" {
		return fmt.Errorf("body is required for put operation")
	}
	return nil
}

func (h *S3Object) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p s3ObjectParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("s3_object requires an %q credential", h.RequiredCredentialType()))
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
	client := s3.NewFromConfig(cfg)

	switch p.Operation {
	case "get":
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.Bucket), Key: aws.String(p.Key)})
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
		}
		defer out.Body.Close()
		data, err := io.ReadAll(out.Body)
		if err != nil {
			return failure(err)
		}
		return success(map[string]any{"body": string(data), "content_length": len(data)}), nil

	case "put":
		body := resolver.Resolve(p.Body, nctx.Variables)
		bodyStr := fmt.Sprintf("%v", body)
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.Bucket),
			Key:    aws.String(p.Key),
			Body:   bytes.NewReader([]byte(bodyStr)),
		})
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
		}
		return success(map[string]any{"bucket": p.Bucket, "key": p.Key}), nil

	case "delete":
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(p.Bucket), Key: aws.String(p.Key)})
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
		}
		return success(map[string]any{"bucket": p.Bucket, "key": p.Key}), nil

	default:
		return failure(fmt.Errorf("unknown operation %q", p.Operation))
	}
}
