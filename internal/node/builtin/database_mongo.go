package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// MongoQuery runs a find or aggregate operation against MongoDB, reached
// through a "mongodb" credential holding a connection URI and the target
// database name.
type MongoQuery struct{}

func NewMongoQuery() *MongoQuery { return &MongoQuery{} }

type mongoQueryParams struct {
	Collection string           `json:"collection"`
	Operation  string           `json:"operation,omitempty"` // find | aggregate, default find
	Filter     json.RawMessage  `json:"filter,omitempty"`
	Pipeline   []json.RawMessage `json:"pipeline,omitempty"`
	Limit      int64            `json:"limit,omitempty"`
}

func (h *MongoQuery) TypeName() string               { return "mongodb_query" }
func (h *MongoQuery) Category() node.Category        { return node.CategoryAction }
func (h *MongoQuery) Subcategory() node.Subcategory   { return node.SubcategoryDatabase }
func (h *MongoQuery) RequiredCredentialType() string { return "mongodb" }

func (h *MongoQuery) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"collection": {"type": "string"},
			"operation": {"type": "string", "enum": ["find", "aggregate"]},
			"filter": {"type": "object"},
			"pipeline": {"type": "array"},
			"limit": {"type": "integer", "minimum": 0}
		},
		"required": ["collection"]
	}`)
}

func (h *MongoQuery) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p mongoQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if p.Operation == "aggregate" && len(p.Pipeline) == 0 {
		return fmt.Errorf("pipeline is required for aggregate operation")
	}
	return nil
}

func (h *MongoQuery) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p mongoQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("mongodb_query requires a %q credential", h.RequiredCredentialType()))
	}
	uri := nctx.Credential.Values["uri"]
	dbName := nctx.Credential.Values["database"]
	if uri == "" || dbName == "" {
		return failure(fmt.Errorf("credential %q must set uri and database", nctx.Credential.Name))
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return failure(fmt.Errorf("connecting to mongodb: %w", err))
	}
	defer client.Disconnect(ctx)

	collection := client.Database(dbName).Collection(p.Collection)

	var documents []bson.M
	if p.Operation == "aggregate" {
		pipeline := make([]bson.M, 0, len(p.Pipeline))
		for _, stage := range p.Pipeline {
			resolved := resolver.Resolve(json.RawMessage(stage), nctx.Variables)
			stageBSON, err := toBSON(resolved)
			if err != nil {
				return failure(err)
			}
			pipeline = append(pipeline, stageBSON)
		}
		cursor, err := collection.Aggregate(ctx, pipeline)
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
		}
		defer cursor.Close(ctx)
		if err := cursor.All(ctx, &documents); err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
		}
	} else {
		filter := bson.M{}
		if len(p.Filter) > 0 {
			resolved := resolver.Resolve(json.RawMessage(p.Filter), nctx.Variables)
			filter, err = toBSON(resolved)
			if err != nil {
				return failure(err)
			}
		}
		findOpts := options.Find()
		if p.Limit > 0 {
			findOpts.SetLimit(p.Limit)
		}
		cursor, err := collection.Find(ctx, filter, findOpts)
		if err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
		}
		defer cursor.Close(ctx)
		if err := cursor.All(ctx, &documents); err != nil {
			return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
		}
	}

	return success(map[string]any{"documents": documents, "count": len(documents)}), nil
}

func toBSON(v any) (bson.M, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(b, false, &m); err != nil {
		return nil, fmt.Errorf("decoding mongo filter: %w", err)
	}
	return m, nil
}
