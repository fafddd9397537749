package builtin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// PostgresQuery runs a parameterised SQL query against a Postgres database
// reached through a "postgres" credential holding a connection string.
type PostgresQuery struct{}

func NewPostgresQuery() *PostgresQuery { return &PostgresQuery{} }

type postgresQueryParams struct {
	Query string        `json:"query"`
	Args  []any         `json:"args,omitempty"`
}

func (h *PostgresQuery) TypeName() string               { return "postgres_query" }
func (h *PostgresQuery) Category() node.Category        { return node.CategoryAction }
func (h *PostgresQuery) Subcategory() node.Subcategory   { return node.SubcategoryDatabase }
func (h *PostgresQuery) RequiredCredentialType() string { return "postgres" }

func (h *PostgresQuery) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"args": {"type": "array"}
		},
		"required": ["query"]
	}`)
}

func (h *PostgresQuery) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p postgresQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

func (h *PostgresQuery) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p postgresQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("postgres_query requires a %q credential", h.RequiredCredentialType()))
	}
	connStr := nctx.Credential.Values["connection_string"]
	if connStr == "" {
		return failure(fmt.Errorf("credential %q has no connection_string", nctx.Credential.Name))
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return failure(fmt.Errorf("opening postgres connection: %w", err))
	}
	defer db.Close()

	args := make([]any, len(p.Args))
	for i, a := range p.Args {
		args[i] = resolver.Resolve(a, nctx.Variables)
	}

	rows, err := db.QueryContext(ctx, p.Query, args...)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, true))
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return failure(node.NewExecutionError(nctx.NodeID, h.TypeName(), err, false))
	}
	return success(map[string]any{"rows": results, "count": len(results)}), nil
}

// scanRows reads every row of a *sql.Rows into a slice of column-name-keyed
// maps, shared by every SQL-backed query handler.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
