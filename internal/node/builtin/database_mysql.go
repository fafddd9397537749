package builtin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/resolver"
)

// MySQLQuery runs a parameterised SQL query against a MySQL database
// reached through a "mysql" credential holding a DSN.
type MySQLQuery struct{}

func NewMySQLQuery() *MySQLQuery { return &MySQLQuery{} }

type mysqlQueryParams struct {
	Query string `json:"query"`
	Args  []any  `json:"args,omitempty"`
}

func (h *MySQLQuery) TypeName() string               { return "mysql_query" }
func (h *MySQLQuery) Category() node.Category        { return node.CategoryAction }
func (h *MySQLQuery) Subcategory() node.Subcategory   { return node.SubcategoryDatabase }
func (h *MySQLQuery) RequiredCredentialType() string { return "mysql" }

func (h *MySQLQuery) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"args": {"type": "array"}
		},
		"required": ["query"]
	}`)
}

func (h *MySQLQuery) Validate(parameters json.RawMessage) error {
	if err := validateSchema(h.ParameterSchema(), parameters); err != nil {
		return err
	}
	var p mysqlQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return err
	}
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

func (h *MySQLQuery) Execute(ctx context.Context, nctx *node.Context, parameters json.RawMessage) (*node.Output, error) {
	var p mysqlQueryParams
	if err := decodeParameters(parameters, &p); err != nil {
		return failure(err)
	}
	if nctx.Credential == nil {
		return failure(fmt.Errorf("mysql_query requires a %q credential", h.RequiredCredentialType()))
	}
	dsn := nctx.Credential.Values["dsn"]
	if dsn == "" {
		return failure(fmt.Errorf("credential %q has no dsn", nctx.Credential.Name))
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return failure(fmt.Errorf("opening mysql connection: %w", err))
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
