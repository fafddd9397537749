package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a workflow, execution, or node execution
// lookup finds no matching row.
var ErrNotFound = errors.New("workflow not found")

// Repository is the persistence layer for workflows and their executions,
// over a single PostgreSQL connection pool.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open sqlx connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateWorkflowInput is the input to ImportWorkflow.
type CreateWorkflowInput struct {
	Name        string
	Description string
	Active      bool
	Definition  json.RawMessage
}

// ImportWorkflow inserts a new workflow definition at version 1. Name
// uniqueness is enforced at the database layer (unique index on name).
func (r *Repository) ImportWorkflow(ctx context.Context, input CreateWorkflowInput) (*Workflow, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO workflows (id, name, description, active, definition, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		RETURNING *
	`

	var wf Workflow
	err := r.db.QueryRowxContext(ctx, query, id, input.Name, input.Description, input.Active, input.Definition, now).StructScan(&wf)
	if err != nil {
		return nil, fmt.Errorf("importing workflow: %w", err)
	}
	return &wf, nil
}

// GetWorkflow retrieves a workflow by id.
func (r *Repository) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	err := r.db.GetContext(ctx, &wf, `SELECT * FROM workflows WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wf, nil
}

// GetWorkflowByName retrieves a workflow by its unique name.
func (r *Repository) GetWorkflowByName(ctx context.Context, name string) (*Workflow, error) {
	var wf Workflow
	err := r.db.GetContext(ctx, &wf, `SELECT * FROM workflows WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows returns workflows, optionally restricted to active ones,
// ordered by name.
func (r *Repository) ListWorkflows(ctx context.Context, activeOnly bool) ([]*Workflow, error) {
	query := `SELECT * FROM workflows`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY name`

	var workflows []*Workflow
	if err := r.db.SelectContext(ctx, &workflows, query); err != nil {
		return nil, err
	}
	return workflows, nil
}

// UpdateWorkflowInput is the input to UpdateWorkflow; zero-value fields are
// left unchanged, and Active applies only when SetActive is true.
type UpdateWorkflowInput struct {
	Name        string
	Description string
	Definition  json.RawMessage
	Active      bool
	SetActive   bool
}

// UpdateWorkflow applies a partial update, incrementing version whenever
// the definition changes.
func (r *Repository) UpdateWorkflow(ctx context.Context, id string, input UpdateWorkflowInput) (*Workflow, error) {
	current, err := r.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	newVersion := current.Version
	if input.Definition != nil {
		newVersion++
	}

	active := current.Active
	if input.SetActive {
		active = input.Active
	}

	query := `
		UPDATE workflows
		SET name = COALESCE(NULLIF($2, ''), name),
		    description = COALESCE(NULLIF($3, ''), description),
		    definition = COALESCE($4, definition),
		    active = $5,
		    version = $6,
		    updated_at = $7
		WHERE id = $1
		RETURNING *
	`

	var wf Workflow
	err = r.db.QueryRowxContext(ctx, query, id, input.Name, input.Description, input.Definition, active, newVersion, time.Now().UTC()).StructScan(&wf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wf, nil
}

// DeleteWorkflow removes a workflow permanently.
func (r *Repository) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateExecution inserts a new WorkflowExecution row in the running state.
func (r *Repository) CreateExecution(ctx context.Context, workflowID string, inputData json.RawMessage, triggeredBy *string) (*WorkflowExecution, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var inputPtr *json.RawMessage
	if inputData != nil {
		inputPtr = &inputData
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, status, started_at, input_data, triggered_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`

	var exec WorkflowExecution
	err := r.db.QueryRowxContext(ctx, query, id, workflowID, ExecutionRunning, now, inputPtr, triggeredBy).StructScan(&exec)
	if err != nil {
		return nil, fmt.Errorf("creating execution: %w", err)
	}
	return &exec, nil
}

// UpdateExecutionStatus persists a terminal (or otherwise updated) status
// for an execution. Once a terminal status has been written the record is
// immutable; callers must not call this again for the same execution.
func (r *Repository) UpdateExecutionStatus(ctx context.Context, id string, status ExecutionStatus, outputData json.RawMessage, execErr *string) error {
	now := time.Now().UTC()

	var outputPtr *json.RawMessage
	if outputData != nil {
		outputPtr = &outputData
	}

	query := `
		UPDATE workflow_executions
		SET status = $2, finished_at = $3, output_data = $4, error = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status, now, outputPtr, execErr)
	if err != nil {
		return fmt.Errorf("updating execution status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExecution retrieves a WorkflowExecution by id.
func (r *Repository) GetExecution(ctx context.Context, id string) (*WorkflowExecution, error) {
	var exec WorkflowExecution
	err := r.db.GetContext(ctx, &exec, `SELECT * FROM workflow_executions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exec, nil
}

// ListExecutions returns the most recent executions for a workflow.
func (r *Repository) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*WorkflowExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT * FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	var executions []*WorkflowExecution
	if err := r.db.SelectContext(ctx, &executions, query, workflowID, limit); err != nil {
		return nil, err
	}
	return executions, nil
}

// CreateNodeExecution inserts a new NodeExecution row.
func (r *Repository) CreateNodeExecution(ctx context.Context, executionID, nodeID string, inputData json.RawMessage, attempt int) (*NodeExecution, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var inputPtr *json.RawMessage
	if inputData != nil {
		inputPtr = &inputData
	}

	query := `
		INSERT INTO node_executions (id, execution_id, node_id, status, started_at, input_data, attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`
	var ne NodeExecution
	err := r.db.QueryRowxContext(ctx, query, id, executionID, nodeID, NodeRunning, now, inputPtr, attempt).StructScan(&ne)
	if err != nil {
		return nil, fmt.Errorf("creating node execution: %w", err)
	}
	return &ne, nil
}

// UpdateNodeExecution records the terminal state of a node invocation.
func (r *Repository) UpdateNodeExecution(ctx context.Context, id string, status NodeStatus, outputData json.RawMessage, nodeErr *string) error {
	now := time.Now().UTC()

	var outputPtr *json.RawMessage
	if outputData != nil {
		outputPtr = &outputData
	}

	query := `
		UPDATE node_executions
		SET status = $2, finished_at = $3, output_data = $4, error = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status, now, outputPtr, nodeErr)
	if err != nil {
		return fmt.Errorf("updating node execution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSkippedNodeExecution records a node as skipped without ever
// running it (skip propagation from an upstream failure or unselected
// branch).
func (r *Repository) CreateSkippedNodeExecution(ctx context.Context, executionID, nodeID string) (*NodeExecution, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO node_executions (id, execution_id, node_id, status, started_at, finished_at, attempt)
		VALUES ($1, $2, $3, $4, $5, $5, 1)
		RETURNING *
	`
	var ne NodeExecution
	err := r.db.QueryRowxContext(ctx, query, id, executionID, nodeID, NodeSkipped, now).StructScan(&ne)
	if err != nil {
		return nil, fmt.Errorf("recording skipped node: %w", err)
	}
	return &ne, nil
}

// ListNodeExecutions returns every NodeExecution row for an execution, in
// insertion order.
func (r *Repository) ListNodeExecutions(ctx context.Context, executionID string) ([]*NodeExecution, error) {
	query := `SELECT * FROM node_executions WHERE execution_id = $1 ORDER BY started_at ASC`
	var rows []*NodeExecution
	if err := r.db.SelectContext(ctx, &rows, query, executionID); err != nil {
		return nil, err
	}
	return rows, nil
}
