// Package workflow holds the stored workflow definition model: the
// Workflow row, its parsed WorkflowDefinition graph, and the execution
// records the scheduler produces while running it.
package workflow

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Workflow is the stored definition row.
type Workflow struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Active      bool            `db:"active" json:"active"`
	Definition  json.RawMessage `db:"definition" json:"definition"`
	Version     int             `db:"version" json:"version"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// WorkflowDefinition is the parsed shape of Workflow.Definition.
type WorkflowDefinition struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description,omitempty"`
	Nodes       []NodeDefinition                 `json:"nodes"`
	Connections map[string]map[string][]ConnectionTarget `json:"connections"`
	Settings    json.RawMessage                  `json:"settings,omitempty"`
}

// ConnectionTarget names one edge endpoint: the downstream node and the
// input port on it the producer's output is bound to.
type ConnectionTarget struct {
	NodeID string `json:"node" yaml:"node"`
	Port   string `json:"port" yaml:"port"`
}

// NodeDefinition is one node within a WorkflowDefinition.
type NodeDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	NodeType    string          `json:"node_type"`
	Parameters  json.RawMessage `json:"parameters"`
	Position    *Position       `json:"position,omitempty"`
	Credentials string          `json:"credentials,omitempty"`
	Disabled    bool            `json:"disabled,omitempty"`
}

// Position is display-only placement metadata; it has no effect on
// scheduling.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ExecutionStatus is the lifecycle state of a WorkflowExecution.
type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "queued"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether s is one of the three terminal states.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed || s == ExecutionCancelled
}

// WorkflowExecution is one run of a Workflow.
type WorkflowExecution struct {
	ID          string           `db:"id" json:"id"`
	WorkflowID  string           `db:"workflow_id" json:"workflow_id"`
	Status      ExecutionStatus  `db:"status" json:"status"`
	StartedAt   time.Time        `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
	InputData   *json.RawMessage `db:"input_data" json:"input_data,omitempty"`
	OutputData  *json.RawMessage `db:"output_data" json:"output_data,omitempty"`
	Error       *string          `db:"error" json:"error,omitempty"`
	TriggeredBy *string          `db:"triggered_by" json:"triggered_by,omitempty"`
}

// NodeStatus is the lifecycle state of a NodeExecution.
type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeRunning NodeStatus = "running"
	NodeSuccess NodeStatus = "success"
	NodeFailed  NodeStatus = "failed"
	NodeSkipped NodeStatus = "skipped"
)

// NodeExecution is one node's record within an execution. For a given
// (execution_id, node_id) pair the most recently written record wins.
type NodeExecution struct {
	ID          string           `db:"id" json:"id"`
	ExecutionID string           `db:"execution_id" json:"execution_id"`
	NodeID      string           `db:"node_id" json:"node_id"`
	Status      NodeStatus       `db:"status" json:"status"`
	StartedAt   time.Time        `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
	InputData   *json.RawMessage `db:"input_data" json:"input_data,omitempty"`
	OutputData  *json.RawMessage `db:"output_data" json:"output_data,omitempty"`
	Error       *string          `db:"error" json:"error,omitempty"`
	Attempt     int              `db:"attempt" json:"attempt"`
}

// ExecutionFilter narrows a List query over executions.
type ExecutionFilter struct {
	WorkflowID string     `json:"workflow_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// Validate checks the filter's internal consistency.
func (f ExecutionFilter) Validate() error {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return errors.New("end_date must be after start_date")
	}
	return nil
}

// PaginationCursor is an opaque cursor over (created_at, id)-ordered lists.
type PaginationCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Encode renders the cursor as a URL-safe base64 string.
func (c PaginationCursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodePaginationCursor parses a cursor previously produced by Encode.
func DecodePaginationCursor(encoded string) (PaginationCursor, error) {
	if encoded == "" {
		return PaginationCursor{}, errors.New("empty cursor")
	}
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return PaginationCursor{}, fmt.Errorf("invalid cursor encoding: %w", err)
	}
	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return PaginationCursor{}, fmt.Errorf("invalid cursor format: %w", err)
	}
	return cursor, nil
}

// ExecutionListResult is a page of executions.
type ExecutionListResult struct {
	Data       []*WorkflowExecution `json:"data"`
	Cursor     string               `json:"cursor,omitempty"`
	HasMore    bool                 `json:"has_more"`
	TotalCount int                  `json:"total_count"`
}

// ExecutionStats summarizes execution outcomes for a workflow.
type ExecutionStats struct {
	TotalCount   int            `json:"total_count"`
	StatusCounts map[string]int `json:"status_counts"`
}
