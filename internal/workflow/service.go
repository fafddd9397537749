package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/flowforge/workflow/internal/node"
)

// Executor runs a validated workflow definition and reports its outcome.
// internal/executor implements this; Service depends only on the
// interface to avoid an import cycle between workflow and executor.
type Executor interface {
	// Run drives one execution to completion. seedNodeID, when non-empty,
	// restricts the initial ready frontier to that single trigger node (the
	// webhook path); empty seeds every zero-indegree node.
	Run(ctx context.Context, def *WorkflowDefinition, execution *WorkflowExecution, input json.RawMessage, seedNodeID string) (json.RawMessage, error)
}

// Authorizer gates whether a caller may launch a run. It is an external
// collaborator: the engine calls it before creating an execution but never
// implements the decision itself, so role/permission storage can evolve
// independently of the scheduler. A nil Authorizer on Service means every
// trigger is allowed, matching single-operator deployments with no RBAC
// configured.
type Authorizer interface {
	CanExecute(ctx context.Context, userID, workflowID string) (bool, error)
}

// Service is the orchestration layer over Repository: it validates
// definitions against the node registry before they are stored, and drives
// execution runs through the injected Executor.
type Service struct {
	repo       *Repository
	registry   *node.Registry
	executor   Executor
	authorizer Authorizer
	logger     *slog.Logger
}

// NewService wires a Repository, the process-wide node registry, and an
// Executor into a Service.
func NewService(repo *Repository, registry *node.Registry, executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, executor: executor, logger: logger}
}

// WithAuthorizer attaches an Authorizer that trigger() consults before
// creating an execution. Returns s for chaining at construction time.
func (s *Service) WithAuthorizer(a Authorizer) *Service {
	s.authorizer = a
	return s
}

// Import validates and persists a new workflow definition.
func (s *Service) Import(ctx context.Context, name, description string, active bool, raw json.RawMessage) (*Workflow, error) {
	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(s.registry); err != nil {
		return nil, err
	}

	wf, err := s.repo.ImportWorkflow(ctx, CreateWorkflowInput{
		Name:        name,
		Description: description,
		Active:      active,
		Definition:  raw,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow imported", "workflow_id", wf.ID, "name", wf.Name)
	return wf, nil
}

// Update validates a revised definition and persists it, bumping version.
func (s *Service) Update(ctx context.Context, id string, input UpdateWorkflowInput) (*Workflow, error) {
	if input.Definition != nil {
		def, err := ParseDefinition(input.Definition)
		if err != nil {
			return nil, err
		}
		if err := def.Validate(s.registry); err != nil {
			return nil, err
		}
	}
	return s.repo.UpdateWorkflow(ctx, id, input)
}

// Get retrieves a workflow by id.
func (s *Service) Get(ctx context.Context, id string) (*Workflow, error) {
	return s.repo.GetWorkflow(ctx, id)
}

// GetByName retrieves a workflow by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (*Workflow, error) {
	return s.repo.GetWorkflowByName(ctx, name)
}

// List returns workflows, optionally restricted to active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Workflow, error) {
	return s.repo.ListWorkflows(ctx, activeOnly)
}

// Delete permanently removes a workflow.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteWorkflow(ctx, id)
}

// SetActive toggles whether a workflow accepts trigger invocations.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Workflow, error) {
	return s.repo.UpdateWorkflow(ctx, id, UpdateWorkflowInput{Active: active, SetActive: true})
}

// Trigger starts a new execution of a workflow by id, seeding every
// zero-indegree node, and blocks until the run reaches a terminal state.
// triggeredBy records the origin ("manual", "schedule:<id>") for audit and
// listing purposes.
func (s *Service) Trigger(ctx context.Context, workflowID string, input json.RawMessage, triggeredBy string) (*WorkflowExecution, error) {
	return s.trigger(ctx, workflowID, input, triggeredBy, "", true)
}

// TriggerNode starts a new execution seeded from a single named trigger
// node — the webhook path, where only that trigger fires and every other
// root stays skipped — and blocks until the run reaches a terminal state.
func (s *Service) TriggerNode(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*WorkflowExecution, error) {
	return s.trigger(ctx, workflowID, input, triggeredBy, triggerNodeID, true)
}

// TriggerNodeAsync starts a new execution seeded from a single trigger node
// and returns as soon as the execution row exists, running the definition
// in the background. This backs the webhook surface's fire-and-forget
// default: the caller gets an execution id without waiting on the run.
func (s *Service) TriggerNodeAsync(ctx context.Context, workflowID, triggerNodeID string, input json.RawMessage, triggeredBy string) (*WorkflowExecution, error) {
	return s.trigger(ctx, workflowID, input, triggeredBy, triggerNodeID, false)
}

func (s *Service) trigger(ctx context.Context, workflowID string, input json.RawMessage, triggeredBy, seedNodeID string, wait bool) (*WorkflowExecution, error) {
	wf, err := s.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Active {
		return nil, fmt.Errorf("workflow %q is not active", wf.Name)
	}

	if s.authorizer != nil {
		allowed, err := s.authorizer.CanExecute(ctx, triggeredBy, wf.ID)
		if err != nil {
			return nil, fmt.Errorf("checking execute authorization: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s is not authorized to execute workflow %q", triggeredBy, wf.Name)
		}
	}

	def, err := ParseDefinition(wf.Definition)
	if err != nil {
		return nil, err
	}

	if seedNodeID != "" {
		found := false
		for _, n := range def.Nodes {
			if n.ID == seedNodeID {
				found = true
				if n.NodeType != "webhook_trigger" {
					return nil, fmt.Errorf("node %q is not a webhook_trigger", seedNodeID)
				}
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("trigger node %q not found: %w", seedNodeID, ErrNotFound)
		}
	}

	execution, err := s.repo.CreateExecution(ctx, wf.ID, input, &triggeredBy)
	if err != nil {
		return nil, err
	}

	if !wait {
		runCtx := context.WithoutCancel(ctx)
		go func() {
			if _, err := s.executor.Run(runCtx, def, execution, input, seedNodeID); err != nil {
				s.logger.Error("async execution failed", "execution_id", execution.ID, "error", err)
			}
		}()
		return execution, nil
	}

	// Run persists every node and execution-level state transition itself,
	// including the terminal status; re-fetch to return the final record.
	_, runErr := s.executor.Run(ctx, def, execution, input, seedNodeID)

	final, fetchErr := s.repo.GetExecution(ctx, execution.ID)
	if fetchErr != nil {
		return execution, runErr
	}
	return final, runErr
}

// GetExecution retrieves a single execution by id.
func (s *Service) GetExecution(ctx context.Context, id string) (*WorkflowExecution, error) {
	return s.repo.GetExecution(ctx, id)
}

// ListExecutions returns the most recent executions for a workflow.
func (s *Service) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*WorkflowExecution, error) {
	return s.repo.ListExecutions(ctx, workflowID, limit)
}

// ListNodeExecutions returns the per-node execution trace for an execution.
func (s *Service) ListNodeExecutions(ctx context.Context, executionID string) ([]*NodeExecution, error) {
	return s.repo.ListNodeExecutions(ctx, executionID)
}
