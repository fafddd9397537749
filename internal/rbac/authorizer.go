package rbac

import (
	"context"
)

// Authorizer adapts Service to workflow.Authorizer: CanExecute(ctx, userID,
// workflowID) (bool, error). It treats every workflow as the single
// resource "workflow" and execution as the action "execute", so operators
// grant run rights by assigning a role with that permission rather than by
// workflow id.
type Authorizer struct {
	svc *Service
}

// NewAuthorizer wraps svc for use as a workflow.Authorizer.
func NewAuthorizer(svc *Service) *Authorizer {
	return &Authorizer{svc: svc}
}

// CanExecute reports whether userID holds the workflow/execute permission.
// An empty userID is always denied. The webhook trigger path passes the
// userID "webhook", which is checked like any other user: webhook-triggered
// runs are allowed only when that user id holds a role with the
// workflow/execute permission. Without an Authorizer, workflow.Service
// allows every run.
func (a *Authorizer) CanExecute(ctx context.Context, userID, workflowID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return a.svc.CheckPermission(ctx, userID, "workflow", "execute")
}
