package credential

import (
	"context"

	"github.com/flowforge/workflow/internal/node"
)

// Service manages the credential lifecycle and implements
// node.CredentialResolver so the executor can hand handlers a decrypted
// view without ever touching the encrypted row itself.
type Service interface {
	node.CredentialResolver

	Create(ctx context.Context, input CreateCredentialInput) (*Credential, error)
	List(ctx context.Context) ([]*Credential, error)
	GetByID(ctx context.Context, id string) (*Credential, error)
	Update(ctx context.Context, id string, input UpdateCredentialInput) (*Credential, error)
	Delete(ctx context.Context, id string) error
}
