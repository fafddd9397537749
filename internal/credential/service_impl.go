package credential

import (
	"context"
	"fmt"

	"github.com/flowforge/workflow/internal/node"
)

// serviceImpl is the concrete Service, wiring a Repository and an Encryptor
// together. The Encryptor is either master-key-backed (SimpleEncryptionService)
// or KMS-backed (kmsEncryptor) depending on deployment configuration.
type serviceImpl struct {
	repo       *Repository
	encryption Encryptor
}

// NewService wires a Repository and Encryptor into a Service.
func NewService(repo *Repository, encryption Encryptor) Service {
	return &serviceImpl{repo: repo, encryption: encryption}
}

func (s *serviceImpl) Create(ctx context.Context, input CreateCredentialInput) (*Credential, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	secret, err := s.encryption.Encrypt(ctx, &CredentialData{Value: input.Value})
	if err != nil {
		return nil, fmt.Errorf("encrypting credential value: %w", err)
	}

	cred := &Credential{
		Name:         input.Name,
		Type:         input.Type,
		Status:       StatusActive,
		EncryptedDEK: secret.EncryptedDEK,
		Ciphertext:   secret.Ciphertext,
		Nonce:        secret.Nonce,
		AuthTag:      secret.AuthTag,
	}
	return s.repo.Create(ctx, cred)
}

func (s *serviceImpl) List(ctx context.Context) ([]*Credential, error) {
	return s.repo.List(ctx)
}

func (s *serviceImpl) GetByID(ctx context.Context, id string) (*Credential, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *serviceImpl) Update(ctx context.Context, id string, input UpdateCredentialInput) (*Credential, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Value != nil {
		if err := ValidateCredentialValue(cred.Type, input.Value); err != nil {
			return nil, err
		}
		secret, err := s.encryption.Encrypt(ctx, &CredentialData{Value: input.Value})
		if err != nil {
			return nil, fmt.Errorf("encrypting credential value: %w", err)
		}
		if err := s.repo.UpdateValue(ctx, id, secret); err != nil {
			return nil, err
		}
	}
	if input.Status != nil {
		if err := s.repo.UpdateStatus(ctx, id, *input.Status); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByID(ctx, id)
}

func (s *serviceImpl) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Resolve implements node.CredentialResolver: decrypt the named
// credential's value and present it as the flat string map builtin
// handlers index into (connection_string, bot_token, access_key_id, ...).
func (s *serviceImpl) Resolve(ctx context.Context, name string) (*node.ResolvedCredential, error) {
	cred, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if cred.Status != StatusActive {
		return nil, fmt.Errorf("credential %q is %s", name, cred.Status)
	}

	data, err := s.encryption.Decrypt(ctx, &EncryptedSecret{
		EncryptedDEK: cred.EncryptedDEK,
		Ciphertext:   cred.Ciphertext,
		Nonce:        cred.Nonce,
		AuthTag:      cred.AuthTag,
	})
	if err != nil {
		return nil, fmt.Errorf("decrypting credential %q: %w", name, err)
	}

	values := make(map[string]string, len(data.Value))
	for k, v := range data.Value {
		if str, ok := v.(string); ok {
			values[k] = str
		} else {
			values[k] = fmt.Sprintf("%v", v)
		}
	}

	return &node.ResolvedCredential{
		Name:   cred.Name,
		Type:   string(cred.Type),
		Values: values,
	}, nil
}
