package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository persists encrypted Credential rows.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wires a *sqlx.DB into a Repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new credential; cred.ID is assigned if empty.
func (r *Repository) Create(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.Status == "" {
		cred.Status = StatusActive
	}

	const query = `
		INSERT INTO credentials (id, name, type, status, encrypted_dek, ciphertext, nonce, auth_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, cred.ID, cred.Name, cred.Type, cred.Status,
		cred.EncryptedDEK, cred.Ciphertext, cred.Nonce, cred.AuthTag)
	if err := row.Scan(&cred.CreatedAt, &cred.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("inserting credential: %w", err)
	}
	return cred, nil
}

// GetByID returns a credential by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Credential, error) {
	var cred Credential
	const query = `SELECT * FROM credentials WHERE id = $1`
	if err := r.db.GetContext(ctx, &cred, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching credential %s: %w", id, err)
	}
	return &cred, nil
}

// GetByName returns a credential by its unique name — the lookup a node's
// declared credential reference (NodeDefinition.Credentials) resolves
// against.
func (r *Repository) GetByName(ctx context.Context, name string) (*Credential, error) {
	var cred Credential
	const query = `SELECT * FROM credentials WHERE name = $1`
	if err := r.db.GetContext(ctx, &cred, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching credential %q: %w", name, err)
	}
	return &cred, nil
}

// List returns every credential, metadata only (the encrypted value
// columns are still populated on the struct but never decrypted here).
func (r *Repository) List(ctx context.Context) ([]*Credential, error) {
	var creds []*Credential
	const query = `SELECT * FROM credentials ORDER BY name`
	if err := r.db.SelectContext(ctx, &creds, query); err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return creds, nil
}

// UpdateValue replaces a credential's encrypted value in place.
func (r *Repository) UpdateValue(ctx context.Context, id string, secret *EncryptedSecret) error {
	const query = `
		UPDATE credentials
		SET encrypted_dek = $2, ciphertext = $3, nonce = $4, auth_tag = $5, updated_at = now()
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, secret.EncryptedDEK, secret.Ciphertext, secret.Nonce, secret.AuthTag)
	if err != nil {
		return fmt.Errorf("updating credential %s: %w", id, err)
	}
	return checkRowsAffected(result, id)
}

// UpdateStatus sets a credential's status (e.g. revoking it).
func (r *Repository) UpdateStatus(ctx context.Context, id string, status CredentialStatus) error {
	const query = `UPDATE credentials SET status = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("updating credential %s status: %w", id, err)
	}
	return checkRowsAffected(result, id)
}

// Delete permanently removes a credential.
func (r *Repository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM credentials WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting credential %s: %w", id, err)
	}
	return checkRowsAffected(result, id)
}

func checkRowsAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
