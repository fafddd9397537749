package credential

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONMap is a custom type for storing JSON in PostgreSQL. Implements
// driver.Valuer and sql.Scanner for automatic serialization.
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	return json.Unmarshal(data, j)
}

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("credential already exists")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CredentialType names the provider shape a Credential's value conforms
// to; it determines both field validation and which builtin node types may
// reference it (Handler.RequiredCredentialType).
type CredentialType string

const (
	TypePostgres CredentialType = "postgres"
	TypeMySQL    CredentialType = "mysql"
	TypeMongoDB  CredentialType = "mongodb"
	TypeSlack    CredentialType = "slack"
	TypeAWS      CredentialType = "aws"
)

// CredentialStatus represents the status of a credential.
type CredentialStatus string

const (
	StatusActive   CredentialStatus = "active"
	StatusRevoked  CredentialStatus = "revoked"
)

// Credential is a named, typed secret. Values are encrypted at rest via
// envelope encryption and are never exposed outside Service.Resolve.
type Credential struct {
	ID        string           `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	Type      CredentialType   `json:"type" db:"type"`
	Status    CredentialStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`

	// Envelope encryption fields; never serialized to JSON. The data
	// encryption key (EncryptedDEK) is sealed by the master key (or KMS,
	// when configured); Ciphertext/Nonce/AuthTag are the value itself
	// under that DEK.
	EncryptedDEK []byte `json:"-" db:"encrypted_dek"`
	Ciphertext   []byte `json:"-" db:"ciphertext"`
	Nonce        []byte `json:"-" db:"nonce"`
	AuthTag      []byte `json:"-" db:"auth_tag"`
}

// CredentialData is the plaintext credential value before encryption,
// serialized and sealed by EncryptionService.
type CredentialData struct {
	Value map[string]interface{} `json:"value"`
}

// EncryptedSecret is an encrypted credential value using envelope
// encryption.
type EncryptedSecret struct {
	EncryptedDEK []byte `json:"encrypted_dek"`
	Ciphertext   []byte `json:"ciphertext"`
	Nonce        []byte `json:"nonce"`
	AuthTag      []byte `json:"auth_tag"`
	KMSKeyID     string `json:"kms_key_id"`
}

// CreateCredentialInput is input for creating a credential.
type CreateCredentialInput struct {
	Name string                 `json:"name"`
	Type CredentialType         `json:"type"`
	Value map[string]interface{} `json:"value"`
}

func (c *CreateCredentialInput) Validate() error {
	if c.Name == "" {
		return &ValidationError{Message: "name is required"}
	}
	if len(c.Name) > 255 {
		return &ValidationError{Message: "name must be at most 255 characters"}
	}
	if c.Type == "" {
		return &ValidationError{Message: "type is required"}
	}
	if len(c.Value) == 0 {
		return &ValidationError{Message: "value is required"}
	}
	return ValidateCredentialValue(c.Type, c.Value)
}

// UpdateCredentialInput is input for updating a credential's value and/or
// status.
type UpdateCredentialInput struct {
	Value  map[string]interface{} `json:"value,omitempty"`
	Status *CredentialStatus      `json:"status,omitempty"`
}

func (u *UpdateCredentialInput) Validate() error {
	if u.Status != nil && *u.Status != StatusActive && *u.Status != StatusRevoked {
		return &ValidationError{Message: "invalid status"}
	}
	return nil
}
