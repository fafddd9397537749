package credential

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	masterKey := make([]byte, 32)
	_, err = rand.Read(masterKey)
	require.NoError(t, err)
	enc, err := NewSimpleEncryptionService(masterKey)
	require.NoError(t, err)

	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))
	return NewService(repo, enc), mock
}

func TestService_Create_RejectsInvalidValue(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateCredentialInput{
		Name:  "broken",
		Type:  TypeSlack,
		Value: map[string]any{"wrong_field": "x"},
	})
	assert.Error(t, err)
}

func TestService_Create_EncryptsValue(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`INSERT INTO credentials`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	cred, err := svc.Create(context.Background(), CreateCredentialInput{
		Name:  "prod-slack",
		Type:  TypeSlack,
		Value: map[string]any{"bot_token": "xoxb-secret"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Ciphertext)
	assert.NotContains(t, string(cred.Ciphertext), "xoxb-secret")
}

func TestService_Resolve_NotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM credentials WHERE name = \$1`).
		WithArgs("prod-slack").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "type", "status", "created_at", "updated_at",
			"encrypted_dek", "ciphertext", "nonce", "auth_tag",
		}))

	_, err := svc.Resolve(context.Background(), "prod-slack")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Resolve_RejectsRevoked(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM credentials WHERE name = \$1`).
		WithArgs("revoked-cred").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "type", "status", "created_at", "updated_at",
			"encrypted_dek", "ciphertext", "nonce", "auth_tag",
		}).AddRow("id-1", "revoked-cred", TypeSlack, StatusRevoked, time.Now(), time.Now(),
			[]byte("dek"), []byte("ct"), []byte("nonce"), []byte("tag")))

	_, err := svc.Resolve(context.Background(), "revoked-cred")
	assert.Error(t, err)
}
