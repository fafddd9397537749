package credential

import "fmt"

// CredentialTypeValidator provides type-specific validation for credentials.
type CredentialTypeValidator interface {
	Validate(value map[string]any) error
	RequiredFields() []string
}

// typeValidators maps credential types to their validators. Only the
// provider shapes the builtin node handlers actually require a credential
// for are registered here.
var typeValidators = map[CredentialType]CredentialTypeValidator{
	TypePostgres: &PostgresValidator{},
	TypeMySQL:    &MySQLValidator{},
	TypeMongoDB:  &MongoDBValidator{},
	TypeSlack:    &SlackValidator{},
	TypeAWS:      &AWSValidator{},
}

// GetTypeValidator returns the validator for a credential type, or nil if
// the type is unregistered.
func GetTypeValidator(credType CredentialType) CredentialTypeValidator {
	return typeValidators[credType]
}

// ValidateCredentialValue validates a credential's plaintext value against
// its declared type.
func ValidateCredentialValue(credType CredentialType, value map[string]any) error {
	v := GetTypeValidator(credType)
	if v == nil {
		return fmt.Errorf("unknown credential type %q", credType)
	}
	return v.Validate(value)
}

func requireFields(value map[string]any, fields ...string) error {
	for _, f := range fields {
		v, ok := value[f]
		if !ok {
			return &ValidationError{Message: fmt.Sprintf("field %q is required", f)}
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return &ValidationError{Message: fmt.Sprintf("field %q must be a non-empty string", f)}
		}
	}
	return nil
}

// PostgresValidator validates a "postgres" credential, consumed by the
// postgres_query node via its connection_string field.
type PostgresValidator struct{}

func (v *PostgresValidator) RequiredFields() []string { return []string{"connection_string"} }
func (v *PostgresValidator) Validate(value map[string]any) error {
	return requireFields(value, v.RequiredFields()...)
}

// MySQLValidator validates a "mysql" credential, consumed by the
// mysql_query node via its dsn field.
type MySQLValidator struct{}

func (v *MySQLValidator) RequiredFields() []string { return []string{"dsn"} }
func (v *MySQLValidator) Validate(value map[string]any) error {
	return requireFields(value, v.RequiredFields()...)
}

// MongoDBValidator validates a "mongodb" credential, consumed by the
// mongodb_query node via its uri and database fields.
type MongoDBValidator struct{}

func (v *MongoDBValidator) RequiredFields() []string { return []string{"uri", "database"} }
func (v *MongoDBValidator) Validate(value map[string]any) error {
	return requireFields(value, v.RequiredFields()...)
}

// SlackValidator validates a "slack" credential, consumed by the
// slack_message node via its bot_token field.
type SlackValidator struct{}

func (v *SlackValidator) RequiredFields() []string { return []string{"bot_token"} }
func (v *SlackValidator) Validate(value map[string]any) error {
	return requireFields(value, v.RequiredFields()...)
}

// AWSValidator validates an "aws" credential, consumed by the s3_object and
// bedrock_invoke nodes via access_key_id/secret_access_key/region.
type AWSValidator struct{}

func (v *AWSValidator) RequiredFields() []string {
	return []string{"access_key_id", "secret_access_key", "region"}
}
func (v *AWSValidator) Validate(value map[string]any) error {
	return requireFields(value, v.RequiredFields()...)
}
