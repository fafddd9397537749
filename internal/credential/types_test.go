package credential

import "testing"

func TestValidateCredentialValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     CredentialType
		value   map[string]any
		wantErr bool
	}{
		{"postgres ok", TypePostgres, map[string]any{"connection_string": "postgres://..."}, false},
		{"postgres missing field", TypePostgres, map[string]any{}, true},
		{"mysql ok", TypeMySQL, map[string]any{"dsn": "user:pass@tcp(host)/db"}, false},
		{"mongodb ok", TypeMongoDB, map[string]any{"uri": "mongodb://...", "database": "app"}, false},
		{"mongodb missing database", TypeMongoDB, map[string]any{"uri": "mongodb://..."}, true},
		{"slack ok", TypeSlack, map[string]any{"bot_token": "xoxb-..."}, false},
		{"aws ok", TypeAWS, map[string]any{"access_key_id": "AKIA", "secret_access_key": "s", "region": "us-east-1"}, false},
		{"aws missing region", TypeAWS, map[string]any{"access_key_id": "AKIA", "secret_access_key": "s"}, true},
		{"unknown type", CredentialType("ftp"), map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialValue(tt.typ, tt.value)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
