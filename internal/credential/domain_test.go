package credential

import "testing"

func TestCreateCredentialInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateCredentialInput
		wantErr bool
	}{
		{
			name:  "valid",
			input: CreateCredentialInput{Name: "prod-slack", Type: TypeSlack, Value: map[string]any{"bot_token": "xoxb-1"}},
		},
		{
			name:    "missing name",
			input:   CreateCredentialInput{Type: TypeSlack, Value: map[string]any{"bot_token": "xoxb-1"}},
			wantErr: true,
		},
		{
			name:    "missing type",
			input:   CreateCredentialInput{Name: "x", Value: map[string]any{"bot_token": "xoxb-1"}},
			wantErr: true,
		},
		{
			name:    "empty value",
			input:   CreateCredentialInput{Name: "x", Type: TypeSlack},
			wantErr: true,
		},
		{
			name:    "value fails type validation",
			input:   CreateCredentialInput{Name: "x", Type: TypeSlack, Value: map[string]any{"wrong_field": "v"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateCredentialInput_Validate(t *testing.T) {
	active := StatusActive
	bad := CredentialStatus("disabled")

	if err := (&UpdateCredentialInput{Status: &active}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&UpdateCredentialInput{Status: &bad}).Validate(); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if err := (&UpdateCredentialInput{}).Validate(); err != nil {
		t.Fatalf("unexpected error for nil status: %v", err)
	}
}
