package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// weakPasswords lists common weak/default passwords and secrets to reject.
var weakPasswords = []string{
	"password", "secret", "changeme", "admin", "root", "postgres",
	"123456", "12345678", "qwerty", "abc123", "default", "guest",
}

// ValidateForProduction checks that configuration is suitable for a
// production deployment: no default secrets, no disabled transport
// security, no localhost endpoints.
func ValidateForProduction(cfg *Config) error {
	var errors []string

	if err := validateEnvironment(cfg); err != nil {
		errors = append(errors, err.Error())
	}
	if err := validateCredentials(cfg); err != nil {
		errors = append(errors, err.Error())
	}
	if err := validateDatabase(cfg); err != nil {
		errors = append(errors, err.Error())
	}
	if err := validateServiceURLs(cfg); err != nil {
		errors = append(errors, err.Error())
	}

	logProductionWarnings(cfg)

	if len(errors) > 0 {
		return fmt.Errorf("production configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	slog.Info("production configuration validated successfully")
	return nil
}

func validateEnvironment(cfg *Config) error {
	if cfg.Server.Env != "production" {
		return fmt.Errorf("APP_ENV must be 'production' in production deployment, got: %s", cfg.Server.Env)
	}
	return nil
}

func validateCredentials(cfg *Config) error {
	if cfg.Credential.UseKMS {
		if cfg.Credential.KMSKeyID == "" {
			return fmt.Errorf("KMS is enabled but KMSKeyID is not configured")
		}
		return nil
	}

	if cfg.Credential.MasterKey == "" {
		return fmt.Errorf("credential master key must be configured when KMS is not used")
	}
	if cfg.Credential.MasterKey == "dGhpcy1pcy1hLTMyLWJ5dGUtZGV2LWtleS0xMjM0NTY=" {
		return fmt.Errorf("default development credential master key detected - must use unique production key")
	}
	if len(cfg.Credential.MasterKey) < 32 {
		return fmt.Errorf("credential master key is too short - minimum 32 characters required")
	}
	if isWeakPassword(cfg.Credential.MasterKey) {
		return fmt.Errorf("weak or insecure credential master key detected - must use strong random key")
	}

	return nil
}

func validateDatabase(cfg *Config) error {
	var errors []string

	if isWeakPassword(cfg.Database.Password) {
		errors = append(errors, "weak or default database password detected")
	}
	if cfg.Database.SSLMode == "disable" {
		errors = append(errors, "database SSL must be enabled in production (use 'require', 'verify-ca', or 'verify-full')")
	}
	if cfg.Database.Host == "" || containsLocalhostURL(cfg.Database.Host) {
		errors = append(errors, "database host appears to be localhost or empty - use production database host")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func validateServiceURLs(cfg *Config) error {
	var errors []string

	if cfg.Observability.TracingEnabled && containsLocalhostURL(cfg.Observability.TracingEndpoint) {
		errors = append(errors, "localhost detected in tracing endpoint")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func logProductionWarnings(cfg *Config) {
	if !cfg.Observability.TracingEnabled {
		slog.Warn("distributed tracing is disabled - consider enabling for production observability")
	}
	if !cfg.Observability.MetricsEnabled {
		slog.Warn("metrics collection is disabled - consider enabling for production monitoring")
	}
	if cfg.Credential.UseKMS && cfg.Credential.KMSRegion == "" {
		slog.Warn("KMS is enabled but no region configured - falling back to AWS_REGION")
	}
}

// isWeakPassword reports whether password matches a common weak pattern.
func isWeakPassword(password string) bool {
	if password == "" {
		return true
	}
	if len(password) < 8 {
		return true
	}
	lowerPassword := strings.ToLower(password)
	for _, weak := range weakPasswords {
		if lowerPassword == weak {
			return true
		}
	}
	return false
}

// containsLocalhostURL reports whether url references a loopback address.
func containsLocalhostURL(url string) bool {
	if url == "" {
		return false
	}
	lowerURL := strings.ToLower(url)
	if strings.Contains(lowerURL, "localhost") {
		return true
	}
	if strings.Contains(lowerURL, "127.0.0.1") || strings.Contains(lowerURL, "0.0.0.0") {
		return true
	}
	if strings.Contains(lowerURL, "::1") || strings.Contains(lowerURL, "[::1]") {
		return true
	}
	return false
}
