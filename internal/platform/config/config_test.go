package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Fatalf("expected read timeout %s, got %s", defaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Submission.Publisher != PublisherLog {
		t.Fatalf("expected log publisher, got %q", cfg.Submission.Publisher)
	}
	if cfg.Submission.ResetAfterSubmit {
		t.Fatalf("expected reset after submit disabled by default")
	}
	if cfg.Catalog.Path != "" {
		t.Fatalf("expected embedded catalog, got path %q", cfg.Catalog.Path)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Fatalf("expected idempotency header %s, got %s", defaultIdempotencyHeader, cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Fatalf("expected idempotency ttl %s, got %s", defaultIdempotencyTTL, cfg.Idempotency.TTL)
	}
	if cfg.Firestore.SessionsCollection != defaultSessionsCollection {
		t.Fatalf("expected sessions collection %s, got %s", defaultSessionsCollection, cfg.Firestore.SessionsCollection)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"QUOTE_SERVER_PORT":                   "9090",
		"QUOTE_SERVER_READ_TIMEOUT":           "5s",
		"QUOTE_STORAGE_BACKEND":               "Firestore",
		"QUOTE_FIRESTORE_PROJECT_ID":          "quote-local",
		"QUOTE_FIRESTORE_EMULATOR_HOST":       "localhost:8081",
		"QUOTE_SUBMISSION_PUBLISHER":          "pubsub",
		"QUOTE_PUBSUB_TOPIC":                  "leads",
		"QUOTE_SUBMISSION_RESET_AFTER_SUBMIT": "yes",
		"QUOTE_IDEMPOTENCY_TTL":               "2h",
		"QUOTE_IDEMPOTENCY_CLEANUP_BATCH":     "50",
		"QUOTE_CATALOG_PATH":                  "/etc/quote/catalog.yaml",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected read timeout 5s, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != StorageFirestore {
		t.Fatalf("expected firestore backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8081" {
		t.Fatalf("unexpected emulator host %q", cfg.Firestore.EmulatorHost)
	}
	if cfg.PubSub.ProjectID != "quote-local" {
		t.Fatalf("expected pubsub project to fall back to firestore project, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.Trace.ProjectID != "quote-local" {
		t.Fatalf("expected trace project to fall back to firestore project, got %q", cfg.Trace.ProjectID)
	}
	if cfg.PubSub.Topic != "leads" {
		t.Fatalf("expected topic leads, got %q", cfg.PubSub.Topic)
	}
	if !cfg.Submission.ResetAfterSubmit {
		t.Fatalf("expected reset after submit enabled")
	}
	if cfg.Idempotency.TTL != 2*time.Hour {
		t.Fatalf("expected ttl 2h, got %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != 50 {
		t.Fatalf("expected batch 50, got %d", cfg.Idempotency.CleanupBatchSize)
	}
	if cfg.Catalog.Path != "/etc/quote/catalog.yaml" {
		t.Fatalf("unexpected catalog path %q", cfg.Catalog.Path)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nexport QUOTE_SERVER_PORT=7070\nQUOTE_PUBSUB_TOPIC=\"dotenv-topic\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(envPath),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"QUOTE_SERVER_PORT": "6060"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "6060" {
		t.Fatalf("expected env map to win over .env, got %s", cfg.Server.Port)
	}
	if cfg.PubSub.Topic != "dotenv-topic" {
		t.Fatalf("expected topic from .env, got %q", cfg.PubSub.Topic)
	}
}

func TestLoadInvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{
			name:  "firestore without project",
			env:   map[string]string{"QUOTE_STORAGE_BACKEND": "firestore"},
			field: "Firestore.ProjectID",
		},
		{
			name:  "unknown backend",
			env:   map[string]string{"QUOTE_STORAGE_BACKEND": "redis"},
			field: "Storage.Backend",
		},
		{
			name:  "pubsub without project",
			env:   map[string]string{"QUOTE_SUBMISSION_PUBLISHER": "pubsub"},
			field: "PubSub.ProjectID",
		},
		{
			name:  "unknown publisher",
			env:   map[string]string{"QUOTE_SUBMISSION_PUBLISHER": "kafka"},
			field: "Submission.Publisher",
		},
		{
			name:  "non-positive ttl",
			env:   map[string]string{"QUOTE_IDEMPOTENCY_TTL": "0s"},
			field: "Idempotency.TTL",
		},
		{
			name:  "non-positive batch",
			env:   map[string]string{"QUOTE_IDEMPOTENCY_CLEANUP_BATCH": "-1"},
			field: "Idempotency.CleanupBatchSize",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !slices.Contains(validationErr.Fields(), tc.field) {
				t.Fatalf("expected field %s in %v", tc.field, validationErr.Fields())
			}
		})
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	env := map[string]string{
		"QUOTE_SERVER_WRITE_TIMEOUT":          "soon",
		"QUOTE_IDEMPOTENCY_CLEANUP_BATCH":     "many",
		"QUOTE_SUBMISSION_RESET_AFTER_SUBMIT": "maybe",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected default write timeout, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatch {
		t.Fatalf("expected default batch, got %d", cfg.Idempotency.CleanupBatchSize)
	}
	if cfg.Submission.ResetAfterSubmit {
		t.Fatalf("expected default reset flag")
	}
}
