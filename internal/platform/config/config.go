package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 20 * time.Second
	defaultSessionsCollection  = "sessions"
	defaultReceiptsCollection  = "submission_receipts"
	defaultSubmissionsTopic    = "quote-submissions"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyInterval = time.Hour
	defaultIdempotencyBatch    = 200
	defaultMaxBodyBytes        = 64 << 10

	// StorageMemory keeps sessions in process memory.
	StorageMemory = "memory"
	// StorageFirestore persists sessions in Firestore.
	StorageFirestore = "firestore"
	// PublisherLog writes submissions to the structured log.
	PublisherLog = "log"
	// PublisherPubSub publishes submissions to a Pub/Sub topic.
	PublisherPubSub = "pubsub"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Catalog     CatalogConfig
	Storage     StorageConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Submission  SubmissionConfig
	Idempotency IdempotencyConfig
	Trace       TraceConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// CatalogConfig points at an optional catalog file replacing the embedded one.
type CatalogConfig struct {
	Path string
}

// StorageConfig selects the session backend.
type StorageConfig struct {
	Backend string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	SessionsCollection string
	ReceiptsCollection string
}

// PubSubConfig stores submission topic parameters.
type PubSubConfig struct {
	ProjectID    string
	EmulatorHost string
	Topic        string
}

// SubmissionConfig controls quote submission behaviour.
type SubmissionConfig struct {
	Publisher        string
	ResetAfterSubmit bool
}

// IdempotencyConfig controls how long submission receipts are replayed.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// TraceConfig carries the project used to build Cloud Trace resource names in logs.
type TraceConfig struct {
	ProjectID string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables os.LookupEnv so only the env map and .env file are consulted.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles configuration from defaults, the .env file, the environment and the env map,
// in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "QUOTE_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "QUOTE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "QUOTE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "QUOTE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "QUOTE_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			MaxBodyBytes:    int64(intWithDefault(lookup, "QUOTE_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
		},
		Catalog: CatalogConfig{
			Path: stringWithDefault(lookup, "QUOTE_CATALOG_PATH", ""),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "QUOTE_STORAGE_BACKEND", StorageMemory)),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "QUOTE_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "QUOTE_FIRESTORE_EMULATOR_HOST", ""),
			SessionsCollection: stringWithDefault(lookup, "QUOTE_FIRESTORE_SESSIONS_COLLECTION", defaultSessionsCollection),
			ReceiptsCollection: stringWithDefault(lookup, "QUOTE_FIRESTORE_RECEIPTS_COLLECTION", defaultReceiptsCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "QUOTE_PUBSUB_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "QUOTE_PUBSUB_EMULATOR_HOST", ""),
			Topic:        stringWithDefault(lookup, "QUOTE_PUBSUB_TOPIC", defaultSubmissionsTopic),
		},
		Submission: SubmissionConfig{
			Publisher:        strings.ToLower(stringWithDefault(lookup, "QUOTE_SUBMISSION_PUBLISHER", PublisherLog)),
			ResetAfterSubmit: boolWithDefault(lookup, "QUOTE_SUBMISSION_RESET_AFTER_SUBMIT", false),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "QUOTE_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "QUOTE_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "QUOTE_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "QUOTE_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatch),
		},
		Trace: TraceConfig{
			ProjectID: stringWithDefault(lookup, "QUOTE_TRACE_PROJECT_ID", ""),
		},
	}

	// Pub/Sub and trace default to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Trace.ProjectID == "" {
		cfg.Trace.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		invalid = append(invalid, "Server.MaxBodyBytes")
	}
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Firestore.SessionsCollection) == "" {
			invalid = append(invalid, "Firestore.SessionsCollection")
		}
	default:
		invalid = append(invalid, "Storage.Backend")
	}
	switch cfg.Submission.Publisher {
	case PublisherLog:
	case PublisherPubSub:
		if cfg.PubSub.ProjectID == "" {
			invalid = append(invalid, "PubSub.ProjectID")
		}
		if strings.TrimSpace(cfg.PubSub.Topic) == "" {
			invalid = append(invalid, "PubSub.Topic")
		}
	default:
		invalid = append(invalid, "Submission.Publisher")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
