package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/higgsflow/catalog-sync/internal/domain"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultMarkupFactor    = 1.20
	defaultDiscount        = 0.10
	defaultCurrency        = "MYR"
	defaultBulkBreakpoints = "10:0.05,25:0.10,50:0.15,100:0.20"

	defaultBatchSize       = 10
	defaultMaxRetries      = 3
	defaultSyncInterval    = 3 * time.Second
	defaultImageInterval   = 10 * time.Second
	defaultImageMaxRetries = 2
	defaultDrainTimeout    = 30 * time.Second
	defaultBatchPause      = 100 * time.Millisecond

	defaultFeaturedStock   = 20
	defaultFeaturedPrice   = 500.0
	defaultNewWindow       = 30 * 24 * time.Hour
	defaultImageTimeout    = 60 * time.Second
	defaultReaderCacheTTL  = 5 * time.Minute
	defaultReaderPageSize  = 20
	defaultReaderRateLimit = 120
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Sync      SyncConfig
	Images    ImageConfig
	Events    EventConfig
	Reader    ReaderConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// SyncConfig tunes the sync pipeline: pricing policy, queue sizing, retry
// bounds and timer intervals. All values the transformation logic depends on
// live here so they can be changed without redeploying code.
type SyncConfig struct {
	MarkupFactor    float64
	DefaultDiscount float64
	Currency        string
	BulkBreakpoints []domain.BulkBreakpoint

	BatchSize     int
	MaxRetries    int
	SyncInterval  time.Duration
	ImageInterval time.Duration
	BatchPause    time.Duration
	DrainTimeout  time.Duration

	FeaturedStockThreshold int
	FeaturedPriceThreshold float64
	NewProductWindow       time.Duration
}

// ImageConfig defines the endpoint and credentials for the image-generation
// collaborator.
type ImageConfig struct {
	Endpoint   string
	AuthToken  string
	Timeout    time.Duration
	MaxRetries int
}

// EventConfig configures the Pub/Sub topic receiving sync lifecycle events.
type EventConfig struct {
	ProjectID string
	Topic     string
}

// ReaderConfig tunes the storefront read facade.
type ReaderConfig struct {
	CacheTTL        time.Duration
	MaxPageSize     int
	RequestsPerMin  int
	RateLimitWindow time.Duration
}

// PricingPolicy materialises the shared pricing policy from the sync section.
func (c SyncConfig) PricingPolicy() domain.PricingPolicy {
	policy := domain.DefaultPricingPolicy()
	if c.MarkupFactor > 0 {
		policy.MarkupFactor = c.MarkupFactor
	}
	if c.DefaultDiscount >= 0 && c.DefaultDiscount < 1 {
		policy.DefaultDiscount = c.DefaultDiscount
	}
	if c.Currency != "" {
		policy.Currency = c.Currency
	}
	if len(c.BulkBreakpoints) > 0 {
		policy.BulkBreakpoints = c.BulkBreakpoints
	}
	return policy
}

// CatalogPolicy materialises the catalog thresholds from the sync section.
func (c SyncConfig) CatalogPolicy() domain.CatalogPolicy {
	policy := domain.DefaultCatalogPolicy()
	if c.FeaturedStockThreshold > 0 {
		policy.FeaturedStockThreshold = c.FeaturedStockThreshold
	}
	if c.FeaturedPriceThreshold > 0 {
		policy.FeaturedPriceThreshold = c.FeaturedPriceThreshold
	}
	if c.NewProductWindow > 0 {
		policy.NewProductWindow = c.NewProductWindow
	}
	return policy
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
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

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the daemon configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
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
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	breakpoints, err := parseBreakpoints(stringWithDefault(lookup, "SYNCD_BULK_BREAKPOINTS", defaultBulkBreakpoints))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SYNCD_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SYNCD_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SYNCD_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SYNCD_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "SYNCD_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "SYNCD_FIRESTORE_EMULATOR_HOST", ""),
		},
		Sync: SyncConfig{
			MarkupFactor:           floatWithDefault(lookup, "SYNCD_PRICING_MARKUP", defaultMarkupFactor),
			DefaultDiscount:        floatWithDefault(lookup, "SYNCD_PRICING_DISCOUNT", defaultDiscount),
			Currency:               stringWithDefault(lookup, "SYNCD_PRICING_CURRENCY", defaultCurrency),
			BulkBreakpoints:        breakpoints,
			BatchSize:              intWithDefault(lookup, "SYNCD_BATCH_SIZE", defaultBatchSize),
			MaxRetries:             intWithDefault(lookup, "SYNCD_MAX_RETRIES", defaultMaxRetries),
			SyncInterval:           durationWithDefault(lookup, "SYNCD_SYNC_INTERVAL", defaultSyncInterval),
			ImageInterval:          durationWithDefault(lookup, "SYNCD_IMAGE_INTERVAL", defaultImageInterval),
			BatchPause:             durationWithDefault(lookup, "SYNCD_BATCH_PAUSE", defaultBatchPause),
			DrainTimeout:           durationWithDefault(lookup, "SYNCD_DRAIN_TIMEOUT", defaultDrainTimeout),
			FeaturedStockThreshold: intWithDefault(lookup, "SYNCD_FEATURED_STOCK", defaultFeaturedStock),
			FeaturedPriceThreshold: floatWithDefault(lookup, "SYNCD_FEATURED_PRICE", defaultFeaturedPrice),
			NewProductWindow:       durationWithDefault(lookup, "SYNCD_NEW_PRODUCT_WINDOW", defaultNewWindow),
		},
		Images: ImageConfig{
			Endpoint:   stringWithDefault(lookup, "SYNCD_IMAGE_ENDPOINT", ""),
			AuthToken:  stringWithDefault(lookup, "SYNCD_IMAGE_AUTH_TOKEN", ""),
			Timeout:    durationWithDefault(lookup, "SYNCD_IMAGE_TIMEOUT", defaultImageTimeout),
			MaxRetries: intWithDefault(lookup, "SYNCD_IMAGE_MAX_RETRIES", defaultImageMaxRetries),
		},
		Events: EventConfig{
			ProjectID: stringWithDefault(lookup, "SYNCD_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "SYNCD_EVENTS_TOPIC", ""),
		},
		Reader: ReaderConfig{
			CacheTTL:        durationWithDefault(lookup, "SYNCD_READER_CACHE_TTL", defaultReaderCacheTTL),
			MaxPageSize:     intWithDefault(lookup, "SYNCD_READER_MAX_PAGE_SIZE", defaultReaderPageSize),
			RequestsPerMin:  intWithDefault(lookup, "SYNCD_READER_RATE_LIMIT", defaultReaderRateLimit),
			RateLimitWindow: durationWithDefault(lookup, "SYNCD_READER_RATE_WINDOW", time.Minute),
		},
	}

	// Pub/Sub events default to the Firestore project when unspecified.
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	if cfg.Images.AuthToken != "" {
		resolved, err := resolveSecret(ctx, cfg.Images.AuthToken, options.secret)
		if err != nil {
			return Config{}, err
		}
		cfg.Images.AuthToken = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Sync.MarkupFactor < 1 {
		missing = append(missing, "Sync.MarkupFactor")
	}
	if cfg.Sync.DefaultDiscount < 0 || cfg.Sync.DefaultDiscount >= 1 {
		missing = append(missing, "Sync.DefaultDiscount")
	}
	if cfg.Sync.BatchSize <= 0 {
		missing = append(missing, "Sync.BatchSize")
	}
	if cfg.Sync.MaxRetries <= 0 {
		missing = append(missing, "Sync.MaxRetries")
	}
	if cfg.Sync.SyncInterval <= 0 {
		missing = append(missing, "Sync.SyncInterval")
	}
	if cfg.Sync.ImageInterval <= 0 {
		missing = append(missing, "Sync.ImageInterval")
	}
	if cfg.Reader.CacheTTL <= 0 {
		missing = append(missing, "Reader.CacheTTL")
	}
	if cfg.Reader.MaxPageSize <= 0 {
		missing = append(missing, "Reader.MaxPageSize")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &ValidationError{fields: missing}
	}
	return nil
}

// parseBreakpoints parses "minQty:discount" pairs separated by commas, e.g.
// "10:0.05,25:0.10". Pairs must be sorted by ascending quantity.
func parseBreakpoints(raw string) ([]domain.BulkBreakpoint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	breakpoints := make([]domain.BulkBreakpoint, 0, len(parts))
	lastQty := 0
	for _, part := range parts {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("config: malformed bulk breakpoint %q", part)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(pair[0]))
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("config: invalid bulk breakpoint quantity %q", pair[0])
		}
		discount, err := strconv.ParseFloat(strings.TrimSpace(pair[1]), 64)
		if err != nil || discount < 0 || discount >= 1 {
			return nil, fmt.Errorf("config: invalid bulk breakpoint discount %q", pair[1])
		}
		if qty <= lastQty {
			return nil, fmt.Errorf("config: bulk breakpoints must be sorted by ascending quantity")
		}
		lastQty = qty
		breakpoints = append(breakpoints, domain.BulkBreakpoint{MinQty: qty, Discount: discount})
	}
	return breakpoints, nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

// RedactSecretName hashes a secret identifier so it can be logged safely.
func RedactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
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

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
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

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
