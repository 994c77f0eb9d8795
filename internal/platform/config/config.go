package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix = "QUOTE_"

	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 15 * time.Second
	defaultLogLevel            = "info"
	defaultCatalogTimeout      = 8 * time.Second
	defaultLanguageCacheTTL    = 5 * time.Minute
	defaultCheckoutProcessor   = "processor"
	defaultCheckoutCurrency    = "usd"
	defaultCheckoutTimeout     = 10 * time.Second
	defaultStoreDriver         = "memory"
	defaultStoreTTL            = 30 * 24 * time.Hour
	defaultStoreWriteTimeout   = 5 * time.Second
	defaultStoreCollection     = "quoteSessions"
	defaultStoreKeyPrefix      = "quote:session:"
	defaultSessionCookie       = "quote_session"
	defaultSessionIdleTTL      = 2 * time.Hour
	defaultSessionSweep        = 5 * time.Minute
	defaultSecurityEnvironment = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Pricing  PricingConfig
	Checkout CheckoutConfig
	Store    StoreConfig
	Session  SessionConfig
	Security SecurityConfig
	Secrets  SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// CatalogConfig points at the catalog/pricing service. An empty BaseURL selects the built-in static catalog,
// which is only accepted in the local environment.
type CatalogConfig struct {
	BaseURL          string
	RequestTimeout   time.Duration
	LanguageCacheTTL time.Duration
}

// PricingConfig locates the optional menu rate card file.
type PricingConfig struct {
	RateCardFile string
}

// CheckoutConfig selects and configures the checkout processor.
type CheckoutConfig struct {
	Processor    string
	BaseURL      string
	RedirectURL  string
	StripeAPIKey string
	SuccessURL   string
	CancelURL    string
	Currency     string
	Timeout      time.Duration
}

// StoreConfig configures the durable quote state store.
type StoreConfig struct {
	Driver        string
	TTL           time.Duration
	WriteTimeout  time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	ProjectID     string
	EmulatorHost  string
	Collection    string
}

// SessionConfig controls the wizard session cookie.
type SessionConfig struct {
	CookieName    string
	SigningKey    string
	Secure        bool
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// SecurityConfig groups deployment environment settings.
type SecurityConfig struct {
	Environment string
}

// Local reports whether the service runs in the local development environment.
func (c SecurityConfig) Local() bool {
	return c.Environment == defaultSecurityEnvironment
}

// SecretsConfig locates Secret Manager and the local fallback file.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves secret:// references.
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
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

func newOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Lookup returns a key lookup honouring the loader precedence (.env < OS env < explicit map).
// Binaries use it to bootstrap the secret fetcher before calling Load.
func Lookup(opts ...Option) (func(string) (string, bool), error) {
	options := newOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}, nil
}

// Load assembles the configuration from defaults, .env overrides, environment variables and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newOptions(opts)
	lookup, err := Lookup(opts...)
	if err != nil {
		return Config{}, err
	}
	key := func(name string) string { return envPrefix + name }

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, key("SERVER_PORT"), defaultPort),
			ReadTimeout:     durationWithDefault(lookup, key("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, key("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, key("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, key("SERVER_SHUTDOWN_TIMEOUT"), defaultShutdownTimeout),
			LogLevel:        stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
		},
		Catalog: CatalogConfig{
			BaseURL:          strings.TrimRight(stringWithDefault(lookup, key("CATALOG_BASE_URL"), ""), "/"),
			RequestTimeout:   durationWithDefault(lookup, key("CATALOG_TIMEOUT"), defaultCatalogTimeout),
			LanguageCacheTTL: durationWithDefault(lookup, key("CATALOG_LANGUAGE_CACHE_TTL"), defaultLanguageCacheTTL),
		},
		Pricing: PricingConfig{
			RateCardFile: stringWithDefault(lookup, key("PRICING_RATE_CARD_FILE"), ""),
		},
		Checkout: CheckoutConfig{
			Processor:    strings.ToLower(stringWithDefault(lookup, key("CHECKOUT_PROCESSOR"), defaultCheckoutProcessor)),
			BaseURL:      strings.TrimRight(stringWithDefault(lookup, key("CHECKOUT_BASE_URL"), ""), "/"),
			RedirectURL:  stringWithDefault(lookup, key("CHECKOUT_REDIRECT_URL"), ""),
			StripeAPIKey: stringWithDefault(lookup, key("CHECKOUT_STRIPE_API_KEY"), ""),
			SuccessURL:   stringWithDefault(lookup, key("CHECKOUT_SUCCESS_URL"), ""),
			CancelURL:    stringWithDefault(lookup, key("CHECKOUT_CANCEL_URL"), ""),
			Currency:     strings.ToLower(stringWithDefault(lookup, key("CHECKOUT_CURRENCY"), defaultCheckoutCurrency)),
			Timeout:      durationWithDefault(lookup, key("CHECKOUT_TIMEOUT"), defaultCheckoutTimeout),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(stringWithDefault(lookup, key("STORE_DRIVER"), defaultStoreDriver)),
			TTL:           durationWithDefault(lookup, key("STORE_TTL"), defaultStoreTTL),
			WriteTimeout:  durationWithDefault(lookup, key("STORE_WRITE_TIMEOUT"), defaultStoreWriteTimeout),
			RedisAddr:     stringWithDefault(lookup, key("STORE_REDIS_ADDR"), ""),
			RedisPassword: stringWithDefault(lookup, key("STORE_REDIS_PASSWORD"), ""),
			RedisDB:       intWithDefault(lookup, key("STORE_REDIS_DB"), 0),
			KeyPrefix:     stringWithDefault(lookup, key("STORE_KEY_PREFIX"), defaultStoreKeyPrefix),
			ProjectID:     stringWithDefault(lookup, key("STORE_FIRESTORE_PROJECT_ID"), ""),
			EmulatorHost:  stringWithDefault(lookup, key("STORE_FIRESTORE_EMULATOR_HOST"), ""),
			Collection:    stringWithDefault(lookup, key("STORE_FIRESTORE_COLLECTION"), defaultStoreCollection),
		},
		Session: SessionConfig{
			CookieName:    stringWithDefault(lookup, key("SESSION_COOKIE_NAME"), defaultSessionCookie),
			SigningKey:    stringWithDefault(lookup, key("SESSION_SIGNING_KEY"), ""),
			Secure:        boolWithDefault(lookup, key("SESSION_SECURE"), false),
			IdleTTL:       durationWithDefault(lookup, key("SESSION_IDLE_TTL"), defaultSessionIdleTTL),
			SweepInterval: durationWithDefault(lookup, key("SESSION_SWEEP_INTERVAL"), defaultSessionSweep),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, key("SECURITY_ENVIRONMENT"), defaultSecurityEnvironment)),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, key("SECRETS_PROJECT_ID"), ""),
			FallbackFile: stringWithDefault(lookup, key("SECRETS_FALLBACK_FILE"), ""),
		},
	}

	if cfg.Store.ProjectID == "" {
		cfg.Store.ProjectID = cfg.Secrets.ProjectID
	}

	secretFields := []*string{
		&cfg.Checkout.StripeAPIKey,
		&cfg.Store.RedisPassword,
		&cfg.Session.SigningKey,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
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
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	local := cfg.Security.Local()
	if cfg.Catalog.RequestTimeout <= 0 {
		missing = append(missing, "Catalog.RequestTimeout")
	}
	// The built-in catalog and the offline processor are local-only.
	if !local && cfg.Catalog.BaseURL == "" {
		missing = append(missing, "Catalog.BaseURL")
	}
	switch cfg.Checkout.Processor {
	case "processor":
		if !local && cfg.Checkout.BaseURL == "" {
			missing = append(missing, "Checkout.BaseURL")
		}
	case "stripe":
		if cfg.Checkout.StripeAPIKey == "" {
			missing = append(missing, "Checkout.StripeAPIKey")
		}
		if cfg.Checkout.SuccessURL == "" {
			missing = append(missing, "Checkout.SuccessURL")
		}
		if cfg.Checkout.CancelURL == "" {
			missing = append(missing, "Checkout.CancelURL")
		}
	default:
		missing = append(missing, "Checkout.Processor")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "redis":
		if cfg.Store.RedisAddr == "" {
			missing = append(missing, "Store.RedisAddr")
		}
	case "firestore":
		if cfg.Store.ProjectID == "" {
			missing = append(missing, "Store.ProjectID")
		}
	default:
		missing = append(missing, "Store.Driver")
	}
	if !local && strings.TrimSpace(cfg.Session.SigningKey) == "" {
		missing = append(missing, "Session.SigningKey")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
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
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		values[name] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
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
