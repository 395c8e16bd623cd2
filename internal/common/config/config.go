package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
	"github.com/edgecomet/ssr-gateway/internal/common/yamlutil"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

// Environment variables that override file configuration
const (
	EnvProjectID = "GRAPHCOOL_PROJECT_ID"
	EnvListen    = "SSR_LISTEN"
)

// Defaults applied when the configuration file leaves a value unset
const (
	DefaultListen           = ":3000"
	DefaultServerTimeout    = 30 * time.Second
	DefaultGraphQLHost      = "graph.cool"
	DefaultGraphQLNamespace = "simple"
	DefaultGraphQLTimeout   = 10 * time.Second
	DefaultMaxEntries       = 100
	DefaultMaxAge           = time.Hour
	DefaultSharedKeyPrefix  = "ssr:page:"
	DefaultBundleURL        = "/static/bundle.js"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "ssr"
)

// Type aliases for callers that only import config
type (
	SSRConfig = configtypes.SSRConfig
	LogConfig = configtypes.LogConfig
)

// Compile-time interface satisfaction check
var _ configtypes.ConfigProvider = (*Manager)(nil)

// Manager handles configuration loading
type Manager struct {
	config     *SSRConfig
	configPath string
	logger     *zap.Logger
}

// NewManager loads, defaults and validates the configuration at configPath.
func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	cm := &Manager{
		configPath: configPath,
		logger:     logger,
	}

	if err := cm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// LoadConfig loads configuration from file and environment
func (cm *Manager) LoadConfig() error {
	cfg, err := Load(cm.configPath)
	if err != nil {
		return err
	}

	cm.config = cfg
	cm.emitConfigWarnings()
	return nil
}

// GetConfig returns the loaded configuration (read-only)
func (cm *Manager) GetConfig() *SSRConfig {
	return cm.config
}

// Load reads the YAML file at path, applies environment overrides and defaults,
// and validates the result.
func Load(path string) (*SSRConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration bytes strictly, then applies environment overrides,
// defaults and validation.
func Parse(data []byte) (*SSRConfig, error) {
	var cfg SSRConfig
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets the process environment take precedence over the file
func applyEnvOverrides(cfg *SSRConfig) {
	if projectID, ok := os.LookupEnv(EnvProjectID); ok {
		cfg.GraphQL.ProjectID = projectID
	}
	if listen, ok := os.LookupEnv(EnvListen); ok && listen != "" {
		cfg.Server.Listen = listen
	}
}

// ApplyDefaults fills unset configuration values
func ApplyDefaults(cfg *SSRConfig) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = types.Duration(DefaultServerTimeout)
	}

	if cfg.GraphQL.Host == "" {
		cfg.GraphQL.Host = DefaultGraphQLHost
	}
	if cfg.GraphQL.Namespace == "" {
		cfg.GraphQL.Namespace = DefaultGraphQLNamespace
	}
	if cfg.GraphQL.Timeout == 0 {
		cfg.GraphQL.Timeout = types.Duration(DefaultGraphQLTimeout)
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultMaxEntries
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = types.Duration(DefaultMaxAge)
	}
	if cfg.Cache.Shared.Compression == "" {
		cfg.Cache.Shared.Compression = types.CompressionSnappy
	}
	if cfg.Cache.Shared.KeyPrefix == "" {
		cfg.Cache.Shared.KeyPrefix = DefaultSharedKeyPrefix
	}

	if cfg.Render.BundleURL == "" {
		cfg.Render.BundleURL = DefaultBundleURL
	}

	// If both outputs are disabled (zero values), enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Validate checks a defaulted configuration and reports every problem found
func Validate(cfg *SSRConfig) error {
	var errs []error

	if _, err := configtypes.NormalizeListen(cfg.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("server.listen: %w", err))
	}
	if cfg.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative"))
	}
	if cfg.GraphQL.Timeout < 0 {
		errs = append(errs, fmt.Errorf("graphql.timeout must not be negative"))
	}
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive, got %d", cfg.Cache.MaxEntries))
	}
	if cfg.Cache.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("cache.max_age must not be negative"))
	}
	if !types.IsValidCompression(cfg.Cache.Shared.Compression) {
		errs = append(errs, fmt.Errorf("cache.shared.compression: unsupported algorithm %q", cfg.Cache.Shared.Compression))
	}
	if cfg.Cache.Shared.Enabled && cfg.Cache.Shared.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.shared.redis.addr is required when the shared cache is enabled"))
	}
	if cfg.Render.Timeout < 0 {
		errs = append(errs, fmt.Errorf("render.timeout must not be negative"))
	}

	if err := validateLevel("log.level", cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := validateLevel("log.console.level", cfg.Log.Console.Level); err != nil {
		errs = append(errs, err)
	}
	if err := validateLevel("log.file.level", cfg.Log.File.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		errs = append(errs, fmt.Errorf("log.file.path must be specified when file logging is enabled"))
	}

	if cfg.Metrics.Enabled {
		metricsListen, err := configtypes.NormalizeListen(cfg.Metrics.Listen)
		if err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		} else if serverListen, err := configtypes.NormalizeListen(cfg.Server.Listen); err == nil && metricsListen == serverListen {
			errs = append(errs, fmt.Errorf("metrics.listen must differ from server.listen"))
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path must start with '/'"))
		}
	}

	return errors.Join(errs...)
}

func validateLevel(field, level string) error {
	switch level {
	case "", configtypes.LogLevelDebug, configtypes.LogLevelInfo, configtypes.LogLevelWarn, configtypes.LogLevelError:
		return nil
	default:
		return fmt.Errorf("%s: unknown level %q", field, level)
	}
}

// Warnings lists non-fatal configuration concerns
func Warnings(cfg *SSRConfig) []string {
	var warnings []string
	// a missing project id is not fatal: the endpoint is malformed and renders fail at fetch time
	if cfg.GraphQL.ProjectID == "" {
		warnings = append(warnings, "graphql.project_id is empty; data fetches will fail until it is set via "+EnvProjectID)
	}
	if cfg.Internal.AuthKey == "" {
		warnings = append(warnings, "internal.auth_key is empty; cache administration endpoints are disabled")
	}
	return warnings
}

// emitConfigWarnings logs Warnings at startup
func (cm *Manager) emitConfigWarnings() {
	for _, w := range Warnings(cm.config) {
		cm.logger.Warn(w)
	}

	if cm.config.Render.Timeout == 0 {
		cm.logger.Debug("render.timeout not set, renders run without a deadline")
	}
}
