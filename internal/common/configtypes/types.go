package configtypes

import (
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// SSRConfig represents the SSR server main application configuration
type SSRConfig struct {
	Server   ServerConfig   `yaml:"server"`
	GraphQL  GraphQLConfig  `yaml:"graphql"`
	Cache    CacheConfig    `yaml:"cache"`
	Render   RenderConfig   `yaml:"render"`
	Internal InternalConfig `yaml:"internal"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Listen  string         `yaml:"listen"`
	Timeout types.Duration `yaml:"timeout"`
	// ClientIPHeaders are trusted in order for the logged client address
	ClientIPHeaders []string `yaml:"client_ip_headers,omitempty"`
}

// GraphQLConfig describes the data endpoint used during server renders.
// The endpoint is https://api.<host>/<namespace>/v1/<project_id>.
type GraphQLConfig struct {
	Host      string         `yaml:"host"`
	Namespace string         `yaml:"namespace"`
	ProjectID string         `yaml:"project_id"`
	Timeout   types.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	MaxEntries int               `yaml:"max_entries"`
	MaxAge     types.Duration    `yaml:"max_age"`
	Shared     SharedCacheConfig `yaml:"shared"`
}

// SharedCacheConfig configures the optional Redis tier behind the in-process cache
type SharedCacheConfig struct {
	Enabled     bool        `yaml:"enabled"`
	Redis       RedisConfig `yaml:"redis"`
	Compression string      `yaml:"compression,omitempty"` // none, snappy, lz4
	KeyPrefix   string      `yaml:"key_prefix,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RenderConfig struct {
	// Timeout bounds a single render; zero means no deadline.
	Timeout types.Duration `yaml:"timeout"`
	// Coalesce shares one render between concurrent misses for the same key.
	Coalesce bool `yaml:"coalesce"`
	// BundleURL is the client script referenced by every assembled document.
	BundleURL string `yaml:"bundle_url"`
}

// InternalConfig protects the cache administration endpoints
type InternalConfig struct {
	AuthKey string `yaml:"auth_key"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
