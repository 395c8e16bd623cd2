package configtypes

// ConfigProvider provides access to the SSR server configuration.
// Implementations must be safe for concurrent use.
// The returned pointer is read-only - callers must not modify it.
type ConfigProvider interface {
	GetConfig() *SSRConfig
}
