package types

// Compression algorithm constants for the shared cache tier
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// CompressionMinSize is the minimum document size in bytes for compression to be applied.
// Smaller documents are stored uncompressed.
const CompressionMinSize = 1024

// DocumentPrefix is prepended to every assembled page before it is cached and sent.
const DocumentPrefix = "<!doctype html>"

// CacheStatus values reported in the X-Render-Cache response header
const (
	CacheStatusHit  = "hit"
	CacheStatusMiss = "miss"
)

// Outcome labels a finished request for metrics and logs.
type Outcome string

const (
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeRendered Outcome = "rendered"
	OutcomeRedirect Outcome = "redirect"
	OutcomeFailed   Outcome = "failed"
)

// IsValidCompression reports whether algorithm names a supported compression algorithm.
func IsValidCompression(algorithm string) bool {
	switch algorithm {
	case "", CompressionNone, CompressionSnappy, CompressionLZ4:
		return true
	default:
		return false
	}
}
