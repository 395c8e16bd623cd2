package redis

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// PageKey maps a request URI to its shared cache key: <prefix><xxhash64 hex>
func PageKey(prefix, uri string) string {
	return prefix + strconv.FormatUint(xxhash.Sum64String(uri), 16)
}
