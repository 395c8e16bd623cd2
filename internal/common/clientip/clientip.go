package clientip

import (
	"net"
	"net/netip"
	"strings"

	"github.com/valyala/fasthttp"
)

// SourceRemoteAddr is reported when no trusted header carried an address
const SourceRemoteAddr = "remote_addr"

// Resolve returns the client address and where it came from. Headers are
// trusted in order; for list headers such as X-Forwarded-For only the
// leftmost element counts. The connection address is the fallback.
func Resolve(ctx *fasthttp.RequestCtx, trustedHeaders []string) (ip, source string) {
	for _, name := range trustedHeaders {
		raw := strings.TrimSpace(string(ctx.Request.Header.Peek(name)))
		if raw == "" {
			continue
		}
		first, _, _ := strings.Cut(raw, ",")
		if first = strings.TrimSpace(first); first != "" {
			return canonical(first), name
		}
	}

	addr := ctx.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return canonical(addr), SourceRemoteAddr
}

// canonical strips brackets and zones and unmaps IPv4-in-IPv6.
// Values that are not addresses are returned as given.
func canonical(raw string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return raw
	}
	return addr.WithZone("").Unmap().String()
}
