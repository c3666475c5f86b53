package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
)

const rateLimitMessage = "Too many requests. Please try again later."

// RateLimit limits requests per client IP to perSecond with the given burst.
// Idle client entries expire after ttl.
func RateLimit(perSecond float64, burst int, ttl time.Duration) func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: ttl,
	})
	if burst > 0 {
		lmt.SetBurst(burst)
	}
	lmt.SetMessage(rateLimitMessage)
	lmt.SetMessageContentType("text/plain; charset=utf-8")

	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}

// ParseTrustedCIDRs parses a list of CIDR strings into net.IPNet objects.
// Bare IPs are treated as single host ranges. Invalid entries are logged and skipped.
func ParseTrustedCIDRs(cidrs []string) []*net.IPNet {
	var result []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			if ip := net.ParseIP(cidr); ip != nil {
				bits := 128
				if ip.To4() != nil {
					bits = 32
				}
				result = append(result, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
			logger.Warn("invalid trusted proxy CIDR, skipping", "cidr", cidr, "error", err)
			continue
		}
		result = append(result, ipNet)
	}
	return result
}

// isIPInCIDRs checks if the given address (with or without port) is contained in any of the ranges.
func isIPInCIDRs(addr string, cidrs []*net.IPNet) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, cidr := range cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP prefers X-Real-IP, then the leftmost X-Forwarded-For entry, but
// only when the connection comes from a trusted proxy.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	if len(trusted) > 0 && isIPInCIDRs(r.RemoteAddr, trusted) {
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	return r.RemoteAddr
}

// TrustedRealIP rewrites RemoteAddr to the forwarded client address for
// requests arriving through one of the trusted proxies. Forwarding headers
// from anyone else are ignored, so rate limiting cannot be dodged by
// spoofing them.
func TrustedRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r, trusted); ip != r.RemoteAddr {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}
