package checkin_api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"checkin-gate/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// KeyGuard throttles clients that keep sending a wrong operator key.
type KeyGuard interface {
	Locked(ctx context.Context, client string) (bool, error)
	RecordFailure(ctx context.Context, client string) (int, error)
	Clear(ctx context.Context, client string) error
}

// ParseTrustedProxies turns CIDRs (or bare IPs) into networks, skipping
// entries that do not parse.
func ParseTrustedProxies(entries []string, log *logger.Logger) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			if log != nil {
				log.Warn("CONFIG", fmt.Sprintf("Ignoring invalid TRUSTED_PROXIES entry %q", entry))
			}
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

func (h *Handler) trusted(ip net.IP) bool {
	for _, n := range h.TrustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientAddr names the client for the key lockout. It is the TCP peer,
// unless the peer is a trusted proxy: then the nearest untrusted hop of
// X-Forwarded-For, or X-Real-IP, is used.
func (h *Handler) clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || !h.trusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !h.trusted(ip) {
				return ip.String()
			}
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return host
}

// RequireOperatorKey gates a route on ?key= matching the configured secret.
// An empty secret closes the route. Submitted keys are never logged.
func (h *Handler) RequireOperatorKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		client := h.clientAddr(r)

		if h.KeyGuard != nil {
			locked, err := h.KeyGuard.Locked(ctx, client)
			if err != nil {
				h.Logger.Warn("SECURITY", fmt.Sprintf("Lockout check failed for %s: %v", client, err))
			} else if locked {
				h.Logger.LogSecurity("LOCKED", fmt.Sprintf("%s %s from %s", r.Method, r.URL.Path, client))
				h.renderText(w, http.StatusTooManyRequests, msgLockedOut)
				return
			}
		}

		secret := h.Config.AdminKey
		key := r.URL.Query().Get("key")
		if secret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("bad operator key for %s from %s", r.URL.Path, client))
			if h.KeyGuard != nil {
				if _, err := h.KeyGuard.RecordFailure(ctx, client); err != nil {
					h.Logger.Warn("SECURITY", fmt.Sprintf("Failed to record key failure for %s: %v", client, err))
				}
			}
			h.renderText(w, http.StatusForbidden, msgForbidden)
			return
		}

		if h.KeyGuard != nil {
			if err := h.KeyGuard.Clear(ctx, client); err != nil {
				h.Logger.Warn("SECURITY", fmt.Sprintf("Failed to clear key failures for %s: %v", client, err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs method, path and status. The query string carries
// operator keys and guest credentials, so it is left out.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), time.Since(start).String())
		})
	}
}
