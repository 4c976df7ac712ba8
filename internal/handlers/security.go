package handlers

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/session"
	"github.com/triplebarrelracing/storefront/internal/storage"
)

const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets baseline security headers. API responses also get a
// locked-down CSP, and admin responses are never cached.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")

		if !strings.HasPrefix(r.URL.Path, storage.PublicPrefix) {
			headers.Set("Content-Security-Policy", apiContentSecurityPolicy)
			headers.Set("Cross-Origin-Resource-Policy", "same-origin")
		}
		if strings.HasPrefix(r.URL.Path, "/api/admin/") {
			headers.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSameOrigin blocks cross-origin state-changing requests made with
// the session cookie. Bearer-token requests carry no ambient credentials and
// pass through.
func (h *Handlers) RequireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestMutatesState(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if principal := session.PrincipalFromContext(r.Context()); principal != nil && principal.Method == session.AuthBearer {
			next.ServeHTTP(w, r)
			return
		}

		meter := observability.MeterFromContext(r.Context())
		meter.Count("security.same_origin.checked", 1)

		if reason := h.crossOriginReason(r); reason != "" {
			meter.Count("security.same_origin.blocked", 1, sentry.WithAttributes(attribute.String("reason", reason)))
			h.loggerFromContext(r.Context()).Warn("blocked cross-origin admin request",
				"reason", reason,
				"origin", r.Header.Get("Origin"),
				"referer", r.Header.Get("Referer"),
			)
			writeJSON(w, r, http.StatusForbidden, errorResponse{Error: "cross-origin request rejected", Code: "forbidden"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// crossOriginReason returns why a request fails the same-origin check, or
// an empty string when it passes. Origin and Referer must both match when
// present and at least one must be present.
func (h *Handlers) crossOriginReason(r *http.Request) string {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	referer := strings.TrimSpace(r.Header.Get("Referer"))
	if origin == "" && referer == "" {
		return "missing_origin_and_referer"
	}

	allowed := h.allowedHosts(r)
	if origin != "" && !allowed[hostOf(origin)] {
		return "invalid_origin"
	}
	if referer != "" && !allowed[hostOf(referer)] {
		return "invalid_referer"
	}
	return ""
}

func requestMutatesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// allowedHosts is the request's own host plus the configured site host.
func (h *Handlers) allowedHosts(r *http.Request) map[string]bool {
	hosts := make(map[string]bool, 2)
	if host := normalizeHost(r.Host); host != "" {
		hosts[host] = true
	}
	if h.config != nil {
		if host := hostOf(h.config.BaseURL); host != "" {
			hosts[host] = true
		}
	}
	return hosts
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}

// hostOf returns the lower-cased hostname of an absolute URL, or "" when the
// value is not one.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
