package transport

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig configures CORS for the HTTP endpoints.
type CORSConfig struct {
	// AllowOrigins lists exact allowed origins; "*" allows all.
	AllowOrigins []string

	// AllowMethods defaults to GET and OPTIONS.
	AllowMethods []string

	// AllowHeaders defaults to Content-Type and X-Request-ID.
	AllowHeaders []string

	ExposeHeaders    []string
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default: 86400.
	MaxAge int
}

// DefaultCORSConfig returns a permissive configuration for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:       86400,
	}
}

// CORSHandler wraps next with CORS headers and preflight handling.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	}
	if len(config.AllowHeaders) == 0 {
		config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400
	}

	allowed := newOriginSet(config.AllowOrigins)
	methods := strings.Join(config.AllowMethods, ", ")
	headers := strings.Join(config.AllowHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		var allowOrigin string
		switch {
		case allowed.all:
			allowOrigin = "*"
		case origin != "" && allowed.has(origin):
			allowOrigin = origin
			w.Header().Add("Vary", "Origin")
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(config.ExposeHeaders) > 0 {
				w.Header().Set("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// OriginChecker returns an upgrade origin check for the given origins.
// Requests without an Origin header (non-browser clients) are accepted,
// as are same-host origins.
func OriginChecker(origins []string) func(r *http.Request) bool {
	allowed := newOriginSet(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed.all || allowed.has(origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type originSet struct {
	all     bool
	origins map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	s := originSet{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			s.all = true
		}
		if o != "" {
			s.origins[o] = struct{}{}
		}
	}
	return s
}

func (s originSet) has(origin string) bool {
	_, ok := s.origins[strings.TrimRight(origin, "/")]
	return ok
}
