// Package urlutil provides URL manipulation utilities.
package urlutil

import (
	"net/http"
	"strings"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// HeaderForwardedProto is set by reverse proxies terminating TLS.
const HeaderForwardedProto = "X-Forwarded-Proto"

// NormalizeBaseURL normalizes a base URL for consistent use:
//   - Adds http:// scheme if no scheme provided
//   - Removes trailing slash for clean path joining
//
// Examples:
//
//	"jellyfin.lan"           -> "http://jellyfin.lan"
//	"https://jellyfin.lan/"  -> "https://jellyfin.lan"
//	"localhost:8096"         -> "http://localhost:8096"
func NormalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return strings.TrimSuffix(baseURL, "/")
}

// JoinPath joins a base URL with a path, ensuring single slashes.
func JoinPath(baseURL, path string) string {
	if baseURL == "" {
		return path
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return baseURL + path
}

// ExternalBaseURL returns the base URL clients used to reach this server.
// A configured publicURL wins; otherwise it is built from the first
// X-Forwarded-Proto value (default http) and the request Host.
func ExternalBaseURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return NormalizeBaseURL(publicURL)
	}

	scheme := SchemeHTTP
	if proto := r.Header.Get(HeaderForwardedProto); proto != "" {
		// Chained proxies append: "https, http".
		first, _, _ := strings.Cut(proto, ",")
		if p := strings.ToLower(strings.TrimSpace(first)); p == SchemeHTTP || p == SchemeHTTPS {
			scheme = p
		}
	}

	return scheme + "://" + r.Host
}
