package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/webitel/im-notification-gateway/internal/domain/registry"
)

const accessTokenParam = "access_token"

// Bearer extracts the caller's token from the Authorization header, falling back to the
// access_token query parameter for clients (EventSource) that cannot set headers.
func Bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(accessTokenParam)
}

// ConnectMetadata describes the peer of a stream request.
func ConnectMetadata(r *http.Request, transport string) registry.ConnectMetadata {
	return registry.ConnectMetadata{
		Transport: transport,
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
	}
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
