package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"tradecore/internal/gatewayauth"
)

// hopByHopHeaders are stripped before forwarding in either direction, per
// spec.md §4.3 step 5.
var hopByHopHeaders = []string{
	"Host", "Connection", "Upgrade", "Proxy-Connection",
	"Proxy-Authenticate", "Proxy-Authorization", "Te", "Trailers",
	"Transfer-Encoding",
}

func stripHopByHop(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}

// injectUpstreamHeaders adds the identity/tracing headers the spec requires
// on every forwarded request.
func injectUpstreamHeaders(h http.Header, uc gatewayauth.UserContext, requestID, targetSvc, timestamp string) {
	h.Set("X-Request-Id", requestID)
	h.Set("X-Source-Service", "gateway")
	h.Set("X-Target-Service", targetSvc)
	h.Set("X-Request-Timestamp", timestamp)

	if uc.UserID != "" {
		h.Set("X-User-Id", uc.UserID)
		h.Set("X-Username", uc.Username)
		if rolesJSON, err := json.Marshal(uc.Roles); err == nil {
			h.Set("X-User-Roles", string(rolesJSON))
		}
		if permsJSON, err := json.Marshal(uc.Permissions); err == nil {
			h.Set("X-User-Permissions", string(permsJSON))
		}
	}
}

func newRequestID() string {
	return uuid.New().String()
}
