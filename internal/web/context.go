package web

import (
	"net/http"

	"github.com/JonMunkholm/collarconv/internal/core"
)

// requestMetadata adds the client IP and User-Agent to the request context
// for the audit log. RemoteAddr has already been rewritten by TrustedRealIP.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithRequestMeta(r.Context(), core.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
