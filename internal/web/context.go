package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

// withRequestMetadata adds client IP and User-Agent to ctx for comparison history.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	ctx = core.ContextWithClientIP(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
