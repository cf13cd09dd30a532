package testutil

import (
	"context"
	"net/http"
	"time"

	"alpine/pkg/requestcontext"
)

// WithCaller adds the authenticated wallet address to the request context.
// This simulates what the auth middleware does for signed requests.
func WithCaller(req *http.Request, address string) *http.Request {
	if address == "" {
		return req
	}
	return req.WithContext(requestcontext.WithCallerAddress(req.Context(), address))
}

// CallerContext returns a background context carrying the caller address and a fixed clock.
func CallerContext(address string, now time.Time) context.Context {
	ctx := requestcontext.WithCallerAddress(context.Background(), address)
	return requestcontext.WithTime(ctx, now)
}
