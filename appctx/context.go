package appctx

import "context"

type contextKey string

const RemoteAddrContextKey contextKey = "remote_addr"

// SetRemoteAddr stores the caller's address as the broker should see it
func SetRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrContextKey, addr)
}

// GetRemoteAddr extracts the caller's address from the request context
func GetRemoteAddr(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(RemoteAddrContextKey).(string)
	return addr, ok
}
