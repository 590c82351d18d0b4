package audit

import "context"

type contextKey int

const (
	sessionKey contextKey = iota
	remoteKey
)

// WithSession returns ctx carrying the console session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionFrom returns the session id in ctx, or "unknown".
func SessionFrom(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// WithRemote returns ctx carrying the client address.
func WithRemote(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteKey, addr)
}

func remoteFrom(ctx context.Context) string {
	addr, _ := ctx.Value(remoteKey).(string)
	return addr
}
