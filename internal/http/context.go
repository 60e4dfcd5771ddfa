package http

import (
	"context"

	"github.com/trinislearning/hit339/internal/identity"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	principalKey
)

func withSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

func getSessionID(ctx context.Context) string {
	if sid, ok := ctx.Value(sessionIDKey).(string); ok {
		return sid
	}
	return ""
}

func withPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// getPrincipal returns nil for anonymous callers.
func getPrincipal(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(principalKey).(*identity.Principal)
	return p
}
