package util

import "context"

type ctxKey string

const (
	ctxIdentity    ctxKey = "identity"
	ctxBearerToken ctxKey = "bearerToken"
)

// Identity is the verified caller as asserted by the auth service token
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// WithIdentity stores the verified caller in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

// IdentityFrom returns the verified caller, if any
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

// WithBearerToken stores the caller's raw token so it can be forwarded upstream
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxBearerToken, token)
}

// BearerToken returns the caller's raw token or ""
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(ctxBearerToken).(string)
	return token
}
