package auth

import "context"

// Identity is the authenticated caller as established by JWTMiddleware.
// External evaluators carry no user record; Sub is their evaluator id.
type Identity struct {
	Sub      string
	Role     string
	External bool
}

type ctxKey struct{}

var ctxKeyIdentity = ctxKey{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) Identity {
	if v := ctx.Value(ctxKeyIdentity); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}
