package identity

import "context"

// Principal is the opaque identity of a caller. It is only compared and
// used as a map key, never parsed.
type Principal string

// Anonymous is the principal assigned to callers without credentials.
const Anonymous Principal = "2vxsx-fae"

type ctxKey string

const principalKey ctxKey = "todo.identity.principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return "", false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

func (p Principal) String() string {
	return string(p)
}
