package appctx

import "context"

// Scope is the request identity: the school every query is confined to,
// the acting user, and the correlation id used in logs and events.
type Scope struct {
	SchoolId      string
	UserId        int
	UserName      string
	CorrelationId string
}

type scopeKey struct{}

func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// Update copies the current scope, applies fn and stores the result.
func Update(ctx context.Context, fn func(*Scope)) context.Context {
	s := ScopeFrom(ctx)
	fn(&s)
	return WithScope(ctx, s)
}

func SchoolId(ctx context.Context) (string, bool) {
	s := ScopeFrom(ctx)
	return s.SchoolId, s.SchoolId != ""
}
