package httpx

import "context"

type ctxKey string

const (
	CtxKeyAccountID ctxKey = "account_id"
	CtxKeyClaims    ctxKey = "claims" // full jwtx.Claims when needed
)

// AccountIDFromContext returns the authenticated account id injected by
// AuthnMiddleware, or "" when the request is unauthenticated.
func AccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyAccountID).(string); ok {
		return v
	}
	return ""
}
