package httpx

type ctxKey string

const (
	// CtxKeyEmail is the authenticated account email, injected by AuthnMiddleware.
	CtxKeyEmail ctxKey = "email"

	// CtxKeyClaims carries the full verified jwtx.Claims.
	CtxKeyClaims ctxKey = "claims"
)
