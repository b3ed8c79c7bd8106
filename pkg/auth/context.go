package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys in this package,
// preventing collisions with keys from other packages.
type contextKey int

const (
	// identityKey stores the authenticated Identity in the context.
	identityKey contextKey = iota
)

// ContextWithIdentity returns a new context carrying the given Identity.
// It is called by the HTTP middleware and gRPC interceptors after a
// successful validation; handlers retrieve the value with
// [IdentityFromContext].
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the Identity from the context. Returns the
// identity and true if one was attached, or a zero Identity and false for
// an anonymous request.
//
// In optional-authentication routes, absence is not an error: the handler
// must treat "no identity" as "anonymous caller".
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// MustIdentityFromContext retrieves the Identity from the context,
// panicking if none is present. Use only on routes behind [ModeRequired]
// middleware, where an identity is guaranteed.
func MustIdentityFromContext(ctx context.Context) Identity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context; ensure required-mode authentication middleware is configured")
	}
	return identity
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context
// as a hex string. This lets operators correlate authentication decisions
// with distributed traces without logging any credential material.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context as
// a hex string.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
