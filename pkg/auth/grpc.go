package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// bearerFromMetadata extracts the bearer token from incoming gRPC
// metadata. gRPC carries the credential in the "authorization" metadata
// key with the same "Bearer <token>" shape as HTTP.
func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return ExtractBearerToken(values[0])
}

// grpcStatusError converts a validation failure into a gRPC status error.
// Key-source unavailability maps to Unavailable so clients retry against
// another replica; every other failure is Unauthenticated.
func grpcStatusError(err error) error {
	qfe := qferr.FromError(err)
	code := codes.Unauthenticated
	if qferr.IsRetryable(qfe) {
		code = codes.Unavailable
	}
	return status.Error(code, qfe.Message)
}

// UnaryServerInterceptor returns a unary interceptor enforcing the given
// mode, mirroring the HTTP middleware: on success the handler runs with
// the authenticated [Identity] in its context.
func (a *Authenticator) UnaryServerInterceptor(mode Mode) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token := bearerFromMetadata(ctx)
		if token == "" {
			if mode == ModeOptional {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		identity, err := a.Authenticate(ctx, token)
		if err != nil {
			if mode == ModeOptional {
				return handler(ctx, req)
			}
			return nil, grpcStatusError(err)
		}
		return handler(ContextWithIdentity(ctx, identity), req)
	}
}

// StreamServerInterceptor returns a stream interceptor enforcing the given
// mode. The stream's context is replaced so handlers see the identity on
// every message.
func (a *Authenticator) StreamServerInterceptor(mode Mode) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		token := bearerFromMetadata(ctx)
		if token == "" {
			if mode == ModeOptional {
				return handler(srv, ss)
			}
			return status.Error(codes.Unauthenticated, "missing bearer token")
		}

		identity, err := a.Authenticate(ctx, token)
		if err != nil {
			if mode == ModeOptional {
				return handler(srv, ss)
			}
			return grpcStatusError(err)
		}
		return handler(srv, &identityServerStream{
			ServerStream: ss,
			ctx:          ContextWithIdentity(ctx, identity),
		})
	}
}

// identityServerStream wraps a ServerStream to carry the authenticated
// identity in its context.
type identityServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityServerStream) Context() context.Context {
	return s.ctx
}
