package grpc

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	claimsKey ctxKey = "claims"
	causeKey  ctxKey = "cause"
)

// causeSlot carries the underlying error of an Internal reply from the
// handler back to errorReportingInterceptor. The status sent to the caller
// only holds a generic message.
type causeSlot struct {
	err error
}

func recordCause(ctx context.Context, err error) {
	if slot, ok := ctx.Value(causeKey).(*causeSlot); ok {
		slot.err = err
	}
}

var protectedMethods = map[string]bool{
	FullMethod(MethodLogout):         true,
	FullMethod(MethodLogoutOthers):   true,
	FullMethod(MethodChangePassword): true,
	FullMethod(MethodMe):             true,
	FullMethod(MethodListSessions):   true,
}

// ClaimsFromContext returns the claims stored by the access token
// interceptor.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(key)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// callerOrigin is the first x-forwarded-for hop if it parses as an IP
// address, otherwise the peer host.
func callerOrigin(ctx context.Context) string {
	if fwd := firstMetadata(ctx, common.ForwardedForHeaderName); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func callerUserAgent(ctx context.Context) string {
	return firstMetadata(ctx, common.UserAgentHeaderName)
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if protectedMethods[info.FullMethod] {

		accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.sessions.Validate(ctx, accessToken)
		if err != nil {
			if errors.Is(err, common.ErrorInternal) {
				recordCause(ctx, err)
				return nil, status.Error(codes.Internal, "internal error")
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, claimsKey, claims)

	}

	return handler(ctx, req)
}

func (s *GRPCServer) errorReportingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	slot := &causeSlot{}
	resp, err := handler(context.WithValue(ctx, causeKey, slot), req)
	if err != nil && status.Code(err) == codes.Internal {
		cause := err
		if slot.err != nil {
			cause = slot.err
		}
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod, "error", cause)
		s.captureError(cause, info.FullMethod)
	}
	return resp, err
}

func (s *GRPCServer) recoverInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			s.logger.Error(ctx, "panic in rpc handler", "method", info.FullMethod, "panic", rec)
			observability.CapturePanic(rec, stack, info.FullMethod)
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
