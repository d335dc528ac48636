// Package grpc exposes the credential engine over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/observability"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// AuthEngine is the part of services.AuthService the transport calls.
type AuthEngine interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, in services.LoginInput) (*models.Account, error)
	ConfirmEmail(ctx context.Context, token string) bool
	RequestPasswordReset(ctx context.Context, email string) bool
	ResetPassword(ctx context.Context, in services.ResetPasswordInput) error
	ExternalLogin(ctx context.Context, in services.ExternalLoginInput) (*models.Account, error)
	ChangePassword(ctx context.Context, in services.ChangePasswordInput) error
	Profile(ctx context.Context, accountID int64) (*models.Account, error)
}

// SessionManager is the part of services.SessionService the transport calls.
type SessionManager interface {
	Issue(ctx context.Context, a *models.Account, ipAddress, userAgent string) (*services.IssuedSession, error)
	Validate(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, accountID int64, exceptSessionID string) (int64, error)
	List(ctx context.Context, accountID int64, currentSessionID string) ([]services.ActiveSession, error)
}

type GRPCServer struct {
	address  string
	engine   AuthEngine
	sessions SessionManager
	logger   logging.Logger

	// captureError reports the cause of an Internal reply.
	captureError func(err error, method string)
}

var _ AuthServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, engine AuthEngine, sessions SessionManager) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		engine:   engine,
		sessions: sessions,

		captureError: observability.CaptureError,
	}
}

// NewServer builds a grpc.Server with the interceptor chain and the auth
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		s.recoverInterceptor,
		s.errorReportingInterceptor,
		s.accessTokenInterceptor,
	))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&AuthServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
		close(stopped)
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	// Serve returns as soon as the listener closes; in-flight calls are
	// done only once GracefulStop returns.
	<-stopped
	return nil
}
