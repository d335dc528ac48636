package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	msgRegistered      = "Registration successful. Please check your email to confirm your account."
	msgLoggedIn        = "Login successful."
	msgEmailConfirmed  = "Email confirmed successfully."
	msgResetRequested  = "If an account with that email exists, a password reset link has been sent."
	msgPasswordReset   = "Password has been reset successfully."
	msgPasswordChanged = "Password changed successfully."
	msgLoggedOut       = "Logged out."
)

// reply turns an engine outcome into a response. Business failures travel
// in the payload with success=false. Validation failures become
// InvalidArgument and internal failures become Internal with a generic
// message.
func (s *GRPCServer) reply(ctx context.Context, msg string, a *models.Account, err error, extra map[string]any) (*structpb.Struct, error) {
	switch {
	case errors.Is(err, common.ErrorInternal):
		recordCause(ctx, err)
		return nil, status.Error(codes.Internal, services.Describe(err))
	case errors.Is(err, common.ErrorValidation):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, mErr := resultMessage(services.NewResult(msg, a, err), extra)
	if mErr != nil {
		recordCause(ctx, mErr)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

// sessionReply issues a session for a logged in account and returns it
// with the result.
func (s *GRPCServer) sessionReply(ctx context.Context, msg string, a *models.Account, err error) (*structpb.Struct, error) {
	if err != nil {
		return s.reply(ctx, msg, nil, err, nil)
	}

	issued, err := s.sessions.Issue(ctx, a, callerOrigin(ctx), callerUserAgent(ctx))
	if err != nil {
		return s.reply(ctx, msg, nil, err, nil)
	}

	return s.reply(ctx, msg, a, nil, map[string]any{
		"access_token": issued.Token,
		"expires_at":   issued.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *GRPCServer) claims(ctx context.Context) (int64, string, error) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, "", status.Error(codes.Unauthenticated, "missing token")
	}
	return c.AccountID, c.SessionID, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	return structpb.NewStruct(map[string]any{"status": "OK"})

}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := services.RegisterInput{
		Email:     field(req, "email"),
		Password:  field(req, "password"),
		FirstName: field(req, "first_name"),
		LastName:  field(req, "last_name"),
		IPAddress: callerOrigin(ctx),
	}
	if err := services.ValidateRegistration(in); err != nil {
		return s.reply(ctx, "", nil, err, nil)
	}

	s.logger.Info(ctx, "Registration request")

	a, err := s.engine.Register(ctx, in)
	return s.reply(ctx, msgRegistered, a, err, nil)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.engine.Login(ctx, services.LoginInput{
		Email:     field(req, "email"),
		Password:  field(req, "password"),
		IPAddress: callerOrigin(ctx),
		UserAgent: callerUserAgent(ctx),
	})
	return s.sessionReply(ctx, msgLoggedIn, a, err)
}

func (s *GRPCServer) ConfirmEmail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if !s.engine.ConfirmEmail(ctx, field(req, "token")) {
		return s.reply(ctx, "", nil, common.ErrInvalidOrExpiredToken, nil)
	}
	return s.reply(ctx, msgEmailConfirmed, nil, nil, nil)
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.engine.RequestPasswordReset(ctx, field(req, "email"))
	return s.reply(ctx, msgResetRequested, nil, nil, nil)
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := services.ResetPasswordInput{
		Token:       field(req, "token"),
		NewPassword: field(req, "new_password"),
		IPAddress:   callerOrigin(ctx),
	}
	if err := services.ValidatePasswordStrength(in.NewPassword); err != nil {
		return s.reply(ctx, "", nil, err, nil)
	}
	return s.reply(ctx, msgPasswordReset, nil, s.engine.ResetPassword(ctx, in), nil)
}

func (s *GRPCServer) ExternalLogin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := services.ExternalLoginInput{
		Provider:            field(req, "provider"),
		ProviderKey:         field(req, "provider_key"),
		ProviderDisplayName: field(req, "provider_display_name"),
		Email:               field(req, "email"),
		FirstName:           field(req, "first_name"),
		LastName:            field(req, "last_name"),
		IPAddress:           callerOrigin(ctx),
		UserAgent:           callerUserAgent(ctx),
	}
	if err := services.ValidateExternalLogin(in); err != nil {
		return s.reply(ctx, "", nil, err, nil)
	}

	a, err := s.engine.ExternalLogin(ctx, in)
	return s.sessionReply(ctx, msgLoggedIn, a, err)
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, sessionID, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	return s.reply(ctx, msgLoggedOut, nil, s.sessions.Revoke(ctx, sessionID), nil)
}

func (s *GRPCServer) LogoutOthers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, sessionID, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.sessions.RevokeAll(ctx, accountID, sessionID)
	return s.reply(ctx, msgLoggedOut, nil, err, map[string]any{"revoked": n})
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, sessionID, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}

	in := services.ChangePasswordInput{
		AccountID:       accountID,
		CurrentPassword: field(req, "current_password"),
		NewPassword:     field(req, "new_password"),
		SessionID:       sessionID,
	}
	if err := services.ValidatePasswordStrength(in.NewPassword); err != nil {
		return s.reply(ctx, "", nil, err, nil)
	}
	return s.reply(ctx, msgPasswordChanged, nil, s.engine.ChangePassword(ctx, in), nil)
}

func (s *GRPCServer) Me(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, _, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}

	a, err := s.engine.Profile(ctx, accountID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, status.Error(codes.NotFound, "account not found")
	}
	return s.reply(ctx, "", a, err, nil)
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, sessionID, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.sessions.List(ctx, accountID, sessionID)
	if err != nil {
		return s.reply(ctx, "", nil, err, nil)
	}
	items := make([]any, 0, len(list))
	for _, ss := range list {
		items = append(items, sessionFields(ss))
	}
	return s.reply(ctx, "", nil, nil, map[string]any{"sessions": items})
}
