package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages.
const ServiceName = "credkeeper.v1.AuthService"

const (
	MethodPing                 = "Ping"
	MethodRegister             = "Register"
	MethodLogin                = "Login"
	MethodConfirmEmail         = "ConfirmEmail"
	MethodRequestPasswordReset = "RequestPasswordReset"
	MethodResetPassword        = "ResetPassword"
	MethodExternalLogin        = "ExternalLogin"
	MethodLogout               = "Logout"
	MethodLogoutOthers         = "LogoutOthers"
	MethodChangePassword       = "ChangePassword"
	MethodMe                   = "Me"
	MethodListSessions         = "ListSessions"
)

// FullMethod returns "/credkeeper.v1.AuthService/<name>".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// AuthServiceServer is implemented by GRPCServer.
type AuthServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmEmail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestPasswordReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExternalLogin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutOthers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthServiceDesc describes the service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(MethodPing, AuthServiceServer.Ping),
		methodDesc(MethodRegister, AuthServiceServer.Register),
		methodDesc(MethodLogin, AuthServiceServer.Login),
		methodDesc(MethodConfirmEmail, AuthServiceServer.ConfirmEmail),
		methodDesc(MethodRequestPasswordReset, AuthServiceServer.RequestPasswordReset),
		methodDesc(MethodResetPassword, AuthServiceServer.ResetPassword),
		methodDesc(MethodExternalLogin, AuthServiceServer.ExternalLogin),
		methodDesc(MethodLogout, AuthServiceServer.Logout),
		methodDesc(MethodLogoutOthers, AuthServiceServer.LogoutOthers),
		methodDesc(MethodChangePassword, AuthServiceServer.ChangePassword),
		methodDesc(MethodMe, AuthServiceServer.Me),
		methodDesc(MethodListSessions, AuthServiceServer.ListSessions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credkeeper/v1/auth.proto",
}

// AuthServiceClient calls AuthService methods by name.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
