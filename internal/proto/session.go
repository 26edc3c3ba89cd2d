// Package proto describes the gophauth.v1.SessionService gRPC contract.
//
// Requests and responses are google.protobuf.Struct messages whose field
// names are listed below, so the service needs no generated code. The
// schema is documented in session.proto.
package proto

import (
	"context"
	_ "embed"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gophauth.v1.SessionService"

// Schema is the text of session.proto.
//
//go:embed session.proto
var Schema string

// Full method names.
const (
	MethodSignup                = "/" + ServiceName + "/Signup"
	MethodLogin                 = "/" + ServiceName + "/Login"
	MethodRefreshAccessToken    = "/" + ServiceName + "/RefreshAccessToken"
	MethodLogout                = "/" + ServiceName + "/Logout"
	MethodDeleteAccount         = "/" + ServiceName + "/DeleteAccount"
	MethodCheckOldPassword      = "/" + ServiceName + "/CheckOldPassword"
	MethodChangePassword        = "/" + ServiceName + "/ChangePassword"
	MethodGetForgotPasswordCode = "/" + ServiceName + "/GetForgotPasswordCode"
	MethodResetPassword         = "/" + ServiceName + "/ResetPassword"
	MethodPing                  = "/" + ServiceName + "/Ping"
)

// Message field names.
const (
	FieldID           = "id"
	FieldEmail        = "email"
	FieldName         = "name"
	FieldPassword     = "password"
	FieldOldPassword  = "old_password"
	FieldNewPassword  = "new_password"
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldCode         = "code"
	FieldOK           = "ok"
	FieldStatus       = "status"
)

// SessionServiceServer is implemented by the server.
type SessionServiceServer interface {
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshAccessToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckOldPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetForgotPasswordCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedSessionServiceServer can be embedded to satisfy
// SessionServiceServer; every method returns codes.Unimplemented.
type UnimplementedSessionServiceServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedSessionServiceServer) Signup(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("Signup")
}
func (UnimplementedSessionServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedSessionServiceServer) RefreshAccessToken(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("RefreshAccessToken")
}
func (UnimplementedSessionServiceServer) Logout(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("Logout")
}
func (UnimplementedSessionServiceServer) DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("DeleteAccount")
}
func (UnimplementedSessionServiceServer) CheckOldPassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("CheckOldPassword")
}
func (UnimplementedSessionServiceServer) ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ChangePassword")
}
func (UnimplementedSessionServiceServer) GetForgotPasswordCode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetForgotPasswordCode")
}
func (UnimplementedSessionServiceServer) ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ResetPassword")
}
func (UnimplementedSessionServiceServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("Ping")
}

type serverCall func(SessionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary builds the method handler the way protoc-gen-go-grpc does.
func unary(name, fullMethod string, call serverCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SessionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SessionService_ServiceDesc is the grpc.ServiceDesc for SessionService.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Signup", MethodSignup, SessionServiceServer.Signup),
		unary("Login", MethodLogin, SessionServiceServer.Login),
		unary("RefreshAccessToken", MethodRefreshAccessToken, SessionServiceServer.RefreshAccessToken),
		unary("Logout", MethodLogout, SessionServiceServer.Logout),
		unary("DeleteAccount", MethodDeleteAccount, SessionServiceServer.DeleteAccount),
		unary("CheckOldPassword", MethodCheckOldPassword, SessionServiceServer.CheckOldPassword),
		unary("ChangePassword", MethodChangePassword, SessionServiceServer.ChangePassword),
		unary("GetForgotPasswordCode", MethodGetForgotPasswordCode, SessionServiceServer.GetForgotPasswordCode),
		unary("ResetPassword", MethodResetPassword, SessionServiceServer.ResetPassword),
		unary("Ping", MethodPing, SessionServiceServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/session.proto",
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient interface {
	Signup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RefreshAccessToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckOldPassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ChangePassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetForgotPasswordCode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ResetPassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type sessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc: cc}
}

func (c *sessionServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionServiceClient) Signup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSignup, in, opts)
}
func (c *sessionServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts)
}
func (c *sessionServiceClient) RefreshAccessToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefreshAccessToken, in, opts)
}
func (c *sessionServiceClient) Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogout, in, opts)
}
func (c *sessionServiceClient) DeleteAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeleteAccount, in, opts)
}
func (c *sessionServiceClient) CheckOldPassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckOldPassword, in, opts)
}
func (c *sessionServiceClient) ChangePassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodChangePassword, in, opts)
}
func (c *sessionServiceClient) GetForgotPasswordCode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetForgotPasswordCode, in, opts)
}
func (c *sessionServiceClient) ResetPassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResetPassword, in, opts)
}
func (c *sessionServiceClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts)
}

// --- message helpers ---

// Strings builds a message whose values are all strings. It never fails.
func Strings(kv ...string) *structpb.Struct {
	m := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Fields[kv[i]] = structpb.NewStringValue(kv[i+1])
	}
	return m
}

// Empty returns a message with no fields.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

// GetString returns the string field key, or "" when absent or not a string.
func GetString(m *structpb.Struct, key string) string {
	if m == nil {
		return ""
	}
	return m.GetFields()[key].GetStringValue()
}

// GetBool returns the bool field key, or false.
func GetBool(m *structpb.Struct, key string) bool {
	if m == nil {
		return false
	}
	return m.GetFields()[key].GetBoolValue()
}

// FormatID encodes a user id. Ids travel as decimal strings because Struct
// numbers are doubles.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// GetID decodes an id written by FormatID.
func GetID(m *structpb.Struct) (int64, error) {
	return strconv.ParseInt(GetString(m, FieldID), 10, 64)
}
