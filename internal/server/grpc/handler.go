package grpc

import (
	"context"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	result, err := s.sessions.Signup(ctx,
		pb.GetString(req, pb.FieldEmail), pb.GetString(req, pb.FieldName), pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.toStatus(ctx, "signup", err)
	}

	s.logger.Info(ctx, "Registered", "user_id", result.ID)
	return pb.Strings(
		pb.FieldID, pb.FormatID(result.ID),
		pb.FieldAccessToken, result.AccessToken,
		pb.FieldRefreshToken, result.RefreshToken,
	), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	result, err := s.sessions.Login(ctx, pb.GetString(req, pb.FieldEmail), pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}

	return pb.Strings(
		pb.FieldID, pb.FormatID(result.ID),
		pb.FieldName, result.Name,
		pb.FieldAccessToken, result.AccessToken,
		pb.FieldRefreshToken, result.RefreshToken,
	), nil
}

// RefreshAccessToken takes the possibly expired access token from the request
// body, not from metadata.
func (s *GRPCServer) RefreshAccessToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	token, err := s.sessions.RefreshAccessToken(ctx,
		pb.GetString(req, pb.FieldAccessToken), pb.GetString(req, pb.FieldRefreshToken))
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}

	return pb.Strings(pb.FieldAccessToken, token), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	if err := s.sessions.Logout(ctx, accessTokenFromContext(ctx)); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}

	return pb.Empty(), nil
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	if err := s.sessions.DeleteAccount(ctx, accessTokenFromContext(ctx)); err != nil {
		return nil, s.toStatus(ctx, "delete_account", err)
	}

	return pb.Empty(), nil
}

func (s *GRPCServer) CheckOldPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	ok, err := s.sessions.CheckOldPassword(ctx, accessTokenFromContext(ctx), pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.toStatus(ctx, "check_password", err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.FieldOK: structpb.NewBoolValue(ok),
	}}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	err := s.sessions.ChangePassword(ctx, accessTokenFromContext(ctx),
		pb.GetString(req, pb.FieldOldPassword), pb.GetString(req, pb.FieldNewPassword))
	if err != nil {
		return nil, s.toStatus(ctx, "change_password", err)
	}

	return pb.Empty(), nil
}

func (s *GRPCServer) GetForgotPasswordCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	code, err := s.sessions.GetForgotPasswordCode(ctx, pb.GetString(req, pb.FieldEmail))
	if err != nil {
		return nil, s.toStatus(ctx, "forgot_password", err)
	}

	return pb.Strings(pb.FieldCode, code), nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	password, err := s.sessions.ResetPassword(ctx, pb.GetString(req, pb.FieldCode))
	if err != nil {
		return nil, s.toStatus(ctx, "reset_password", err)
	}

	return pb.Strings(pb.FieldPassword, password), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	return pb.Strings(pb.FieldStatus, "OK"), nil

}
