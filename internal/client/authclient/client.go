// Package authclient is the gRPC client for gophauth. It keeps the current
// session tokens and transparently refreshes an expired access token once
// per call.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// Session is what the client remembers between calls.
type Session struct {
	UserID       int64  `json:"user_id"`
	Name         string `json:"name,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Client struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.SessionServiceClient

	mu      sync.Mutex
	session Session
}

// New connects to endpointURL. Extra dial options are appended to the
// defaults (insecure transport and the token interceptor).
func New(endpointURL string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewSessionServiceClient(conn)
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) update(fn func(s *Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.session)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func isExpiredAccessToken(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.AccessTokenExpiredMessage
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	s := c.Session()
	err := invoker(withAccessToken(ctx, s.AccessToken), method, req, reply, cc, opts...)

	if err == nil || method == pb.MethodRefreshAccessToken || !isExpiredAccessToken(err) {
		return err
	}
	if s.RefreshToken == "" {
		return err
	}

	if rerr := c.refresh(ctx, s); rerr != nil {
		return rerr
	}

	// token refreshed, retry once
	return invoker(withAccessToken(ctx, c.Session().AccessToken), method, req, reply, cc, opts...)
}

func (c *Client) refresh(ctx context.Context, s Session) error {
	resp, err := c.client.RefreshAccessToken(ctx,
		pb.Strings(pb.FieldAccessToken, s.AccessToken, pb.FieldRefreshToken, s.RefreshToken))
	if err != nil {
		return err
	}

	token := pb.GetString(resp, pb.FieldAccessToken)
	c.update(func(s *Session) { s.AccessToken = token })
	return nil
}

func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrForbidden, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrConflict, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (c *Client) requireSession() error {
	if c.Session().AccessToken == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func sessionFrom(resp *structpb.Struct) (Session, error) {
	id, err := pb.GetID(resp)
	if err != nil {
		return Session{}, fmt.Errorf("bad user id in response: %w", err)
	}
	return Session{
		UserID:       id,
		Name:         pb.GetString(resp, pb.FieldName),
		AccessToken:  pb.GetString(resp, pb.FieldAccessToken),
		RefreshToken: pb.GetString(resp, pb.FieldRefreshToken),
	}, nil
}

func (c *Client) Signup(ctx context.Context, email, name, password string) (Session, error) {

	req := pb.Strings(pb.FieldEmail, email, pb.FieldName, name, pb.FieldPassword, password)

	resp, err := c.client.Signup(ctx, req)
	if err != nil {
		return Session{}, c.mapError(err)
	}

	s, err := sessionFrom(resp)
	if err != nil {
		return Session{}, err
	}
	s.Name = name
	c.SetSession(s)
	return s, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {

	req := pb.Strings(pb.FieldEmail, email, pb.FieldPassword, password)

	resp, err := c.client.Login(ctx, req)
	if err != nil {
		return Session{}, c.mapError(err)
	}

	s, err := sessionFrom(resp)
	if err != nil {
		return Session{}, err
	}
	c.SetSession(s)
	return s, nil
}

// Refresh exchanges the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	s := c.Session()
	if s.RefreshToken == "" {
		return ErrNotLoggedIn
	}
	return c.mapError(c.refresh(ctx, s))
}

// Logout ends every session of the user and forgets the local one.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if _, err := c.client.Logout(ctx, pb.Empty()); err != nil {
		return c.mapError(err)
	}
	c.SetSession(Session{})
	return nil
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if _, err := c.client.DeleteAccount(ctx, pb.Empty()); err != nil {
		return c.mapError(err)
	}
	c.SetSession(Session{})
	return nil
}

func (c *Client) CheckPassword(ctx context.Context, password string) (bool, error) {
	if err := c.requireSession(); err != nil {
		return false, err
	}
	resp, err := c.client.CheckOldPassword(ctx, pb.Strings(pb.FieldPassword, password))
	if err != nil {
		return false, c.mapError(err)
	}
	return pb.GetBool(resp, pb.FieldOK), nil
}

// ChangePassword changes the password. The server drops every refresh token
// of the user, so the local one is forgotten too.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	req := pb.Strings(pb.FieldOldPassword, oldPassword, pb.FieldNewPassword, newPassword)
	if _, err := c.client.ChangePassword(ctx, req); err != nil {
		return c.mapError(err)
	}
	c.update(func(s *Session) { s.RefreshToken = "" })
	return nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	resp, err := c.client.GetForgotPasswordCode(ctx, pb.Strings(pb.FieldEmail, email))
	if err != nil {
		return "", c.mapError(err)
	}
	return pb.GetString(resp, pb.FieldCode), nil
}

// ResetPassword returns the new password generated by the server.
func (c *Client) ResetPassword(ctx context.Context, code string) (string, error) {
	resp, err := c.client.ResetPassword(ctx, pb.Strings(pb.FieldCode, code))
	if err != nil {
		return "", c.mapError(err)
	}
	return pb.GetString(resp, pb.FieldPassword), nil
}

func (c *Client) Ping(ctx context.Context) error {

	resp, err := c.client.Ping(ctx, pb.Empty())
	if err != nil {
		return c.mapError(err)
	}

	if pb.GetString(resp, pb.FieldStatus) != "OK" {
		return ErrUnavailable
	}

	return nil
}
