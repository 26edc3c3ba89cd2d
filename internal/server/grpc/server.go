// Package grpc exposes SessionService over gRPC.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Sessions is the session API served over gRPC.
type Sessions interface {
	Signup(ctx context.Context, email, name, password string) (*services.SignupResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken string) error
	DeleteAccount(ctx context.Context, accessToken string) error
	CheckOldPassword(ctx context.Context, accessToken, password string) (bool, error)
	ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error
	GetForgotPasswordCode(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, code string) (string, error)
}

// RequestObserver records finished calls.
type RequestObserver interface {
	ObserveRequest(method, code string, d time.Duration)
}

type GRPCServer struct {
	pb.UnimplementedSessionServiceServer
	address  string
	sessions Sessions
	logger   logging.Logger
	observer RequestObserver
	health   *health.Server
}

type Option func(*GRPCServer)

func WithRequestObserver(o RequestObserver) Option {
	return func(s *GRPCServer) { s.observer = o }
}

func NewGRPCServer(a string, l logging.Logger, sessions Sessions, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: sessions,
		health:   health.NewServer(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.requestIDInterceptor,
		s.loggingInterceptor,
		s.metricsInterceptor,
		s.accessTokenInterceptor,
	))

	pb.RegisterSessionServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	served := make(chan struct{})
	defer close(served)

	go func() {
		select {
		case <-ctx.Done():
		case <-served:
			srv.Stop()
			return
		}
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
