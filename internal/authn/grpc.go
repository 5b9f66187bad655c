package authn

import (
	"context"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName        = "phishtrack.authd.v1.Authenticator"
	methodAuthenticate = "/" + serviceName + "/Authenticate"
)

// authServer is the handler type of the authd service. Requests carry
// "username" and "password" string fields; the response is the verdict.
type authServer interface {
	Authenticate(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*authServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Authenticate",
		Handler:    authenticateHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "phishtrack/authd",
}

func authenticateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(authServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAuthenticate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(authServer).Authenticate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type authService struct {
	auth Authenticator
	log  *zap.Logger
}

func (s *authService) Authenticate(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	f := in.GetFields()
	user := f["username"].GetStringValue()
	if user == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username")
	}
	ok, err := s.auth.Authenticate(ctx, user, f["password"].GetStringValue())
	if err != nil {
		s.log.Error("authenticate", zap.String("user", user), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal")
	}
	return wrapperspb.Bool(ok), nil
}

// Register mounts the authd service backed by auth on s.
func Register(s *grpc.Server, auth Authenticator, log *zap.Logger) {
	s.RegisterService(&serviceDesc, &authService{auth: auth, log: log})
}

// Serve listens on a unix socket and serves authd until ctx is done.
func Serve(ctx context.Context, socket string, auth Authenticator, log *zap.Logger) error {
	_ = os.Remove(socket)
	lis, err := net.Listen("unix", socket)
	if err != nil {
		return err
	}
	if err := os.Chmod(socket, 0o600); err != nil {
		_ = lis.Close()
		return err
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
	))
	Register(s, auth, log)

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	log.Info("authd listening", zap.String("socket", socket))
	return s.Serve(lis)
}

// Client calls a remote authd service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection to authd.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Authenticate asks authd for a verdict.
func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{"username": username, "password": password})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodAuthenticate, req, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
