package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-eeg/internal/config"
)

type echoServer struct {
	last *structpb.Struct
}

func (e *echoServer) AnalyzeRecording(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e.last = in
	return structpb.NewStruct(map[string]any{"recording": in.Fields["recording"].GetStringValue(), "phases": []any{}})
}

func (e *echoServer) DescribeRecording(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.NotFound, "no such recording")
}

func startServer(t *testing.T, srv PhaseAnalysisServer) (*Server, *grpc.ClientConn) {
	t.Helper()
	server, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, nil, srv)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return server, conn
}

func TestServerRoundTrip(t *testing.T) {
	echo := &echoServer{}
	server, conn := startServer(t, echo)
	assert.NotEqual(t, "127.0.0.1:0", server.Address())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewPhaseAnalysisClient(conn)
	in, err := structpb.NewStruct(map[string]any{"recording": "chb01/chb01_03.edf", "start_time": 5, "end_time": 7})
	require.NoError(t, err)

	out, err := client.AnalyzeRecording(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "chb01/chb01_03.edf", out.Fields["recording"].GetStringValue())
	require.NotNil(t, echo.last)
	assert.Equal(t, 7.0, echo.last.Fields["end_time"].GetNumberValue())

	_, err = client.DescribeRecording(ctx, in)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServerHealth(t *testing.T) {
	_, conn := startServer(t, &echoServer{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNewServerBadAddress(t *testing.T) {
	_, err := NewServer(config.ServerConfig{Address: "not-an-address"}, nil, &echoServer{})
	assert.Error(t, err)
}

func TestServerRunReturnsAfterCancel(t *testing.T) {
	server, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, nil, &echoServer{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
