package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mirador.eeg.v1.PhaseAnalysis"

const (
	analyzeMethod  = "/" + ServiceName + "/AnalyzeRecording"
	describeMethod = "/" + ServiceName + "/DescribeRecording"
)

// PhaseAnalysisServer is the server API for the PhaseAnalysis service. Requests
// and responses are google.protobuf.Struct documents.
type PhaseAnalysisServer interface {
	AnalyzeRecording(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DescribeRecording(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPhaseAnalysisServer attaches srv to s.
func RegisterPhaseAnalysisServer(s grpc.ServiceRegistrar, srv PhaseAnalysisServer) {
	s.RegisterService(&PhaseAnalysisServiceDesc, srv)
}

// PhaseAnalysisServiceDesc describes the PhaseAnalysis service for grpc.Server.
var PhaseAnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PhaseAnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AnalyzeRecording",
			Handler:    unaryHandler(analyzeMethod, PhaseAnalysisServer.AnalyzeRecording),
		},
		{
			MethodName: "DescribeRecording",
			Handler:    unaryHandler(describeMethod, PhaseAnalysisServer.DescribeRecording),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/eeg/v1/phase_analysis.proto",
}

type structMethod func(PhaseAnalysisServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PhaseAnalysisServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PhaseAnalysisServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PhaseAnalysisClient is the client API for the PhaseAnalysis service.
type PhaseAnalysisClient struct {
	cc grpc.ClientConnInterface
}

// NewPhaseAnalysisClient wraps cc.
func NewPhaseAnalysisClient(cc grpc.ClientConnInterface) *PhaseAnalysisClient {
	return &PhaseAnalysisClient{cc: cc}
}

// AnalyzeRecording calls the AnalyzeRecording method.
func (c *PhaseAnalysisClient) AnalyzeRecording(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeRecording calls the DescribeRecording method.
func (c *PhaseAnalysisClient) DescribeRecording(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
