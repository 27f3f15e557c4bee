package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "casecast.v1.ForecastEngine"

// Full method names.
const (
	ForecastMethod        = "/" + ServiceName + "/Forecast"
	SeriesMethod          = "/" + ServiceName + "/Series"
	AutocorrelationMethod = "/" + ServiceName + "/Autocorrelation"
)

// ForecastEngineServer is the server API for the forecast engine. Messages are
// google.protobuf.Struct documents; their fields are described on the conversion helpers.
type ForecastEngineServer interface {
	Forecast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Series(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Autocorrelation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterForecastEngineServer attaches srv to a gRPC registrar.
func RegisterForecastEngineServer(s grpc.ServiceRegistrar, srv ForecastEngineServer) {
	s.RegisterService(&ForecastEngineServiceDesc, srv)
}

// ForecastEngineServiceDesc describes the service for grpc.Server.RegisterService.
var ForecastEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ForecastEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Forecast",
			Handler: unaryHandler(ForecastMethod, func(srv ForecastEngineServer) structMethod {
				return srv.Forecast
			}),
		},
		{
			MethodName: "Series",
			Handler: unaryHandler(SeriesMethod, func(srv ForecastEngineServer) structMethod {
				return srv.Series
			}),
		},
		{
			MethodName: "Autocorrelation",
			Handler: unaryHandler(AutocorrelationMethod, func(srv ForecastEngineServer) structMethod {
				return srv.Autocorrelation
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, pick func(ForecastEngineServer) structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		method := pick(srv.(ForecastEngineServer))
		if interceptor == nil {
			return method(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return method(ctx, req.(*structpb.Struct))
		})
	}
}

// ForecastEngineClient is the client API for the forecast engine.
type ForecastEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewForecastEngineClient wraps an established connection.
func NewForecastEngineClient(cc grpc.ClientConnInterface) *ForecastEngineClient {
	return &ForecastEngineClient{cc: cc}
}

// Forecast calls the Forecast method.
func (c *ForecastEngineClient) Forecast(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ForecastMethod, in, opts...)
}

// Series calls the Series method.
func (c *ForecastEngineClient) Series(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SeriesMethod, in, opts...)
}

// Autocorrelation calls the Autocorrelation method.
func (c *ForecastEngineClient) Autocorrelation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AutocorrelationMethod, in, opts...)
}

func (c *ForecastEngineClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
