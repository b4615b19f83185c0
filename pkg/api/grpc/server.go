// Package grpcapi implements the numberhub.v1.Calculator gRPC service.
// Requests and responses are google.protobuf.Struct messages carrying the
// same fields as the REST API, so any gRPC client can call the service
// without generated stubs.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/numberhub/pkg/expr"
	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/textfield"
	"github.com/lemonberrylabs/numberhub/pkg/types"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "numberhub.v1.Calculator"

// errorDomain tags ErrorInfo details attached to failed calls.
const errorDomain = "numberhub"

// CalculatorServer is the server API of numberhub.v1.Calculator.
type CalculatorServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DecomposeTime(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Convert(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler("Evaluate", CalculatorServer.Evaluate)},
		{MethodName: "DeleteRange", Handler: unaryHandler("DeleteRange", CalculatorServer.DeleteRange)},
		{MethodName: "DecomposeTime", Handler: unaryHandler("DecomposeTime", CalculatorServer.DecomposeTime)},
		{MethodName: "Convert", Handler: unaryHandler("Convert", CalculatorServer.Convert)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "numberhub/v1/calculator.proto",
}

type unaryMethod func(CalculatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalculatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CalculatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterCalculatorServer registers srv on s.
func RegisterCalculatorServer(s grpc.ServiceRegistrar, srv CalculatorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server implements the Calculator service and the standard health service.
type Server struct {
	svc    *units.Service
	logger *slog.Logger
	grpc   *grpc.Server
	health *health.Server
}

var _ CalculatorServer = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new gRPC server over svc.
func New(svc *units.Service, opts ...Option) *Server {
	srv := &Server{svc: svc, logger: slog.Default()}
	for _, o := range opts {
		o(srv)
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.logCalls))
	RegisterCalculatorServer(gs, srv)

	srv.health = health.NewServer()
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, srv.health)

	srv.grpc = gs
	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on lis.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop marks the service as not serving and stops the server.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Debug("grpc call failed", "method", info.FullMethod, "code", status.Code(err), "error", err)
	}
	return resp, err
}

// --- Calculator Service ---

// Evaluate parses and evaluates the "expression" field. An evaluation
// failure is returned as a status carrying the error kind.
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	precision, err := s.precision(req)
	if err != nil {
		return nil, err
	}
	mode := s.svc.AngleMode()
	if m := stringField(req, "angleMode"); m != "" {
		if mode, err = stdlib.ParseAngleMode(m); err != nil {
			return nil, toStatus(err)
		}
	}

	text := stringField(req, "expression")
	res := expr.Evaluate(text, mode, precision)
	if !res.OK() {
		return nil, toStatus(res.Err)
	}
	out := map[string]interface{}{
		"value":     types.PlainString(res.Value),
		"display":   res.String(),
		"precision": precision,
	}
	if parsed, err := expr.Parse(text); err == nil {
		out["expression"] = parsed.String()
	}
	return structpb.NewStruct(out)
}

// DeleteRange reports which characters of "text" a delete over the
// "start".."end" selection removes, along with the edited text and caret.
func (s *Server) DeleteRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start, err := intField(req, "start")
	if err != nil {
		return nil, err
	}
	end, err := intField(req, "end")
	if err != nil {
		return nil, err
	}
	if start < 0 || end < 0 {
		return nil, status.Error(codes.InvalidArgument, "start and end must not be negative")
	}

	text := stringField(req, "text")
	sel := textfield.Selection{Start: start, End: end}
	r := textfield.CalculateDeleteRange(text, sel)
	after, caret := textfield.Delete(text, sel)
	return structpb.NewStruct(map[string]interface{}{
		"start": r.Start,
		"end":   r.End,
		"text":  after,
		"caret": caret,
	})
}

// DecomposeTime breaks a time quantity down into days through attoseconds.
func (s *Server) DecomposeTime(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.svc.DecomposeTime(stringField(req, "unit"), stringField(req, "input"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{
		"display":    b.String(),
		"components": b,
	})
}

// Convert converts "input" between two units. Without a "to" field it
// converts into every unit of the source group.
func (s *Server) Convert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from := stringField(req, "from")
	if from == "" {
		return nil, status.Error(codes.InvalidArgument, "from is required")
	}
	precision, err := s.precision(req)
	if err != nil {
		return nil, err
	}

	to := stringField(req, "to")
	if to == "" {
		items, err := s.svc.ConvertAll(ctx, from, stringField(req, "input"), precision)
		if err != nil {
			return nil, toStatus(err)
		}
		return toStruct(map[string]interface{}{"from": from, "results": items})
	}

	conv := s.svc.Convert(ctx, units.ConvertRequest{
		From:       from,
		To:         to,
		Input:      stringField(req, "input"),
		Inches:     stringField(req, "inches"),
		Precision:  precision,
		FormatTime: boolField(req, "formatTime"),
	})
	if !conv.OK() {
		return nil, toStatus(conv.Err)
	}
	return toStruct(conv)
}

// --- Helpers ---

func (s *Server) precision(req *structpb.Struct) (int, error) {
	if _, ok := req.GetFields()["precision"]; !ok {
		return s.svc.Precision(), nil
	}
	p, err := intField(req, "precision")
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 1000 {
		return 0, status.Errorf(codes.InvalidArgument, "precision must be between 0 and 1000, got %d", p)
	}
	return p, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

// intField reads a whole number. Missing fields are zero.
func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a 32-bit integer", name)
	}
	return int(f), nil
}

// toStruct converts any JSON-marshalable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// Code maps an error to its gRPC status code.
func Code(err error) codes.Code {
	var ce *types.CalcError
	if !errors.As(err, &ce) {
		return codes.Internal
	}
	switch ce.Kind {
	case types.KindMalformed, types.KindDivideByZero, types.KindOverflow:
		return codes.InvalidArgument
	case types.KindConversion, types.KindCurrency:
		return codes.FailedPrecondition
	case types.KindNetworkUnavailable:
		return codes.Unavailable
	case types.KindUnknownUnit:
		return codes.NotFound
	}
	return codes.Internal
}

// toStatus converts err into a gRPC status. Typed failures carry their
// kind as the ErrorInfo reason.
func toStatus(err error) error {
	st := status.New(Code(err), err.Error())
	var ce *types.CalcError
	if !errors.As(err, &ce) {
		return st.Err()
	}
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(ce.Kind),
		Domain: errorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// Kind extracts the calculator error kind from a status returned by the
// service, or "" if it carries none.
func Kind(err error) types.ErrorKind {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return types.ErrorKind(info.GetReason())
		}
	}
	return ""
}
