package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

// Observer receives one observation per call.
type Observer interface {
	ObserveGRPC(method, code string)
}

type Dependencies struct {
	Logger   *slog.Logger
	Tracker  *service.AccessTracker
	Reports  *service.ReportService
	Codes    *service.CodeIssuer
	Observer Observer // optional
}

type Server struct {
	tracker  *service.AccessTracker
	reports  *service.ReportService
	codes    *service.CodeIssuer
	logger   *slog.Logger
	observer Observer
}

var _ AccessServiceServer = (*Server)(nil)

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		tracker:  d.Tracker,
		reports:  d.Reports,
		codes:    d.Codes,
		logger:   d.Logger.With("module", "grpc_server"),
		observer: d.Observer,
	}
}

// NewGRPCServer returns a grpc.Server with the service and interceptors
// registered, ready for Serve.
func (s *Server) NewGRPCServer() *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(s.logger, s.observer)))
	RegisterAccessServiceServer(gs, s)
	return gs
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve accepts on lis until ctx is cancelled. It returns only after every
// in-flight call has completed.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := s.NewGRPCServer()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		s.logger.InfoContext(ctx, "stopping gRPC server")
		gs.GracefulStop()
	}()

	s.logger.InfoContext(ctx, "starting gRPC server", "addr", lis.Addr().String())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		gs.Stop()
		return err
	}
	// Serve returns once the listener closes; in-flight calls finish later.
	<-drained
	return nil
}

func (s *Server) CheckIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	memberID, err := memberIDFrom(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.tracker.CheckIn(ctx, memberID, stringField(in, "qr_code"))
	if err != nil {
		return nil, toStatus(err)
	}
	return scanResult(types.ActionCheckIn, "Check-in successful", sess)
}

func (s *Server) CheckOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	memberID, err := memberIDFrom(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.tracker.CheckOut(ctx, memberID, stringField(in, "qr_code"))
	if err != nil {
		return nil, toStatus(err)
	}
	return scanResult(types.ActionCheckOut, "Check-out successful", sess)
}

func (s *Server) IsInside(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	memberID, err := memberIDFrom(in)
	if err != nil {
		return nil, err
	}
	inside, err := s.tracker.IsInside(ctx, memberID)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(inside), nil
}

func (s *Server) CurrentlyInside(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sessions, err := s.reports.CurrentlyInside(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return sessionList(sessions)
}

func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	memberID, err := memberIDFrom(in)
	if err != nil {
		return nil, err
	}
	sessions, err := s.reports.HistoryFor(ctx, memberID)
	if err != nil {
		return nil, toStatus(err)
	}
	return sessionList(sessions)
}

func (s *Server) Report(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start, err := timeField(in, "start")
	if err != nil {
		return nil, err
	}
	end, err := timeField(in, "end")
	if err != nil {
		return nil, err
	}
	sessions, err := s.reports.ReportBetween(ctx, start, end)
	if err != nil {
		return nil, toStatus(err)
	}
	return sessionList(sessions)
}

func (s *Server) Occupancy(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.reports.OccupancyCount(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(n), nil
}

func (s *Server) GenerateCode(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.String(code), nil
}

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidMemberID),
		errors.Is(err, service.ErrInvalidQRCode),
		errors.Is(err, service.ErrInvalidRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrMemberNotFound), errors.Is(err, service.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyInside), errors.Is(err, service.ErrNoActiveSession):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrStorage):
		return status.Error(codes.Unavailable, "storage temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// memberIDFrom reads member_id as a number or a decimal string.
func memberIDFrom(in *structpb.Struct) (int64, error) {
	v, ok := in.GetFields()["member_id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "member_id is required")
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, status.Error(codes.InvalidArgument, "member_id must be an integer")
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(strings.TrimSpace(k.StringValue), 10, 64)
		if err != nil {
			return 0, status.Error(codes.InvalidArgument, "member_id must be an integer")
		}
		return id, nil
	default:
		return 0, status.Error(codes.InvalidArgument, "member_id must be an integer")
	}
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func timeField(in *structpb.Struct, key string) (time.Time, error) {
	s := strings.TrimSpace(stringField(in, key))
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an RFC3339 timestamp", key))
	}
	return t.UTC(), nil
}

// toValue converts v to a structpb value through its JSON form, so sessions
// look the same over gRPC as over REST.
func toValue(v any) (*structpb.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

func scanResult(action types.Action, msg string, sess types.AccessSession) (*structpb.Struct, error) {
	v, err := toValue(types.ScanResponse{OK: true, Action: action, Message: msg, Session: &sess})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return v.GetStructValue(), nil
}

func sessionList(sessions []types.AccessSession) (*structpb.Struct, error) {
	if sessions == nil {
		sessions = []types.AccessSession{}
	}
	v, err := toValue(types.SessionListResponse{Count: len(sessions), Sessions: sessions})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return v.GetStructValue(), nil
}
