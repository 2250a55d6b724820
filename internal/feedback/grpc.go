package feedback

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/posture.report/internal/monitoring"
)

var grpcLogf = monitoring.Tagged("gRPC")

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "posture.FeedbackService"

// StreamFeedbackMethod is the full method path of the feedback stream.
const StreamFeedbackMethod = "/" + ServiceName + "/StreamFeedback"

// FeedbackServiceServer is the server API of posture.FeedbackService.
// Requests and events are google.protobuf.Struct so no generated code is
// needed; a request may carry a "types" list restricting the event types
// sent.
type FeedbackServiceServer interface {
	StreamFeedback(req *structpb.Struct, stream FeedbackService_StreamFeedbackServer) error
}

// FeedbackService_StreamFeedbackServer is the server side of the stream.
type FeedbackService_StreamFeedbackServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type streamFeedbackServer struct {
	grpc.ServerStream
}

func (x *streamFeedbackServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func streamFeedbackHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FeedbackServiceServer).StreamFeedback(m, &streamFeedbackServer{stream})
}

// FeedbackServiceDesc describes posture.FeedbackService for grpc.Server.
var FeedbackServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedbackServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFeedback",
			Handler:       streamFeedbackHandler,
			ServerStreams: true,
		},
	},
	Metadata: "posture/feedback.proto",
}

// RegisterFeedbackServiceServer registers srv on s.
func RegisterFeedbackServiceServer(s grpc.ServiceRegistrar, srv FeedbackServiceServer) {
	s.RegisterService(&FeedbackServiceDesc, srv)
}

// EventToStruct converts ev to its protobuf Struct form. The field names
// match the websocket JSON.
func EventToStruct(ev Event) (*structpb.Struct, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("convert event: %w", err)
	}
	return s, nil
}

// GRPCService streams hub events to gRPC clients.
type GRPCService struct {
	hub *Hub
}

var _ FeedbackServiceServer = (*GRPCService)(nil)

// NewGRPCService returns a service backed by hub.
func NewGRPCService(hub *Hub) *GRPCService {
	return &GRPCService{hub: hub}
}

// StreamFeedback implements FeedbackServiceServer.
func (s *GRPCService) StreamFeedback(req *structpb.Struct, stream FeedbackService_StreamFeedbackServer) error {
	want := requestedTypes(req)
	sub, err := s.hub.Subscribe("grpc-" + uuid.NewString())
	switch err {
	case nil:
	case ErrTooManyClients:
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
	defer s.hub.Unsubscribe(sub)
	grpcLogf("StreamFeedback started: client=%s types=%v", sub.ID, want)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return status.Error(codes.Unavailable, "feedback hub stopped")
		case ev := <-sub.C:
			if len(want) > 0 && !want[ev.Type] {
				continue
			}
			msg, err := EventToStruct(ev)
			if err != nil {
				grpcLogf("skipping event: %v", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				grpcLogf("send error: %v", err)
				return err
			}
		}
	}
}

func requestedTypes(req *structpb.Struct) map[string]bool {
	list := req.GetFields()["types"].GetListValue()
	if list == nil {
		return nil
	}
	want := make(map[string]bool)
	for _, v := range list.GetValues() {
		if t := v.GetStringValue(); t != "" {
			want[t] = true
		}
	}
	return want
}

// GRPCServer owns a listening grpc.Server with the feedback service.
type GRPCServer struct {
	addr     string
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewGRPCServer creates a server for svc that will listen on addr.
func NewGRPCServer(addr string, svc FeedbackServiceServer) *GRPCServer {
	s := grpc.NewServer()
	RegisterFeedbackServiceServer(s, svc)
	return &GRPCServer{addr: addr, server: s}
}

// Start binds the listener and serves in the background.
func (g *GRPCServer) Start() error {
	if g.running.Load() {
		return fmt.Errorf("grpc server already running")
	}
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	g.listener = lis
	g.running.Store(true)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		grpcLogf("listening on %s", lis.Addr())
		if err := g.server.Serve(lis); err != nil && g.running.Load() {
			grpcLogf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (g *GRPCServer) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Stop gracefully stops the server. It waits for open streams, which end
// when their context is cancelled or the hub stops, so stop the hub first.
func (g *GRPCServer) Stop() {
	if !g.running.Swap(false) {
		return
	}
	g.server.GracefulStop()
	g.wg.Wait()
	grpcLogf("server stopped")
}
