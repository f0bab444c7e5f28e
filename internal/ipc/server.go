// Package ipc implements the memtrack/exectrack control plane: a one-shot
// rendezvous handshake followed by a bidirectional gRPC stream carrying
// Enable/Disable/Ping. See ipcpb for why the wire messages are
// structpb.Struct rather than hand-fabricated generated code.
package ipc

import (
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codspeedhq/tracecore/internal/ipc/ipcpb"
)

// Handler is implemented by the tracker a Server routes commands to.
type Handler interface {
	Enable() error
	Disable() error
	Ping() error
}

const (
	serviceName    = "tracecore.ipc.Control"
	sessionMethod  = "Session"
	sessionFullURL = "/" + serviceName + "/" + sessionMethod
)

// Server exposes a Handler over a single bidirectional-streaming RPC. Every
// request on the stream is handled strictly serially, in arrival order:
// the next request is only read once the previous response has been
// written.
type Server struct {
	grpcServer *grpc.Server
	handler    Handler
}

// NewServer constructs a Server wrapping handler. Serve must be called to
// start accepting connections.
func NewServer(handler Handler) *Server {
	s := &Server{handler: handler}
	gs := grpc.NewServer()
	gs.RegisterService(&serviceDesc, s)
	s.grpcServer = gs
	return s
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    sessionMethod,
			Handler:       sessionStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "tracecore/ipc.proto",
}

func sessionStreamHandler(srv any, stream grpc.ServerStream) error {
	s := srv.(*Server)
	for {
		var msg structpb.Struct
		if err := stream.RecvMsg(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		req, err := ipcpb.RequestFromStruct(&msg)
		if err != nil {
			return err
		}
		resp := s.handle(req)
		out, err := resp.ToStruct()
		if err != nil {
			return err
		}
		if err := stream.SendMsg(out); err != nil {
			return err
		}
	}
}

func (s *Server) handle(req ipcpb.CommandRequest) ipcpb.CommandResponse {
	var err error
	switch req.Command {
	case ipcpb.CommandEnable:
		err = s.handler.Enable()
	case ipcpb.CommandDisable:
		err = s.handler.Disable()
	case ipcpb.CommandPing:
		err = s.handler.Ping()
	default:
		err = fmt.Errorf("unknown command %v", req.Command)
	}
	if err != nil {
		return ipcpb.CommandResponse{ID: req.ID, Ack: ipcpb.AckErr, Detail: err.Error()}
	}
	return ipcpb.CommandResponse{ID: req.ID, Ack: ipcpb.AckOK}
}

// Serve blocks, accepting connections on lis until the server is stopped.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server, letting any in-flight command finish.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
