package ipc

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codspeedhq/tracecore/internal/ipc/ipcpb"
)

// Client drives a Control.Session stream from the orchestrator side,
// sending Enable/Disable/Ping and waiting for the matching response before
// the next call is made, so commands can never interleave.
type Client struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	nextID atomic.Uint64
}

// Dial opens a grpc connection to addr and establishes the Session stream.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", addr, err)
	}
	stream, err := conn.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    sessionMethod,
		ServerStreams: true,
		ClientStreams: true,
	}, sessionFullURL)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ipc: open session stream: %w", err)
	}
	return &Client{conn: conn, stream: stream}, nil
}

func (c *Client) call(cmd ipcpb.Command) error {
	id := c.nextID.Add(1)
	req, err := ipcpb.CommandRequest{ID: id, Command: cmd}.ToStruct()
	if err != nil {
		return err
	}
	if err := c.stream.SendMsg(req); err != nil {
		return fmt.Errorf("ipc: send %s: %w", cmd, err)
	}
	var raw structpb.Struct
	if err := c.stream.RecvMsg(&raw); err != nil {
		return fmt.Errorf("ipc: recv response to %s: %w", cmd, err)
	}
	resp, err := ipcpb.ResponseFromStruct(&raw)
	if err != nil {
		return err
	}
	if resp.ID != id {
		return fmt.Errorf("ipc: response id %d does not match request id %d", resp.ID, id)
	}
	if resp.Ack == ipcpb.AckErr {
		return fmt.Errorf("ipc: %s failed: %s", cmd, resp.Detail)
	}
	return nil
}

// Enable turns on event emission for the tracker's enabled flag.
func (c *Client) Enable() error { return c.call(ipcpb.CommandEnable) }

// Disable turns event emission back off.
func (c *Client) Disable() error { return c.call(ipcpb.CommandDisable) }

// Ping round-trips a no-op command, used to confirm the session is alive
// before issuing the first real command.
func (c *Client) Ping() error { return c.call(ipcpb.CommandPing) }

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
