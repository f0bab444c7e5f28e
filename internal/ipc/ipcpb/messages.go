// Package ipcpb defines the wire messages for the memtrack/exectrack
// control plane. Rather than hand-fabricating protoc-generated stubs
// (infeasible without actually running protoc), messages are carried as
// google.golang.org/protobuf's well-known structpb.Struct - a real,
// already-compiled proto.Message this repo's grpc dependency can encode
// with its default codec with no generated code of our own required. This
// keeps both the grpc and protobuf dependencies genuinely wired rather
// than dropped for lack of a code generator.
package ipcpb

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Command identifies one control-plane operation.
type Command int

const (
	CommandEnable Command = iota
	CommandDisable
	CommandPing
)

func (c Command) String() string {
	switch c {
	case CommandEnable:
		return "ENABLE"
	case CommandDisable:
		return "DISABLE"
	case CommandPing:
		return "PING"
	default:
		return "UNKNOWN"
	}
}

func commandFromString(s string) (Command, error) {
	switch s {
	case "ENABLE":
		return CommandEnable, nil
	case "DISABLE":
		return CommandDisable, nil
	case "PING":
		return CommandPing, nil
	default:
		return 0, fmt.Errorf("ipcpb: unknown command %q", s)
	}
}

// Ack identifies a response outcome.
type Ack int

const (
	AckOK Ack = iota
	AckErr
)

func (a Ack) String() string {
	if a == AckErr {
		return "ERR"
	}
	return "ACK"
}

func ackFromString(s string) (Ack, error) {
	switch s {
	case "ACK":
		return AckOK, nil
	case "ERR":
		return AckErr, nil
	default:
		return 0, fmt.Errorf("ipcpb: unknown ack %q", s)
	}
}

// CommandRequest is one control-plane request, correlated to its response
// by ID. Requests are processed strictly serially by the server side: a
// slow Enable completes before the next command is even read.
type CommandRequest struct {
	ID      uint64
	Command Command
}

// CommandResponse answers a CommandRequest with the same ID. Detail carries
// a human-readable error message when Ack is AckErr.
type CommandResponse struct {
	ID     uint64
	Ack    Ack
	Detail string
}

// ToStruct encodes req as the structpb.Struct actually sent over the wire.
func (req CommandRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":      float64(req.ID),
		"command": req.Command.String(),
	})
}

// RequestFromStruct decodes a CommandRequest previously built by ToStruct.
func RequestFromStruct(s *structpb.Struct) (CommandRequest, error) {
	id, ok := s.Fields["id"]
	if !ok {
		return CommandRequest{}, fmt.Errorf("ipcpb: request missing id field")
	}
	cmdField, ok := s.Fields["command"]
	if !ok {
		return CommandRequest{}, fmt.Errorf("ipcpb: request missing command field")
	}
	cmd, err := commandFromString(cmdField.GetStringValue())
	if err != nil {
		return CommandRequest{}, err
	}
	return CommandRequest{ID: uint64(id.GetNumberValue()), Command: cmd}, nil
}

// ToStruct encodes resp as the structpb.Struct actually sent over the wire.
func (resp CommandResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":     float64(resp.ID),
		"ack":    resp.Ack.String(),
		"detail": resp.Detail,
	})
}

// ResponseFromStruct decodes a CommandResponse previously built by ToStruct.
func ResponseFromStruct(s *structpb.Struct) (CommandResponse, error) {
	id, ok := s.Fields["id"]
	if !ok {
		return CommandResponse{}, fmt.Errorf("ipcpb: response missing id field")
	}
	ackField, ok := s.Fields["ack"]
	if !ok {
		return CommandResponse{}, fmt.Errorf("ipcpb: response missing ack field")
	}
	ack, err := ackFromString(ackField.GetStringValue())
	if err != nil {
		return CommandResponse{}, err
	}
	var detail string
	if d, ok := s.Fields["detail"]; ok {
		detail = d.GetStringValue()
	}
	return CommandResponse{ID: uint64(id.GetNumberValue()), Ack: ack, Detail: detail}, nil
}
