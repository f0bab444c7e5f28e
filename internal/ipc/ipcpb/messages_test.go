package ipcpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRequest_StructRoundTrip(t *testing.T) {
	req := CommandRequest{ID: 7, Command: CommandEnable}
	s, err := req.ToStruct()
	require.NoError(t, err)

	got, err := RequestFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestCommandResponse_StructRoundTrip(t *testing.T) {
	resp := CommandResponse{ID: 7, Ack: AckErr, Detail: "tracker not running"}
	s, err := resp.ToStruct()
	require.NoError(t, err)

	got, err := ResponseFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}
