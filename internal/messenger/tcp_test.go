package messenger

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/session"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	msg := &interfaces.Message{TID: 99, MsgType: 42, Data: []byte("front"), DataSegment: []byte("payload")}

	require.NoError(t, writeFrame(&buf, msg))

	decoded, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, msg.TID, decoded.TID)
	require.Equal(t, msg.MsgType, decoded.MsgType)
	require.Equal(t, msg.Data, decoded.Data)
	require.Equal(t, msg.DataSegment, decoded.DataSegment)
}

func TestWriteFrameThenReadFrameRoundTripsWithEmptyDataSegment(t *testing.T) {
	var buf bytes.Buffer
	msg := &interfaces.Message{TID: 1, MsgType: 7, Data: []byte("front-only")}

	require.NoError(t, writeFrame(&buf, msg))

	decoded, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, msg.Data, decoded.Data)
	require.Empty(t, decoded.DataSegment)
}

type recordingHooks struct {
	dispatched []*interfaces.Message
	faulted    bool
}

func (h *recordingHooks) AcceptConnection(connID uint64) *session.Connection {
	return &session.Connection{ID: connID}
}
func (h *recordingHooks) Dispatch(connID uint64, msg *interfaces.Message) {
	h.dispatched = append(h.dispatched, msg)
}
func (h *recordingHooks) Fault(connID uint64, err error) { h.faulted = true }

func TestServeDispatchesOneFrameThenHandlesClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	hooks := &recordingHooks{}
	tcp := NewTCP(nil)

	done := make(chan struct{})
	go func() {
		tcp.serve(1, serverConn, hooks)
		close(done)
	}()

	msg := &interfaces.Message{TID: 1, MsgType: 42, Data: []byte("hi")}
	require.NoError(t, writeFrame(clientConn, msg))
	clientConn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after client close")
	}

	require.Len(t, hooks.dispatched, 1)
	require.Equal(t, []byte("hi"), hooks.dispatched[0].Data)
}
