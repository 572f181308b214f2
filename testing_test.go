package osd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockClusterMapTracksMembership(t *testing.T) {
	cm := NewMockClusterMap(0)
	cm.SetMember(1, "10.0.0.1:6800", true)

	require.True(t, cm.Contains(1, "10.0.0.1:6800"))
	require.False(t, cm.Contains(1, "10.0.0.2:6800"))
	require.True(t, cm.IsUp(1))

	cm.SetEpoch(5)
	require.Equal(t, uint32(5), cm.Epoch())
}

func TestMockMonitorClientRecordsCalls(t *testing.T) {
	mc := &MockMonitorClient{}
	require.NoError(t, mc.Boot(3, "fsid-x"))
	require.NoError(t, mc.MarkMeDown(3))
	require.NoError(t, mc.AddToCRUSH(3, 1.0))
	require.NoError(t, mc.WaitForLatestMap(time.Second))

	require.Equal(t, 1, mc.BootCalls)
	require.Equal(t, uint32(3), mc.LastBootOSD)
	require.Equal(t, "fsid-x", mc.LastBootFSID)
	require.Equal(t, 1, mc.MarkDownCalls)
	require.Equal(t, 1, mc.AddToCRUSHCalls)
}

func TestMockMonitorClientCanSimulateTimeout(t *testing.T) {
	mc := &MockMonitorClient{FailWait: true}
	err := mc.WaitForLatestMap(time.Second)
	require.Error(t, err)
	require.True(t, IsKind(err, Timeout))
}

func TestMockMessengerRecordsSendsAndFaults(t *testing.T) {
	m := &MockMessenger{}
	msg, err := m.AllocMessage(16)
	require.NoError(t, err)
	require.Len(t, msg.Data, 16)

	require.NoError(t, m.Send(1, msg))
	m.Fault(1, nil)

	require.Len(t, m.Sent, 1)
	require.Equal(t, []uint64{1}, m.Faults)
}

func TestMockPageAllocatorCanSimulateOOM(t *testing.T) {
	a := &MockPageAllocator{}
	page, err := a.Alloc(2)
	require.NoError(t, err)
	require.Len(t, page.Bytes(), 4096*4)
	require.Equal(t, 1, a.Outstanding())

	a.Free(page)
	require.Equal(t, 0, a.Outstanding())

	a.FailAlways = true
	_, err = a.Alloc(0)
	require.Error(t, err)
	require.True(t, IsKind(err, OutOfMemory))
}
