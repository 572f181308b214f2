package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-osd/internal/oerr"
)

func TestBootMarksUpAndAdvancesEpoch(t *testing.T) {
	m := NewMap()
	c := NewClient(m, "10.0.0.1:6800")

	require.NoError(t, c.Boot(1, "fsid-1"))
	require.True(t, m.IsUp(1))
	require.True(t, m.Contains(1, "10.0.0.1:6800"))
	require.Equal(t, uint32(1), m.Epoch())
}

func TestMarkMeDownClearsUp(t *testing.T) {
	m := NewMap()
	c := NewClient(m, "10.0.0.1:6800")
	require.NoError(t, c.Boot(1, "fsid-1"))

	require.NoError(t, c.MarkMeDown(1))
	require.False(t, m.IsUp(1))
}

func TestWaitForLatestMapSucceedsAfterBoot(t *testing.T) {
	m := NewMap()
	c := NewClient(m, "addr")
	require.NoError(t, c.Boot(1, "fsid"))

	require.NoError(t, c.WaitForLatestMap(time.Second))
}

func TestWaitForLatestMapTimesOutWithNoActivity(t *testing.T) {
	m := NewMap()
	c := NewClient(m, "addr")

	err := c.WaitForLatestMap(20 * time.Millisecond)
	require.Error(t, err)
	require.True(t, oerr.IsKind(err, oerr.Timeout))
}
