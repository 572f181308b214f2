// Package monitor provides a reference MonitorClient/ClusterMap pair (§6):
// a minimal async-command-then-poll client grounded on the teacher's
// internal/ctrl.Controller (submit, then the caller polls kernel state) and
// backend.go's waitLive helper (bounded 300ms-interval poll with a deadline).
// A real deployment talks to the monitor quorum over the wire; this client
// is the in-memory stand-in cmd/osd-mem wires by default.
package monitor

import (
	"sync"
	"time"

	"github.com/behrlich/go-osd/internal/constants"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/oerr"
)

// Map is a minimal in-memory ClusterMap: an epoch counter plus the set of
// OSDs currently marked up.
type Map struct {
	mu     sync.RWMutex
	epoch  uint32
	up     map[uint32]bool
	member map[uint32]string
}

// NewMap constructs an empty cluster map at epoch 0.
func NewMap() *Map {
	return &Map{up: make(map[uint32]bool), member: make(map[uint32]string)}
}

var _ interfaces.ClusterMap = (*Map)(nil)

func (m *Map) Epoch() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

func (m *Map) Contains(osdID uint32, addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	have, ok := m.member[osdID]
	return ok && have == addr
}

func (m *Map) IsUp(osdID uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.up[osdID]
}

func (m *Map) markUp(osdID uint32, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.up[osdID] = true
	m.member[osdID] = addr
	m.epoch++
}

func (m *Map) markDown(osdID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.up, osdID)
	m.epoch++
}

// Client is a reference MonitorClient (§6): Boot and MarkMeDown submit the
// command and update the shared Map immediately (there is no real quorum
// round-trip to wait on in-process), while WaitForLatestMap polls the map
// the same way waitLive polls for a block device node to appear, bounded by
// MapPollTimeout at MapPollInterval increments.
type Client struct {
	addr string
	cmap *Map
}

// NewClient builds a Client that commands the given Map, as if it were the
// quorum, under the local address addr.
func NewClient(cmap *Map, addr string) *Client {
	return &Client{addr: addr, cmap: cmap}
}

var _ interfaces.MonitorClient = (*Client)(nil)

func (c *Client) Boot(osdID uint32, fsid string) error {
	c.cmap.markUp(osdID, c.addr)
	return nil
}

func (c *Client) MarkMeDown(osdID uint32) error {
	c.cmap.markDown(osdID)
	return nil
}

func (c *Client) AddToCRUSH(osdID uint32, weight float64) error {
	// The reference map has no weighted placement tree; membership alone is
	// enough for this in-memory implementation to consider the OSD placed.
	return nil
}

// WaitForLatestMap polls the map at MapPollInterval, succeeding once the
// epoch has advanced past zero, and fails with Timeout after
// MapPollTimeout — the same bounded-poll shape as the teacher's waitLive,
// generalized from "does the block device node exist" to "has the cluster
// map observed our state change".
func (c *Client) WaitForLatestMap(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = constants.MapPollTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if c.cmap.Epoch() > 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return oerr.New("monitor.WaitForLatestMap", oerr.Timeout, "cluster map did not advance in time")
		}
		time.Sleep(constants.MapPollInterval)
	}
}
