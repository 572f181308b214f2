package osd

import (
	"sync"
	"time"

	"github.com/behrlich/go-osd/internal/interfaces"
)

// MockClusterMap is a call-tracking ClusterMap double for tests, continuing
// the teacher's MockBackend pattern (a single struct implementing the
// consumed capability plus plain getters for assertions) generalized from
// Backend to the four capabilities this core consumes.
type MockClusterMap struct {
	mu      sync.RWMutex
	epoch   uint32
	members map[uint32]string
	up      map[uint32]bool
}

// NewMockClusterMap constructs an empty MockClusterMap at the given epoch.
func NewMockClusterMap(epoch uint32) *MockClusterMap {
	return &MockClusterMap{epoch: epoch, members: make(map[uint32]string), up: make(map[uint32]bool)}
}

var _ interfaces.ClusterMap = (*MockClusterMap)(nil)

func (c *MockClusterMap) Epoch() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *MockClusterMap) Contains(osdID uint32, addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.members[osdID] == addr
}

func (c *MockClusterMap) IsUp(osdID uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up[osdID]
}

// SetMember registers osdID at addr with the given up state, for test setup.
func (c *MockClusterMap) SetMember(osdID uint32, addr string, up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[osdID] = addr
	c.up[osdID] = up
}

// SetEpoch overrides the epoch a reply would be stamped with.
func (c *MockClusterMap) SetEpoch(epoch uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = epoch
}

// MockMonitorClient is a call-tracking MonitorClient double.
type MockMonitorClient struct {
	mu sync.Mutex

	BootCalls       int
	MarkDownCalls   int
	AddToCRUSHCalls int
	WaitCalls       int
	FailWait        bool
	LastBootOSD     uint32
	LastBootFSID    string
}

var _ interfaces.MonitorClient = (*MockMonitorClient)(nil)

func (m *MockMonitorClient) Boot(osdID uint32, fsid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BootCalls++
	m.LastBootOSD = osdID
	m.LastBootFSID = fsid
	return nil
}

func (m *MockMonitorClient) MarkMeDown(osdID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkDownCalls++
	return nil
}

func (m *MockMonitorClient) AddToCRUSH(osdID uint32, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddToCRUSHCalls++
	return nil
}

func (m *MockMonitorClient) WaitForLatestMap(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitCalls++
	if m.FailWait {
		return NewError("mock.WaitForLatestMap", Timeout, "simulated timeout")
	}
	return nil
}

// MockMessenger is a call-tracking Messenger double that records every
// allocated and sent message instead of touching a real socket.
type MockMessenger struct {
	mu       sync.Mutex
	Sent     []*interfaces.Message
	Faults   []uint64
	AllocErr error
}

var _ interfaces.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) AllocMessage(dataLen uint32) (*interfaces.Message, error) {
	if m.AllocErr != nil {
		return nil, m.AllocErr
	}
	return &interfaces.Message{Data: make([]byte, dataLen)}, nil
}

func (m *MockMessenger) Send(connID uint64, msg *interfaces.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockMessenger) Fault(connID uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Faults = append(m.Faults, connID)
}

// mockPage is the PageHandle MockPageAllocator hands back: a plain
// heap-allocated byte slice, no mmap involved.
type mockPage struct {
	data  []byte
	order uint
}

func (p *mockPage) Bytes() []byte { return p.data }
func (p *mockPage) Order() uint   { return p.order }

// MockPageAllocator is a PageAllocator double that allocates plain slices
// and can be told to fail, to exercise OutOfMemory propagation in tests.
type MockPageAllocator struct {
	mu          sync.Mutex
	FailAlways  bool
	outstanding int
}

var _ interfaces.PageAllocator = (*MockPageAllocator)(nil)

func (a *MockPageAllocator) Alloc(order uint) (interfaces.PageHandle, error) {
	if a.FailAlways {
		return nil, NewError("mock.Alloc", OutOfMemory, "simulated allocation failure")
	}
	a.mu.Lock()
	a.outstanding++
	a.mu.Unlock()
	return &mockPage{data: make([]byte, 4096<<order), order: order}, nil
}

func (a *MockPageAllocator) Free(h interfaces.PageHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outstanding--
}

// Outstanding reports pages allocated but not yet freed.
func (a *MockPageAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}
