// Package pagealloc provides a default PageAllocator implementation backed
// by anonymous mmap regions, continuing the teacher's mmap-based buffer
// technique (queue runner's per-tag buffer mapping) but retargeted from
// kernel ring buffers to block-store pages.
package pagealloc

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-osd/internal/interfaces"
)

// PageSize is the host page size assumed by this allocator. BlockSize must
// be a multiple of it (§5).
const PageSize = 4096

type page struct {
	data  []byte
	order uint
}

func (p *page) Bytes() []byte { return p.data }
func (p *page) Order() uint   { return p.order }

// Mmap is a PageAllocator that mmaps anonymous, zero-filled memory for each
// compound-page request, one mapping per allocation. It is the default
// allocator wired into cmd/osd-mem; tests typically use the lighter Pooled
// allocator instead.
type Mmap struct {
	mu        sync.Mutex
	allocated int
}

var _ interfaces.PageAllocator = (*Mmap)(nil)

// Alloc maps 1<<order pages of zeroed memory.
func (a *Mmap) Alloc(order uint) (interfaces.PageHandle, error) {
	size := PageSize << order
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("pagealloc: mmap order %d: %w", order, err)
	}
	a.mu.Lock()
	a.allocated++
	a.mu.Unlock()
	return &page{data: data, order: order}, nil
}

// Free unmaps the page's backing memory. Freeing a page not obtained from
// this allocator, or freeing it twice, is caller error.
func (a *Mmap) Free(h interfaces.PageHandle) {
	p, ok := h.(*page)
	if !ok || p.data == nil {
		return
	}
	_ = unix.Munmap(p.data)
	p.data = nil
	a.mu.Lock()
	a.allocated--
	a.mu.Unlock()
}

// Outstanding returns the number of pages currently allocated and not yet
// freed, for diagnostics and tests.
func (a *Mmap) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Pooled is a PageAllocator backed by size-bucketed sync.Pool instances,
// directly continuing the teacher's internal/queue/pool.go bucketing
// scheme (power-of-two buffer sizes to bound allocator churn on the I/O hot
// path), retargeted to page orders instead of raw byte-slice sizes.
type Pooled struct {
	pools sync.Map // order(uint) -> *sync.Pool
}

var _ interfaces.PageAllocator = (*Pooled)(nil)

func (a *Pooled) poolFor(order uint) *sync.Pool {
	if p, ok := a.pools.Load(order); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{New: func() any {
		return &page{data: make([]byte, PageSize<<order), order: order}
	}}
	actual, _ := a.pools.LoadOrStore(order, p)
	return actual.(*sync.Pool)
}

// Alloc returns a zeroed page of the requested order from the pool.
func (a *Pooled) Alloc(order uint) (interfaces.PageHandle, error) {
	p := a.poolFor(order).Get().(*page)
	for i := range p.data {
		p.data[i] = 0
	}
	return p, nil
}

// Free returns the page to its size-bucketed pool.
func (a *Pooled) Free(h interfaces.PageHandle) {
	p, ok := h.(*page)
	if !ok {
		return
	}
	a.poolFor(p.order).Put(p)
}
