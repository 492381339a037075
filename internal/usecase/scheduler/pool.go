package scheduler

import (
	"fmt"
	"slices"
	"sync"

	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
)

// PortPool hands out exclusive ports in [base, base+limit). Ports are
// reused in the order they were returned.
type PortPool struct {
	mu        sync.Mutex
	base      int
	limit     int
	available []int
	held      map[int]struct{}
}

// PoolStats is a point-in-time view of the pool
type PoolStats struct {
	Limit     int   `json:"limit"`
	Available int   `json:"available"`
	Held      int   `json:"held"`
	HeldPorts []int `json:"held_ports"`
}

// NewPortPool creates a pool of limit ports starting at base
func NewPortPool(base, limit int) (*PortPool, error) {
	if limit <= 0 {
		return nil, ucErrors.ErrInvalidPool
	}
	p := &PortPool{
		base:      base,
		limit:     limit,
		available: make([]int, 0, limit),
		held:      make(map[int]struct{}, limit),
	}
	for i := 0; i < limit; i++ {
		p.available = append(p.available, base+i)
	}
	return p, nil
}

// Acquire takes a free port without blocking. ok is false when the pool is exhausted.
func (p *PortPool) Acquire() (port int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.available) == 0 {
		return 0, false
	}
	port = p.available[0]
	p.available = p.available[1:]
	p.held[port] = struct{}{}
	return port, true
}

// Release returns a held port. Releasing a port that is not held is
// rejected so a double release cannot grow the pool.
func (p *PortPool) Release(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if port < p.base || port >= p.base+p.limit {
		return fmt.Errorf("%w: %d", ucErrors.ErrPortOutOfRange, port)
	}
	if _, ok := p.held[port]; !ok {
		return fmt.Errorf("%w: %d", ucErrors.ErrPortNotHeld, port)
	}
	delete(p.held, port)
	p.available = append(p.available, port)
	return nil
}

// Stats returns the pool counters
func (p *PortPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	held := make([]int, 0, len(p.held))
	for port := range p.held {
		held = append(held, port)
	}
	slices.Sort(held)

	return PoolStats{
		Limit:     p.limit,
		Available: len(p.available),
		Held:      len(p.held),
		HeldPorts: held,
	}
}
