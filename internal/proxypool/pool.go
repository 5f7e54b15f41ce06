package proxypool

import "sync"

// Pool is a non-empty, ordered sequence of proxy Descriptors plus a
// rotation cursor. All operations except All (which copies the sequence)
// are constant time. Descriptors and the
// sequence itself are immutable after construction; only the cursor
// advances.
type Pool struct {
	mu         sync.Mutex
	descriptor []Descriptor
	cursor     int
}

// NewPool parses each proxy URL in urls and constructs a Pool. An empty
// urls slice fails with ErrEmptyPool.
func NewPool(urls []string) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrEmptyPool
	}
	ds := make([]Descriptor, 0, len(urls))
	for _, u := range urls {
		d, err := Parse(u)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return &Pool{descriptor: ds}, nil
}

// Next returns the Descriptor at the cursor, then advances the cursor by
// one (wrapping modulo the pool size). Across N*k successive calls, each
// Descriptor is returned exactly k times, in fixed order.
func (p *Pool) Next() Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.descriptor[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.descriptor)
	return d
}

// Alternative returns the Descriptor at (i+1) mod n, or false when the
// pool holds only one Descriptor.
func (p *Pool) Alternative(i int) (Descriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.descriptor)
	if n <= 1 {
		return Descriptor{}, false
	}
	idx := (i + 1) % n
	return p.descriptor[idx], true
}

// Size returns the number of Descriptors in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.descriptor)
}

// GetAt returns the Descriptor at index i.
func (p *Pool) GetAt(i int) Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.descriptor[i]
}

// All returns a copy of the full Descriptor sequence.
func (p *Pool) All() []Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Descriptor, len(p.descriptor))
	copy(out, p.descriptor)
	return out
}

// Reset rewinds the rotation cursor to zero.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
}
