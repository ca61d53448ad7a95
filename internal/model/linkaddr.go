package model

import (
	"sync"

	"github.com/hsdnet/controller/internal/util"
)

// LinkAddressPool hands out /30 subnets from a reserved /24, keyed by
// Link.Key() so allocation is independent of arrival order and stable
// across recomputations: once a link gets a pair, it keeps it for the
// process lifetime.
type LinkAddressPool struct {
	mu    sync.Mutex
	alloc *util.ThirtyBlock
	pairs map[string][2]string // link key -> (cidr_a, cidr_b)
}

// NewLinkAddressPool builds a pool over the given /24 supernet (e.g.
// "192.168.99.0/24").
func NewLinkAddressPool(supernet string) (*LinkAddressPool, error) {
	alloc, err := util.NewThirtyBlockAllocator(supernet)
	if err != nil {
		return nil, err
	}
	return &LinkAddressPool{alloc: alloc, pairs: make(map[string][2]string)}, nil
}

// Allocate returns the (cidr_a, cidr_b) pair for the link, allocating a
// fresh /30 on first use and returning the same pair on every
// subsequent call for the same link key.
func (p *LinkAddressPool) Allocate(link Link) (cidrA, cidrB string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := link.Key()
	if pair, ok := p.pairs[key]; ok {
		return pair[0], pair[1], nil
	}
	a, b, err := p.alloc.Allocate()
	if err != nil {
		return "", "", err
	}
	p.pairs[key] = [2]string{a, b}
	return a, b, nil
}
