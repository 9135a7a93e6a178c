package platform

import (
	"sort"

	"github.com/unixpickle/picobello/simulator"
)

// A CollectiveOp selects what the interconnect does with a
// write carrying a multicast mask.
type CollectiveOp int

const (
	// OpReductionBarrier counts writes and releases every
	// writer once the whole masked group has arrived.
	OpReductionBarrier CollectiveOp = iota + 1
)

// A ReduceOp is an in-network reduction applied by DMA
// reduce transfers.
type ReduceOp int

const (
	ReduceFAdd ReduceOp = iota + 1
)

type collectiveKey struct {
	addr   Addr
	mask   uint32
	reduce bool
}

type collectiveReq struct {
	id     string
	key    collectiveKey
	data   []float64
	issuer *Cluster
}

type episode struct {
	key      collectiveKey
	expected int
	arrivals []*collectiveReq
	queued   bool
}

// A collectiveUnit is the reduction logic in the router
// of one cluster. It serves every barrier or reduction
// whose target address lies in that cluster's L1.
type collectiveUnit struct {
	m   *Machine
	idx int

	episodes map[collectiveKey]*episode
	owner    *episode
	queue    []*episode
}

func (u *collectiveUnit) arrive(d *simulator.Dispatch, req *collectiveReq) {
	if u.episodes == nil {
		u.episodes = map[collectiveKey]*episode{}
	}
	ep, ok := u.episodes[req.key]
	if !ok {
		ep = &episode{
			key:      req.key,
			expected: len(u.m.multicastTargets(u.idx, req.key.mask)),
		}
		u.episodes[req.key] = ep
	}
	ep.arrivals = append(ep.arrivals, req)

	if !u.m.cfg.ExclusiveCollectives {
		if len(ep.arrivals) == ep.expected {
			u.complete(d, ep)
		}
		return
	}

	if u.owner == nil {
		u.owner = ep
	} else if u.owner != ep && !ep.queued {
		ep.queued = true
		u.queue = append(u.queue, ep)
		Trace("collective stalled", "router", u.idx, "addr", ep.key.addr, "owner", u.owner.key.addr)
	}
	for u.owner != nil && len(u.owner.arrivals) == u.owner.expected {
		u.complete(d, u.owner)
		u.owner = nil
		if len(u.queue) > 0 {
			u.owner = u.queue[0]
			u.queue = u.queue[1:]
		}
	}
}

func (u *collectiveUnit) complete(d *simulator.Dispatch, ep *episode) {
	delete(u.episodes, ep.key)

	if !ep.key.reduce {
		Trace("barrier released", "router", u.idx, "addr", ep.key.addr, "size", ep.expected)
		for _, req := range ep.arrivals {
			u.m.l1[u.idx].respond(d, req.issuer, &storeAck{})
		}
		return
	}

	// Combine in a fixed order so the result does not
	// depend on arrival times.
	sort.Slice(ep.arrivals, func(i, j int) bool {
		return ep.arrivals[i].issuer.idx < ep.arrivals[j].issuer.idx
	})
	sum := append([]float64{}, ep.arrivals[0].data...)
	for _, req := range ep.arrivals[1:] {
		if len(req.data) != len(sum) {
			panic("mismatching reduction lengths")
		}
		for i, x := range req.data {
			sum[i] += x
		}
	}
	encodeFloat64s(u.m.bytes(ep.key.addr, len(sum)*8), sum)
	Trace("reduction done", "router", u.idx, "addr", ep.key.addr, "size", ep.expected, "elems", len(sum))

	for _, req := range ep.arrivals {
		u.m.l1[u.idx].respond(d, req.issuer, &dmaDone{})
	}
}
