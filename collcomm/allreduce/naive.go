package allreduce

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// Naive sends every member's vector to every other member,
// and then has every member add up all the vectors on its
// own, in rank order.
type Naive struct {
	// Barrier separates the exchange from the sums and ends
	// the call. It defaults to collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// ScratchSize covers one slot per member and a temporary.
func (n Naive) ScratchSize(comm *collcomm.Comm, count int) int {
	return (comm.Size + 1) * count * 8
}

// Allreduce gathers the vectors and sums them.
func (n Naive) Allreduce(c collcomm.Cluster, comm *collcomm.Comm, bufs reduce.Buffers) error {
	if err := checkBuffers(comm, bufs); err != nil {
		return err
	}
	if !comm.IsParticipant || bufs.Count == 0 {
		return nil
	}
	size := bufs.Count * 8
	self := c.Index()
	rank := comm.Rank(self)
	slot := func(rank int) platform.Addr {
		if rank == comm.Rank(self) {
			return bufs.Src
		}
		return bufs.Scratch.Add(rank * size)
	}

	for _, member := range comm.Members() {
		if member != self {
			c.DMAStart(c.Addrs().RemoteAddr(bufs.Scratch.Add(rank*size), self, member), bufs.Src, size)
		}
	}
	c.DMAWaitAll()
	b := n.Barrier
	if b == nil {
		b = collcomm.DefaultBarrier(comm)
	}
	if err := b.Wait(c, comm); err != nil {
		return err
	}

	if comm.Size == 1 {
		c.DMAStart(bufs.Dst, bufs.Src, size)
		c.DMAWaitAll()
		return nil
	}
	temp := bufs.Scratch.Add(comm.Size * size)
	cur := slot(0)
	for r := 1; r < comm.Size; r++ {
		out := temp
		if (comm.Size-1-r)%2 == 0 {
			out = bufs.Dst
		}
		c.Combine(cur, slot(r), out, bufs.Count)
		cur = out
	}

	// Peers may start the next call and overwrite our
	// slots as soon as they leave.
	return b.Wait(c, comm)
}
