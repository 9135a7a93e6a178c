package allreduce

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// Ring streams chunks of the vector around a ring of the
// members in rank order.
//
// The vector is split into one chunk per member. In the
// first phase, partial sums of every chunk travel around
// the ring, picking up each member's contribution on the
// way. In the second phase, the finished chunks travel
// around the ring once more so every member gets a copy.
// Every step ends in a barrier.
type Ring struct {
	// Barrier separates steps. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// ScratchSize covers two incoming chunks.
func (r Ring) ScratchSize(comm *collcomm.Comm, count int) int {
	return 2 * 8 * ((count + comm.Size - 1) / comm.Size)
}

// Allreduce runs both phases of the ring.
func (r Ring) Allreduce(c collcomm.Cluster, comm *collcomm.Comm, bufs reduce.Buffers) error {
	if err := checkBuffers(comm, bufs); err != nil {
		return err
	}
	if !comm.IsParticipant || bufs.Count == 0 {
		return nil
	}
	n := comm.Size
	if n == 1 {
		c.DMAStart(bufs.Dst, bufs.Src, bufs.Count*8)
		c.DMAWaitAll()
		return nil
	}

	self := c.Index()
	rank := comm.Rank(self)
	next := comm.MemberAt((rank + 1) % n)
	chunk := func(i int) (start, count int) {
		i = ((i % n) + n) % n
		start = i * bufs.Count / n
		return start, (i+1)*bufs.Count/n - start
	}
	in := func(step int) platform.Addr {
		return bufs.Scratch.Add(step % 2 * r.ScratchSize(comm, bufs.Count) / 2)
	}
	b := r.Barrier
	if b == nil {
		b = collcomm.DefaultBarrier(comm)
	}

	for step := 0; step < n-1; step++ {
		start, count := chunk(rank - step)
		src := bufs.Dst
		if step == 0 {
			src = bufs.Src
		}
		if count > 0 {
			c.DMAStart(c.Addrs().RemoteAddr(in(step), self, next), src.Add(start*8), count*8)
			c.DMAWaitAll()
		}
		if err := b.Wait(c, comm); err != nil {
			return err
		}
		start, count = chunk(rank - 1 - step)
		c.Combine(bufs.Src.Add(start*8), in(step), bufs.Dst.Add(start*8), count)
	}

	for step := 0; step < n-1; step++ {
		if err := b.Wait(c, comm); err != nil {
			return err
		}
		start, count := chunk(rank + 1 - step)
		if count > 0 {
			local := bufs.Dst.Add(start * 8)
			c.DMAStart(c.Addrs().RemoteAddr(local, self, next), local, count*8)
			c.DMAWaitAll()
		}
	}
	return b.Wait(c, comm)
}
