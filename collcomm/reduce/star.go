package reduce

import (
	"log/slog"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Star reduces by having every member send its data to a
// dedicated slot in the root, where the root adds all the
// slots up in rank order.
//
// With more than one batch, the transfer of batch k+1 to
// one set of slots overlaps with the root combining batch
// k from the other set. Every step ends in a barrier.
type Star struct {
	Batches int

	// Barrier separates steps. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// ScratchSize covers two sets of per-member slots and two
// temporaries, each one batch long.
func (s Star) ScratchSize(comm *collcomm.Comm, count int) int {
	return (2*comm.Size + 2) * batchBytes(count, s.Batches)
}

// Reduce runs the pipeline over all batches.
func (s Star) Reduce(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers) error {
	batches, err := newBatching(comm, bufs, s.Batches)
	if err != nil {
		return err
	}
	if !comm.IsParticipant || bufs.Count == 0 {
		return nil
	}
	if comm.Size == 1 {
		copyLocal(c, bufs)
		return nil
	}

	self := c.Index()
	rank := comm.Rank(self)
	slot := func(parity, rank int) platform.Addr {
		return bufs.Scratch.Add((parity*comm.Size + rank) * batches.Bytes())
	}
	temp := func(i int) platform.Addr {
		return bufs.Scratch.Add((2*comm.Size + i%2) * batches.Bytes())
	}
	if rank == 0 {
		slog.Debug("star reduction", "comm", comm.String(), "count", bufs.Count,
			"batches", batches.Num)
	}

	b := barrier(s.Barrier, comm)
	for step := 0; step <= batches.Num; step++ {
		if rank != 0 && step < batches.Num {
			dst := c.Addrs().RemoteAddr(slot(step%2, rank), self, comm.Root())
			c.DMAStart(dst, batches.At(bufs.Src, step), batches.Bytes())
			c.DMAWaitAll()
		}
		if rank == 0 && step > 0 {
			batch := step - 1
			cur := batches.At(bufs.Src, batch)
			for r := 1; r < comm.Size; r++ {
				out := temp(r)
				if r == comm.Size-1 {
					out = batches.At(bufs.Dst, batch)
				}
				c.Combine(cur, slot(batch%2, r), out, batches.Count)
				cur = out
			}
		}
		if err := b.Wait(c, comm); err != nil {
			return err
		}
	}
	return nil
}
