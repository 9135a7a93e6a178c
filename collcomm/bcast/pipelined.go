package bcast

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// DefaultBatches is the number of batches a Pipelined
// broadcast splits its data into by default.
const DefaultBatches = 4

// Pipelined broadcasts along a chain of neighbours. The
// data is split into batches which flow east along the
// root's row and then north along every column, so that
// each link carries a different batch at the same time.
//
// Every cluster pulls batches from its neighbour, and
// every step ends in a barrier.
type Pipelined struct {
	// Batches defaults to DefaultBatches.
	Batches int

	// Barrier separates steps. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// Broadcast runs the pipeline to completion.
func (p Pipelined) Broadcast(c collcomm.Cluster, comm *collcomm.Comm, dst, src platform.Addr,
	size int) error {
	if err := checkSize(comm, size); err != nil {
		return err
	}
	if !comm.IsParticipant || size == 0 {
		return nil
	}
	if c.Index() == comm.Root() {
		copyLocal(c, dst, src, size)
	}

	batchSize := (size + p.batches() - 1) / p.batches()
	numBatches := (size + batchSize - 1) / batchSize

	mesh := c.Mesh()
	row, col := mesh.Row(c.Index())-comm.StartRow, mesh.Col(c.Index())-comm.StartCol
	b := barrier(p.Barrier, comm)

	chain := func(active bool, pos, n, neighbour int) error {
		if n == 1 {
			return nil
		}
		for step := 0; step < numBatches+n-2; step++ {
			batch := step - (pos - 1)
			if active && pos > 0 && batch >= 0 && batch < numBatches {
				start := batch * batchSize
				end := start + batchSize
				if end > size {
					end = size
				}
				local := dst.Add(start)
				c.DMAStart(local, c.Addrs().RemoteAddr(local, c.Index(), neighbour), end-start)
				c.DMAWaitAll()
			}
			if err := b.Wait(c, comm); err != nil {
				return err
			}
		}
		return nil
	}

	if err := chain(row == 0, col, comm.Cols, mesh.West(c.Index())); err != nil {
		return err
	}
	return chain(true, row, comm.Rows, mesh.South(c.Index()))
}

func (p Pipelined) batches() int {
	if p.Batches <= 0 {
		return DefaultBatches
	}
	return p.Batches
}
