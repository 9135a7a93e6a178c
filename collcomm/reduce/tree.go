package reduce

import (
	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Tree reduces along a binomial tree over the ranks of the
// communicator. At level i, every rank that is an odd
// multiple of 2^i sends its partial sum to the rank 2^i
// below it, which adds it to its own.
type Tree struct {
	Batches int

	// Barrier separates steps. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// ScratchSize covers a full accumulator and two incoming
// batches.
func (t Tree) ScratchSize(comm *collcomm.Comm, count int) int {
	return treeScratchSize(count, t.Batches)
}

// Reduce runs every level of the tree.
func (t Tree) Reduce(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers) error {
	run, err := newTreeRun(c, comm, bufs, t.Batches, t.Barrier, collcomm.NumLevels(comm.Size))
	if run == nil {
		return err
	}
	return run.Stage(true, comm.Rank(c.Index()), comm.Size, comm.MemberAt)
}

// TwoStage reduces every row of the communicator to its
// first column with a binomial tree, and then reduces the
// first column to the root the same way. All rows proceed
// in parallel.
type TwoStage struct {
	Batches int

	// Barrier separates steps. It defaults to
	// collcomm.DefaultBarrier.
	Barrier collcomm.Barrier
}

// ScratchSize covers a full accumulator and two incoming
// batches.
func (t TwoStage) ScratchSize(comm *collcomm.Comm, count int) int {
	return treeScratchSize(count, t.Batches)
}

// Reduce runs the row stage and then the column stage.
func (t TwoStage) Reduce(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers) error {
	levels := collcomm.NumLevels(comm.Cols) + collcomm.NumLevels(comm.Rows)
	run, err := newTreeRun(c, comm, bufs, t.Batches, t.Barrier, levels)
	if run == nil {
		return err
	}
	mesh := c.Mesh()
	row, col := mesh.Row(c.Index()), mesh.Col(c.Index())
	err = run.Stage(true, col-comm.StartCol, comm.Cols, func(pos int) int {
		return mesh.Index(row, comm.StartCol+pos)
	})
	if err != nil {
		return err
	}
	return run.Stage(col == comm.StartCol, row-comm.StartRow, comm.Rows, func(pos int) int {
		return mesh.Index(comm.StartRow+pos, comm.StartCol)
	})
}

func treeScratchSize(count, batches int) int {
	return count*8 + 2*batchBytes(count, batches)
}

// A treeRun tracks one cluster through the levels of a
// tree reduction, possibly spread over several stages.
type treeRun struct {
	c       collcomm.Cluster
	comm    *collcomm.Comm
	bufs    Buffers
	batches batching
	barrier collcomm.Barrier

	levels int
	done   int

	// cur holds this cluster's partial sum.
	cur platform.Addr
}

// newTreeRun validates a reduction. It returns a nil run
// if the cluster has nothing left to do, along with any
// error.
func newTreeRun(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers, batches int,
	b collcomm.Barrier, levels int) (*treeRun, error) {
	bt, err := newBatching(comm, bufs, batches)
	if err != nil {
		return nil, err
	}
	if !comm.IsParticipant || bufs.Count == 0 {
		return nil, nil
	}
	if comm.Size == 1 {
		copyLocal(c, bufs)
		return nil, nil
	}
	return &treeRun{
		c:       c,
		comm:    comm,
		bufs:    bufs,
		batches: bt,
		barrier: barrier(b, comm),
		levels:  levels,
		cur:     bufs.Src,
	}, nil
}

// Stage runs the levels of a binomial tree over n
// positions. Inactive clusters only join the barriers.
func (t *treeRun) Stage(active bool, pos, n int, member func(pos int) int) error {
	for level := 0; level < collcomm.NumLevels(n); level++ {
		var step collcomm.Step
		if active {
			step = collcomm.ReduceSchedule(level, pos, n)
		}
		if err := t.level(step, member); err != nil {
			return err
		}
		t.done++
	}
	return nil
}

func (t *treeRun) level(step collcomm.Step, member func(pos int) int) error {
	c := t.c

	// Alternate between Dst and the accumulator so that
	// the root's last level writes Dst.
	var out platform.Addr
	if step.Recv {
		choices := [2]platform.Addr{t.bufs.Dst, t.acc()}
		parity := (t.levels - 1 - t.done) % 2
		out = choices[parity]
		if out == t.cur {
			out = choices[1-parity]
		}
	}

	send := func(batch int) {
		if step.Send {
			dst := c.Addrs().RemoteAddr(t.in(batch), c.Index(), member(step.Partner))
			c.DMAStart(dst, t.batches.At(t.cur, batch), t.batches.Bytes())
			c.DMAWaitAll()
		}
	}
	combine := func(batch int) {
		if step.Recv {
			c.Combine(t.batches.At(t.cur, batch), t.in(batch), t.batches.At(out, batch),
				t.batches.Count)
		}
	}

	send(0)
	if err := t.barrier.Wait(c, t.comm); err != nil {
		return err
	}
	for batch := 1; batch < t.batches.Num; batch++ {
		send(batch)
		combine(batch - 1)
		if err := t.barrier.Wait(c, t.comm); err != nil {
			return err
		}
	}
	combine(t.batches.Num - 1)

	// The next level may send into the buffers that were
	// just combined.
	if err := t.barrier.Wait(c, t.comm); err != nil {
		return err
	}
	if step.Recv {
		t.cur = out
	}
	return nil
}

func (t *treeRun) acc() platform.Addr {
	return t.bufs.Scratch
}

// in gets the incoming buffer of a batch.
func (t *treeRun) in(batch int) platform.Addr {
	return t.bufs.Scratch.Add(t.bufs.Count*8 + batch%2*t.batches.Bytes())
}
