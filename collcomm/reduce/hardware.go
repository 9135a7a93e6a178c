package reduce

import (
	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Hardware reduces in the interconnect: every member sends
// its data with a reduce DMA towards the root, and the
// root's router adds the contributions as they arrive.
//
// With TwoStage, every column first reduces into the
// Scratch of its cluster in the start row, and those
// clusters then reduce into the root. On a communicator
// with several rows and columns, a software barrier
// separates the stages and another one ends the
// reduction. Both must stay off the collective unit: a
// row reduction or hardware barrier arriving at the
// root's router early would take it over while the root
// column is still reducing.
type Hardware struct {
	TwoStage bool
}

// ScratchSize is the size of one column's partial sum in
// two-stage mode, and zero otherwise. The barriers of the
// two-stage mode use the communicator's counter, not the
// scratch buffer.
func (h Hardware) ScratchSize(comm *collcomm.Comm, count int) int {
	if h.TwoStage {
		return count * 8
	}
	return 0
}

// Reduce issues the reduce DMAs and waits until they are
// complete.
func (h Hardware) Reduce(c collcomm.Cluster, comm *collcomm.Comm, bufs Buffers) error {
	if _, err := newBatching(comm, bufs, 1); err != nil {
		return err
	}
	if !comm.Maskable() {
		return errors.Wrapf(collcomm.ErrUnsupportedParticipantCount, "reduce DMA on %s", comm)
	}
	if !comm.IsParticipant || bufs.Count == 0 {
		return nil
	}
	if comm.Size == 1 {
		copyLocal(c, bufs)
		return nil
	}

	mesh, addrs, self := c.Mesh(), c.Addrs(), c.Index()
	size := bufs.Count * 8
	if !h.TwoStage {
		c.DMAStartReduce(addrs.RemoteAddr(bufs.Dst, self, comm.Root()), bufs.Src, size, comm.Mask,
			platform.ReduceFAdd)
		c.DMAWaitAll()
		return nil
	}

	head := mesh.Index(comm.StartRow, mesh.Col(self))
	colMask := mesh.MaskFor(comm.Rows, 1)
	rowMask := mesh.MaskFor(1, comm.Cols)
	if comm.Cols == 1 {
		c.DMAStartReduce(addrs.RemoteAddr(bufs.Scratch, self, head), bufs.Src, size, colMask,
			platform.ReduceFAdd)
		c.DMAWaitAll()
		if self == head {
			c.DMAStart(bufs.Dst, bufs.Scratch, size)
			c.DMAWaitAll()
		}
		return nil
	}
	partial := bufs.Src
	if comm.Rows > 1 {
		partial = bufs.Scratch
		c.DMAStartReduce(addrs.RemoteAddr(bufs.Scratch, self, head), bufs.Src, size, colMask,
			platform.ReduceFAdd)
		c.DMAWaitAll()
		if err := (collcomm.SoftwareBarrier{}).Wait(c, comm); err != nil {
			return err
		}
	}
	if self == head {
		c.DMAStartReduce(addrs.RemoteAddr(bufs.Dst, self, comm.Root()), partial, size, rowMask,
			platform.ReduceFAdd)
		c.DMAWaitAll()
	}
	if comm.Rows > 1 {
		return (collcomm.SoftwareBarrier{}).Wait(c, comm)
	}
	return nil
}
