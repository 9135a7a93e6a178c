package bcast

import (
	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Hardware broadcasts with a single multicast DMA issued
// by the root. The interconnect duplicates the transfer,
// so the communicator must be maskable.
type Hardware struct{}

// Broadcast issues the multicast and waits for every copy
// to land.
func (h Hardware) Broadcast(c collcomm.Cluster, comm *collcomm.Comm, dst, src platform.Addr,
	size int) error {
	if err := checkSize(comm, size); err != nil {
		return err
	}
	if !comm.Maskable() {
		return errors.Wrapf(collcomm.ErrUnsupportedParticipantCount, "multicast on %s", comm)
	}
	if c.Index() != comm.Root() {
		return nil
	}
	c.DMAStartMulticast(dst, src, size, comm.Mask)
	c.DMAWaitAll()
	return nil
}
