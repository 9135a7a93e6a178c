package collcomm

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/platform"
)

// DefaultPollInterval is the number of cycles the
// software barrier's coordinator idles between reads of
// the counter.
const DefaultPollInterval = 16

// A Barrier blocks the members of a communicator until all
// of them have reached it.
//
// There is no timeout: if a member never arrives, the
// others wait forever. Clusters outside the communicator
// return immediately.
type Barrier interface {
	Wait(c Cluster, comm *Comm) error
}

// SoftwareBarrier counts arrivals with atomic increments.
// The root polls the counter, resets it, and wakes the
// members with interrupts.
type SoftwareBarrier struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval float64
}

// Wait performs one barrier episode.
func (s SoftwareBarrier) Wait(c Cluster, comm *Comm) error {
	if !comm.IsParticipant || comm.Size == 1 {
		return nil
	}
	c.AtomicAdd32(comm.BarrierPtr, 1)
	if c.Index() == comm.Root() {
		for c.Load32(comm.BarrierPtr) != uint32(comm.Size) {
			c.Sleep(s.pollInterval())
		}
		// The reset must land before anyone is woken, or a
		// fast member could increment the stale count.
		c.Store32(comm.BarrierPtr, 0)
		c.Fence()
		wakeMembers(c, comm)
		c.Fence()
	}
	c.WaitForInterrupt()
	c.ClearInterrupt()
	return nil
}

func (s SoftwareBarrier) pollInterval() float64 {
	if s.PollInterval == 0 {
		return DefaultPollInterval
	}
	return s.PollInterval
}

// HardwareBarrier lets the interconnect count arrivals.
// Each member posts one barrier write to the counter
// address, and the write is only acknowledged once every
// member's write has arrived.
type HardwareBarrier struct{}

// Wait performs one barrier episode.
//
// It fails on every cluster if the communicator cannot be
// described by a multicast mask.
func (h HardwareBarrier) Wait(c Cluster, comm *Comm) error {
	if !comm.Maskable() {
		return errors.Wrapf(ErrUnsupportedParticipantCount, "hardware barrier on %s", comm)
	}
	if !comm.IsParticipant || comm.Size == 1 {
		return nil
	}
	c.CollectiveStore32(comm.BarrierPtr, 1, platform.OpReductionBarrier, comm.Mask)
	c.Fence()
	return nil
}

// BarrierKind selects a Barrier implementation.
type BarrierKind int

const (
	BarrierSoftware BarrierKind = iota
	BarrierHardware
)

// ParseBarrierKind parses the names produced by
// BarrierKind.String, or their short forms "sw" and "hw".
func ParseBarrierKind(s string) (BarrierKind, error) {
	switch strings.ToLower(s) {
	case "software", "sw":
		return BarrierSoftware, nil
	case "hardware", "hw":
		return BarrierHardware, nil
	}
	return 0, errors.Errorf("unknown barrier kind: %q", s)
}

func (b BarrierKind) String() string {
	switch b {
	case BarrierSoftware:
		return "software"
	case BarrierHardware:
		return "hardware"
	}
	return "unknown"
}

// NewBarrier creates the Barrier of a kind.
func NewBarrier(kind BarrierKind) Barrier {
	if kind == BarrierHardware {
		return HardwareBarrier{}
	}
	return SoftwareBarrier{}
}

// DefaultBarrier picks the hardware barrier whenever the
// communicator supports it.
func DefaultBarrier(comm *Comm) Barrier {
	if comm.Maskable() {
		return HardwareBarrier{}
	}
	return SoftwareBarrier{}
}

// GlobalBarrier synchronizes every cluster of the mesh.
func GlobalBarrier(c Cluster) error {
	world := World(c)
	return DefaultBarrier(world).Wait(c, world)
}

// Exclusive runs fn on the members of comm while the rest
// of the mesh is parked in wait-for-interrupt.
//
// Parking keeps non-members from racing ahead into other
// collectives, such as a following global barrier, which
// may share hardware barrier resources with comm. Once
// every member is done, the root wakes the parked
// clusters. The barrier ending the members' phase uses
// DefaultBarrier.
func Exclusive(c Cluster, comm *Comm, fn func() error) error {
	if !comm.IsParticipant {
		c.WaitForInterrupt()
		c.ClearInterrupt()
		return nil
	}
	err := fn()
	if bErr := DefaultBarrier(comm).Wait(c, comm); err == nil {
		err = bErr
	}
	if c.Index() == comm.Root() {
		for i := 0; i < comm.Mesh.Size(); i++ {
			if !comm.Contains(i) {
				c.SendInterrupt(i, 0)
			}
		}
		c.Fence()
	}
	return err
}

func wakeMembers(c Cluster, comm *Comm) {
	if comm.Maskable() {
		c.SendInterrupt(comm.Root(), comm.Mask)
		return
	}
	platform.Trace("unicast barrier wake-up", "comm", comm.String())
	for _, member := range comm.Members() {
		c.SendInterrupt(member, 0)
	}
}
