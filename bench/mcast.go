package bench

import (
	"bytes"
	"fmt"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/platform"
)

// Pattern fills broadcast sources.
const Pattern = 0xaaaaaaaa

// Broadcast times a broadcast of size bytes from the L3
// tile closest to the root of a sub-mesh, and counts the
// words that did not arrive on each member.
func Broadcast(cfg platform.Config, kind bcast.Kind, b bcast.Broadcaster,
	shape collcomm.TestShape, size, reps int) Result {
	res := Result{Scenario: "mcast", Strategy: kind.String(),
		Params: fmt.Sprintf("%s %dB", shape, size)}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	size = size / 4 * 4
	runErr := r.execute(func(c *platform.Cluster) error {
		dst := c.AllocL1(size, 8)
		c.Fill32(dst, size/4, 0)
		comm, err := shapeComm(c, shape)
		if err != nil {
			return err
		}
		src := c.AllocL3(c.Mesh().ClosestMemTile(comm.Root()), size, 8)
		if c.Index() == comm.Root() {
			c.Fill32(src, size/4, Pattern)
		}
		return collcomm.Exclusive(c, comm, func() error {
			cycles, err := measure(c, comm, reps, func() error {
				if err := b.Broadcast(c, comm, dst, src, size); err != nil {
					return err
				}
				return collcomm.DefaultBarrier(comm).Wait(c, comm)
			})
			r.cycles[c.Index()] = cycles
			if err != nil {
				return err
			}
			r.errs[c.Index()] += mismatches(c.ReadBytes(dst, size), c.ReadBytes(src, size))
			return nil
		})
	})
	return r.result(res, runErr, shapeRoot(cfg, shape))
}

// mismatches counts the differing words of two buffers.
func mismatches(actual, expected []byte) int {
	var count int
	for i := 0; i+4 <= len(expected); i += 4 {
		if !bytes.Equal(actual[i:i+4], expected[i:i+4]) {
			count++
		}
	}
	return count
}
