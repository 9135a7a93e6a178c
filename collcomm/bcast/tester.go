package bcast

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// RunBroadcasterTests runs a battery of tests on a
// Broadcaster.
//
// Strategies may refuse communicators that are not
// maskable with collcomm.ErrUnsupportedParticipantCount.
//
// The staggered cases let the members enter the first
// broadcast at different times, see collcomm.Stagger.
func RunBroadcasterTests(t *testing.T, b Broadcaster) {
	for _, shape := range collcomm.TestShapes {
		for _, size := range []int{0, 32, 1024, 8192} {
			t.Run(fmt.Sprintf("Shape=%s,Size=%d", shape, size), func(t *testing.T) {
				testBroadcast(t, b, shape, size, 0)
			})
		}
		t.Run(fmt.Sprintf("Shape=%s,Staggered", shape), func(t *testing.T) {
			testBroadcast(t, b, shape, 1024, collcomm.StaggerCycles)
		})
	}
}

func testBroadcast(t *testing.T, b Broadcaster, shape collcomm.TestShape, size int, stagger float64) {
	cfg := platform.DefaultConfig()
	cfg.TimeLimit = 1e8
	m, err := platform.NewMachine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, size)
	rand.Read(data)
	sentinel := bytes.Repeat([]byte{0xaa}, size)

	const rounds = 2
	results := make([][][]byte, m.Mesh().Size())
	errs := make([]error, m.Mesh().Size())
	comms := make([]*collcomm.Comm, m.Mesh().Size())
	err = m.Run(func(c *platform.Cluster) {
		errs[c.Index()] = func() error {
			dst := c.AllocL1(size, 8)
			c.WriteBytes(dst, sentinel)
			comm, err := shape.NewComm(c)
			if err != nil {
				return err
			}
			comms[c.Index()] = comm
			src := c.AllocL3(c.Mesh().ClosestMemTile(comm.Root()), size, 8)
			if c.Index() == comm.Root() {
				c.WriteBytes(src, data)
			}
			return collcomm.Exclusive(c, comm, func() error {
				collcomm.Stagger(c, stagger)
				for i := 0; i < rounds; i++ {
					if err := b.Broadcast(c, comm, dst, src, size); err != nil {
						return err
					}
					if err := collcomm.DefaultBarrier(comm).Wait(c, comm); err != nil {
						return err
					}
					results[c.Index()] = append(results[c.Index()], c.ReadBytes(dst, size))
				}
				return nil
			})
		}()
	})
	if err != nil {
		t.Fatal(err)
	}

	for idx, res := range results {
		comm := comms[idx]
		if comm == nil {
			t.Fatalf("cluster %d: %v", idx, errs[idx])
		}
		if errs[idx] != nil {
			if comm.IsParticipant && !comm.Maskable() &&
				errors.Is(errs[idx], collcomm.ErrUnsupportedParticipantCount) {
				continue
			}
			t.Fatalf("cluster %d: %v", idx, errs[idx])
		}
		if !comm.IsParticipant {
			if len(res) != 0 {
				t.Errorf("cluster %d took part in %s", idx, comm)
			}
			if !bytes.Equal(m.ReadBytes(m.Addrs().ClusterAddr(idx, cfg.L1Reserved), size), sentinel) {
				t.Errorf("cluster %d: non-participant buffer modified", idx)
			}
			continue
		}
		if len(res) != rounds {
			t.Fatalf("cluster %d: got %d rounds", idx, len(res))
		}
		for i, got := range res {
			if !bytes.Equal(got, data) {
				t.Errorf("cluster %d round %d: destination does not match source", idx, i)
			}
		}
	}
}
