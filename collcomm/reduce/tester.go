package reduce

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// RunReducerTests runs a battery of tests on a Reducer.
//
// Member rank i contributes 15+i+j at element j, so the
// root must end up with N*15 + N*j + N*(N-1)/2.
//
// The staggered cases delay each column's first call by
// StaggerCycles per column to the east of it, so the
// root's column arrives last.
func RunReducerTests(t *testing.T, r Reducer) {
	for _, shape := range collcomm.TestShapes {
		for _, count := range []int{0, 16, 96} {
			t.Run(fmt.Sprintf("Shape=%s,Count=%d", shape, count), func(t *testing.T) {
				testReduce(t, r, shape, count, 0)
			})
		}
		t.Run(fmt.Sprintf("Shape=%s,Staggered", shape), func(t *testing.T) {
			testReduce(t, r, shape, 16, collcomm.StaggerCycles)
		})
	}
}

// Contribution is the value of element j of member rank
// i in reduction tests.
func Contribution(rank, j int) float64 {
	return float64(15 + rank + j)
}

// ExpectedSum is the reduction of Contribution over n
// members at element j.
func ExpectedSum(n, j int) float64 {
	return float64(n*15 + n*j + n*(n-1)/2)
}

func testReduce(t *testing.T, r Reducer, shape collcomm.TestShape, count int, stagger float64) {
	cfg := platform.DefaultConfig()
	cfg.TimeLimit = 1e8
	m, err := platform.NewMachine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	const rounds = 2
	const sentinel = -1.0
	size := m.Mesh().Size()
	results := make([][][]float64, size)
	sources := make([][]float64, size)
	errs := make([]error, size)
	comms := make([]*collcomm.Comm, size)
	var dstOffset platform.Addr

	err = m.Run(func(c *platform.Cluster) {
		errs[c.Index()] = func() error {
			comm, err := shape.NewComm(c)
			if err != nil {
				return err
			}
			comms[c.Index()] = comm
			bufs := Buffers{
				Src:     c.AllocL1(count*8, 8),
				Dst:     c.AllocL1(count*8, 8),
				Scratch: c.AllocL1(r.ScratchSize(comm, count), 8),
				Count:   count,
			}
			dstOffset = c.Addrs().RemoteAddr(bufs.Dst, c.Index(), 0)
			data := make([]float64, count)
			fill := make([]float64, count)
			for j := range data {
				data[j] = Contribution(comm.Rank(c.Index()), j)
				fill[j] = sentinel
			}
			c.WriteFloat64s(bufs.Src, data)
			c.WriteFloat64s(bufs.Dst, fill)

			err = collcomm.Exclusive(c, comm, func() error {
				collcomm.Stagger(c, stagger)
				for i := 0; i < rounds; i++ {
					if err := r.Reduce(c, comm, bufs); err != nil {
						return err
					}
					if err := collcomm.DefaultBarrier(comm).Wait(c, comm); err != nil {
						return err
					}
					if c.Index() == comm.Root() {
						results[c.Index()] = append(results[c.Index()], c.ReadFloat64s(bufs.Dst, count))
					}
				}
				return nil
			})
			sources[c.Index()] = c.ReadFloat64s(bufs.Src, count)
			return err
		}()
	})
	if err != nil {
		t.Fatal(err)
	}

	for idx := range comms {
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
		for j, x := range sources[idx] {
			if comm.IsParticipant && x != Contribution(comm.Rank(idx), j) {
				t.Fatalf("cluster %d: source modified at element %d", idx, j)
			}
		}
		if !comm.IsParticipant {
			dst := m.ReadFloat64s(m.Addrs().RemoteAddr(dstOffset, 0, idx), count)
			for _, x := range dst {
				if x != sentinel {
					t.Fatalf("cluster %d: non-participant buffer modified", idx)
				}
			}
			continue
		}
		if idx != comm.Root() {
			continue
		}
		if len(results[idx]) != rounds {
			t.Fatalf("root %d: got %d rounds", idx, len(results[idx]))
		}
		for i, res := range results[idx] {
			for j, x := range res {
				if expected := ExpectedSum(comm.Size, j); x != expected {
					t.Fatalf("round %d element %d: expected %f but got %f", i, j, expected, x)
				}
			}
		}
	}
}
