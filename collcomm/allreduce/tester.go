package allreduce

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// RunAllreducerTests runs a battery of tests on an
// Allreducer.
func RunAllreducerTests(t *testing.T, a Allreducer) {
	for _, shape := range collcomm.TestShapes {
		for _, count := range []int{0, 16, 96} {
			t.Run(fmt.Sprintf("Shape=%s,Count=%d", shape, count), func(t *testing.T) {
				testAllreduce(t, a, shape, count)
			})
		}
	}
}

func testAllreduce(t *testing.T, a Allreducer, shape collcomm.TestShape, count int) {
	cfg := platform.DefaultConfig()
	cfg.TimeLimit = 1e8
	m, err := platform.NewMachine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	size := m.Mesh().Size()
	vectors := make([][]float64, size)
	for i := range vectors {
		vectors[i] = make([]float64, count)
		for j := range vectors[i] {
			vectors[i][j] = rand.NormFloat64()
		}
	}

	results := make([][]float64, size)
	errs := make([]error, size)
	comms := make([]*collcomm.Comm, size)
	err = m.Run(func(c *platform.Cluster) {
		errs[c.Index()] = func() error {
			comm, err := shape.NewComm(c)
			if err != nil {
				return err
			}
			comms[c.Index()] = comm
			bufs := reduce.Buffers{
				Src:     c.AllocL1(count*8, 8),
				Dst:     c.AllocL1(count*8, 8),
				Scratch: c.AllocL1(a.ScratchSize(comm, count), 8),
				Count:   count,
			}
			c.WriteFloat64s(bufs.Src, vectors[c.Index()])
			return collcomm.Exclusive(c, comm, func() error {
				if err := a.Allreduce(c, comm, bufs); err != nil {
					return err
				}
				if err := collcomm.DefaultBarrier(comm).Wait(c, comm); err != nil {
					return err
				}
				if comm.IsParticipant {
					results[c.Index()] = c.ReadFloat64s(bufs.Dst, count)
				}
				return nil
			})
		}()
	})
	if err != nil {
		t.Fatal(err)
	}

	var memberResults [][]float64
	var comm *collcomm.Comm
	sum := make([]float64, count)
	for idx := range comms {
		comm = comms[idx]
		if comm == nil {
			t.Fatalf("cluster %d: %v", idx, errs[idx])
		}
		if errs[idx] != nil {
			if comm.IsParticipant && !comm.Maskable() &&
				errors.Is(errs[idx], collcomm.ErrUnsupportedParticipantCount) {
				return
			}
			t.Fatalf("cluster %d: %v", idx, errs[idx])
		}
		if comm.IsParticipant {
			memberResults = append(memberResults, results[idx])
			for j, x := range vectors[idx] {
				sum[j] += x
			}
		} else if results[idx] != nil {
			t.Errorf("cluster %d took part in %s", idx, comm)
		}
	}
	if len(memberResults) != comm.Size {
		t.Fatalf("expected %d members but got %d", comm.Size, len(memberResults))
	}
	verifyReductionResults(t, memberResults, sum)
}

func verifyReductionResults(t *testing.T, results [][]float64, expected []float64) {
	for i, res := range results[1:] {
		if len(res) != len(expected) {
			t.Errorf("result %d has length %d but expected %d", i+1, len(res), len(expected))
			continue
		}
		for j, actual := range res {
			if actual != results[0][j] {
				t.Errorf("result %d is not identical to result 0", i+1)
				break
			}
		}
	}

	for i, x := range expected {
		if math.Abs(x-results[0][i]) > 1e-5 {
			t.Errorf("sum is incorrect (expected %f but got %f at component %d)",
				x, results[0][i], i)
			break
		}
	}
}
