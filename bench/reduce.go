package bench

import (
	"fmt"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/allreduce"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// Reduce times a reduction of count doubles on a sub-mesh
// and counts the elements of the root's result that do not
// match reduce.ExpectedSum.
func Reduce(cfg platform.Config, kind reduce.Kind, rd reduce.Reducer, shape collcomm.TestShape,
	count, reps int) Result {
	res := Result{Scenario: "reduce", Strategy: kind.String(),
		Params: fmt.Sprintf("%s %d doubles", shape, count)}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	runErr := r.execute(func(c *platform.Cluster) error {
		comm, bufs, err := setupReduction(c, shape, count, rd.ScratchSize)
		if err != nil {
			return err
		}
		return collcomm.Exclusive(c, comm, func() error {
			cycles, err := measure(c, comm, reps, func() error {
				if err := rd.Reduce(c, comm, bufs); err != nil {
					return err
				}
				return collcomm.DefaultBarrier(comm).Wait(c, comm)
			})
			r.cycles[c.Index()] = cycles
			if err != nil {
				return err
			}
			if c.Index() == comm.Root() {
				r.errs[c.Index()] += sumMismatches(c.ReadFloat64s(bufs.Dst, count), comm.Size)
			}
			return nil
		})
	})
	return r.result(res, runErr, shapeRoot(cfg, shape))
}

// Allreduce is like Reduce, but checks the result on every
// member.
func Allreduce(cfg platform.Config, kind allreduce.Kind, a allreduce.Allreducer,
	shape collcomm.TestShape, count, reps int) Result {
	res := Result{Scenario: "allreduce", Strategy: kind.String(),
		Params: fmt.Sprintf("%s %d doubles", shape, count)}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	runErr := r.execute(func(c *platform.Cluster) error {
		comm, bufs, err := setupReduction(c, shape, count, a.ScratchSize)
		if err != nil {
			return err
		}
		return collcomm.Exclusive(c, comm, func() error {
			cycles, err := measure(c, comm, reps, func() error {
				if err := a.Allreduce(c, comm, bufs); err != nil {
					return err
				}
				return collcomm.DefaultBarrier(comm).Wait(c, comm)
			})
			r.cycles[c.Index()] = cycles
			if err != nil {
				return err
			}
			r.errs[c.Index()] += sumMismatches(c.ReadFloat64s(bufs.Dst, count), comm.Size)
			return nil
		})
	})
	return r.result(res, runErr, shapeRoot(cfg, shape))
}

func setupReduction(c *platform.Cluster, shape collcomm.TestShape, count int,
	scratchSize func(*collcomm.Comm, int) int) (*collcomm.Comm, reduce.Buffers, error) {
	comm, err := shapeComm(c, shape)
	if err != nil {
		return nil, reduce.Buffers{}, err
	}
	bufs := reduce.Buffers{
		Src:     c.AllocL1(count*8, 8),
		Dst:     c.AllocL1(count*8, 8),
		Scratch: c.AllocL1(scratchSize(comm, count), 8),
		Count:   count,
	}
	if comm.IsParticipant {
		data := make([]float64, count)
		for j := range data {
			data[j] = reduce.Contribution(comm.Rank(c.Index()), j)
		}
		c.WriteFloat64s(bufs.Src, data)
	}
	return comm, bufs, nil
}

func sumMismatches(result []float64, n int) int {
	var count int
	for j, x := range result {
		if x != reduce.ExpectedSum(n, j) {
			count++
		}
	}
	return count
}
