// Package bench runs collective scenarios on freshly built
// machines and reports their cost in cycles along with an
// error count.
package bench

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sarchlab/akita/v4/sim"
	"golang.org/x/sync/errgroup"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// A Result describes one run of a scenario.
//
// Errors counts mismatching elements and failed clusters.
// A run that deadlocks or exceeds its time limit counts as
// one more error, and its Err is set.
type Result struct {
	RunID    uuid.UUID
	Scenario string
	Strategy string
	Params   string

	// Cycles is the cost of one measured repetition on
	// the communicator's root.
	Cycles float64
	Time   sim.VTimeInSec

	Errors int
	Err    error
}

func (r Result) String() string {
	return fmt.Sprintf("%s/%s (%s): %.0f cycles, %d errors", r.Scenario, r.Strategy, r.Params,
		r.Cycles, r.Errors)
}

// A Task produces one Result.
type Task func() Result

// RunAll runs tasks with at most parallelism of them at a
// time, or one per CPU if parallelism is not positive.
// Results are in task order.
func RunAll(ctx context.Context, tasks []Task, parallelism int) ([]Result, error) {
	results := make([]Result, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = task()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// TotalErrors sums the error counts of results.
func TotalErrors(results []Result) int {
	return lo.SumBy(results, func(r Result) int { return r.Errors })
}

// A run collects per-cluster measurements of a scenario.
type run struct {
	m      *platform.Machine
	errs   []int
	cycles []float64
}

func newRun(cfg platform.Config) (*run, error) {
	m, err := platform.NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	return &run{
		m:      m,
		errs:   make([]int, m.Mesh().Size()),
		cycles: make([]float64, m.Mesh().Size()),
	}, nil
}

// execute runs fn on every cluster. A returned error
// counts as one error of that cluster.
func (r *run) execute(fn func(c *platform.Cluster) error) error {
	return r.m.Run(func(c *platform.Cluster) {
		if err := fn(c); err != nil {
			r.errs[c.Index()]++
		}
	})
}

// result summarizes the run, taking the cycles measured
// by one cluster.
func (r *run) result(res Result, runErr error, measured int) Result {
	res.RunID = uuid.New()
	res.Errors = lo.Sum(r.errs)
	res.Cycles = r.cycles[measured]
	res.Time = sim.VTimeInSec(res.Cycles / float64(r.m.Config().ClockFreq))
	if runErr != nil {
		res.Errors++
		res.Err = runErr
	}
	return res
}

// failed reports a scenario that could not be set up.
func failed(res Result, err error) Result {
	res.RunID = uuid.New()
	res.Errors = 1
	res.Err = err
	return res
}

// measure times reps calls of fn on the cluster, after
// one warm-up call and an aligning barrier, and returns
// the average.
func measure(c collcomm.Cluster, comm *collcomm.Comm, reps int, fn func() error) (float64, error) {
	if err := fn(); err != nil {
		return 0, err
	}
	if err := collcomm.DefaultBarrier(comm).Wait(c, comm); err != nil {
		return 0, err
	}
	start := c.Time()
	for i := 0; i < reps; i++ {
		if err := fn(); err != nil {
			return 0, err
		}
	}
	return (c.Time() - start) / float64(max(reps, 1)), nil
}

func shapeComm(c collcomm.Cluster, shape collcomm.TestShape) (*collcomm.Comm, error) {
	comm, err := shape.NewComm(c)
	if err != nil {
		return nil, errors.Wrapf(err, "communicator %s", shape)
	}
	return comm, nil
}

func shapeRoot(cfg platform.Config, shape collcomm.TestShape) int {
	return cfg.Mesh().Index(shape.StartRow, shape.StartCol)
}
