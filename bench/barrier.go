package bench

import (
	"fmt"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/platform"
)

// Barrier times a barrier on a sub-mesh while the rest of
// the mesh is parked.
func Barrier(cfg platform.Config, kind collcomm.BarrierKind, shape collcomm.TestShape,
	reps int) Result {
	res := Result{Scenario: "barrier", Strategy: kind.String(), Params: shape.String()}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	b := collcomm.NewBarrier(kind)
	runErr := r.execute(func(c *platform.Cluster) error {
		comm, err := shapeComm(c, shape)
		if err != nil {
			return err
		}
		return collcomm.Exclusive(c, comm, func() error {
			cycles, err := measure(c, comm, reps, func() error {
				return b.Wait(c, comm)
			})
			r.cycles[c.Index()] = cycles
			return err
		})
	})
	return r.result(res, runErr, shapeRoot(cfg, shape))
}

// RowColumnBarriers times a round of barriers on every
// row, then on every column, then on the whole mesh. Rows
// and columns synchronize in parallel.
func RowColumnBarriers(cfg platform.Config, reps int) Result {
	res := Result{Scenario: "barrier", Strategy: "row+col+global",
		Params: fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols)}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	runErr := r.execute(func(c *platform.Cluster) error {
		mesh := c.Mesh()
		var rows, cols []*collcomm.Comm
		for row := 0; row < mesh.Rows; row++ {
			comm, err := collcomm.NewMeshComm(c, 1, mesh.Cols, row, 0)
			if err != nil {
				return err
			}
			rows = append(rows, comm)
		}
		for col := 0; col < mesh.Cols; col++ {
			comm, err := collcomm.NewMeshComm(c, mesh.Rows, 1, 0, col)
			if err != nil {
				return err
			}
			cols = append(cols, comm)
		}
		row, col := rows[mesh.Row(c.Index())], cols[mesh.Col(c.Index())]
		world := collcomm.World(c)
		cycles, err := measure(c, world, reps, func() error {
			if err := collcomm.DefaultBarrier(row).Wait(c, row); err != nil {
				return err
			}
			if err := collcomm.DefaultBarrier(col).Wait(c, col); err != nil {
				return err
			}
			return collcomm.GlobalBarrier(c)
		})
		r.cycles[c.Index()] = cycles
		return err
	})
	return r.result(res, runErr, 0)
}

// OverlappingBarriers has the first row enter a row
// barrier while the rest of the mesh is already in the
// global barrier, which shares the first row's router.
//
// Without parking, the global barrier takes the router
// first and the mesh deadlocks; the run then reports an
// error. With parking, the other rows wait in
// wait-for-interrupt until the row barrier is done.
func OverlappingBarriers(cfg platform.Config, park bool) Result {
	strategy := "racing"
	if park {
		strategy = "parked"
	}
	res := Result{Scenario: "overlap", Strategy: strategy,
		Params: fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols)}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}
	const delay = 100
	runErr := r.execute(func(c *platform.Cluster) error {
		comm, err := collcomm.NewMeshComm(c, 1, c.Mesh().Cols, 0, 0)
		if err != nil {
			return err
		}
		start := c.Time()
		rowBarrier := func() error {
			c.Sleep(delay)
			return collcomm.HardwareBarrier{}.Wait(c, comm)
		}
		if park {
			err = collcomm.Exclusive(c, comm, rowBarrier)
		} else if comm.IsParticipant {
			err = rowBarrier()
		}
		if err != nil {
			return err
		}
		err = collcomm.GlobalBarrier(c)
		r.cycles[c.Index()] = c.Time() - start
		return err
	})
	return r.result(res, runErr, 0)
}
