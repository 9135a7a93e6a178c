package bench

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/unixpickle/picobello/collcomm/bcast"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
	"github.com/unixpickle/picobello/summa"
)

// GemmMode selects how a multiplication moves tiles.
type GemmMode int

const (
	// GemmNaive has every cluster load its own B tiles.
	GemmNaive GemmMode = iota

	// GemmHardware multicasts B tiles down each column.
	GemmHardware

	// GemmTree forwards B tiles down each column along a
	// binary tree.
	GemmTree

	// GemmSplitK splits k across clusters and sums the
	// partial tiles with a tree reduction.
	GemmSplitK

	// GemmSplitKHardware splits k across clusters and sums
	// the partial tiles in the network.
	GemmSplitKHardware
)

// GemmModes lists every GemmMode.
var GemmModes = []GemmMode{GemmNaive, GemmHardware, GemmTree, GemmSplitK, GemmSplitKHardware}

func (g GemmMode) String() string {
	switch g {
	case GemmNaive:
		return "naive"
	case GemmHardware:
		return "hw"
	case GemmTree:
		return "tree"
	case GemmSplitK:
		return "split-k"
	case GemmSplitKHardware:
		return "split-k-hw"
	}
	return "unknown"
}

// ParseGemmMode parses the names produced by
// GemmMode.String.
func ParseGemmMode(s string) (GemmMode, error) {
	for _, g := range GemmModes {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return 0, errors.Errorf("unknown gemm mode: %q", s)
}

// Args fills in the data movement of a mode.
func (g GemmMode) Args(args summa.Args) summa.Args {
	switch g {
	case GemmHardware:
		args.Broadcaster = bcast.Hardware{}
	case GemmTree:
		args.Broadcaster = bcast.Tree{}
	case GemmSplitK:
		args.ParallelizeK = true
		args.Reducer = reduce.Tree{}
	case GemmSplitKHardware:
		args.ParallelizeK = true
		args.Reducer = reduce.Hardware{}
	}
	return args
}

// GemmShape is the problem and tiling of a multiplication.
type GemmShape struct {
	M, N, K                int
	MTiles, NTiles, KTiles int
	DoubleBuffer           bool
}

func (g GemmShape) String() string {
	s := fmt.Sprintf("%dx%dx%d in %dx%dx%d", g.M, g.N, g.K, g.MTiles, g.NTiles, g.KTiles)
	if g.DoubleBuffer {
		s += " db"
	}
	return s
}

// Gemm times a multiplication of random matrices and
// counts the elements of C that differ from a reference
// product.
func Gemm(cfg platform.Config, mode GemmMode, shape GemmShape, seed int64) Result {
	res := Result{Scenario: "gemm", Strategy: mode.String(), Params: shape.String()}
	r, err := newRun(cfg)
	if err != nil {
		return failed(res, err)
	}

	gen := rand.New(rand.NewSource(seed))
	random := func(rows, cols int) *mat.Dense {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = gen.NormFloat64()
		}
		return mat.NewDense(rows, cols, data)
	}
	a, b, c := random(shape.M, shape.K), random(shape.K, shape.N), random(shape.M, shape.N)
	args := mode.Args(summa.Args{
		M: shape.M, N: shape.N, K: shape.K,
		MTiles: shape.MTiles, NTiles: shape.NTiles, KTiles: shape.KTiles,
		A:            r.m.Addrs().L3TileAddr(0, 0),
		B:            r.m.Addrs().L3TileAddr(1, 0),
		C:            r.m.Addrs().L3TileAddr(2, 0),
		Beta:         1,
		DoubleBuffer: shape.DoubleBuffer,
	})
	r.m.WriteFloat64s(args.A, a.RawMatrix().Data)
	r.m.WriteFloat64s(args.B, b.RawMatrix().Data)
	r.m.WriteFloat64s(args.C, c.RawMatrix().Data)

	var expected mat.Dense
	expected.Mul(a, b)
	expected.Add(&expected, c)

	runErr := r.execute(func(c *platform.Cluster) error {
		comms, err := summa.NewComms(c)
		if err != nil {
			return err
		}
		start := c.Time()
		err = summa.Gemm(c, comms, args)
		r.cycles[c.Index()] = c.Time() - start
		return err
	})
	res = r.result(res, runErr, 0)
	if res.Errors == 0 {
		actual := r.m.ReadFloat64s(args.C, shape.M*shape.N)
		for i, x := range expected.RawMatrix().Data {
			if math.Abs(x-actual[i]) > 1e-9 {
				res.Errors++
			}
		}
	}
	return res
}
