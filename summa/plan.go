package summa

import (
	"log/slog"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/unixpickle/picobello/collcomm"
	"github.com/unixpickle/picobello/collcomm/reduce"
	"github.com/unixpickle/picobello/platform"
)

// A Plan holds the tile buffers of one cluster for one
// multiplication.
type Plan struct {
	c     Cluster
	comms *Comms
	args  Args

	tileM, tileN, tileK          int
	clusterM, clusterN, clusterK int
	numTiles                     int

	la, lb, lc [2]platform.Addr

	// lcr receives reduced tiles with ParallelizeK.
	lcr     [2]platform.Addr
	zero    platform.Addr
	scratch platform.Addr

	reducer reduce.Reducer
	barrier collcomm.Barrier
}

// NewPlan validates the arguments and allocates the tile
// buffers in L1.
//
// Every cluster must create the same plans in the same
// order, so that their buffers line up.
func NewPlan(c Cluster, comms *Comms, args Args) (*Plan, error) {
	mesh := c.Mesh()
	switch {
	case args.M <= 0 || args.N <= 0 || args.K <= 0:
		return nil, errors.Wrapf(ErrInvalidArgs, "%dx%dx%d problem", args.M, args.N, args.K)
	case args.MTiles <= 0 || args.NTiles <= 0 || args.KTiles <= 0:
		return nil, errors.Wrapf(ErrInvalidArgs, "%dx%dx%d tiles", args.MTiles, args.NTiles,
			args.KTiles)
	case args.M%args.MTiles != 0 || args.N%args.NTiles != 0 || args.K%args.KTiles != 0:
		return nil, errors.Wrapf(ErrInvalidArgs, "%dx%dx%d problem in %dx%dx%d tiles",
			args.M, args.N, args.K, args.MTiles, args.NTiles, args.KTiles)
	case args.ParallelizeK && args.Broadcaster != nil:
		return nil, errors.Wrap(ErrInvalidArgs, "cannot share B tiles when splitting k")
	case args.ParallelizeK && args.KTiles%mesh.Size() != 0:
		return nil, errors.Wrapf(ErrInvalidArgs, "%d k tiles over %d clusters", args.KTiles,
			mesh.Size())
	case !args.ParallelizeK && (args.MTiles%mesh.Rows != 0 || args.NTiles%mesh.Cols != 0):
		return nil, errors.Wrapf(ErrInvalidArgs, "%dx%d tiles over %s", args.MTiles,
			args.NTiles, comms.World)
	}

	p := &Plan{
		c:        c,
		comms:    comms,
		args:     args,
		tileM:    args.M / args.MTiles,
		tileN:    args.N / args.NTiles,
		tileK:    args.K / args.KTiles,
		clusterM: args.MTiles,
		clusterN: args.NTiles,
		clusterK: args.KTiles,
		reducer:  args.Reducer,
		barrier:  args.Barrier,
	}
	if args.ParallelizeK {
		p.clusterK /= mesh.Size()
	} else {
		p.clusterM /= mesh.Rows
		p.clusterN /= mesh.Cols
	}
	p.numTiles = p.clusterM * p.clusterN * p.clusterK
	if p.reducer == nil {
		p.reducer = reduce.Tree{}
	}
	if p.barrier == nil {
		if args.Broadcaster != nil {
			p.barrier = collcomm.SoftwareBarrier{}
		} else {
			p.barrier = collcomm.DefaultBarrier(comms.World)
		}
	}

	numBufs := 1
	if args.DoubleBuffer {
		numBufs = 2
	}
	cSize := p.tileM * p.tileN * 8
	for i := 0; i < numBufs; i++ {
		p.la[i] = c.AllocL1(p.tileM*p.tileK*8, 8)
		p.lb[i] = c.AllocL1(p.tileK*p.tileN*8, 8)
		p.lc[i] = c.AllocL1(cSize, 8)
	}
	if args.ParallelizeK {
		for i := range p.lcr {
			p.lcr[i] = c.AllocL1(cSize, 8)
		}
		p.scratch = c.AllocL1(p.reducer.ScratchSize(comms.World, p.tileM*p.tileN), 8)
	}
	p.zero = c.AllocL1(cSize, 8)
	c.WriteFloat64s(p.zero, make([]float64, p.tileM*p.tileN))

	if c.Index() == 0 {
		slog.Debug("gemm plan", "tile", []int{p.tileM, p.tileN, p.tileK},
			"tiles", p.numTiles, "double_buffer", args.DoubleBuffer,
			"parallelize_k", args.ParallelizeK)
	}
	return p, nil
}

// NumIters is the number of iterations of Run, including
// the ones that fill and drain the pipeline.
func (p *Plan) NumIters() int {
	if p.args.DoubleBuffer {
		return p.numTiles + 2
	}
	return p.numTiles + 1
}

// Run performs the multiplication.
func (p *Plan) Run() error {
	for i := 0; i < p.NumIters(); i++ {
		in, comp, out := i, i, i-1
		if p.args.DoubleBuffer {
			comp, out = i-1, i-2
		}
		if out >= 0 {
			p.writeBack(out)
		}
		if in < p.numTiles {
			if err := p.load(in); err != nil {
				return errors.Wrapf(err, "load tile %d", in)
			}
		}
		if !p.args.DoubleBuffer {
			if err := p.barrier.Wait(p.c, p.comms.World); err != nil {
				return err
			}
		}
		if comp >= 0 && comp < p.numTiles {
			if err := p.compute(comp); err != nil {
				return errors.Wrapf(err, "compute tile %d", comp)
			}
		}
		if err := p.barrier.Wait(p.c, p.comms.World); err != nil {
			return err
		}
	}
	return nil
}

type tile struct {
	m, n, k, mn      int
	mAbs, nAbs, kAbs int
}

// tile locates an iteration of this cluster. Tiles are
// visited with k innermost, then n, then m.
func (p *Plan) tile(i int) tile {
	t := tile{k: i % p.clusterK, mn: i / p.clusterK}
	t.n = t.mn % p.clusterN
	t.m = t.mn / p.clusterN
	t.mAbs, t.nAbs, t.kAbs = t.m, t.n, t.k
	idx := p.c.Index()
	if p.args.ParallelizeK {
		t.kAbs += idx * p.clusterK
	} else {
		t.mAbs += p.c.Mesh().Row(idx) * p.clusterM
		t.nAbs += p.c.Mesh().Col(idx) * p.clusterN
	}
	return t
}

// An A tile is reused across n unless k is tiled, so its
// buffer only switches when a new one is loaded.
func (p *Plan) aBuf(i int, t tile) int {
	switch {
	case !p.args.DoubleBuffer:
		return 0
	case p.clusterK > 1:
		return i % 2
	}
	return t.m % 2
}

func (p *Plan) bBuf(i int) int {
	if !p.args.DoubleBuffer {
		return 0
	}
	return i % 2
}

// A C tile accumulates over k, so its buffer switches
// with every mn.
func (p *Plan) cBuf(t tile) int {
	if !p.args.DoubleBuffer {
		return 0
	}
	return t.mn % 2
}

func (p *Plan) matAddr(base platform.Addr, ld, row, col int) platform.Addr {
	return base.Add((row*ld + col) * 8)
}

func (p *Plan) writeBack(i int) {
	t := p.tile(i)
	if t.k != p.clusterK-1 {
		return
	}
	src := p.lc[p.cBuf(t)]
	if p.args.ParallelizeK {
		if p.c.Index() != p.comms.World.Root() {
			return
		}
		src = p.lcr[t.mn%2]
	}
	dst := p.matAddr(p.args.C, p.args.N, t.mAbs*p.tileM, t.nAbs*p.tileN)
	p.c.DMAStart2D(dst, src, p.tileN*8, p.args.N*8, p.tileN*8, p.tileM)
	p.c.DMAWaitAll()
}

func (p *Plan) load(i int) error {
	c := p.c
	t := p.tile(i)

	if t.n == 0 || p.clusterK > 1 {
		src := p.matAddr(p.args.A, p.args.K, t.mAbs*p.tileM, t.kAbs*p.tileK)
		c.DMAStart2D(p.la[p.aBuf(i, t)], src, p.tileK*8, p.tileK*8, p.args.K*8, p.tileM)
	}

	lb := p.lb[p.bBuf(i)]
	src := p.matAddr(p.args.B, p.args.N, t.kAbs*p.tileK, t.nAbs*p.tileN)
	if p.args.Broadcaster == nil {
		c.DMAStart2D(lb, src, p.tileN*8, p.tileN*8, p.args.N*8, p.tileK)
	} else {
		col := p.comms.Cols[c.Mesh().Col(c.Index())]
		if c.Index() == col.Root() {
			c.DMAStart2D(lb, src, p.tileN*8, p.tileN*8, p.args.N*8, p.tileK)
			c.DMAWaitAll()
		}
		if err := p.args.Broadcaster.Broadcast(c, col, lb, lb, p.tileK*p.tileN*8); err != nil {
			return err
		}
	}

	if t.k == 0 {
		lc := p.lc[p.cBuf(t)]
		if t.kAbs == 0 && p.args.Beta != 0 {
			src := p.matAddr(p.args.C, p.args.N, t.mAbs*p.tileM, t.nAbs*p.tileN)
			c.DMAStart2D(lc, src, p.tileN*8, p.tileN*8, p.args.N*8, p.tileM)
		} else {
			c.DMAStart(lc, p.zero, p.tileM*p.tileN*8)
		}
	}
	c.DMAWaitAll()
	return nil
}

func (p *Plan) compute(i int) error {
	c := p.c
	t := p.tile(i)
	lc := p.lc[p.cBuf(t)]

	a := mat.NewDense(p.tileM, p.tileK, c.ReadFloat64s(p.la[p.aBuf(i, t)], p.tileM*p.tileK))
	b := mat.NewDense(p.tileK, p.tileN, c.ReadFloat64s(p.lb[p.bBuf(i)], p.tileK*p.tileN))
	acc := mat.NewDense(p.tileM, p.tileN, c.ReadFloat64s(lc, p.tileM*p.tileN))
	if t.k == 0 && t.kAbs == 0 && p.args.Beta != 1 {
		acc.Scale(p.args.Beta, acc)
	}
	var prod mat.Dense
	prod.Mul(a, b)
	acc.Add(acc, &prod)
	c.Compute(2 * p.tileM * p.tileN * p.tileK)
	c.WriteFloat64s(lc, acc.RawMatrix().Data)

	if p.args.ParallelizeK && t.k == p.clusterK-1 {
		return p.reducer.Reduce(c, p.comms.World, reduce.Buffers{
			Src:     lc,
			Dst:     p.lcr[t.mn%2],
			Scratch: p.scratch,
			Count:   p.tileM * p.tileN,
		})
	}
	return nil
}
