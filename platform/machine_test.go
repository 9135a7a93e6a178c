package platform_test

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unixpickle/picobello/platform"
	"github.com/unixpickle/picobello/simulator"
)

var _ = Describe("Machine", func() {
	var (
		cfg platform.Config
		m   *platform.Machine
	)

	BeforeEach(func() {
		cfg = platform.DefaultConfig()
		cfg.TimeLimit = 1e6
	})

	JustBeforeEach(func() {
		var err error
		m, err = platform.NewMachine(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should give every cluster the same L1 offsets", func() {
		offsets := make([]platform.Addr, m.Mesh().Size())
		Expect(m.Run(func(c *platform.Cluster) {
			c.AllocL1(12, 1)
			a := c.AllocL1(64, 64)
			offsets[c.Index()] = c.Addrs().RemoteAddr(a, c.Index(), 0)
		})).To(Succeed())
		for _, off := range offsets {
			Expect(off).To(Equal(offsets[0]))
		}
		Expect(uint64(offsets[0]) % 64).To(BeZero())
	})

	It("should copy with DMA only once the transfer completes", func() {
		src := m.Addrs().L3TileAddr(2, 0)
		m.WriteFloat64s(src, []float64{1, 2, 3, 4})
		var before, after []float64
		var elapsed float64
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() != 5 {
				return
			}
			dst := c.AllocL1(32, 8)
			c.DMAStart(dst, src, 32)
			before = c.ReadFloat64s(dst, 4)
			c.DMAWaitAll()
			after = c.ReadFloat64s(dst, 4)
			elapsed = c.Time()
		})).To(Succeed())
		Expect(before).To(Equal([]float64{0, 0, 0, 0}))
		Expect(after).To(Equal([]float64{1, 2, 3, 4}))
		Expect(elapsed).To(BeNumerically(">=", cfg.WideLatency+32/cfg.WideRate))
	})

	It("should gather and scatter with 2D transfers", func() {
		src := m.Addrs().L3TileAddr(0, 0)
		matrix := make([]float64, 16)
		for i := range matrix {
			matrix[i] = float64(i)
		}
		m.WriteFloat64s(src, matrix)
		var tile []float64
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() != 0 {
				return
			}
			dst := c.AllocL1(4*8, 8)
			// The 2x2 block at row 1, column 2 of a 4x4
			// row-major matrix.
			c.DMAStart2D(dst, src.Add((4+2)*8), 16, 16, 32, 2)
			c.DMAWaitAll()
			tile = c.ReadFloat64s(dst, 4)
		})).To(Succeed())
		Expect(tile).To(Equal([]float64{6, 7, 10, 11}))
	})

	It("should multicast to the masked clusters only", func() {
		var dst platform.Addr
		got := make([][]float64, m.Mesh().Size())
		Expect(m.Run(func(c *platform.Cluster) {
			local := c.AllocL1(16, 8)
			src := c.AllocL1(16, 8)
			dst = c.Addrs().RemoteAddr(local, c.Index(), 0)
			if c.Index() == 4 {
				c.WriteFloat64s(src, []float64{7, 8})
				// Rows 0-1 of columns 1 and 3.
				c.DMAStartMulticast(local, src, 16, 0b1001)
				c.DMAWaitAll()
			}
		})).To(Succeed())
		for i := range got {
			got[i] = m.ReadFloat64s(m.Addrs().RemoteAddr(dst, 0, i), 2)
		}
		for _, i := range []int{4, 5, 12, 13} {
			Expect(got[i]).To(Equal([]float64{7, 8}), "cluster %d", i)
		}
		for _, i := range []int{0, 6, 8, 14} {
			Expect(got[i]).To(Equal([]float64{0, 0}), "cluster %d", i)
		}
	})

	It("should reduce in the network", func() {
		var dst platform.Addr
		Expect(m.Run(func(c *platform.Cluster) {
			src := c.AllocL1(16, 8)
			local := c.AllocL1(16, 8)
			dst = c.Addrs().RemoteAddr(local, c.Index(), 0)
			if c.Mesh().Col(c.Index()) != 2 {
				return
			}
			c.WriteFloat64s(src, []float64{1, float64(c.Index())})
			root := c.Addrs().RemoteAddr(local, c.Index(), c.Mesh().Index(0, 2))
			c.DMAStartReduce(root, src, 16, 0b11, platform.ReduceFAdd)
			c.DMAWaitAll()
		})).To(Succeed())
		res := m.ReadFloat64s(m.Addrs().RemoteAddr(dst, 0, 8), 2)
		Expect(res).To(Equal([]float64{4, 8 + 9 + 10 + 11}))
	})

	It("should apply atomics and remote stores", func() {
		var counter platform.Addr
		olds := make([]uint32, m.Mesh().Size())
		Expect(m.Run(func(c *platform.Cluster) {
			counter = c.Addrs().ClusterAddr(3, 0x100)
			olds[c.Index()] = c.AtomicAdd32(counter, 2)
		})).To(Succeed())
		Expect(m.ReadUint32(counter)).To(Equal(uint32(32)))
		seen := map[uint32]bool{}
		for _, old := range olds {
			seen[old] = true
		}
		Expect(seen).To(HaveLen(16))

		var loaded uint32
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() == 9 {
				c.Store32(counter, 77)
				c.Fence()
				loaded = c.Load32(counter)
			}
		})).To(Succeed())
		Expect(loaded).To(Equal(uint32(77)))
	})

	It("should wake a core with an interrupt", func() {
		woken := make([]float64, m.Mesh().Size())
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() == 0 {
				c.Sleep(100)
				c.SendInterrupt(4, 0b11)
				c.Fence()
				return
			}
			if c.Mesh().Col(c.Index()) == 1 {
				c.WaitForInterrupt()
				c.ClearInterrupt()
				woken[c.Index()] = c.Time()
			}
		})).To(Succeed())
		for i := 4; i < 8; i++ {
			Expect(woken[i]).To(BeNumerically(">", 100))
		}
	})

	It("should keep an interrupt pending until cleared", func() {
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() != 1 {
				return
			}
			c.SendInterrupt(1, 0)
			c.Fence()
			c.Sleep(50)
			c.WaitForInterrupt()
			c.WaitForInterrupt()
			c.ClearInterrupt()
		})).To(Succeed())
	})

	It("should release a hardware barrier once the group arrives", func() {
		released := make([]float64, m.Mesh().Size())
		Expect(m.Run(func(c *platform.Cluster) {
			c.Sleep(float64(c.Index() * 10))
			c.CollectiveStore32(c.Addrs().ClusterAddr(0, 0), 0, platform.OpReductionBarrier, 15)
			c.Fence()
			released[c.Index()] = c.Time()
		})).To(Succeed())
		for _, t := range released {
			Expect(t).To(BeNumerically(">", 150))
		}
	})

	It("should detect a barrier with a missing participant", func() {
		err := m.Run(func(c *platform.Cluster) {
			if c.Index() == 7 {
				return
			}
			c.CollectiveStore32(c.Addrs().ClusterAddr(0, 0), 0, platform.OpReductionBarrier, 15)
			c.Fence()
		})
		Expect(errors.Is(err, simulator.ErrDeadlock)).To(BeTrue())
	})

	Context("with a short time limit", func() {
		BeforeEach(func() {
			cfg.TimeLimit = 5000
		})

		It("should stop a spinning cluster", func() {
			err := m.Run(func(c *platform.Cluster) {
				if c.Index() == 0 {
					for c.Load32(c.Addrs().ClusterAddr(1, 0x100)) == 0 {
						c.Sleep(10)
					}
				}
			})
			Expect(errors.Is(err, simulator.ErrTimeLimit)).To(BeTrue())
			Expect(m.Cycles()).To(BeNumerically("<=", 5000))
		})
	})

	It("should combine across lanes", func() {
		var res []float64
		var elapsed float64
		var overlapPanicked bool
		Expect(m.Run(func(c *platform.Cluster) {
			if c.Index() != 2 {
				return
			}
			a, b, out := c.AllocL1(80, 8), c.AllocL1(80, 8), c.AllocL1(80, 8)
			for i := 0; i < 10; i++ {
				c.WriteFloat64s(a.Add(i*8), []float64{float64(i)})
				c.WriteFloat64s(b.Add(i*8), []float64{100})
			}
			c.Combine(a, b, out, 10)
			res = c.ReadFloat64s(out, 10)
			elapsed = c.Time()
			func() {
				defer func() {
					overlapPanicked = recover() != nil
				}()
				c.Combine(a, b, a.Add(8), 10)
			}()
		})).To(Succeed())
		Expect(overlapPanicked).To(BeTrue())
		Expect(res[0]).To(Equal(100.0))
		Expect(res[9]).To(Equal(109.0))
		Expect(elapsed).To(Equal(2 * cfg.FlopTime))
	})

	Context("with exclusive collectives", func() {
		BeforeEach(func() {
			cfg.ExclusiveCollectives = true
		})

		It("should stall a second collective on a busy router", func() {
			row := m.Addrs().ClusterAddr(0, 8)
			global := m.Addrs().ClusterAddr(0, 0)
			err := m.Run(func(c *platform.Cluster) {
				if c.Mesh().Row(c.Index()) == 0 {
					// Reach the row barrier only after the
					// other rows took the router.
					c.Sleep(200)
					c.CollectiveStore32(row, 0, platform.OpReductionBarrier, 0b1100)
					c.Fence()
				}
				c.CollectiveStore32(global, 0, platform.OpReductionBarrier, 15)
				c.Fence()
			})
			Expect(errors.Is(err, simulator.ErrDeadlock)).To(BeTrue())
		})
	})

	Context("with independent collectives", func() {
		BeforeEach(func() {
			cfg.ExclusiveCollectives = false
		})

		It("should serve overlapping collectives", func() {
			row := m.Addrs().ClusterAddr(0, 8)
			global := m.Addrs().ClusterAddr(0, 0)
			Expect(m.Run(func(c *platform.Cluster) {
				if c.Mesh().Row(c.Index()) == 0 {
					c.Sleep(200)
					c.CollectiveStore32(row, 0, platform.OpReductionBarrier, 0b1100)
					c.Fence()
				}
				c.CollectiveStore32(global, 0, platform.OpReductionBarrier, 15)
				c.Fence()
			})).To(Succeed())
		})
	})
})
