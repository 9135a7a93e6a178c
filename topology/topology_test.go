package topology_test

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unixpickle/picobello/topology"
)

var _ = Describe("Mesh", func() {
	var m topology.Mesh

	BeforeEach(func() {
		var err error
		m, err = topology.NewMesh(4, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject empty meshes", func() {
		_, err := topology.NewMesh(0, 4)
		Expect(errors.Is(err, topology.ErrInvalidTopology)).To(BeTrue())
	})

	It("should round-trip every index", func() {
		for _, mesh := range []topology.Mesh{m, {Rows: 3, Cols: 5}, {Rows: 1, Cols: 7}} {
			for idx := 0; idx < mesh.Size(); idx++ {
				Expect(mesh.Row(idx)).To(BeNumerically("<", mesh.Rows))
				Expect(mesh.Col(idx)).To(BeNumerically("<", mesh.Cols))
				Expect(mesh.Index(mesh.Row(idx), mesh.Col(idx))).To(Equal(idx))
			}
		}
	})

	It("should number clusters column-major", func() {
		Expect(m.Row(6)).To(Equal(2))
		Expect(m.Col(6)).To(Equal(1))
		Expect(m.Index(3, 2)).To(Equal(11))
		Expect(m.InRow(6, 2)).To(BeTrue())
		Expect(m.InCol(6, 2)).To(BeFalse())
	})

	It("should find neighbors away from the edges", func() {
		Expect(m.North(5)).To(Equal(6))
		Expect(m.South(5)).To(Equal(4))
		Expect(m.East(5)).To(Equal(9))
		Expect(m.West(5)).To(Equal(1))
	})

	It("should detect the mesh edges", func() {
		Expect(m.IsSouthernmost(4)).To(BeTrue())
		Expect(m.IsNorthernmost(7)).To(BeTrue())
		Expect(m.IsWesternmost(3)).To(BeTrue())
		Expect(m.IsEasternmost(12)).To(BeTrue())
		Expect(m.IsEasternmost(8)).To(BeFalse())
	})

	It("should map clusters to the closest memory tile", func() {
		Expect(m.NumMemTiles()).To(Equal(8))
		Expect(m.ClosestMemTile(0)).To(Equal(0))
		Expect(m.ClosestMemTile(7)).To(Equal(3))
		Expect(m.ClosestMemTile(8)).To(Equal(4))
		Expect(m.ClosestMemTile(15)).To(Equal(7))
	})

	It("should pack masks and bases", func() {
		Expect(m.RowBits()).To(Equal(2))
		Expect(m.MaskFor(4, 4)).To(Equal(uint32(15)))
		Expect(m.MaskFor(1, 4)).To(Equal(uint32(12)))
		Expect(m.MaskFor(4, 1)).To(Equal(uint32(3)))
		Expect(m.Pack(2, 3)).To(Equal(uint32(m.Index(2, 3))))
	})

	It("should only mask aligned power-of-two sub-meshes", func() {
		Expect(m.Maskable(4, 2, 0, 2)).To(BeTrue())
		Expect(m.Maskable(2, 2, 1, 0)).To(BeFalse())
		Expect(m.Maskable(3, 1, 0, 0)).To(BeFalse())
		Expect(topology.Mesh{Rows: 3, Cols: 3}.Maskable(1, 1, 0, 0)).To(BeFalse())
	})

	It("should check sub-mesh bounds", func() {
		Expect(m.Contains(4, 4, 0, 0)).To(BeTrue())
		Expect(m.Contains(2, 2, 3, 0)).To(BeFalse())
		Expect(m.Contains(1, 5, 0, 0)).To(BeFalse())
	})

	It("should count XY hops on the floorplan", func() {
		Expect(m.Hops(m.ClusterPos(0), m.ClusterPos(15))).To(Equal(6))
		Expect(m.Hops(m.MemTilePos(0), m.ClusterPos(0))).To(Equal(1))
		Expect(m.Hops(m.MemTilePos(7), m.ClusterPos(15))).To(Equal(1))
		Expect(m.MemTilePos(5).String()).To(Equal("(5,1)"))
	})
})
