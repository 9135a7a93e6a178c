package collcomm

import (
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unixpickle/picobello/platform"
	"github.com/unixpickle/picobello/topology"
)

var _ = Describe("Barrier protocols", func() {
	var (
		mockCtrl *gomock.Controller
		cluster  *MockCluster
		mesh     topology.Mesh
		addrs    *platform.AddrMap
		ptr      platform.Addr
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cluster = NewMockCluster(mockCtrl)
		mesh = topology.Mesh{Rows: 4, Cols: 4}
		addrs = platform.DefaultConfig().AddrMap()
		ptr = addrs.ClusterAddr(0, 0x100)

		cluster.EXPECT().Mesh().Return(mesh).AnyTimes()
		cluster.EXPECT().Addrs().Return(addrs).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	square := func(participant bool) *Comm {
		return &Comm{
			Mesh:          mesh,
			Rows:          2,
			Cols:          2,
			Size:          4,
			Mask:          mesh.MaskFor(2, 2),
			BarrierPtr:    ptr,
			IsParticipant: participant,
		}
	}

	Context("software barrier", func() {
		It("should count, reset, and wake from the root", func() {
			cluster.EXPECT().Index().Return(0).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().AtomicAdd32(ptr, uint32(1)).Return(uint32(3)),
				cluster.EXPECT().Load32(ptr).Return(uint32(2)),
				cluster.EXPECT().Sleep(float64(DefaultPollInterval)),
				cluster.EXPECT().Load32(ptr).Return(uint32(4)),
				cluster.EXPECT().Store32(ptr, uint32(0)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().SendInterrupt(0, uint32(5)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().WaitForInterrupt(),
				cluster.EXPECT().ClearInterrupt(),
			)

			Expect(SoftwareBarrier{}.Wait(cluster, square(true))).To(Succeed())
		})

		It("should only count and sleep on other members", func() {
			cluster.EXPECT().Index().Return(5).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().AtomicAdd32(ptr, uint32(1)).Return(uint32(0)),
				cluster.EXPECT().WaitForInterrupt(),
				cluster.EXPECT().ClearInterrupt(),
			)

			Expect(SoftwareBarrier{PollInterval: 3}.Wait(cluster, square(true))).To(Succeed())
		})

		It("should wake members one by one without a mask", func() {
			comm := &Comm{
				Mesh:          mesh,
				Rows:          3,
				Cols:          1,
				Size:          3,
				BarrierPtr:    ptr,
				IsParticipant: true,
			}
			cluster.EXPECT().Index().Return(0).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().AtomicAdd32(ptr, uint32(1)).Return(uint32(2)),
				cluster.EXPECT().Load32(ptr).Return(uint32(3)),
				cluster.EXPECT().Store32(ptr, uint32(0)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().SendInterrupt(0, uint32(0)),
				cluster.EXPECT().SendInterrupt(1, uint32(0)),
				cluster.EXPECT().SendInterrupt(2, uint32(0)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().WaitForInterrupt(),
				cluster.EXPECT().ClearInterrupt(),
			)

			Expect(SoftwareBarrier{}.Wait(cluster, comm)).To(Succeed())
		})

		It("should ignore non-participants", func() {
			cluster.EXPECT().Index().Return(15).AnyTimes()
			Expect(SoftwareBarrier{}.Wait(cluster, square(false))).To(Succeed())
		})
	})

	Context("hardware barrier", func() {
		It("should post one collective write", func() {
			cluster.EXPECT().Index().Return(4).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().CollectiveStore32(ptr, uint32(1), platform.OpReductionBarrier, uint32(5)),
				cluster.EXPECT().Fence(),
			)

			Expect(HardwareBarrier{}.Wait(cluster, square(true))).To(Succeed())
		})

		It("should reject communicators without a mask", func() {
			cluster.EXPECT().Index().Return(0).AnyTimes()
			comm := &Comm{Mesh: mesh, Rows: 3, Cols: 2, Size: 6, BarrierPtr: ptr, IsParticipant: true}
			err := HardwareBarrier{}.Wait(cluster, comm)
			Expect(errors.Is(err, ErrUnsupportedParticipantCount)).To(BeTrue())
		})
	})

	Context("communicator creation", func() {
		It("should let the root zero the counter", func() {
			counter := addrs.ClusterAddr(10, 0x40)
			cluster.EXPECT().Index().Return(10).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().AllocL1(4, 4).Return(counter),
				cluster.EXPECT().Store32(counter, uint32(0)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().CollectiveStore32(addrs.ClusterAddr(0, platform.WorldBarrierOffset),
					uint32(1), platform.OpReductionBarrier, uint32(15)),
				cluster.EXPECT().Fence(),
			)

			comm, err := NewMeshComm(cluster, 2, 2, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(comm.IsParticipant).To(BeTrue())
			Expect(comm.BarrierPtr).To(Equal(counter))
			Expect(comm.Root()).To(Equal(10))
			Expect(comm.Mask).To(Equal(uint32(5)))
			Expect(comm.Base).To(Equal(uint32(10)))
		})

		It("should point other clusters at the root's counter", func() {
			cluster.EXPECT().Index().Return(3).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().AllocL1(4, 4).Return(addrs.ClusterAddr(3, 0x40)),
				cluster.EXPECT().CollectiveStore32(gomock.Any(), uint32(1), platform.OpReductionBarrier, uint32(15)),
				cluster.EXPECT().Fence(),
			)

			comm, err := NewMeshComm(cluster, 2, 2, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(comm.IsParticipant).To(BeFalse())
			Expect(comm.BarrierPtr).To(Equal(addrs.ClusterAddr(10, 0x40)))
		})

		It("should reject sub-meshes that do not fit", func() {
			_, err := NewMeshComm(cluster, 2, 3, 2, 2)
			Expect(errors.Is(err, topology.ErrInvalidTopology)).To(BeTrue())
		})
	})

	Context("exclusive sections", func() {
		It("should park non-members", func() {
			cluster.EXPECT().Index().Return(15).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().WaitForInterrupt(),
				cluster.EXPECT().ClearInterrupt(),
			)
			called := false
			Expect(Exclusive(cluster, square(false), func() error {
				called = true
				return nil
			})).To(Succeed())
			Expect(called).To(BeFalse())
		})

		It("should wake non-members from the root", func() {
			cluster.EXPECT().Index().Return(0).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().Compute(10),
				cluster.EXPECT().CollectiveStore32(ptr, uint32(1), platform.OpReductionBarrier, uint32(5)),
				cluster.EXPECT().Fence(),
				cluster.EXPECT().SendInterrupt(gomock.Any(), uint32(0)).Times(12),
				cluster.EXPECT().Fence(),
			)
			Expect(Exclusive(cluster, square(true), func() error {
				cluster.Compute(10)
				return nil
			})).To(Succeed())
		})

		It("should report errors after releasing the mesh", func() {
			cluster.EXPECT().Index().Return(1).AnyTimes()
			gomock.InOrder(
				cluster.EXPECT().CollectiveStore32(ptr, uint32(1), platform.OpReductionBarrier, uint32(5)),
				cluster.EXPECT().Fence(),
			)
			failure := errors.New("failure")
			err := Exclusive(cluster, square(true), func() error {
				return failure
			})
			Expect(err).To(Equal(failure))
		})
	})
})
