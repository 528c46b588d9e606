package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

func mockActivityAt(
	ctrl *gomock.Controller,
	t SimTime,
	priority int,
	id ActivityID,
) *MockActivity {
	a := NewMockActivity(ctrl)
	a.EXPECT().DeliveryTime().Return(t).AnyTimes()
	a.EXPECT().Priority().Return(priority).AnyTimes()
	a.EXPECT().ID().Return(id).AnyTimes()

	return a
}

var _ = Describe("TimeVortex", func() {
	var (
		mockCtrl *gomock.Controller
		vortex   *TimeVortex
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		vortex = NewTimeVortex()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start empty", func() {
		Expect(vortex.Empty()).To(BeTrue())
		Expect(vortex.Size()).To(Equal(0))
		Expect(vortex.Pop()).To(BeNil())
		Expect(vortex.Front()).To(BeNil())
	})

	It("should pop in time order", func() {
		numActivities := 100
		for i := 0; i < numActivities; i++ {
			a := mockActivityAt(mockCtrl,
				SimTime(rand.Uint64()%1000), 0, ActivityID(i))
			vortex.Insert(a)
		}

		var now SimTime
		for i := 0; i < numActivities; i++ {
			a := vortex.Pop()
			Expect(a.DeliveryTime() >= now).To(BeTrue())
			now = a.DeliveryTime()
		}

		Expect(vortex.Empty()).To(BeTrue())
	})

	It("should break same-time ties by priority, then id", func() {
		a := mockActivityAt(mockCtrl, 10, 5, 1)
		b := mockActivityAt(mockCtrl, 10, 3, 2)
		c := mockActivityAt(mockCtrl, 10, 5, 3)

		vortex.Insert(a)
		vortex.Insert(b)
		vortex.Insert(c)

		Expect(vortex.Pop()).To(BeIdenticalTo(b))
		Expect(vortex.Pop()).To(BeIdenticalTo(a))
		Expect(vortex.Pop()).To(BeIdenticalTo(c))
	})

	It("should pop deterministically for a given insert stream", func() {
		popOrder := func() []ActivityID {
			v := NewTimeVortex()
			for i := 0; i < 50; i++ {
				v.Insert(mockActivityAt(mockCtrl,
					SimTime(i%7), i%3, ActivityID(i)))
			}

			order := make([]ActivityID, 0, 50)
			for !v.Empty() {
				order = append(order, v.Pop().ID())
			}
			return order
		}

		Expect(popOrder()).To(Equal(popOrder()))
	})

	It("should keep Front and Pop consistent", func() {
		a := mockActivityAt(mockCtrl, 20, 0, 1)
		b := mockActivityAt(mockCtrl, 10, 0, 2)

		vortex.Insert(a)
		vortex.Insert(b)

		Expect(vortex.Front()).To(BeIdenticalTo(b))
		Expect(vortex.Pop()).To(BeIdenticalTo(b))
		Expect(vortex.Front()).To(BeIdenticalTo(a))
	})
})

var _ = Describe("PollingLinkQueue", func() {
	var (
		mockCtrl *gomock.Controller
		queue    *PollingLinkQueue
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewPollingLinkQueue()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should order by time and id, ignoring priority", func() {
		a := mockActivityAt(mockCtrl, 10, 100, 1)
		b := mockActivityAt(mockCtrl, 10, 0, 2)
		c := mockActivityAt(mockCtrl, 5, 50, 3)

		queue.Insert(a)
		queue.Insert(b)
		queue.Insert(c)

		Expect(queue.Pop()).To(BeIdenticalTo(c))
		Expect(queue.Pop()).To(BeIdenticalTo(a))
		Expect(queue.Pop()).To(BeIdenticalTo(b))
	})

	It("should return nil when drained", func() {
		Expect(queue.Pop()).To(BeNil())
		Expect(queue.Front()).To(BeNil())
	})
})
