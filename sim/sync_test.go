package sim

import (
	stdsync "sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vortexsim/vortex/transport"
)

// runRanks drives a collective phase of every rank concurrently, the
// way the job harness does.
func runRanks(phase func(*Simulation) error, ranks ...*Simulation) {
	var wg stdsync.WaitGroup

	errs := make([]error, len(ranks))
	for i, r := range ranks {
		i, r := i, r
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer GinkgoRecover()
			errs[i] = phase(r)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		ExpectWithOffset(1, err).To(Succeed())
	}
}

var _ = Describe("Sync", func() {
	const (
		period      = SimTime(100)
		crossLinkID = LinkID(7)
	)

	var (
		hub    *transport.Hub
		rank0  *Simulation
		rank1  *Simulation
		sender *testComponent
		recver *testComponent
	)

	BeforeEach(func() {
		hub = transport.NewHub(2)
		rank0 = NewDistributedSimulation(
			hub.Comm(0), NewTimeConverter(period))
		rank1 = NewDistributedSimulation(
			hub.Comm(1), NewTimeConverter(period))

		sender = &testComponent{
			BaseComponent: NewBaseComponent(
				rank0, NewComponentID(0), "sender"),
		}
		recver = &testComponent{
			BaseComponent: NewBaseComponent(
				rank1, NewComponentID(1), "recver"),
		}
		Expect(rank0.RegisterComponent(sender)).To(Succeed())
		Expect(rank1.RegisterComponent(recver)).To(Succeed())
	})

	connect := func(latency SimTime, handler EventHandler) *Link {
		recvLink := recver.ConfigureLink("in", latency, handler)
		rank1.BindRemoteRecvLink(recvLink, crossLinkID, 0)

		stub := rank0.ConfigureRemoteSendLink(
			"recver.in", crossLinkID, latency, 1)
		sender.BindOutbound("out", stub)

		return stub
	}

	It("should deliver a cross-rank event at its exact cycle", func() {
		var handledAt []SimTime
		stub := connect(100, func(ev *Event) {
			handledAt = append(handledAt, rank1.CurrentCycle())
			Expect(ev.Payload()).To(Equal("ping"))
		})

		rank0.ScheduleAction(50, DefaultPriority, func(now SimTime) {
			stub.Send(100, NewEvent("ping"))
		})

		rank0.EndSimulationAt(200)
		rank1.EndSimulationAt(200)

		runRanks(func(s *Simulation) error { return s.Initialize() },
			rank0, rank1)
		Expect(rank0.Setup()).To(Succeed())
		Expect(rank1.Setup()).To(Succeed())

		// Before the first barrier the event is invisible to the peer:
		// rank 1 holds only its sync activity and end marker.
		Expect(rank1.Vortex().Size()).To(Equal(2))

		runRanks(func(s *Simulation) error { return s.Run() },
			rank0, rank1)

		Expect(handledAt).To(Equal([]SimTime{150}))
		Expect(stub.syncQueue.Empty()).To(BeTrue())
	})

	It("should batch events inside a window and ship them together", func() {
		var payloads []any
		stub := connect(100, func(ev *Event) {
			payloads = append(payloads, ev.Payload())
		})

		rank0.ScheduleAction(10, DefaultPriority, func(now SimTime) {
			stub.Send(150, NewEvent(int64(1)))
			stub.Send(120, NewEvent(int64(2)))
		})

		rank0.EndSimulationAt(300)
		rank1.EndSimulationAt(300)

		runRanks(func(s *Simulation) error { return s.Initialize() },
			rank0, rank1)
		Expect(rank0.Setup()).To(Succeed())
		Expect(rank1.Setup()).To(Succeed())

		runRanks(func(s *Simulation) error { return s.Run() },
			rank0, rank1)

		// Delivered in local time order: 10+120=130, then 10+150=160.
		Expect(payloads).To(Equal([]any{int64(2), int64(1)}))
	})

	It("should fail setup when a cross-rank latency is below the period",
		func() {
			connect(50, func(ev *Event) {})

			err := rank0.Setup()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("recver.in"))
			Expect(err.Error()).To(ContainSubstring("50"))
			Expect(err.Error()).To(ContainSubstring("100"))

			// No activity has executed.
			Expect(rank0.CurrentCycle()).To(Equal(SimTime(0)))
		})

	It("should reject a zero-latency cross-rank link at setup", func() {
		connect(0, func(ev *Event) {})

		err := rank1.Setup()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("zero latency"))
	})

	It("should ferry init data before time zero", func() {
		stub := connect(100, func(ev *Event) {})
		recvLink := recver.LinkByPort("in")

		var received []any
		senderInit := func(phase int) bool {
			if phase == 0 {
				stub.SendInitData(NewLinkInitData("bootstrap"))
				return true
			}
			return false
		}
		recverInit := func(phase int) bool {
			for d := recvLink.RecvInitData(); d != nil; d = recvLink.RecvInitData() {
				received = append(received, d.Payload())
			}
			return phase == 0
		}

		sender.initFn = senderInit
		recver.initFn = recverInit

		runRanks(func(s *Simulation) error { return s.Initialize() },
			rank0, rank1)

		Expect(received).To(Equal([]any{"bootstrap"}))

		// No init data remains queued on either side.
		Expect(stub.sendInitQueue).To(BeEmpty())
		Expect(recvLink.recvInitQueue).To(BeEmpty())
	})
})
