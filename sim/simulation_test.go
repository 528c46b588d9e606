package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Simulation", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Simulation
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = NewSimulation()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should advance the cycle to each popped activity", func() {
		comp := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
		}
		Expect(s.RegisterComponent(comp)).To(Succeed())

		var observed []SimTime
		link := comp.ConfigureLink("in", 1, func(ev *Event) {
			observed = append(observed, s.CurrentCycle())
		})

		link.Send(40, NewEvent(nil))
		link.Send(10, NewEvent(nil))
		link.Send(25, NewEvent(nil))

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())

		Expect(observed).To(Equal([]SimTime{10, 25, 40}))
		Expect(s.CurrentCycle()).To(Equal(SimTime(40)))
	})

	It("should bounce re-inserted events until the chain stops", func() {
		gen := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "gen"),
		}
		consumer := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(1), "consumer"),
		}
		Expect(s.RegisterComponent(gen)).To(Succeed())
		Expect(s.RegisterComponent(consumer)).To(Succeed())

		count := 0
		var link *Link
		link = consumer.ConfigureLink("in", 1,
			func(ev *Event) {
				count++
				if s.CurrentCycle()+50 <= 500 {
					link.Send(50, NewEvent(nil))
				}
			})
		gen.BindOutbound("out", link)

		gen.Outbound("out").Send(100, NewEvent(nil))

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())

		// Handled at 100, 150, ..., 500.
		Expect(count).To(Equal(9))
		Expect(s.CurrentCycle()).To(Equal(SimTime(500)))
	})

	It("should stop at the end marker after same-time work", func() {
		comp := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
		}
		Expect(s.RegisterComponent(comp)).To(Succeed())

		handledAtEnd := false
		link := comp.ConfigureLink("in", 1, func(ev *Event) {
			if s.CurrentCycle() == 200 {
				handledAtEnd = true
			}
		})

		link.Send(200, NewEvent(nil))
		link.Send(100, NewEvent(nil))
		s.EndSimulationAt(200)

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())

		// The same-cycle event outranks the end marker.
		Expect(handledAtEnd).To(BeTrue())
		Expect(s.CurrentCycle()).To(Equal(SimTime(200)))
	})

	It("should run init phases until no component wants more", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("mock").AnyTimes()

		gomock.InOrder(
			comp.EXPECT().Init(0).Return(true),
			comp.EXPECT().Init(1).Return(true),
			comp.EXPECT().Init(2).Return(false),
		)

		Expect(s.RegisterComponent(comp)).To(Succeed())
		Expect(s.Initialize()).To(Succeed())
	})

	It("should run setup and finish exactly once per component", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("mock").AnyTimes()
		comp.EXPECT().Setup().Return(nil).Times(1)
		comp.EXPECT().Finish().Return(nil).Times(1)

		Expect(s.RegisterComponent(comp)).To(Succeed())
		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())
		Expect(s.Finish()).To(Succeed())
	})

	It("should reject scheduling into the past", func() {
		comp := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
		}
		Expect(s.RegisterComponent(comp)).To(Succeed())

		link := comp.ConfigureLink("in", 1, func(ev *Event) {})
		link.Send(100, NewEvent(nil))
		s.ScheduleAction(50, DefaultPriority, func(now SimTime) {
			a := mockActivityAt(mockCtrl, 10, 0, 99999)
			Expect(func() { s.InsertActivity(a) }).To(Panic())
		})

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())
	})

	It("should fire recurring actions until stopped", func() {
		fired := []SimTime{}
		var action *Action
		action = s.ScheduleRecurringAction(10, DefaultPriority,
			func(now SimTime) {
				fired = append(fired, now)
				if now >= 30 {
					action.Stop()
				}
			})

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())

		Expect(fired).To(Equal([]SimTime{10, 20, 30}))
	})

	It("should produce identical runs for identical insert streams", func() {
		trace := func() []SimTime {
			s := NewSimulation()
			comp := &testComponent{
				BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
			}
			Expect(s.RegisterComponent(comp)).To(Succeed())

			var observed []SimTime
			link := comp.ConfigureLink("in", 1, func(ev *Event) {
				observed = append(observed, s.CurrentCycle())
			})

			for i := 0; i < 20; i++ {
				link.Send(SimTime((i*13)%40+1), NewEvent(i))
			}

			Expect(s.Setup()).To(Succeed())
			Expect(s.Run()).To(Succeed())
			return observed
		}

		Expect(trace()).To(Equal(trace()))
	})
})
