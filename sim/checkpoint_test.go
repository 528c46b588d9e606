package sim

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Checkpoint", func() {
	buildRank := func(handled *[]any) (*Simulation, *Link) {
		s := NewSimulation()
		comp := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
		}
		Expect(s.RegisterComponent(comp)).To(Succeed())

		link := comp.ConfigureLink("in", 1, func(ev *Event) {
			*handled = append(*handled, ev.Payload())
		})

		return s, link
	}

	It("should resume pending events after a restore", func() {
		var handled []any
		s, link := buildRank(&handled)

		link.Send(100, NewEvent("first"))
		link.Send(200, NewEvent("second"))
		s.EndSimulationAt(150)

		Expect(s.Setup()).To(Succeed())
		Expect(s.Run()).To(Succeed())
		Expect(handled).To(Equal([]any{"first"}))

		var buf bytes.Buffer
		Expect(s.WriteCheckpoint(&buf)).To(Succeed())

		var resumedHandled []any
		resumed, _ := buildRank(&resumedHandled)
		Expect(resumed.RestoreCheckpoint(&buf)).To(Succeed())

		Expect(resumed.CurrentCycle()).To(Equal(SimTime(150)))

		Expect(resumed.Run()).To(Succeed())
		Expect(resumedHandled).To(Equal([]any{"second"}))
		Expect(resumed.CurrentCycle()).To(Equal(SimTime(200)))
	})

	It("should keep polling events across a restore", func() {
		s := NewSimulation()
		comp := &testComponent{
			BaseComponent: NewBaseComponent(s, NewComponentID(0), "c"),
		}
		Expect(s.RegisterComponent(comp)).To(Succeed())

		link := comp.ConfigurePollingLink("poll", 0)
		link.Send(10, NewEvent("a"))
		link.Send(20, NewEvent("b"))

		Expect(s.Setup()).To(Succeed())

		var buf bytes.Buffer
		Expect(s.WriteCheckpoint(&buf)).To(Succeed())

		resumed := NewSimulation()
		resumedComp := &testComponent{
			BaseComponent: NewBaseComponent(
				resumed, NewComponentID(0), "c"),
		}
		Expect(resumed.RegisterComponent(resumedComp)).To(Succeed())
		resumedLink := resumedComp.ConfigurePollingLink("poll", 0)

		Expect(resumed.RestoreCheckpoint(&buf)).To(Succeed())

		Expect(resumedLink.Poll(15).Payload()).To(Equal("a"))
		Expect(resumedLink.Poll(15)).To(BeNil())
	})

	It("should refuse a checkpoint from another rank", func() {
		var handled []any
		s, _ := buildRank(&handled)
		Expect(s.Setup()).To(Succeed())

		var buf bytes.Buffer
		Expect(s.WriteCheckpoint(&buf)).To(Succeed())

		other, _ := buildRank(&handled)
		other.rank = 1
		Expect(other.RestoreCheckpoint(&buf)).NotTo(Succeed())
	})
})
