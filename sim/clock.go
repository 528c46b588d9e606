package sim

// A ClockHandler runs on every tick of a registered clock. Returning
// false unregisters the clock.
type ClockHandler func(cycle SimTime) bool

// A Clock is a recurring activity that invokes its handler every period
// cycles. Clock ticks fire after same-time user events and the sync
// barrier.
type Clock struct {
	ActivityBase

	period  TimeConverter
	handler ClockHandler
	sim     *Simulation
	stopped bool
}

func newClock(s *Simulation, period TimeConverter, handler ClockHandler) *Clock {
	c := &Clock{
		period:  period,
		handler: handler,
		sim:     s,
	}
	c.setPriority(ClockPriority)

	return c
}

// Period returns the clock's period converter.
func (c *Clock) Period() TimeConverter {
	return c.period
}

// Stop unregisters the clock; the pending tick is discarded when it
// fires.
func (c *Clock) Stop() {
	c.stopped = true
}

// Execute runs one tick and reschedules the clock unless the handler
// asked to stop. Each occurrence gets a fresh activity id so the vortex
// key stays unique.
func (c *Clock) Execute() {
	if c.stopped {
		return
	}

	if !c.handler(c.sim.CurrentCycle()) {
		c.stopped = true
		return
	}

	c.SetDeliveryTime(c.sim.CurrentCycle() + c.period.Factor())
	c.setID(c.sim.nextActivityID())
	c.sim.InsertActivity(c)
}

func (c *Clock) schedule() {
	c.SetDeliveryTime(c.sim.CurrentCycle() + c.period.Factor())
	c.setID(c.sim.nextActivityID())
	c.sim.InsertActivity(c)
}

// endMarker flags the end of the simulation when it fires. Its priority
// is a large sentinel so every same-time activity runs first.
type endMarker struct {
	ActivityBase

	sim *Simulation
}

func (m *endMarker) Execute() {
	m.sim.endFlag = true
}
