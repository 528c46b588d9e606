package sim

// An ActionFunc is the body of a scheduled action.
type ActionFunc func(now SimTime)

// An Action is a kernel-side activity that is not an event: it runs a
// function instead of traversing a link. Recurring actions re-insert
// themselves with a fresh id each occurrence.
type Action struct {
	ActivityBase

	sim       *Simulation
	fn        ActionFunc
	period    SimTime
	recurring bool
	stopped   bool
}

// ScheduleAction inserts a one-shot action at the given cycle.
func (s *Simulation) ScheduleAction(
	at SimTime,
	priority int,
	fn ActionFunc,
) *Action {
	a := &Action{
		ActivityBase: MakeActivityBase(at, priority, s.nextActivityID()),
		sim:          s,
		fn:           fn,
	}
	s.InsertActivity(a)

	return a
}

// ScheduleRecurringAction inserts an action firing every period cycles,
// first at the end of the current cycle plus one period.
func (s *Simulation) ScheduleRecurringAction(
	period SimTime,
	priority int,
	fn ActionFunc,
) *Action {
	if period == 0 {
		panic("recurring action period cannot be 0")
	}

	a := &Action{
		ActivityBase: MakeActivityBase(
			s.CurrentCycle()+period, priority, s.nextActivityID()),
		sim:       s,
		fn:        fn,
		period:    period,
		recurring: true,
	}
	s.InsertActivity(a)

	return a
}

// Stop cancels a recurring action; the pending occurrence is discarded
// when it fires.
func (a *Action) Stop() {
	a.stopped = true
}

// Execute runs the action and reschedules it if it recurs.
func (a *Action) Execute() {
	if a.stopped {
		return
	}

	a.fn(a.sim.CurrentCycle())

	if !a.recurring || a.stopped {
		return
	}

	a.SetDeliveryTime(a.sim.CurrentCycle() + a.period)
	a.setID(a.sim.nextActivityID())
	a.sim.InsertActivity(a)
}
