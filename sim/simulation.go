package sim

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/vortexsim/vortex/transport"
)

// A Simulation is the per-rank owner of the time vortex. It drives the
// lifecycle of its components, advances the current cycle, and executes
// activities in (time, priority, id) order. Inside the kernel each rank
// is single-threaded: activities run to completion one at a time on the
// goroutine that called Run.
type Simulation struct {
	HookableBase

	rank     int
	numRanks int

	timeLock     sync.RWMutex
	currentCycle SimTime

	vortex *TimeVortex
	nextID ActivityID

	components      []Component
	componentByName map[string]Component

	links      []*Link
	linkByName map[string]*Link
	nextLinkID LinkID

	clocks []*Clock

	sync *Sync

	endFlag   bool
	abortFlag atomic.Bool

	initialized bool
	setUp       bool
}

// NewSimulation creates a single-rank simulation context.
func NewSimulation() *Simulation {
	return &Simulation{
		rank:            0,
		numRanks:        1,
		vortex:          NewTimeVortex(),
		componentByName: make(map[string]Component),
		linkByName:      make(map[string]*Link),
	}
}

// NewDistributedSimulation creates one rank of a partitioned simulation.
// The comm endpoint identifies the rank; period is the lookahead window
// of the sync barrier, which is scheduled for its first exchange at the
// end of the first window.
func NewDistributedSimulation(
	comm transport.Comm,
	period TimeConverter,
) *Simulation {
	s := &Simulation{
		rank:            comm.Rank(),
		numRanks:        comm.Size(),
		vortex:          NewTimeVortex(),
		componentByName: make(map[string]Component),
		linkByName:      make(map[string]*Link),
	}

	if comm.Size() > 1 {
		s.sync = newSync(s, comm, period)
	}

	return s
}

// Rank returns the index of this partition.
func (s *Simulation) Rank() int {
	return s.rank
}

// NumRanks returns the number of partitions in the job.
func (s *Simulation) NumRanks() int {
	return s.numRanks
}

// CurrentCycle returns the current simulated cycle of this rank.
func (s *Simulation) CurrentCycle() SimTime {
	s.timeLock.RLock()
	now := s.currentCycle
	s.timeLock.RUnlock()

	return now
}

func (s *Simulation) advanceTo(t SimTime) {
	s.timeLock.Lock()
	s.currentCycle = t
	s.timeLock.Unlock()
}

// Vortex returns the rank's primary activity queue.
func (s *Simulation) Vortex() *TimeVortex {
	return s.vortex
}

// Sync returns the rank's sync barrier, or nil on a single-rank job.
func (s *Simulation) Sync() *Sync {
	return s.sync
}

func (s *Simulation) nextActivityID() ActivityID {
	s.nextID++
	return s.nextID
}

// InsertActivity adds an activity to the time vortex. Scheduling into
// the past is a kernel bug and panics.
func (s *Simulation) InsertActivity(a Activity) {
	if a.DeliveryTime() < s.CurrentCycle() {
		log.Panicf(
			"cannot schedule activity %d at cycle %d, already at cycle %d",
			a.ID(), a.DeliveryTime(), s.CurrentCycle())
	}

	s.vortex.Insert(a)
}

// RegisterComponent adds a component to the rank. Names must be unique
// within the job.
func (s *Simulation) RegisterComponent(c Component) error {
	if _, dup := s.componentByName[c.Name()]; dup {
		return fmt.Errorf("component %s registered twice", c.Name())
	}

	s.components = append(s.components, c)
	s.componentByName[c.Name()] = c

	return nil
}

// ComponentByName returns a registered component, or nil if the name is
// unknown on this rank.
func (s *Simulation) ComponentByName(name string) Component {
	return s.componentByName[name]
}

// Components returns the components registered on this rank.
func (s *Simulation) Components() []Component {
	return s.components
}

func (s *Simulation) registerLink(l *Link) {
	if _, dup := s.linkByName[l.name]; dup {
		log.Panicf("link %s registered twice", l.name)
	}

	if l.id == 0 && l.peerRank < 0 {
		l.id = s.nextLinkID
		s.nextLinkID++
	}

	s.links = append(s.links, l)
	s.linkByName[l.name] = l
}

// LinkByName returns a registered link by its full "<component>.<port>"
// name.
func (s *Simulation) LinkByName(name string) *Link {
	link, found := s.linkByName[name]
	if !found {
		log.Panicf("no link named %s on rank %d", name, s.rank)
	}

	return link
}

// FindLink returns a registered link by name, or nil if it is unknown
// on this rank.
func (s *Simulation) FindLink(name string) *Link {
	return s.linkByName[name]
}

// Links returns the links registered on this rank.
func (s *Simulation) Links() []*Link {
	return s.links
}

// ConfigureRemoteSendLink creates the sending half of a cross-rank link.
// Events sent on it are batched into the sync barrier's outbound queue
// for the peer rank. The id must mirror the receiving half's id on the
// peer.
func (s *Simulation) ConfigureRemoteSendLink(
	name string,
	id LinkID,
	latency SimTime,
	peer int,
) *Link {
	if s.sync == nil {
		log.Panicf(
			"link %s targets rank %d but the simulation has one rank",
			name, peer)
	}

	link := &Link{
		name:           name,
		id:             id,
		defaultLatency: latency,
		peerRank:       peer,
		sim:            s,
	}
	link.syncQueue = s.sync.RegisterLink(peer, id, link)

	s.links = append(s.links, link)
	s.linkByName[name] = link

	return link
}

// BindRemoteRecvLink marks a component-owned link as the receiving half
// of a cross-rank link. The sync barrier re-injects arriving events into
// it by the mirrored id.
func (s *Simulation) BindRemoteRecvLink(link *Link, id LinkID, peer int) {
	if s.sync == nil {
		log.Panicf(
			"link %s targets rank %d but the simulation has one rank",
			link.name, peer)
	}

	link.id = id
	link.peerRank = peer
	s.sync.RegisterLink(peer, id, link)
}

func (s *Simulation) registerClock(
	period TimeConverter,
	handler ClockHandler,
) *Clock {
	c := newClock(s, period, handler)
	s.clocks = append(s.clocks, c)

	if s.setUp {
		c.schedule()
	}

	return c
}

// EndSimulationAt schedules the end-of-simulation marker. Every activity
// at the target cycle runs before the marker fires.
func (s *Simulation) EndSimulationAt(t SimTime) {
	m := &endMarker{
		ActivityBase: MakeActivityBase(
			t, EndMarkerPriority, s.nextActivityID()),
		sim: s,
	}
	s.InsertActivity(m)
}

// Abort asks the main loop to stop after the activity in flight. It and
// CurrentCycle are the Simulation methods safe to call from another
// goroutine.
func (s *Simulation) Abort() {
	s.abortFlag.Store(true)
}

// Initialize runs the init phases: every component's Init is invoked
// with an increasing phase number, with an init-data exchange between
// phases, until no component in the job requests another phase.
func (s *Simulation) Initialize() error {
	if s.initialized {
		return fmt.Errorf("rank %d initialized twice", s.rank)
	}
	s.initialized = true

	for phase := 0; ; phase++ {
		again := false
		for _, c := range s.components {
			again = initComponentTree(c, phase) || again
		}

		if s.sync != nil {
			s.sync.ExchangeLinkInitData()
			again = s.sync.comm.AllReduceOr(again)
		}

		if !again {
			return nil
		}
	}
}

func initComponentTree(c Component, phase int) bool {
	again := c.Init(phase)

	type subComponentHolder interface {
		SubComponents() []Component
	}

	if holder, ok := c.(subComponentHolder); ok {
		for _, sub := range holder.SubComponents() {
			again = initComponentTree(sub, phase) || again
		}
	}

	return again
}

// Setup validates the configuration, runs every component's Setup once,
// and schedules the registered clocks for their first tick.
func (s *Simulation) Setup() error {
	if s.setUp {
		return fmt.Errorf("rank %d set up twice", s.rank)
	}

	if err := s.validateLookahead(); err != nil {
		return err
	}

	for _, c := range s.components {
		if err := setupComponentTree(c); err != nil {
			return err
		}
	}

	for _, c := range s.clocks {
		c.schedule()
	}

	// The first barrier exchange closes the first lookahead window.
	if s.sync != nil {
		s.sync.schedule()
	}

	s.setUp = true

	return nil
}

func setupComponentTree(c Component) error {
	if err := c.Setup(); err != nil {
		return fmt.Errorf("setup of %s: %w", c.Name(), err)
	}

	type subComponentHolder interface {
		SubComponents() []Component
	}

	if holder, ok := c.(subComponentHolder); ok {
		for _, sub := range holder.SubComponents() {
			if err := setupComponentTree(sub); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateLookahead checks that no cross-rank link could deliver inside
// the sync window. Exchanging once per window is only correct when every
// cross-rank latency is at least the window length.
func (s *Simulation) validateLookahead() error {
	if s.sync == nil {
		return nil
	}

	period := s.sync.period.Factor()
	for _, l := range s.links {
		if l.peerRank < 0 {
			continue
		}

		if l.defaultLatency == 0 {
			return fmt.Errorf(
				"link %s crosses ranks with zero latency", l.name)
		}

		if l.defaultLatency < period {
			return fmt.Errorf(
				"link %s: latency %d cycles is below the sync period %d",
				l.name, l.defaultLatency, period)
		}
	}

	return nil
}

// Run executes activities in (time, priority, id) order until the vortex
// drains, the end marker fires, or the rank is aborted. The current
// cycle advances only to the delivery time of the next popped activity.
func (s *Simulation) Run() error {
	if !s.setUp {
		return fmt.Errorf("rank %d run before setup", s.rank)
	}

	for !s.endFlag && !s.abortFlag.Load() && !s.vortex.Empty() {
		a := s.vortex.Pop()
		if a.DeliveryTime() < s.CurrentCycle() {
			log.Panicf(
				"cannot run activity %d in the past, due %d, now %d",
				a.ID(), a.DeliveryTime(), s.CurrentCycle())
		}

		s.advanceTo(a.DeliveryTime())

		hookCtx := HookCtx{
			Domain: s,
			Pos:    HookPosBeforeActivity,
			Item:   a,
		}
		s.InvokeHook(hookCtx)

		a.Execute()

		hookCtx.Pos = HookPosAfterActivity
		s.InvokeHook(hookCtx)
	}

	return nil
}

// Finish runs every component's Finish once, after the main loop exits.
func (s *Simulation) Finish() error {
	for _, c := range s.components {
		if err := finishComponentTree(c); err != nil {
			return err
		}
	}

	return nil
}

func finishComponentTree(c Component) error {
	if err := c.Finish(); err != nil {
		return fmt.Errorf("finish of %s: %w", c.Name(), err)
	}

	type subComponentHolder interface {
		SubComponents() []Component
	}

	if holder, ok := c.(subComponentHolder); ok {
		for _, sub := range holder.SubComponents() {
			if err := finishComponentTree(sub); err != nil {
				return err
			}
		}
	}

	return nil
}
