package sim

// An ActivityID identifies an activity within a rank. IDs are handed out
// sequentially by the owning Simulation and never reused, which makes
// them the final tie-break in queue ordering.
type ActivityID uint64

// Priorities of the kernel's own activities. Lower values fire first
// among same-time activities. User events default to DefaultPriority, so
// at any cycle the order is: user events, the sync barrier, clock ticks,
// and finally the end-of-simulation marker.
const (
	DefaultPriority   = 0
	SyncPriority      = 25
	ClockPriority     = 40
	EndMarkerPriority = 1 << 30
)

// An Activity is a unit of work scheduled in the time vortex. Events,
// clock ticks, the sync barrier, and the end-of-simulation marker are all
// activities.
type Activity interface {
	// DeliveryTime returns the cycle at which the activity fires.
	DeliveryTime() SimTime

	// Priority breaks ties between same-time activities. Lower fires
	// first.
	Priority() int

	// ID returns the rank-unique activity id.
	ID() ActivityID

	// Execute runs the activity. It is called exactly once per
	// occurrence by the owning Simulation's main loop.
	Execute()
}

// ActivityBase provides the scheduling fields shared by all activities.
type ActivityBase struct {
	deliveryTime SimTime
	priority     int
	id           ActivityID
}

// MakeActivityBase creates an ActivityBase.
func MakeActivityBase(t SimTime, priority int, id ActivityID) ActivityBase {
	return ActivityBase{
		deliveryTime: t,
		priority:     priority,
		id:           id,
	}
}

// DeliveryTime returns the cycle at which the activity fires.
func (a ActivityBase) DeliveryTime() SimTime {
	return a.deliveryTime
}

// Priority returns the activity's tie-break priority.
func (a ActivityBase) Priority() int {
	return a.priority
}

// ID returns the rank-unique activity id.
func (a ActivityBase) ID() ActivityID {
	return a.id
}

// SetDeliveryTime updates the delivery time. It must not be called while
// the activity sits in a queue.
func (a *ActivityBase) SetDeliveryTime(t SimTime) {
	a.deliveryTime = t
}

func (a *ActivityBase) setPriority(p int) {
	a.priority = p
}

func (a *ActivityBase) setID(id ActivityID) {
	a.id = id
}

// lessTimePriority is the ordering of the time vortex: delivery time,
// then priority, then id. It is a total order because ids are unique
// within a rank.
func lessTimePriority(a, b Activity) bool {
	if a.DeliveryTime() != b.DeliveryTime() {
		return a.DeliveryTime() < b.DeliveryTime()
	}

	if a.Priority() != b.Priority() {
		return a.Priority() < b.Priority()
	}

	return a.ID() < b.ID()
}

// lessTime is the ordering of polling link queues: delivery time, then
// id. Priorities are irrelevant there.
func lessTime(a, b Activity) bool {
	if a.DeliveryTime() != b.DeliveryTime() {
		return a.DeliveryTime() < b.DeliveryTime()
	}

	return a.ID() < b.ID()
}
