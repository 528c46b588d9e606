package sim

import (
	"fmt"
	"log"
)

// A ComponentID identifies a component or sub-component within a rank.
// The high 32 bits hold the component index and the low 32 bits the
// sub-component index, so a parent and its children share the high bits
// and the parent is recoverable by masking.
type ComponentID uint64

const subComponentIndexBits = 32

const subComponentIndexMask = ComponentID(1)<<subComponentIndexBits - 1

// NewComponentID builds the id of a top-level component.
func NewComponentID(componentIndex uint32) ComponentID {
	return ComponentID(componentIndex) << subComponentIndexBits
}

// ComponentIndex returns the top-level component index.
func (id ComponentID) ComponentIndex() uint32 {
	return uint32(id >> subComponentIndexBits)
}

// SubComponentIndex returns the sub-component index. It is 0 for a
// top-level component.
func (id ComponentID) SubComponentIndex() uint32 {
	return uint32(id & subComponentIndexMask)
}

// ParentID masks away the sub-component index, yielding the id of the
// owning top-level component.
func (id ComponentID) ParentID() ComponentID {
	return id &^ subComponentIndexMask
}

// IsSubComponent tells if the id names a sub-component.
func (id ComponentID) IsSubComponent() bool {
	return id&subComponentIndexMask != 0
}

func (id ComponentID) String() string {
	return fmt.Sprintf("%d:%d", id.ComponentIndex(), id.SubComponentIndex())
}

// A Component is an element of the simulation graph hosted by the
// scheduler. The kernel drives its lifecycle: Init is called repeatedly
// with an increasing phase number until no component in the job reports
// unfinished init, Setup runs once before the main loop, and Finish runs
// once after it.
type Component interface {
	Named

	ID() ComponentID

	// Init runs one init phase. Returning true requests another phase.
	Init(phase int) bool

	// Setup runs once after init completes and before the main loop.
	Setup() error

	// Finish runs once after the main loop exits.
	Finish() error
}

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// BaseComponent carries the identity and link registry shared by
// components and sub-components. Concrete components embed it.
type BaseComponent struct {
	id   ComponentID
	name string
	sim  *Simulation

	links    map[string]*Link
	outbound map[string]*Link

	subComponents []Component

	nextSubComponentIndex uint32
	loadingSubComponentID ComponentID

	loadedWithLegacyAPI bool
}

// NewBaseComponent creates the base of a top-level component.
func NewBaseComponent(s *Simulation, id ComponentID, name string) *BaseComponent {
	return &BaseComponent{
		id:       id,
		name:     name,
		sim:      s,
		links:    make(map[string]*Link),
		outbound: make(map[string]*Link),
	}
}

// ID returns the component's id.
func (c *BaseComponent) ID() ComponentID {
	return c.id
}

// Name returns the component's name.
func (c *BaseComponent) Name() string {
	return c.name
}

// Simulation returns the rank context the component runs in.
func (c *BaseComponent) Simulation() *Simulation {
	return c.sim
}

// Init is a no-op default; components that need init phases override it.
func (c *BaseComponent) Init(_ int) bool {
	return false
}

// Setup is a no-op default.
func (c *BaseComponent) Setup() error {
	return nil
}

// Finish is a no-op default.
func (c *BaseComponent) Finish() error {
	return nil
}

// ConfigureLink creates a handler link terminating at this component and
// registers it with the rank under the name "<component>.<port>".
func (c *BaseComponent) ConfigureLink(
	port string,
	latency SimTime,
	handler EventHandler,
) *Link {
	if handler == nil {
		log.Panicf("nil handler for link %s.%s", c.name, port)
	}

	link := &Link{
		name:           c.name + "." + port,
		defaultLatency: latency,
		peerRank:       -1,
		handler:        handler,
		sim:            c.sim,
	}

	c.registerLink(port, link)

	return link
}

// ConfigurePollingLink creates a polling-mode link terminating at this
// component. The component drains the link itself with Poll.
func (c *BaseComponent) ConfigurePollingLink(
	port string,
	latency SimTime,
) *Link {
	link := &Link{
		name:           c.name + "." + port,
		defaultLatency: latency,
		peerRank:       -1,
		pollingQueue:   NewPollingLinkQueue(),
		sim:            c.sim,
	}

	c.registerLink(port, link)

	return link
}

// ConfigureSelfLink creates a handler link whose sender and recipient
// are both this component, for self-scheduling without a clock.
func (c *BaseComponent) ConfigureSelfLink(
	port string,
	latency SimTime,
	handler EventHandler,
) *Link {
	link := c.ConfigureLink(port, latency, handler)
	c.BindOutbound(port, link)

	return link
}

func (c *BaseComponent) registerLink(port string, link *Link) {
	if _, dup := c.links[port]; dup {
		log.Panicf("link %s.%s configured twice", c.name, port)
	}

	c.links[port] = link
	c.sim.registerLink(link)
}

// LinkByPort returns the component's own link for the given port name.
func (c *BaseComponent) LinkByPort(port string) *Link {
	link, found := c.links[port]
	if !found {
		log.Panicf("component %s has no link on port %s", c.name, port)
	}

	return link
}

// BindOutbound attaches a link the component sends on under a local port
// name. The binder is normally the simulation builder.
func (c *BaseComponent) BindOutbound(port string, link *Link) {
	c.outbound[port] = link
}

// Outbound returns the link bound to the given outbound port.
func (c *BaseComponent) Outbound(port string) *Link {
	link, found := c.outbound[port]
	if !found {
		log.Panicf(
			"component %s has no outbound link bound to port %s",
			c.name, port)
	}

	return link
}

// RegisterClock registers a recurring clock on this component. The
// handler fires every period cycles starting at the period, until it
// returns false.
func (c *BaseComponent) RegisterClock(
	period TimeConverter,
	handler ClockHandler,
) *Clock {
	return c.sim.registerClock(period, handler)
}

// AddSubComponent records an owned child so the kernel can drive its
// lifecycle through the parent's.
func (c *BaseComponent) AddSubComponent(sub Component) {
	c.subComponents = append(c.subComponents, sub)
}

// SubComponents returns the component's owned children.
func (c *BaseComponent) SubComponents() []Component {
	return c.subComponents
}

// LoadedWithLegacyAPI tells if the component was constructed through the
// legacy parent-pointer path. The flag is informational; runtime
// semantics are identical in both modes.
func (c *BaseComponent) LoadedWithLegacyAPI() bool {
	return c.loadedWithLegacyAPI
}

// NextSubComponentID reserves the id for the next child of this
// component. Loaders call it before constructing a sub-component through
// the explicit-id path, and the legacy path reads the reserved value.
func (c *BaseComponent) NextSubComponentID() ComponentID {
	c.nextSubComponentIndex++
	id := c.id.ParentID() | ComponentID(c.nextSubComponentIndex)
	c.loadingSubComponentID = id

	return id
}

// CurrentlyLoadingSubComponentID returns the id reserved by the most
// recent NextSubComponentID call.
func (c *BaseComponent) CurrentlyLoadingSubComponentID() ComponentID {
	if c.loadingSubComponentID == 0 {
		log.Panicf(
			"component %s has no sub-component id reserved", c.name)
	}

	return c.loadingSubComponentID
}

// NewSubComponentBase creates the base of a sub-component with an
// explicit id handed out by the loader.
func NewSubComponentBase(
	parent *BaseComponent,
	id ComponentID,
	name string,
) *BaseComponent {
	if id.ParentID() != parent.id.ParentID() {
		log.Panicf(
			"sub-component id %s does not belong to component %s",
			id, parent.name)
	}

	return &BaseComponent{
		id:       id,
		name:     name,
		sim:      parent.sim,
		links:    make(map[string]*Link),
		outbound: make(map[string]*Link),
	}
}

// NewLegacySubComponentBase creates the base of a sub-component through
// the legacy parent-pointer path: the child inherits the parent's
// currently-loading sub-component id. Kept so existing configurations
// continue to load; it only differs from the explicit-id path in the
// legacy flag.
func NewLegacySubComponentBase(
	parent *BaseComponent,
	name string,
) *BaseComponent {
	base := NewSubComponentBase(
		parent, parent.CurrentlyLoadingSubComponentID(), name)
	base.loadedWithLegacyAPI = true

	return base
}
