package sim

import "log"

// An EventHandler receives the events delivered on a handler link. The
// handler runs inside the owning rank's main loop; it may send further
// events but must not block.
type EventHandler func(ev *Event)

// An Event is an Activity that carries an opaque user payload across a
// Link. Its delivery time is the absolute cycle at which the recipient
// observes it.
type Event struct {
	ActivityBase

	linkID  LinkID
	payload any
	link    *Link
}

// NewEvent creates an event around the given payload. The delivery time,
// id, and link id are stamped when the event is sent on a link.
func NewEvent(payload any) *Event {
	return &Event{
		ActivityBase: ActivityBase{priority: DefaultPriority},
		linkID:       InvalidLinkID,
		payload:      payload,
	}
}

// Payload returns the user payload carried by the event.
func (e *Event) Payload() any {
	return e.payload
}

// LinkID returns the id of the link the event traverses.
func (e *Event) LinkID() LinkID {
	return e.linkID
}

// Execute delivers the event to the handler registered on its link.
func (e *Event) Execute() {
	if e.link == nil {
		log.Panicf("event %d executed without a delivery link", e.id)
	}

	if e.link.handler == nil {
		log.Panicf("link %s has no handler to deliver event %d to",
			e.link.name, e.id)
	}

	e.link.handler(e)
}

// LinkInitData is configuration data exchanged over a link before time
// zero. It has no timing semantics; it is ferried between ranks by the
// init-phase exchange and delivered before setup.
type LinkInitData struct {
	linkID  LinkID
	payload any
}

// NewLinkInitData wraps a payload for the init-phase data path.
func NewLinkInitData(payload any) *LinkInitData {
	return &LinkInitData{
		linkID:  InvalidLinkID,
		payload: payload,
	}
}

// Payload returns the configuration payload.
func (d *LinkInitData) Payload() any {
	return d.payload
}

// LinkID returns the id of the link the data travels on. It is
// InvalidLinkID until the data is enqueued on a link.
func (d *LinkInitData) LinkID() LinkID {
	return d.linkID
}
