package sim

import "log"

// A LinkID identifies a link within a rank. The two halves of a
// cross-rank link carry the same id on both ranks.
type LinkID int32

// InvalidLinkID marks an event or init datum that is not yet bound to a
// link.
const InvalidLinkID LinkID = -1

// A Link is a unidirectional delivery channel from a sending component
// to a receiving component's handler or polling queue. The receiving
// component owns the link; the sender holds a reference it sends on.
//
// Exactly one of handler and pollingQueue is set on a deliverable link.
// The sending half of a cross-rank link has neither; its events are
// routed into the sync barrier's outbound queue for the peer rank.
type Link struct {
	id             LinkID
	name           string
	defaultLatency SimTime
	peerRank       int

	handler      EventHandler
	pollingQueue *PollingLinkQueue

	syncQueue *SyncQueue

	sendInitQueue []*LinkInitData
	recvInitQueue []*LinkInitData

	sim *Simulation
}

// Name returns the link's configuration name.
func (l *Link) Name() string {
	return l.name
}

// LinkID returns the link's id.
func (l *Link) LinkID() LinkID {
	return l.id
}

// DefaultLatency returns the minimum delay applied to events sent on the
// link.
func (l *Link) DefaultLatency() SimTime {
	return l.defaultLatency
}

// PeerRank returns the rank of the remote endpoint, or -1 for a link
// whose both endpoints are local.
func (l *Link) PeerRank() int {
	return l.peerRank
}

// SetDefaultLatency overrides the link's latency. The simulation
// builder applies the configured value after the receiving component
// created the link; it must not change once events are in flight.
func (l *Link) SetDefaultLatency(latency SimTime) {
	l.defaultLatency = latency
}

// Send stamps the event with its delivery time, the link id, and a fresh
// activity id, then routes it to its destination queue. The delivery
// time is the current cycle plus the larger of delay and the link's
// default latency.
func (l *Link) Send(delay SimTime, ev *Event) {
	if ev == nil {
		log.Panicf("nil event sent on link %s", l.name)
	}

	latency := delay
	if latency < l.defaultLatency {
		latency = l.defaultLatency
	}

	now := l.sim.CurrentCycle()
	ev.SetDeliveryTime(now + latency)
	ev.setID(l.sim.nextActivityID())
	ev.linkID = l.id
	ev.link = l

	switch {
	case l.syncQueue != nil:
		if l.defaultLatency == 0 {
			log.Panicf(
				"link %s crosses ranks with zero latency", l.name)
		}
		l.syncQueue.Insert(ev)
	case l.pollingQueue != nil:
		l.pollingQueue.Insert(ev)
	default:
		l.sim.InsertActivity(ev)
	}
}

// deliverRemote accepts an event that arrived from the peer rank. The
// absolute delivery time was fixed by the sending rank; the event only
// needs a local activity id so tie-breaks stay rank-local.
func (l *Link) deliverRemote(ev *Event) {
	now := l.sim.CurrentCycle()
	if ev.DeliveryTime() < now {
		log.Panicf(
			"link %s received event due at cycle %d, already at cycle %d",
			l.name, ev.DeliveryTime(), now)
	}

	ev.setID(l.sim.nextActivityID())
	ev.linkID = l.id
	ev.link = l

	if l.pollingQueue != nil {
		l.pollingQueue.Insert(ev)
		return
	}

	l.sim.InsertActivity(ev)
}

// PollingQueue returns the queue of a polling-mode link, or nil for a
// handler link. The owning component drains it with Poll.
func (l *Link) PollingQueue() *PollingLinkQueue {
	return l.pollingQueue
}

// Poll removes and returns the earliest pending event whose delivery
// time is not after the given cycle, or nil if there is none. It may
// only be called on polling links.
func (l *Link) Poll(now SimTime) *Event {
	if l.pollingQueue == nil {
		log.Panicf("link %s is not a polling link", l.name)
	}

	front := l.pollingQueue.Front()
	if front == nil || front.DeliveryTime() > now {
		return nil
	}

	return l.pollingQueue.Pop().(*Event)
}

// SendInitData queues configuration data for delivery to the link's
// receiving endpoint before time zero. On a local link the data is
// immediately visible to RecvInitData; on a cross-rank link it is
// ferried by the next init-phase exchange.
func (l *Link) SendInitData(d *LinkInitData) {
	if d == nil {
		log.Panicf("nil init data sent on link %s", l.name)
	}

	d.linkID = l.id

	if l.peerRank >= 0 {
		l.sendInitQueue = append(l.sendInitQueue, d)
		return
	}

	l.recvInitQueue = append(l.recvInitQueue, d)
}

// RecvInitData removes and returns the earliest queued init datum, or
// nil if none is pending.
func (l *Link) RecvInitData() *LinkInitData {
	if len(l.recvInitQueue) == 0 {
		return nil
	}

	d := l.recvInitQueue[0]
	l.recvInitQueue = l.recvInitQueue[1:]

	return d
}

// receiveInitData accepts an init datum that arrived from the peer rank.
// The datum's link id was reset by the exchange; the link stamps it
// again on enqueue.
func (l *Link) receiveInitData(d *LinkInitData) {
	d.linkID = l.id
	l.recvInitQueue = append(l.recvInitQueue, d)
}

// drainSendInitQueue removes and returns all init data queued for the
// peer rank.
func (l *Link) drainSendInitQueue() []*LinkInitData {
	pending := l.sendInitQueue
	l.sendInitQueue = nil

	return pending
}
