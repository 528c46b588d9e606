package sim

import (
	"log"
	"sort"

	"github.com/vortexsim/vortex/transport"
)

// Message tags of the two exchange kinds.
const (
	syncTag = 0
	initTag = 1
)

// Sync is the periodic cross-rank barrier. It is itself an activity of
// priority SyncPriority firing every period cycles: each execution ships
// the batched outbound events to every peer, receives the peers'
// batches, and re-injects the arriving events into local links at the
// absolute delivery times fixed by their senders. The lookahead
// invariant (no cross-rank latency below the period) makes one exchange
// per window sufficient.
type Sync struct {
	ActivityBase

	sim    *Simulation
	comm   transport.Comm
	period TimeConverter

	commMap map[int]*peerChannel
	linkMap map[LinkID]*Link
}

// peerChannel holds the per-peer exchange state: the outbound batch and
// the activities received in the last exchange.
type peerChannel struct {
	outbound *SyncQueue
	inbound  []Activity
}

func newSync(
	s *Simulation,
	comm transport.Comm,
	period TimeConverter,
) *Sync {
	sy := &Sync{
		sim:     s,
		comm:    comm,
		period:  period,
		commMap: make(map[int]*peerChannel),
		linkMap: make(map[LinkID]*Link),
	}
	sy.setPriority(SyncPriority)

	return sy
}

// Period returns the barrier's lookahead window.
func (s *Sync) Period() TimeConverter {
	return s.period
}

// RegisterLink records a cross-rank link touching this rank and returns
// the outbound queue for its peer. Sending halves batch their events
// into the returned queue; receiving halves are looked up by id when
// events arrive.
func (s *Sync) RegisterLink(peer int, id LinkID, link *Link) *SyncQueue {
	ch, found := s.commMap[peer]
	if !found {
		ch = &peerChannel{outbound: NewSyncQueue()}
		s.commMap[peer] = ch
	}

	if dup, taken := s.linkMap[id]; taken {
		log.Panicf(
			"cross-rank link id %d used by both %s and %s",
			id, dup.name, link.name)
	}
	s.linkMap[id] = link

	return ch.outbound
}

func (s *Sync) peers() []int {
	peers := make([]int, 0, len(s.commMap))
	for p := range s.commMap {
		peers = append(peers, p)
	}
	sort.Ints(peers)

	return peers
}

// Execute performs one barrier exchange and reschedules the sync at the
// end of the next window.
func (s *Sync) Execute() {
	s.exchangeEvents()

	s.InvokeExchangeHook()

	s.schedule()
}

func (s *Sync) schedule() {
	s.SetDeliveryTime(s.sim.CurrentCycle() + s.period.Factor())
	s.setID(s.sim.nextActivityID())
	s.sim.InsertActivity(s)
}

// InvokeExchangeHook reports a completed exchange to the rank's hooks.
func (s *Sync) InvokeExchangeHook() {
	s.sim.InvokeHook(HookCtx{
		Domain: s.sim,
		Pos:    HookPosSyncExchange,
		Item:   s,
	})
}

func (s *Sync) exchangeEvents() {
	peers := s.peers()

	// Post every send and receive before awaiting any of them, then
	// barrier on the full set. Partial completion is impossible.
	sends := make([]transport.Request, 0, len(peers))
	recvs := make([]transport.Request, 0, len(peers))
	for _, peer := range peers {
		ch := s.commMap[peer]

		data, err := encodeEventBatch(ch.outbound.Activities())
		if err != nil {
			log.Panicf(
				"rank %d cannot encode batch for rank %d: %v",
				s.comm.Rank(), peer, err)
		}

		sends = append(sends, s.comm.Isend(peer, syncTag, data))
		recvs = append(recvs, s.comm.Irecv(peer, syncTag))
	}

	if err := transport.WaitAll(append(sends, recvs...)); err != nil {
		log.Panicf("rank %d sync exchange failed: %v",
			s.comm.Rank(), err)
	}

	for i, peer := range peers {
		ch := s.commMap[peer]
		ch.outbound.Clear()

		events, err := decodeEventBatch(recvs[i].Data())
		if err != nil {
			log.Panicf(
				"rank %d cannot decode batch from rank %d: %v",
				s.comm.Rank(), peer, err)
		}

		ch.inbound = ch.inbound[:0]
		for _, ev := range events {
			ch.inbound = append(ch.inbound, ev)
			s.deliverInbound(ev)
		}
	}
}

func (s *Sync) deliverInbound(ev *Event) {
	link, found := s.linkMap[ev.linkID]
	if !found {
		log.Panicf(
			"rank %d received event for link id %d not in the link map",
			s.comm.Rank(), ev.linkID)
	}

	link.deliverRemote(ev)
}

// ExchangeLinkInitData ferries queued link init data across ranks. It
// runs between init phases, before time zero; no timing applies. The
// link id of an arriving datum is reset so the receiving link stamps its
// own id on enqueue.
func (s *Sync) ExchangeLinkInitData() {
	peers := s.peers()

	// Drain the pending init data of every cross-rank link into the
	// outbound batch of its peer.
	pending := make(map[int][]*LinkInitData, len(peers))
	for _, id := range s.sortedLinkIDs() {
		link := s.linkMap[id]
		pending[link.peerRank] = append(
			pending[link.peerRank], link.drainSendInitQueue()...)
	}

	sends := make([]transport.Request, 0, len(peers))
	recvs := make([]transport.Request, 0, len(peers))
	for _, peer := range peers {
		data, err := encodeInitBatch(pending[peer])
		if err != nil {
			log.Panicf(
				"rank %d cannot encode init batch for rank %d: %v",
				s.comm.Rank(), peer, err)
		}

		sends = append(sends, s.comm.Isend(peer, initTag, data))
		recvs = append(recvs, s.comm.Irecv(peer, initTag))
	}

	if err := transport.WaitAll(append(sends, recvs...)); err != nil {
		log.Panicf("rank %d init exchange failed: %v",
			s.comm.Rank(), err)
	}

	for i, peer := range peers {
		batch, err := decodeInitBatch(recvs[i].Data())
		if err != nil {
			log.Panicf(
				"rank %d cannot decode init batch from rank %d: %v",
				s.comm.Rank(), peer, err)
		}

		for _, d := range batch {
			link, found := s.linkMap[d.linkID]
			if !found {
				log.Panicf(
					"rank %d received init data for link id %d "+
						"not in the link map",
					s.comm.Rank(), d.linkID)
			}

			d.linkID = InvalidLinkID
			link.receiveInitData(d)
		}
	}
}

func (s *Sync) sortedLinkIDs() []LinkID {
	ids := make([]LinkID, 0, len(s.linkMap))
	for id := range s.linkMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
