package transport

import (
	"fmt"
	"sync"
)

// A Hub connects the ranks of a job running as goroutines in one
// process. Each rank obtains its Comm endpoint from the hub; messages
// travel over buffered channels keyed by (sender, receiver, tag).
type Hub struct {
	size int

	mailboxLock sync.Mutex
	mailboxes   map[mailboxKey]chan []byte

	reduceLock   sync.Mutex
	reduceCond   *sync.Cond
	reduceCount  int
	reduceValue  bool
	reduceResult bool
	reduceGen    uint64
}

type mailboxKey struct {
	from, to, tag int
}

// NewHub creates a hub for a job of the given rank count.
func NewHub(size int) *Hub {
	if size < 1 {
		panic(fmt.Sprintf("invalid rank count %d", size))
	}

	h := &Hub{
		size:      size,
		mailboxes: make(map[mailboxKey]chan []byte),
	}
	h.reduceCond = sync.NewCond(&h.reduceLock)

	return h
}

// Size returns the rank count of the job.
func (h *Hub) Size() int {
	return h.size
}

// Comm returns the endpoint of the given rank.
func (h *Hub) Comm(rank int) Comm {
	if rank < 0 || rank >= h.size {
		panic(fmt.Sprintf("rank %d out of range [0, %d)", rank, h.size))
	}

	return &inprocComm{hub: h, rank: rank}
}

func (h *Hub) mailbox(key mailboxKey) chan []byte {
	h.mailboxLock.Lock()
	defer h.mailboxLock.Unlock()

	box, found := h.mailboxes[key]
	if !found {
		box = make(chan []byte, 64)
		h.mailboxes[key] = box
	}

	return box
}

// allReduceOr is a generation-counted barrier collecting one vote per
// rank. The last arriving rank publishes the result and wakes the rest.
func (h *Hub) allReduceOr(v bool) bool {
	h.reduceLock.Lock()
	defer h.reduceLock.Unlock()

	gen := h.reduceGen
	h.reduceValue = h.reduceValue || v
	h.reduceCount++

	if h.reduceCount == h.size {
		h.reduceResult = h.reduceValue
		h.reduceValue = false
		h.reduceCount = 0
		h.reduceGen++
		h.reduceCond.Broadcast()

		return h.reduceResult
	}

	for gen == h.reduceGen {
		h.reduceCond.Wait()
	}

	return h.reduceResult
}

type inprocComm struct {
	hub  *Hub
	rank int
}

func (c *inprocComm) Rank() int {
	return c.rank
}

func (c *inprocComm) Size() int {
	return c.hub.size
}

func (c *inprocComm) Isend(peer, tag int, data []byte) Request {
	c.checkPeer(peer)

	req := &inprocRequest{done: make(chan struct{})}
	box := c.hub.mailbox(mailboxKey{from: c.rank, to: peer, tag: tag})

	go func() {
		box <- data
		close(req.done)
	}()

	return req
}

func (c *inprocComm) Irecv(peer, tag int) Request {
	c.checkPeer(peer)

	req := &inprocRequest{done: make(chan struct{})}
	box := c.hub.mailbox(mailboxKey{from: peer, to: c.rank, tag: tag})

	go func() {
		req.data = <-box
		close(req.done)
	}()

	return req
}

func (c *inprocComm) AllReduceOr(v bool) bool {
	return c.hub.allReduceOr(v)
}

func (c *inprocComm) checkPeer(peer int) {
	if peer < 0 || peer >= c.hub.size || peer == c.rank {
		panic(fmt.Sprintf(
			"rank %d cannot address peer %d", c.rank, peer))
	}
}

type inprocRequest struct {
	done chan struct{}
	data []byte
}

func (r *inprocRequest) Wait() error {
	<-r.done
	return nil
}

func (r *inprocRequest) Data() []byte {
	return r.data
}
