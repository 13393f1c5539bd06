package paxos

import (
	"log"
	"sync"
)

// Response is a follower's verdict on a phase of the round.
type Response uint

const (
	ResponseAck    Response = iota + 1 // the follower promised / stayed promised
	ResponseReject                     // the follower rejected the proposal id
)

// QueueGuard holds the leader's per-request serialization slot. Exactly
// one round per leader is in flight at a time: the slot is acquired
// before Initiate and released when the round terminates, on every path.
type QueueGuard struct {
	once    sync.Once
	release func()
}

func newQueueGuard(release func()) *QueueGuard {
	return &QueueGuard{release: release}
}

// Release frees the serialization slot. Releasing more than once is a
// no-op.
func (g *QueueGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.release != nil {
			g.release()
		}
	})
}

// Round is the scratch state for one in-flight client request. It is
// shared by the asynchronous continuations of that request and released
// when the last of them completes.
//
// connections holds every follower contacted this round; accepted holds
// their promise-phase verdicts; responses holds their accept-phase
// replies. accepted never has an endpoint connections lacks, and a
// response is only recorded for a follower that acked its promise.
type Round struct {
	mu sync.Mutex

	strategy Strategy
	quorum   *Quorum
	ctx      *Context

	client    *Dispatcher
	clientCmd Command

	leader     string
	proposalID int64
	workload   []byte

	// expected is the size of the live quorum, fixed before the first
	// prepare goes out: replies arrive on other goroutines while the
	// dispatch loop is still running, so the promise-phase completion
	// check cannot count connections as they are claimed
	expected int

	connections map[string]*Dispatcher
	accepted    map[string]Response
	responses   map[string][]byte

	guard *QueueGuard
	done  bool
}

func newRound(s Strategy, q *Quorum, ctx *Context, client *Dispatcher, clientCmd Command, proposalID int64, guard *QueueGuard) *Round {
	return &Round{
		strategy:    s,
		quorum:      q,
		ctx:         ctx,
		client:      client,
		clientCmd:   clientCmd,
		leader:      q.OurEndpoint(),
		proposalID:  proposalID,
		workload:    clientCmd.Workload,
		connections: make(map[string]*Dispatcher),
		accepted:    make(map[string]Response),
		responses:   make(map[string][]byte),
		guard:       guard,
	}
}

// finish writes the one client reply this round produces and releases
// the queue guard. Only the first call has any effect.
func (r *Round) finish(resp Command) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()
	if err := r.client.Reply(r.clientCmd, resp); err != nil {
		log.Print("Error Replying to Client: ", err)
	}
	r.guard.Release()
}
