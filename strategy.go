package paxos

import (
	"bytes"
	"log"
)

// Strategy is the capability set of the protocol state machine. The
// leader side runs Initiate and the continuations that follow from it;
// Prepare and Accept are the follower-side handlers; Error emits a
// failure reply to the client. Variants embed BasicPaxos and override
// individual steps. The node calls Initiate, Prepare and Accept on the
// variant itself, but BasicPaxos.Initiate binds the round to the embedded
// *BasicPaxos, so a variant's overrides of SendPrepare, ReceivePromise,
// SendAccept, ReceiveAccepted and Error are not called for that round.
type Strategy interface {
	// Initiate starts a round for one client request. The caller must be
	// the designated leader and must hold the queue guard.
	Initiate(client *Dispatcher, clientCmd Command, q *Quorum, ctx *Context, guard *QueueGuard)
	// SendPrepare dispatches the round's prepare to one follower and
	// arranges for ReceivePromise to run on its reply.
	SendPrepare(r *Round, follower *Server)
	// Prepare is the follower handler for an inbound prepare.
	Prepare(leader *Dispatcher, cmd Command, q *Quorum, ctx *Context)
	// ReceivePromise folds one promise-phase reply into the round.
	ReceivePromise(r *Round, follower string, cmd Command)
	// SendAccept dispatches the round's accept to one promised follower
	// and arranges for ReceiveAccepted to run on its reply.
	SendAccept(r *Round, follower string)
	// Accept is the follower handler for an inbound accept.
	Accept(leader *Dispatcher, cmd Command, q *Quorum, ctx *Context)
	// ReceiveAccepted folds one accept-phase reply into the round.
	ReceiveAccepted(r *Round, follower string, cmd Command)
	// Error reports a failed round to the client and ends it.
	Error(r *Round, code ErrorCode)
}

// BasicPaxos is the single-decree protocol: one prepare/promise pass
// over every live server, then one accept/accepted pass, requiring
// unanimity in both.
type BasicPaxos struct{}

func NewBasicPaxos() *BasicPaxos {
	return &BasicPaxos{}
}

// Initiate claims a fresh proposal id and prepares every live server in
// the quorum, ourselves included. The round's continuations fire as the
// replies come back.
func (s *BasicPaxos) Initiate(client *Dispatcher, clientCmd Command, q *Quorum, ctx *Context, guard *QueueGuard) {
	if q.WhoIsOurLeader() != q.OurEndpoint() {
		log.Panicf("paxos: initiate on non-leader %v (leader is %v)", q.OurEndpoint(), q.WhoIsOurLeader())
	}
	// every new client request starts above everything we have seen
	id := ctx.NextProposalID()
	r := newRound(s, q, ctx, client, clientCmd, id, guard)
	live := q.LiveServerEndpoints()
	r.expected = len(live)
	for _, ep := range live {
		server := q.LookupServer(ep)
		log.Print("Sending Prepare to Server: ", ep)
		r.strategy.SendPrepare(r, server)
	}
}

// SendPrepare claims the follower's entry in the round, writes the
// prepare, and registers ReceivePromise for the reply.
func (s *BasicPaxos) SendPrepare(r *Round, follower *Server) {
	ep := follower.Endpoint()
	r.mu.Lock()
	if _, ok := r.connections[ep]; ok {
		log.Panicf("paxos: follower %v prepared twice in one round", ep)
	}
	r.connections[ep] = follower.Dispatcher()
	r.mu.Unlock()

	cmd := Command{
		Type:         RequestPrepare,
		ProposalID:   r.proposalID,
		HostEndpoint: r.leader,
	}
	// register the read first so a connection that dies mid-write still
	// surfaces a failure to the round
	follower.Dispatcher().Read(func(reply Command) {
		r.strategy.ReceivePromise(r, ep, reply)
	})
	if err := follower.Dispatcher().Write(cmd); err != nil {
		log.Print("Error Writing Prepare: ", err)
	}
}

// Prepare answers an inbound prepare. The leader preparing itself is
// always promised; otherwise a strictly larger proposal id is adopted
// and promised, and anything else fails. The reply carries our proposal
// id either way, so a rejected leader can advance past us.
func (s *BasicPaxos) Prepare(leader *Dispatcher, cmd Command, q *Quorum, ctx *Context) {
	var resp Command
	switch {
	case cmd.HostEndpoint == q.OurEndpoint():
		resp.Type = RequestPromise
	case ctx.AdoptIfGreater(cmd.ProposalID):
		resp.Type = RequestPromise
	default:
		resp.Type = RequestFail
	}
	resp.ProposalID = ctx.ProposalID()
	if err := leader.Reply(cmd, resp); err != nil {
		log.Print("Error Writing Promise: ", err)
	}
}

// ReceivePromise records one follower's promise-phase verdict. Once the
// whole quorum has responded the round either moves to the accept phase
// or reports an incorrect proposal to the client.
func (s *BasicPaxos) ReceivePromise(r *Round, follower string, cmd Command) {
	r.mu.Lock()
	switch cmd.Type {
	case RequestPromise:
		// the self-loop promise reports our own proposal id, which a
		// reject from another follower may already have advanced
		if cmd.ProposalID != r.proposalID && cmd.ProposalID != r.ctx.ProposalID() {
			log.Panicf("paxos: promise for proposal %d in round %d", cmd.ProposalID, r.proposalID)
		}
		r.accepted[follower] = ResponseAck
	case RequestFail:
		r.accepted[follower] = ResponseReject
		// the follower has seen a higher proposal; make sure our next
		// round starts above it
		r.ctx.Advance(cmd.ProposalID)
	default:
		log.Panicf("paxos: unexpected %v in promise phase", cmd.Type)
	}

	everyoneResponded := len(r.accepted) == r.expected
	everyonePromised := true
	for _, resp := range r.accepted {
		everyonePromised = everyonePromised && resp == ResponseAck
	}
	var followers []string
	if everyoneResponded && everyonePromised {
		for ep := range r.connections {
			followers = append(followers, ep)
		}
	}
	r.mu.Unlock()

	if !everyoneResponded {
		return
	}
	if !everyonePromised {
		r.strategy.Error(r, ErrorIncorrectProposal)
		return
	}
	for _, ep := range followers {
		log.Print("Sending Accept to Server: ", ep)
		r.strategy.SendAccept(r, ep)
	}
}

// SendAccept writes the accept carrying the workload to one promised
// follower and registers ReceiveAccepted for the reply.
func (s *BasicPaxos) SendAccept(r *Round, follower string) {
	r.mu.Lock()
	d := r.connections[follower]
	if d == nil {
		log.Panicf("paxos: accept for unknown follower %v", follower)
	}
	if r.accepted[follower] != ResponseAck {
		log.Panicf("paxos: accept for unpromised follower %v", follower)
	}
	r.mu.Unlock()

	cmd := Command{
		Type:         RequestAccept,
		ProposalID:   r.proposalID,
		HostEndpoint: r.leader,
		Workload:     r.workload,
	}
	d.Read(func(reply Command) {
		r.strategy.ReceiveAccepted(r, follower, reply)
	})
	if err := d.Write(cmd); err != nil {
		log.Print("Error Writing Accept: ", err)
	}
}

// Accept answers an inbound accept. A proposal id other than the one we
// promised means another leader overtook the round; otherwise the
// workload runs through the processor and the result goes back.
func (s *BasicPaxos) Accept(leader *Dispatcher, cmd Command, q *Quorum, ctx *Context) {
	var resp Command
	if cmd.ProposalID != ctx.ProposalID() {
		resp.Type = RequestFail
		resp.ProposalID = ctx.ProposalID()
	} else {
		resp.Type = RequestAccepted
		resp.ProposalID = cmd.ProposalID
		resp.Workload = ctx.Processor()(cmd.Workload)
	}
	if err := leader.Reply(cmd, resp); err != nil {
		log.Print("Error Writing Accepted: ", err)
	}
}

// ReceiveAccepted records one follower's accept-phase reply. Once every
// contacted follower has replied, the round succeeds only if everyone is
// still promised and all replies are byte-identical; one representative
// reply is then forwarded to the client.
func (s *BasicPaxos) ReceiveAccepted(r *Round, follower string, cmd Command) {
	r.mu.Lock()
	if r.accepted[follower] != ResponseAck {
		log.Panicf("paxos: accepted reply from unpromised follower %v", follower)
	}
	if _, ok := r.responses[follower]; ok {
		log.Panicf("paxos: follower %v replied twice in accept phase", follower)
	}
	switch cmd.Type {
	case RequestAccepted:
	case RequestFail:
		r.accepted[follower] = ResponseReject
	default:
		log.Panicf("paxos: unexpected %v in accept phase", cmd.Type)
	}
	r.responses[follower] = cmd.Workload

	if len(r.responses) != len(r.connections) {
		r.mu.Unlock()
		return
	}

	everyonePromised := true
	for _, resp := range r.accepted {
		everyonePromised = everyonePromised && resp == ResponseAck
	}
	// every honest follower must produce the same bytes for the same
	// workload; the first non-empty reply is the reference
	allSame := true
	var reference []byte
	for _, w := range r.responses {
		if len(reference) == 0 {
			reference = w
		} else if !bytes.Equal(reference, w) {
			allSame = false
		}
	}
	r.mu.Unlock()

	switch {
	case everyonePromised && allSame:
		r.finish(cmd)
	case !everyonePromised:
		r.strategy.Error(r, ErrorIncorrectProposal)
	default:
		r.strategy.Error(r, ErrorInconsistentResponse)
	}
}

// Error reports a failed round to the client.
func (s *BasicPaxos) Error(r *Round, code ErrorCode) {
	log.Print("Round Failed: ", code)
	r.finish(Command{Type: RequestError, Error: code})
}

// DurablePaxos is BasicPaxos with the follower recording every accepted
// workload in the node's durable log before replying. Recording is
// skipped when the id is not contiguous with the log (an earlier round
// failed after consuming an id); catch-up fills such gaps elsewhere.
type DurablePaxos struct {
	BasicPaxos
}

func NewDurablePaxos() *DurablePaxos {
	return &DurablePaxos{}
}

func (s *DurablePaxos) Accept(leader *Dispatcher, cmd Command, q *Quorum, ctx *Context) {
	if cmd.ProposalID == ctx.ProposalID() {
		l := ctx.Log()
		high, err := l.HighestProposalID()
		if err == nil && cmd.ProposalID == high+1 {
			err = l.Accept(cmd.ProposalID, cmd.Workload)
		} else if err == nil {
			log.Printf("paxos: not recording proposal %d after %d", cmd.ProposalID, high)
		}
		if err != nil {
			log.Print("Error Recording Accepted Value: ", err)
			resp := Command{Type: RequestFail, ProposalID: ctx.ProposalID()}
			if err := leader.Reply(cmd, resp); err != nil {
				log.Print("Error Writing Accepted: ", err)
			}
			return
		}
	}
	s.BasicPaxos.Accept(leader, cmd, q, ctx)
}
