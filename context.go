package paxos

import "sync"

// Processor is the application workload function. It must be
// deterministic across all nodes of the quorum: two followers handed the
// same workload have to produce byte-identical replies, otherwise the
// leader reports an inconsistent response to the client.
type Processor func(workload []byte) []byte

// Context is the per-node paxos state: the highest proposal id this node
// has seen, the registered workload processor, and the node's durable
// log. It lives for the lifetime of the node and is mutated both by the
// leader side (new rounds) and the follower side (adopted proposals).
type Context struct {
	mu         sync.Mutex
	proposalID int64
	processor  Processor
	log        *DurableLog
}

// NewContext creates the node state with proposal id 0.
func NewContext(p Processor, l *DurableLog) *Context {
	return &Context{processor: p, log: l}
}

// ProposalID returns the current proposal id.
func (c *Context) ProposalID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proposalID
}

// NextProposalID increments the proposal id and returns the new value.
// The leader calls this once at the start of every round.
func (c *Context) NextProposalID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proposalID++
	return c.proposalID
}

// Advance raises the proposal id to id if id is larger. The proposal id
// never decreases.
func (c *Context) Advance(id int64) {
	c.mu.Lock()
	if id > c.proposalID {
		c.proposalID = id
	}
	c.mu.Unlock()
}

// AdoptIfGreater adopts id as the current proposal id if it is strictly
// larger than what we have seen, and reports whether it did.
func (c *Context) AdoptIfGreater(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.proposalID {
		c.proposalID = id
		return true
	}
	return false
}

// Processor returns the registered workload function.
func (c *Context) Processor() Processor {
	return c.processor
}

// Log returns the node's durable log.
func (c *Context) Log() *DurableLog {
	return c.log
}
