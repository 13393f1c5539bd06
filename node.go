package paxos

import (
	"log"
	"net"
	"sync"
)

// Node is one member of the quorum. It serves a single TCP endpoint for
// peers and clients alike, plays the follower for whichever node is the
// designated leader, and drives rounds of its own when it is the leader.
type Node struct {
	endpoint string
	ln       net.Listener

	quorum   *Quorum
	ctx      *Context
	strategy Strategy

	// slot serializes rounds on this node when it leads: one client
	// request is in flight at a time, the rest queue behind it
	slot chan struct{}

	mu      sync.Mutex
	inbound []*Dispatcher
	serving bool
	closed  bool
}

// NewNode creates a node listening on the given endpoint ("host:port",
// port 0 picks a free one). The processor runs client workloads; dlog
// records accepted values and may be nil for an in-memory log.
func NewNode(endpoint string, processor Processor, dlog *DurableLog) (*Node, error) {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		log.Println("Listen Error:", err)
		return nil, err
	}
	if dlog == nil {
		dlog = NewDurableLog(NewMemoryBackend())
	}
	n := &Node{
		endpoint: ln.Addr().String(),
		ln:       ln,
		ctx:      NewContext(processor, dlog),
		strategy: NewBasicPaxos(),
		slot:     make(chan struct{}, 1),
	}
	n.quorum = NewQuorum(n.endpoint)
	return n, nil
}

// SetStrategy swaps the protocol variant. Call before Run.
func (n *Node) SetStrategy(s Strategy) {
	n.strategy = s
}

// Endpoint returns the address the node serves on.
func (n *Node) Endpoint() string {
	return n.endpoint
}

// Quorum returns this node's quorum view.
func (n *Node) Quorum() *Quorum {
	return n.quorum
}

// SetLeader designates the quorum's current leader.
func (n *Node) SetLeader(endpoint string) {
	n.quorum.SetLeader(endpoint)
}

// Connect adds the server at the given endpoint to the quorum, dialing a
// fresh connection to it.
func (n *Node) Connect(endpoint string) error {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		log.Println("Error Dialing Peer:", err)
		return err
	}
	// replies only travel this connection, never unsolicited commands
	n.quorum.AddServer(endpoint, NewDispatcher(conn, nil))
	return nil
}

// Run starts serving peers and clients in the background. The node
// connects to itself so the leader path and the follower path stay
// uniform: a leader prepares itself like any other member.
func (n *Node) Run() error {
	n.mu.Lock()
	if n.serving {
		n.mu.Unlock()
		return nil
	}
	n.serving = true
	n.mu.Unlock()
	go n.serve()
	if err := n.Connect(n.endpoint); err != nil {
		log.Print("Failed to Connect to Self: ", err)
		return err
	}
	log.Print("Server is Running at: ", n.endpoint)
	return nil
}

func (n *Node) serve() {
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			n.mu.Lock()
			closed := n.closed
			n.mu.Unlock()
			if !closed {
				log.Print("Error Accepting Connection:", err)
			}
			return
		}
		d := NewDispatcher(conn, n.handleCommand)
		n.mu.Lock()
		n.inbound = append(n.inbound, d)
		n.mu.Unlock()
	}
}

// handleCommand routes one unsolicited inbound command: protocol
// commands go to the follower handlers, client submissions start rounds.
func (n *Node) handleCommand(cmd Command, d *Dispatcher) {
	switch cmd.Type {
	case RequestPrepare:
		n.strategy.Prepare(d, cmd, n.quorum, n.ctx)
	case RequestAccept:
		n.strategy.Accept(d, cmd, n.quorum, n.ctx)
	case RequestInitiate:
		n.handleInitiate(cmd, d)
	default:
		log.Println("Received Command With Bad Type: ", cmd.Type)
	}
}

func (n *Node) handleInitiate(cmd Command, d *Dispatcher) {
	leader := n.quorum.WhoIsOurLeader()
	if leader != n.quorum.OurEndpoint() {
		// point the client at the leader instead
		resp := Command{Type: RequestError, Error: ErrorNotLeader, HostEndpoint: leader}
		if err := d.Reply(cmd, resp); err != nil {
			log.Print("Error Redirecting Client: ", err)
		}
		return
	}
	// claim the slot off the reader goroutine so queued requests don't
	// stall the connection they arrived on
	go func() {
		n.slot <- struct{}{}
		guard := newQueueGuard(func() { <-n.slot })
		n.strategy.Initiate(d, cmd, n.quorum, n.ctx, guard)
	}()
}

// Close shuts the node down and drops every connection it holds.
func (n *Node) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	inbound := n.inbound
	n.mu.Unlock()
	n.ln.Close()
	for _, ep := range n.quorum.LiveServerEndpoints() {
		if s := n.quorum.LookupServer(ep); s != nil {
			s.Dispatcher().Close()
		}
	}
	for _, d := range inbound {
		d.Close()
	}
	log.Println("Closed Node: ", n.endpoint)
}
