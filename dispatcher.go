package paxos

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
)

func init() {
	log.SetFlags(log.Lshortfile)
}

// Continuation is invoked with the next command read off a connection.
type Continuation func(Command)

var ErrDispatcherClosed = errors.New("paxos: dispatcher closed")

// Dispatcher frames commands over a single connection. Writes are
// one-way; reads are asynchronous: a continuation registered with Read
// receives the next inbound command, and anything that arrives with no
// continuation registered is handed to the inbound handler. Replies are
// paired with their requests by stream order.
//
// When the connection drops, every registered continuation receives a
// synthetic RequestFail so the round it belongs to can make progress.
type Dispatcher struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder

	wmu sync.Mutex // serializes encoder writes

	mu      sync.Mutex
	pending []Continuation
	closed  bool

	inbound func(Command, *Dispatcher)
}

// NewDispatcher starts dispatching commands on conn. Unsolicited inbound
// commands are passed to the inbound handler; a nil handler drops them.
func NewDispatcher(conn net.Conn, inbound func(Command, *Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(conn),
		inbound: inbound,
	}
	go d.readLoop()
	return d
}

// RemoteEndpoint returns the address of the other side of the connection.
func (d *Dispatcher) RemoteEndpoint() string {
	return d.conn.RemoteAddr().String()
}

// Write enqueues a one-way command. A write error tears the connection
// down, which flushes synthetic failures to any registered continuations.
func (d *Dispatcher) Write(cmd Command) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.mu.Unlock()
	d.wmu.Lock()
	err := d.enc.Encode(cmd)
	d.wmu.Unlock()
	if err != nil {
		log.Print("Error Encoding Command: ", err)
		d.fail()
		return err
	}
	return nil
}

// Reply writes a response tied to a previously received request.
// Requests and responses travel the same stream in FIFO order, so the
// pairing is positional; the request is kept in the signature to make
// reply sites explicit.
func (d *Dispatcher) Reply(req, resp Command) error {
	return d.Write(resp)
}

// Read registers a continuation for the next inbound command.
func (d *Dispatcher) Read(k Continuation) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		// the connection is already gone; fail the read immediately
		k(Command{Type: RequestFail})
		return
	}
	d.pending = append(d.pending, k)
	d.mu.Unlock()
}

// Closed reports whether the underlying connection has been torn down.
func (d *Dispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close tears down the connection. Registered continuations receive a
// synthetic RequestFail.
func (d *Dispatcher) Close() error {
	d.fail()
	return nil
}

func (d *Dispatcher) readLoop() {
	for {
		var cmd Command
		if err := d.dec.Decode(&cmd); err != nil {
			d.fail()
			return
		}
		d.mu.Lock()
		var k Continuation
		if len(d.pending) > 0 {
			k = d.pending[0]
			d.pending = d.pending[1:]
		}
		d.mu.Unlock()
		if k != nil {
			k(cmd)
		} else if d.inbound != nil {
			d.inbound(cmd, d)
		} else {
			log.Print("Dropping Command With No Reader: ", cmd.Type)
		}
	}
}

// fail closes the connection and delivers a synthetic RequestFail to
// every continuation still waiting on it.
func (d *Dispatcher) fail() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	d.conn.Close()
	for _, k := range pending {
		k(Command{Type: RequestFail})
	}
}
