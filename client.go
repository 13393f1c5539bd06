package paxos

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

var (
	// ErrIncorrectProposal is returned when at least one follower
	// rejected the round's proposal id; the request may be retried.
	ErrIncorrectProposal = errors.New("paxos: proposal rejected by quorum")
	// ErrInconsistentResponse is returned when the followers' replies
	// for the same workload were not identical.
	ErrInconsistentResponse = errors.New("paxos: inconsistent responses from quorum")
	// ErrNoServers is returned when the client has nowhere to connect.
	ErrNoServers = errors.New("paxos: no servers")
)

var (
	startTimeout time.Duration = 500 * time.Millisecond
	multTimeout  time.Duration = 2
	endTimeout   time.Duration = 2 * time.Minute
)

// Client submits workloads to the quorum. It connects to any node and
// follows redirects until it reaches the leader.
type Client struct {
	s       net.Conn
	enc     *json.Encoder
	dec     *json.Decoder
	server  string
	servers []string
	Retries int
}

func NewClient() *Client {
	return &Client{Retries: 10}
}

// AddServer registers a node endpoint the client may connect to.
func (c *Client) AddServer(endpoint string) {
	c.servers = append(c.servers, endpoint)
}

// Connect dials the given endpoint with exponential backoff.
func (c *Client) Connect(endpoint string) error {
	c.server = endpoint
	var err error
	tried := startTimeout
	for i := 0; i < c.Retries; i++ {
		c.s, err = net.Dial("tcp", endpoint)
		if err == nil {
			break
		}
		time.Sleep(tried)
		tried *= multTimeout
		if tried > endTimeout {
			tried = endTimeout
		}
	}
	if err != nil {
		log.Print("Unable to Connect To Server: ", err)
		return err
	}
	c.enc = json.NewEncoder(c.s)
	c.dec = json.NewDecoder(c.s)
	return nil
}

// ConnectFirst connects to the first registered server.
func (c *Client) ConnectFirst() error {
	if len(c.servers) == 0 {
		return ErrNoServers
	}
	return c.Connect(c.servers[0])
}

// Request runs one workload through the quorum and returns the agreed
// reply bytes. A node that is not the leader redirects us; protocol
// failures come back as typed errors and the request may be reissued.
func (c *Client) Request(workload []byte) ([]byte, error) {
	if c.s == nil {
		if err := c.ConnectFirst(); err != nil {
			return nil, err
		}
	}
	for redirects := 0; ; redirects++ {
		req := Command{Type: RequestInitiate, Workload: workload}
		if err := c.enc.Encode(req); err != nil {
			log.Print("Error Encoding Client Request: ", err)
			return nil, err
		}
		var resp Command
		if err := c.dec.Decode(&resp); err != nil {
			log.Print("Error Decoding Server Response: ", err)
			return nil, err
		}
		switch resp.Type {
		case RequestAccepted:
			return resp.Workload, nil
		case RequestError:
			switch resp.Error {
			case ErrorNotLeader:
				if resp.HostEndpoint == "" || redirects >= c.Retries {
					return nil, errors.New("paxos: no leader to redirect to")
				}
				log.Print("Redirecting Client to Leader: ", resp.HostEndpoint)
				c.s.Close()
				if err := c.Connect(resp.HostEndpoint); err != nil {
					return nil, err
				}
			case ErrorIncorrectProposal:
				return nil, ErrIncorrectProposal
			case ErrorInconsistentResponse:
				return nil, ErrInconsistentResponse
			default:
				return nil, fmt.Errorf("paxos: request failed: %v", resp.Error)
			}
		default:
			return nil, fmt.Errorf("paxos: unexpected reply type %v", resp.Type)
		}
	}
}

// Close drops the client's connection.
func (c *Client) Close() error {
	if c.s == nil {
		return nil
	}
	return c.s.Close()
}
