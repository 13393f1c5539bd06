package paxos

// The type for a wire command
type CommandType uint

const (
	Empty           CommandType = iota
	RequestInitiate             // A client's request to run a workload through the quorum
	RequestPrepare              // The leader asking a follower to reserve a proposal id
	RequestPromise              // A follower's promise for a proposal id
	RequestAccept               // The leader asking a follower to execute the workload
	RequestAccepted             // A follower's result for an accepted workload
	RequestFail                 // A follower's rejection of a prepare or accept
	RequestError                // An error reply to the client
)

func (t CommandType) String() string {
	switch t {
	case Empty:
		return "Empty"
	case RequestInitiate:
		return "RequestInitiate"
	case RequestPrepare:
		return "RequestPrepare"
	case RequestPromise:
		return "RequestPromise"
	case RequestAccept:
		return "RequestAccept"
	case RequestAccepted:
		return "RequestAccepted"
	case RequestFail:
		return "RequestFail"
	case RequestError:
		return "RequestError"
	}
	return "INVALID"
}

// ErrorCode describes why a round failed in a RequestError reply.
type ErrorCode uint

const (
	ErrorNone                 ErrorCode = iota
	ErrorIncorrectProposal              // at least one follower rejected the proposal id
	ErrorInconsistentResponse           // the followers' accept replies were not identical
	ErrorNotLeader                      // the contacted node is not the current leader
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "ErrorNone"
	case ErrorIncorrectProposal:
		return "ErrorIncorrectProposal"
	case ErrorInconsistentResponse:
		return "ErrorInconsistentResponse"
	case ErrorNotLeader:
		return "ErrorNotLeader"
	}
	return "INVALID"
}

// Command contains the information for each paxos message. Not every
// field is populated for every type; the zero value is ignored on the
// wire.
type Command struct {
	Type         CommandType `json:"type,omitempty"`          // The Type of the command
	ProposalID   int64       `json:"proposal_id,omitempty"`   // The proposal this command belongs to
	HostEndpoint string      `json:"host_endpoint,omitempty"` // The leader that issued the command
	Workload     []byte      `json:"workload,omitempty"`      // The payload: client request or processor reply
	Error        ErrorCode   `json:"error,omitempty"`         // Indication if an error has occurred
}
