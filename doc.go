// paxos is an implementation of single-decree paxos over a fixed quorum
// of cooperating servers. A designated leader drives one two-phase round
// (prepare/promise, then accept/accepted) per client request and returns
// a single agreed-upon result to the client.
//
// Each node runs every role: it accepts client connections, and it acts
// as a follower for whichever node is the current leader. The leader
// sends a prepare to every live server in the quorum (itself included),
// waits for all of them to promise, then sends the client workload in an
// accept. Followers run the workload through a registered Processor and
// reply with the result; the leader cross-checks that all replies are
// byte-identical before forwarding one of them to the client.
//
// Unanimity across the live servers is required, not a majority: the
// basic variant treats any non-responder or rejection as a failed round,
// which the client observes as an error and may retry.
//
// Accepted values can be recorded in a durable log for replay and
// catch-up; see DurableLog and the storage backends.
//
// Noticibly Absent: multi-decree replication, leader election, and
// reconfiguration. The quorum's leader is designated by configuration.
//
// References:
//
// - Paxos Made Simple - Lamport
//
// - The Part-Time Parliament - Lamport
//
// - http://en.wikipedia.org/wiki/Paxos_%28computer_science%29
package paxos
