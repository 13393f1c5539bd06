package main

import (
	"flag"
	"log"
	"strings"

	paxos "github.com/dyv/basicpaxos"
)

// Starts one quorum member. Every member is given the same peer list and
// the same leader endpoint; run it once per node:
//
//	start_paxos -listen 127.0.0.1:36809 \
//	    -peers 127.0.0.1:36810,127.0.0.1:36811 \
//	    -leader 127.0.0.1:36809 \
//	    -log logs/36809.log
func main() {
	listen := flag.String("listen", "127.0.0.1:36809", "endpoint to serve on")
	peers := flag.String("peers", "", "comma separated peer endpoints")
	leader := flag.String("leader", "", "endpoint of the designated leader")
	logPath := flag.String("log", "", "durable log file (empty keeps the log in memory)")
	flag.Parse()

	var dlog *paxos.DurableLog
	if *logPath != "" {
		backend, err := paxos.OpenDiskBackend(*logPath)
		if err != nil {
			log.Fatalln("Error Opening Durable Log:", err)
		}
		dlog = paxos.NewDurableLog(backend)
	}

	echo := func(workload []byte) []byte { return workload }
	node, err := paxos.NewNode(*listen, echo, dlog)
	if err != nil {
		log.Fatalln("Error Creating Node:", err)
	}
	node.SetStrategy(paxos.NewDurablePaxos())
	if err := node.Run(); err != nil {
		log.Fatalln("Error Running Node:", err)
	}
	for _, p := range strings.Split(*peers, ",") {
		if p == "" {
			continue
		}
		if err := node.Connect(p); err != nil {
			log.Fatalln("Error Connecting to Peer:", err)
		}
	}
	if *leader == "" {
		*leader = node.Endpoint()
	}
	node.SetLeader(*leader)
	select {}
}
