// Command coffeewards-faultctl sends a disconnect or reconnect command
// to one node's fault-injection control socket, for demonstrating (or
// testing against) the connect/disconnect lifecycle of spec.md §4.3
// without physically unplugging anything.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"coffeewards/configs"
	"coffeewards/internal/faultctl"
	"coffeewards/internal/topology"
)

func main() {
	topologyFile := flag.String("topology", "", "optional .properties file overriding node hosts")
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: coffeewards-faultctl [flags] <d|c> <node_id>")
		os.Exit(1)
	}
	cmd := flag.Arg(0)
	if cmd != faultctl.CmdDisconnect && cmd != faultctl.CmdReconnect {
		fmt.Fprintln(os.Stderr, "command must be 'd' (disconnect) or 'c' (reconnect)")
		os.Exit(1)
	}
	nodeID, err := strconv.ParseUint(flag.Arg(1), 10, 64)
	configs.CheckError(err)

	topo := topology.Default()
	if *topologyFile != "" {
		t, err := topology.Load(*topologyFile)
		configs.CheckError(err)
		topo = t
	}

	addr, err := net.ResolveUDPAddr("udp", topo.FaultAddr(nodeID))
	configs.CheckError(err)
	conn, err := net.DialUDP("udp", nil, addr)
	configs.CheckError(err)
	defer conn.Close()
	_, err = conn.Write([]byte(cmd))
	configs.CheckError(err)
}
