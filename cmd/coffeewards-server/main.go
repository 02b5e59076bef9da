// Command coffeewards-server runs one node of the loyalty-points
// cluster: a branch-facing UDP listener, a Bully UDP listener, and
// (while this node holds the coordinator role) a coordinator TCP
// listener. Flags mirror the teacher's fc-server/main.go style:
// package-level config, flag.*Var into configs at startup, then a
// single blocking main loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"coffeewards/configs"
	"coffeewards/internal/faultctl"
	"coffeewards/internal/topology"
	"coffeewards/ledger"
	"coffeewards/network/branch"
	"coffeewards/network/bully"
	"coffeewards/network/coordinator"
	"coffeewards/network/node"
)

var (
	nMax          int
	topologyFile  string
	showDebug     bool
	showWarnings  bool
	useWAL        bool
	saldoInicial  uint64
)

func init() {
	flag.IntVar(&nMax, "n-max", 3, "fixed maximum number of nodes in the cluster")
	flag.StringVar(&topologyFile, "topology", "", "optional .properties file overriding node hosts")
	flag.BoolVar(&showDebug, "debug", false, "enable verbose actor tracing")
	flag.BoolVar(&showWarnings, "warnings", false, "enable warning output")
	flag.BoolVar(&useWAL, "wal", false, "enable the optional transaction-state audit log")
	flag.Uint64Var(&saldoInicial, "saldo-inicial", 100, "starting balance for a newly seen account")
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: coffeewards-server [flags] <node_id>")
		os.Exit(1)
	}
	id, err := strconv.Atoi(flag.Arg(0))
	configs.CheckError(err)
	selfID := uint64(id)

	configs.ShowDebugInfo = showDebug
	configs.ShowWarnings = showWarnings
	configs.UseWAL = useWAL
	configs.NMax = nMax
	configs.SaldoInicial = saldoInicial

	topo := topology.Default()
	if topologyFile != "" {
		t, err := topology.Load(topologyFile)
		configs.CheckError(err)
		topo = t
	}

	peers := make([]uint64, 0, nMax-1)
	for i := 1; i <= nMax; i++ {
		if uint64(i) != selfID {
			peers = append(peers, uint64(i))
		}
	}

	store := ledger.NewStore(configs.SaldoInicial)
	offlineLog := ledger.NewOfflineLog()
	n := node.NewNode(selfID, store, offlineLog)

	logPath := "coffeewards-node-" + strconv.FormatUint(selfID, 10) + ".wal"
	logs := coordinator.NewLogManager(logPath)

	var bullyListener *bully.Listener
	bullyListener = bully.NewListener(selfID, peers, topo.BullyAddr)
	bullyListener.OnBecomeCoordinator = func() { becomeCoordinator(n, topo, selfID, logs) }
	bullyListener.OnCoordinator = func(coordID uint64) {
		if coordID == selfID {
			return
		}
		n.ClearCoordinator()
		go connectToCoordinator(n, bullyListener, topo, coordID)
	}
	configs.CheckError(bullyListener.Listen(topo.BullyAddr(selfID)))

	branchListener := branch.NewListener(n)
	configs.CheckError(branchListener.Listen(topo.BranchAddr(selfID)))

	faultListener := faultctl.NewListener(n, bullyListener)
	configs.CheckError(faultListener.Listen(topo.FaultAddr(selfID)))

	configs.DPrintf("node %d up, peers=%s", selfID, joinUint64(peers))
	bullyListener.StartElection()

	select {} // the actors run on their own goroutines; main just keeps the process alive
}

func becomeCoordinator(n *node.Node, topo *topology.Table, selfID uint64, logs *coordinator.LogManager) {
	ctx := coordinator.NewContext(selfID, n.Store)
	mgr := coordinator.NewManager(ctx, nil, logs)
	commu := coordinator.NewCommu(mgr)
	mgr.SetSender(commu)
	if err := commu.Listen(topo.TCPAddr(selfID)); err != nil {
		configs.Warn(false, "could not bind coordinator TCP port: "+err.Error())
		return
	}
	n.SetCoordinator(mgr)
	configs.DPrintf("node %d is now coordinator", selfID)
}

func connectToCoordinator(n *node.Node, bl *bully.Listener, topo *topology.Table, coordID uint64) {
	addr := topo.TCPAddr(coordID)
	err := node.RunClient(n, coordID, addr)
	if n.WasVoluntaryDisconnect() {
		configs.DPrintf("node %d left the coordinator voluntarily, not calling an election", n.SelfID)
		return
	}
	if err != nil {
		configs.DPrintf("lost connection to coordinator %d: %v", coordID, err)
	}
	bl.StartElection()
}

func joinUint64(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}
