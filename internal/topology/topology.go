// Package topology resolves a node id to the TCP/UDP addresses it
// listens on. The default is spec.md §6's deterministic port
// arithmetic (BASE_TCP+id, etc.); an optional properties file lets a
// deployment override individual nodes' addresses, grounded on the
// teacher's use of github.com/magiconair/properties for test fixtures
// and cluster configuration (network/participant/utils.go).
package topology

import (
	"fmt"
	"strconv"

	"github.com/magiconair/properties"

	"coffeewards/configs"
)

// Table resolves node ids to addresses for the four endpoints a node
// exposes: the coordinator TCP port, the Bully UDP port, the branch
// UDP port, and the fault-injection control UDP port.
type Table struct {
	host      string
	overrides *properties.Properties // optional, nil if no file was loaded
}

// Default builds a Table using BASE_TCP/BASE_BULLY/BASE_BRANCH/BASE_FAULT
// arithmetic on localhost, with no overrides.
func Default() *Table {
	return &Table{host: "127.0.0.1"}
}

// Load reads a .properties file of the form:
//
//	node.3.host=10.0.0.3
//
// overriding the host a given node id is addressed at; ports still
// follow the BASE_* arithmetic. Missing entries fall back to Default's
// localhost behavior.
func Load(path string) (*Table, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return &Table{host: "127.0.0.1", overrides: p}, nil
}

func (t *Table) hostFor(nodeID uint64) string {
	if t.overrides == nil {
		return t.host
	}
	key := "node." + strconv.FormatUint(nodeID, 10) + ".host"
	return t.overrides.GetString(key, t.host)
}

// TCPAddr returns the coordinator TCP address for nodeID.
func (t *Table) TCPAddr(nodeID uint64) string {
	return addr(t.hostFor(nodeID), configs.BaseTCP, nodeID)
}

// BullyAddr returns the Bully UDP address for nodeID.
func (t *Table) BullyAddr(nodeID uint64) string {
	return addr(t.hostFor(nodeID), configs.BaseBully, nodeID)
}

// BranchAddr returns the branch-protocol UDP address for nodeID.
func (t *Table) BranchAddr(nodeID uint64) string {
	return addr(t.hostFor(nodeID), configs.BaseBranch, nodeID)
}

// FaultAddr returns the fault-injection control address for nodeID.
func (t *Table) FaultAddr(nodeID uint64) string {
	return addr(t.hostFor(nodeID), configs.BaseFault, nodeID)
}

func addr(host string, base int, nodeID uint64) string {
	return fmt.Sprintf("%s:%d", host, base+int(nodeID))
}
