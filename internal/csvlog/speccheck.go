package csvlog

import (
	"strconv"

	"github.com/mavleo96/rocket/internal/models"
)

// SpecCheckLogName is the file name, without extension, of the spec check log
const SpecCheckLogName = "spec_check_log"

// SpecCheckHeader lists the columns of spec_check_log.csv
var SpecCheckHeader = []string{
	"iteration", "reached_goal_ledger", "same_ledger_hashes",
	"same_ledger_indexes", "integrity", "validity",
}

// SpecCheckLogger writes one verdict row per iteration
type SpecCheckLogger struct {
	*CSVLogger
}

// CreateSpecCheckLogger opens dir/spec_check_log.csv
func CreateSpecCheckLogger(dir string) (*SpecCheckLogger, error) {
	l, err := CreateCSVLogger(dir, SpecCheckLogName, SpecCheckHeader)
	if err != nil {
		return nil, err
	}
	return &SpecCheckLogger{l}, nil
}

// LogSpecCheck appends a verdict row
func (l *SpecCheckLogger) LogSpecCheck(iteration int, reachedGoal, sameHashes, sameIndexes, integrity, validity string) error {
	return l.WriteRow([]string{strconv.Itoa(iteration), reachedGoal, sameHashes, sameIndexes, integrity, validity})
}

var nodeInfoHeader = []string{
	"node_id", "peer_port", "ws_public_port", "ws_admin_port", "rpc_port",
	"status", "validation_public_key",
}

// WriteNodeInfo writes node_info.csv describing the validators of an iteration
func WriteNodeInfo(dir string, nodes []models.ValidatorNode) error {
	l, err := CreateCSVLogger(dir, "node_info", nodeInfoHeader)
	if err != nil {
		return err
	}
	defer l.Close()
	for id, node := range nodes {
		err := l.WriteRow([]string{
			strconv.Itoa(id),
			strconv.FormatUint(uint64(node.Peer.Port), 10),
			strconv.FormatUint(uint64(node.WSPublic.Port), 10),
			strconv.FormatUint(uint64(node.WSAdmin.Port), 10),
			strconv.FormatUint(uint64(node.RPC.Port), 10),
			node.Keys.Status,
			node.Keys.ValidationPublicKey,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
