package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/mavleo96/rocket/pb"
	"gopkg.in/yaml.v3"
)

const MaxPort = 65536

// ConfigurationError is returned for invalid setup input. It is fatal to
// the run being configured.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NetworkConfig holds the layout of the validator network
type NetworkConfig struct {
	BasePortPeer     uint32  `yaml:"base_port_peer"`
	BasePortWS       uint32  `yaml:"base_port_ws"`
	BasePortWSAdmin  uint32  `yaml:"base_port_ws_admin"`
	BasePortRPC      uint32  `yaml:"base_port_rpc"`
	NumberOfNodes    int     `yaml:"number_of_nodes"`
	NetworkPartition [][]int `yaml:"network_partition"`
	UNLPartition     [][]int `yaml:"unl_partition"`
	ByzantineNodes   []int   `yaml:"byzantine_nodes"`
	// PortCeiling is the first port the interceptor may not use. Zero
	// means MaxPort.
	PortCeiling uint32 `yaml:"port_ceiling"`
}

// Ceiling returns the effective port ceiling
func (c *NetworkConfig) Ceiling() int {
	if c.PortCeiling == 0 {
		return MaxPort
	}
	return int(c.PortCeiling)
}

// ParseNetworkConfig reads and validates a network configuration file
func ParseNetworkConfig(cfgPath string) (*NetworkConfig, error) {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return &NetworkConfig{}, err
	}
	var cfg NetworkConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return &NetworkConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return &NetworkConfig{}, err
	}

	return &cfg, nil
}

// Validate checks node count, partitions and byzantine ids. Missing
// partitions default to one group holding every node.
func (c *NetworkConfig) Validate() error {
	if c.NumberOfNodes <= 0 {
		return configErrorf("number_of_nodes", "must be positive, got %d", c.NumberOfNodes)
	}
	if c.PortCeiling > MaxPort {
		return configErrorf("port_ceiling", "must not exceed %d, got %d", MaxPort, c.PortCeiling)
	}
	for name, base := range map[string]uint32{
		"base_port_peer":     c.BasePortPeer,
		"base_port_ws":       c.BasePortWS,
		"base_port_ws_admin": c.BasePortWSAdmin,
		"base_port_rpc":      c.BasePortRPC,
	} {
		if int(base)+c.NumberOfNodes > c.Ceiling() {
			return configErrorf(name, "port range starting at %d does not fit %d nodes", base, c.NumberOfNodes)
		}
	}
	if len(c.NetworkPartition) == 0 {
		c.NetworkPartition = [][]int{allNodes(c.NumberOfNodes)}
	}
	if len(c.UNLPartition) == 0 {
		c.UNLPartition = [][]int{allNodes(c.NumberOfNodes)}
	}
	if err := CheckPartition("network_partition", c.NetworkPartition, c.NumberOfNodes); err != nil {
		return err
	}
	if err := CheckPartition("unl_partition", c.UNLPartition, c.NumberOfNodes); err != nil {
		return err
	}
	for _, id := range c.ByzantineNodes {
		if id < 0 || id >= c.NumberOfNodes {
			return configErrorf("byzantine_nodes", "node id %d out of range", id)
		}
	}
	return nil
}

// Proto converts the configuration to the form served to the interceptor
func (c *NetworkConfig) Proto() *pb.Config {
	toPartitions := func(groups [][]int) []*pb.Partition {
		partitions := make([]*pb.Partition, 0, len(groups))
		for _, group := range groups {
			p := &pb.Partition{}
			for _, id := range group {
				p.Nodes = append(p.Nodes, uint32(id))
			}
			partitions = append(partitions, p)
		}
		return partitions
	}
	return &pb.Config{
		BasePortPeer:    c.BasePortPeer,
		BasePortWs:      c.BasePortWS,
		BasePortWsAdmin: c.BasePortWSAdmin,
		BasePortRpc:     c.BasePortRPC,
		NumberOfNodes:   uint32(c.NumberOfNodes),
		NetPartitions:   toPartitions(c.NetworkPartition),
		UnlPartitions:   toPartitions(c.UNLPartition),
	}
}

// CheckPartition verifies that groups are disjoint, cover every node id in
// [0, n) and contain only valid ids
func CheckPartition(field string, groups [][]int, n int) error {
	seen := make([]bool, n)
	count := 0
	for _, group := range groups {
		for _, id := range group {
			if id < 0 || id >= n {
				return configErrorf(field, "node id %d out of range [0, %d)", id, n)
			}
			if seen[id] {
				return configErrorf(field, "node id %d appears in more than one group", id)
			}
			seen[id] = true
			count++
		}
	}
	if count != n {
		missing := make([]int, 0)
		for id, ok := range seen {
			if !ok {
				missing = append(missing, id)
			}
		}
		return configErrorf(field, "node ids %v are not in any group", missing)
	}
	return nil
}

func allNodes(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// IsByzantine reports whether the node id is configured as byzantine
func (c *NetworkConfig) IsByzantine(id int) bool {
	return slices.Contains(c.ByzantineNodes, id)
}

// ParsePartition parses a partition given on the command line, e.g. "[[0,1],[2]]"
func ParsePartition(s string) ([][]int, error) {
	var groups [][]int
	if err := yaml.Unmarshal([]byte(s), &groups); err != nil || len(groups) == 0 {
		return nil, configErrorf("partition", "not a valid partition: %q", s)
	}
	return groups, nil
}

// ApplyOverrides replaces the node count and partitions given on the
// command line and validates the result. Partitions that no longer fit a
// changed node count fall back to a single group.
func (c *NetworkConfig) ApplyOverrides(nodes int, partition, unl [][]int) error {
	if nodes > 0 && nodes != c.NumberOfNodes {
		c.NumberOfNodes = nodes
		if CheckPartition("network_partition", c.NetworkPartition, nodes) != nil {
			c.NetworkPartition = nil
		}
		if CheckPartition("unl_partition", c.UNLPartition, nodes) != nil {
			c.UNLPartition = nil
		}
	}
	if partition != nil {
		c.NetworkPartition = partition
	}
	if unl != nil {
		c.UNLPartition = unl
	}
	return c.Validate()
}
