package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckPartition(t *testing.T) {
	tests := []struct {
		name   string
		groups [][]int
		n      int
		ok     bool
	}{
		{"single group", [][]int{{0, 1, 2}}, 3, true},
		{"split", [][]int{{0, 2}, {1}}, 3, true},
		{"overlap", [][]int{{0, 1}, {1, 2}}, 3, false},
		{"missing node", [][]int{{0, 1}}, 3, false},
		{"out of range", [][]int{{0, 1, 3}}, 3, false},
		{"negative", [][]int{{-1, 0, 1}}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPartition("network_partition", tt.groups, tt.n)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestParseNetworkConfigDefaultsPartitions(t *testing.T) {
	path := writeFile(t, "network.yaml", `
base_port_peer: 60000
base_port_ws: 61000
base_port_ws_admin: 62000
base_port_rpc: 63000
number_of_nodes: 3
byzantine_nodes: [2]
`)
	cfg, err := ParseNetworkConfig(path)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2}}, cfg.NetworkPartition)
	assert.Equal(t, [][]int{{0, 1, 2}}, cfg.UNLPartition)
	assert.True(t, cfg.IsByzantine(2))
	assert.False(t, cfg.IsByzantine(0))

	proto := cfg.Proto()
	assert.Equal(t, uint32(3), proto.NumberOfNodes)
	assert.Equal(t, []uint32{0, 1, 2}, proto.NetPartitions[0].Nodes)
}

func TestParseNetworkConfigRejectsBadInput(t *testing.T) {
	_, err := ParseNetworkConfig(writeFile(t, "zero.yaml", "number_of_nodes: 0\n"))
	assert.Error(t, err)

	_, err = ParseNetworkConfig(writeFile(t, "ports.yaml", "number_of_nodes: 5\nbase_port_peer: 65533\n"))
	assert.Error(t, err)

	_, err = ParseNetworkConfig(writeFile(t, "ceiling.yaml", "number_of_nodes: 3\nbase_port_rpc: 64510\nport_ceiling: 64512\n"))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "base_port_rpc", cfgErr.Field)

	_, err = ParseNetworkConfig(writeFile(t, "maxport.yaml", "number_of_nodes: 3\nport_ceiling: 70000\n"))
	assert.Error(t, err)

	_, err = ParseNetworkConfig(writeFile(t, "byz.yaml", "number_of_nodes: 2\nbyzantine_nodes: [4]\n"))
	assert.Error(t, err)
}

func TestParseStrategyConfig(t *testing.T) {
	path := writeFile(t, "strategy.yaml", `
seed: 10
auto_parse_subsets: false
subsets:
  2: [[0], [1, 3]]
  1: [0, 2]
iteration:
  type: time
  timeout_seconds: 30
  max_iterations: 4
params:
  send_probability: 0.6
  drop_probability: 0.4
`)
	cfg, err := ParseStrategyConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(10), *cfg.Seed)
	assert.True(t, cfg.AutoPartition)
	assert.False(t, cfg.AutoParseSubsets)
	assert.Equal(t, SubsetGroups{{0}, {1, 3}}, cfg.Subsets[2])
	assert.Equal(t, SubsetGroups{{0, 2}}, cfg.Subsets[1])
	assert.Equal(t, IterationTime, cfg.Iteration.Type)
	assert.Equal(t, 4, cfg.Iteration.MaxIterations)

	var params struct {
		Send float64 `yaml:"send_probability"`
		Drop float64 `yaml:"drop_probability"`
	}
	require.NoError(t, cfg.DecodeParams(&params))
	assert.Equal(t, 0.6, params.Send)
	assert.Equal(t, 0.4, params.Drop)
}

func TestStrategyConfigValidate(t *testing.T) {
	cfg := DefaultStrategyConfig()
	require.NoError(t, cfg.Validate())

	cfg.Iteration.Type = "forever"
	assert.Error(t, cfg.Validate())

	cfg = DefaultStrategyConfig()
	cfg.Iteration.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultStrategyConfig()
	cfg.Subsets = map[int]SubsetGroups{0: {{-1}}}
	assert.Error(t, cfg.Validate())
}

func TestOverrides(t *testing.T) {
	overrides, err := ParseOverrides("send_probability=0.9, delay_probability=0.1,encoding=[1 2]")
	require.NoError(t, err)
	assert.Equal(t, "0.9", overrides["send_probability"])

	_, err = ParseOverrides("no_equals_sign")
	assert.Error(t, err)

	cfg := DefaultStrategyConfig()
	cfg.ApplyOverrides(map[string]string{"send_probability": "0.9", "delay_probability": "0.1"})
	var params struct {
		Send  float64 `yaml:"send_probability"`
		Delay float64 `yaml:"delay_probability"`
	}
	require.NoError(t, cfg.DecodeParams(&params))
	assert.Equal(t, 0.9, params.Send)
	assert.Equal(t, 0.1, params.Delay)

	cfg.ApplyOverrides(map[string]string{"send_probability": "0.5"})
	require.NoError(t, cfg.DecodeParams(&params))
	assert.Equal(t, 0.5, params.Send)
}

func TestNetworkOverrides(t *testing.T) {
	groups, err := ParsePartition("[[0,1],[2,3]]")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, groups)
	_, err = ParsePartition("[0,1]")
	assert.Error(t, err)
	_, err = ParsePartition("")
	assert.Error(t, err)

	cfg := &NetworkConfig{NumberOfNodes: 3}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ApplyOverrides(4, groups, nil))
	assert.Equal(t, 4, cfg.NumberOfNodes)
	assert.Equal(t, groups, cfg.NetworkPartition)
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, cfg.UNLPartition)

	var cfgErr *ConfigurationError
	err = cfg.ApplyOverrides(0, nil, [][]int{{0, 1}})
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "unl_partition", cfgErr.Field)
}
