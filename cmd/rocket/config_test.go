package main

import (
	"path/filepath"
	"testing"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/dispatcher"
	"github.com/mavleo96/rocket/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigs(t *testing.T) {
	networkCfg, err := config.ParseNetworkConfig(filepath.Join("..", "..", "config", "default_network.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, networkCfg.NumberOfNodes)

	for _, name := range strategy.Names() {
		t.Run(name, func(t *testing.T) {
			cfg, err := config.ParseStrategyConfig(filepath.Join("..", "..", "config", "default_"+name+".yaml"))
			require.NoError(t, err)
			s, err := strategy.New(name, cfg)
			require.NoError(t, err)
			s.Stop()
		})
	}

	cfg, err := config.ParseStrategyConfig(filepath.Join("..", "..", "config", "default_EvoPriority.yaml"))
	require.NoError(t, err)
	var params strategy.EvoPriorityParams
	require.NoError(t, cfg.DecodeParams(&params))
	assert.Len(t, params.Encoding, dispatcher.TableSize(networkCfg.NumberOfNodes))
}
