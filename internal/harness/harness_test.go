package harness

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mavleo96/rocket/internal/checker"
	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/database"
	"github.com/mavleo96/rocket/internal/ledger"
	"github.com/mavleo96/rocket/internal/models"
	"github.com/mavleo96/rocket/internal/network"
	"github.com/mavleo96/rocket/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthrough struct{}

func (passthrough) Setup(*network.Network, *rand.Rand) error { return nil }
func (passthrough) Stop()                                   {}
func (passthrough) HandlePacket(_ context.Context, p *strategy.Packet) (strategy.Decision, error) {
	return strategy.Forward(p.Data), nil
}

// fakeInterceptor calls onRestart with the number of restarts so far
type fakeInterceptor struct {
	mutex     sync.Mutex
	restarts  int
	stops     int
	onRestart func(n int)
}

func (f *fakeInterceptor) Start() error { return nil }

func (f *fakeInterceptor) Restart() error {
	f.mutex.Lock()
	f.restarts++
	n := f.restarts
	f.mutex.Unlock()
	if f.onRestart != nil {
		go f.onRestart(n)
	}
	return nil
}

func (f *fakeInterceptor) Stop() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.stops++
	return nil
}

type stubFetcher struct{}

func (stubFetcher) FetchLedger(_ context.Context, _ models.SocketAddress, seq int) (*ledger.Ledger, error) {
	return &ledger.Ledger{Hash: "HASH" + strconv.Itoa(seq), Index: int64(seq), CloseTime: 757382400}, nil
}

func validators() []models.ValidatorNode {
	return []models.ValidatorNode{
		{Peer: models.SocketAddress{Host: "127.0.0.1", Port: 60000}, WSAdmin: models.SocketAddress{Host: "127.0.0.1", Port: 62000}},
		{Peer: models.SocketAddress{Host: "127.0.0.1", Port: 60001}, WSAdmin: models.SocketAddress{Host: "127.0.0.1", Port: 62001}},
	}
}

func closing(t *testing.T, seq int) []byte {
	t.Helper()
	data, err := codec.Encode(&codec.StatusChange{NewEvent: codec.EventClosingLedger, LedgerSeq: uint32(seq)})
	require.NoError(t, err)
	return data
}

func TestHarnessRun(t *testing.T) {
	logDir := t.TempDir()
	netCfg := &config.NetworkConfig{BasePortPeer: 60000, BasePortWS: 61000, BasePortWSAdmin: 62000, BasePortRPC: 63000, NumberOfNodes: 2}
	require.NoError(t, netCfg.Validate())
	stratCfg := config.DefaultStrategyConfig()
	stratCfg.Iteration = config.IterationConfig{
		Type:                 config.IterationLedger,
		MaxIterations:        2,
		MaxLedgerSeq:         3,
		LedgerTimeoutSeconds: 1,
	}

	db := &database.Database{}
	require.NoError(t, db.InitDB(filepath.Join(logDir, "verdicts.db")))
	defer db.Close()

	// only the first interceptor ever reports its validators
	fi := &fakeInterceptor{}
	h, err := CreateHarness(netCfg, &stratCfg, passthrough{}, Options{
		LogDir:      logDir,
		Interceptor: fi,
		Fetcher:     stubFetcher{},
		Store:       db,
	})
	require.NoError(t, err)
	registered := make(chan struct{})
	fi.onRestart = func(n int) {
		if n == 1 {
			assert.NoError(t, h.RegisterNodes(validators()))
			close(registered)
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("validators were not registered")
	}
	ports := [][2]uint32{{60000, 60001}, {60001, 60000}}
	deadline := time.Now().Add(2 * time.Second)
	for i := 0; h.Controller().CurrentIteration() == 1 && h.Controller().CurrentLedgerSeq() < 3; i++ {
		require.True(t, time.Now().Before(deadline), "ledgers were not validated")
		seq := h.Controller().CurrentLedgerSeq() + 1
		p := ports[i%2]
		decision, err := h.Engine().ProcessPacket(context.Background(), p[0], p[1], closing(t, seq))
		require.NoError(t, err)
		assert.Equal(t, models.ActionSend, decision.Action)
		time.Sleep(time.Millisecond)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, 2, fi.restarts)
	assert.Equal(t, 1, fi.stops)
	assert.Equal(t, strategy.StateStopped, h.Engine().State())

	verdicts, err := db.Verdicts()
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].Correct(), "%+v", verdicts[0])
	assert.Equal(t, checker.TimeoutBeforeStartup, verdicts[1].ReachedGoalLedger)

	_, err = os.Stat(filepath.Join(checker.IterationDir(logDir, 1), "node_info.csv"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(logDir, checker.AggregateFileName))
	require.NoError(t, err)
	var agg checker.Aggregate
	require.NoError(t, json.Unmarshal(data, &agg))
	assert.Equal(t, 2, agg.TotalIterations)
	assert.Equal(t, 1, agg.CorrectRuns)
	assert.Equal(t, 1, agg.TimeoutBeforeStartup)
}

func TestHarnessNoneMode(t *testing.T) {
	logDir := t.TempDir()
	netCfg := &config.NetworkConfig{NumberOfNodes: 2}
	require.NoError(t, netCfg.Validate())
	stratCfg := config.DefaultStrategyConfig()
	stratCfg.Iteration = config.IterationConfig{Type: config.IterationNone, MaxIterations: 3, TimeoutSeconds: 1}

	h, err := CreateHarness(netCfg, &stratCfg, passthrough{}, Options{LogDir: logDir, Fetcher: stubFetcher{}})
	require.NoError(t, err)
	require.NoError(t, h.Run(context.Background()))

	_, err = os.Stat(filepath.Join(logDir, "spec_check_log.csv"))
	assert.True(t, os.IsNotExist(err), "runs without iterations are not checked")
	_, err = os.Stat(filepath.Join(checker.IterationDir(logDir, 1), "action-1.csv"))
	assert.NoError(t, err)
}

func TestCreateHarnessNeedsFetcher(t *testing.T) {
	netCfg := &config.NetworkConfig{NumberOfNodes: 2}
	stratCfg := config.DefaultStrategyConfig()
	_, err := CreateHarness(netCfg, &stratCfg, passthrough{}, Options{LogDir: t.TempDir()})
	assert.Error(t, err)
}
