package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mavleo96/rocket/internal/config"
	"github.com/mavleo96/rocket/internal/database"
	"github.com/mavleo96/rocket/internal/harness"
	"github.com/mavleo96/rocket/internal/interceptor"
	"github.com/mavleo96/rocket/internal/ledger"
	"github.com/mavleo96/rocket/internal/metrics"
	"github.com/mavleo96/rocket/internal/server"
	"github.com/mavleo96/rocket/internal/strategy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run STRATEGY",
	Short: "Run the harness with a strategy",
	Long: "Run the harness with a strategy. Available strategies: " + strings.Join(strategy.Names(), ", ") + ".\n" +
		"The strategy configuration defaults to config/default_STRATEGY.yaml.",
	Args: cobra.ExactArgs(1),
	RunE: runHarness,
}

func init() {
	f := runCmd.Flags()
	f.StringP("network-config", "n", "config/default_network.yaml", "network configuration file")
	f.StringP("config", "c", "", "strategy configuration file")
	f.Int("nodes", 0, "number of validators, overrides the network configuration")
	f.String("partition", "", "network partition, e.g. [[0,1],[2]]")
	f.String("nodes-unl", "", "UNL partition, e.g. [[0,1],[2]]")
	f.String("overrides", "", "strategy parameter overrides, KEY1=VALUE1,KEY2=VALUE2")
	f.String("listen", "localhost:50051", "address of the packet service")
	f.String("log-dir", "logs", "directory receiving the logs of every run")
	f.String("metrics-addr", "", "serve prometheus metrics on this address")
	f.String("interceptor", "./xrpl-packet-interceptor", "interceptor executable")
	f.String("interceptor-dir", "./interceptor", "working directory of the interceptor")
	f.Int("ledger-retries", ledger.DefaultRetries, "retries when fetching a validated ledger")
}

func loadConfigs(name string) (*config.NetworkConfig, *config.StrategyConfig, error) {
	networkCfg, err := config.ParseNetworkConfig(settings.GetString("network-config"))
	if err != nil {
		return nil, nil, fmt.Errorf("network configuration: %w", err)
	}
	var partition, unl [][]int
	if s := settings.GetString("partition"); s != "" {
		if partition, err = config.ParsePartition(s); err != nil {
			return nil, nil, err
		}
	}
	if s := settings.GetString("nodes-unl"); s != "" {
		if unl, err = config.ParsePartition(s); err != nil {
			return nil, nil, err
		}
	}
	if err := networkCfg.ApplyOverrides(settings.GetInt("nodes"), partition, unl); err != nil {
		return nil, nil, err
	}

	path := settings.GetString("config")
	if path == "" {
		path = filepath.Join("config", "default_"+name+".yaml")
	}
	strategyCfg, err := config.ParseStrategyConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy configuration: %w", err)
	}
	overrides, err := config.ParseOverrides(settings.GetString("overrides"))
	if err != nil {
		return nil, nil, err
	}
	strategyCfg.ApplyOverrides(overrides)
	return networkCfg, strategyCfg, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("[Metrics] %v", err)
		}
	}()
	log.Infof("[Metrics] Serving on %s/metrics", addr)
	return srv
}

func runHarness(cmd *cobra.Command, args []string) error {
	name := args[0]
	networkCfg, strategyCfg, err := loadConfigs(name)
	if err != nil {
		return err
	}
	strat, err := strategy.New(name, strategyCfg)
	if err != nil {
		return err
	}

	runDir := filepath.Join(settings.GetString("log-dir"), time.Now().Format("2006_01_02_15h04m05s")+"_"+name)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	log.Infof("Logging run to %s", runDir)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	if addr := settings.GetString("metrics-addr"); addr != "" {
		metricsServer := serveMetrics(addr, reg)
		defer metricsServer.Close()
	}

	verdictDB := &database.Database{}
	if err := verdictDB.InitDB(filepath.Join(runDir, "verdicts.db")); err != nil {
		return err
	}
	defer verdictDB.Close()

	fetcher, err := ledger.CreateWSFetcher(settings.GetInt("ledger-retries"), ledger.DefaultRetryDelay, ledger.DefaultCacheSize)
	if err != nil {
		return err
	}

	opts := harness.Options{
		LogDir:  runDir,
		Fetcher: fetcher,
		Store:   verdictDB,
		Metrics: m,
	}
	if strategyCfg.Iteration.Type != config.IterationNone {
		opts.Interceptor = interceptor.CreateManager(interceptor.Config{
			Path: settings.GetString("interceptor"),
			Dir:  settings.GetString("interceptor-dir"),
		})
	}
	h, err := harness.CreateHarness(networkCfg, strategyCfg, strat, opts)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", settings.GetString("listen"))
	if err != nil {
		return err
	}
	grpcServer := server.NewGRPCServer(server.CreatePacketServer(h.Engine(), networkCfg, h.RegisterNodes))
	var wg sync.WaitGroup
	wg.Go(func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("[Server] %v", err)
		}
	})
	log.Infof("Packet service listening on %s", lis.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = h.Run(ctx)

	grpcServer.GracefulStop()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		log.Warn("Run interrupted")
		return nil
	}
	return err
}
