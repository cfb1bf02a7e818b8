// Command marketd runs the haulbid confidential freight auction daemon.
//
// # Configuration File
//
// Create a YAML file with daemon settings:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	log_json: true
//	market:
//	  admin: "<hex account>"
//	  pauser: "<hex account>"
//	  oracle: "<hex account>"
//	  max_bids_per_job: 100
//	postgres:
//	  host: localhost
//	  port: 5432
//	  user: haulbid
//	  database: haulbid
//	dev_oracle: false
//	dev_encrypt: false
//
// # Usage
//
//	go run ./cmd/marketd --config=marketd.yaml
//	go run ./cmd/marketd --addr=:8080 --dev
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haulbid/haulbid/api/httpserver"
	"github.com/haulbid/haulbid/cmd/common"
	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/fhe"
	"github.com/haulbid/haulbid/services"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")
		dev         = flag.Bool("dev", false, "Run with in-process oracle and encrypt endpoint")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *enablePprof {
		cfg.EnablePprof = true
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *logDebug {
		cfg.LogDebug = true
	}
	if *dev {
		cfg.DevOracle = true
		cfg.DevEncrypt = true
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug)

	scheme := fhe.NewMockScheme()
	oracle := fhe.NewMockOracle(scheme)

	engineCfg := cfg.EngineConfig()

	// In dev mode the daemon plays the oracle itself and answers reveal
	// requests from an in-process loop.
	if cfg.DevOracle && engineCfg.Oracle == "" {
		key, err := common.LoadOrGenerateSigningKey("")
		if err != nil {
			return fmt.Errorf("generating oracle key: %w", err)
		}
		pub, err := key.PublicKey()
		if err != nil {
			return err
		}
		engineCfg.Oracle = pub.Account()
		log.Info("Generated dev oracle identity", "account", engineCfg.Oracle)
	}
	if engineCfg.Admin == "" {
		key, err := common.LoadOrGenerateSigningKey("")
		if err != nil {
			return fmt.Errorf("generating admin key: %w", err)
		}
		pub, err := key.PublicKey()
		if err != nil {
			return err
		}
		engineCfg.Admin = pub.Account()
		log.Warn("No admin configured, generated a throwaway identity",
			"account", engineCfg.Admin, "key", fmt.Sprintf("%x", key.Bytes()))
	}
	if engineCfg.Pauser == "" {
		engineCfg.Pauser = engineCfg.Admin
	}

	var store services.EventStore
	if cfg.Postgres != nil {
		pgStore, err := services.NewPostgresEventStore(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting event store: %w", err)
		}
		store = pgStore
		log.Info("Using PostgreSQL event store", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		store = services.NewMemoryEventStore()
		log.Warn("No postgres configured, events are held in memory only")
	}
	defer store.Close()

	engineCfg.Sink = &services.StoreSink{Store: store, Log: log}
	market := engine.New(engineCfg, scheme, oracle)

	apiCfg := &services.HTTPMarketConfig{
		Engine: market,
		Events: store,
		Log:    log,
	}
	if cfg.DevEncrypt {
		log.Warn("Dev encrypt endpoint enabled, do not expose publicly")
		apiCfg.DevScheme = scheme
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, services.NewHTTPMarket(apiCfg))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DevOracle {
		go runDevOracle(ctx, log, market, oracle, engineCfg.Oracle)
	}

	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down marketd")
	cancel()
	srv.Shutdown()
	return nil
}

// runDevOracle polls the in-process oracle and feeds plaintexts straight
// back into the engine, standing in for the external decryption service.
func runDevOracle(ctx context.Context, log *slog.Logger, market *engine.Engine, oracle *fhe.MockOracle, account crypto.Account) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, req := range oracle.Pending() {
				plaintext, err := oracle.Plaintext(req.ID)
				if err != nil {
					log.Error("Dev oracle decryption failed", "requestID", req.ID, "err", err)
					continue
				}
				if err := market.OnCallback(account, req.ID, plaintext); err != nil {
					log.Error("Dev oracle callback rejected", "requestID", req.ID, "err", err)
				}
			}
		}
	}
}
