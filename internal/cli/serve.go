package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lazypower/decayregion/internal/config"
	"github.com/lazypower/decayregion/internal/engine"
	"github.com/lazypower/decayregion/internal/kvstore"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/server"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/lazypower/decayregion/internal/store"
	"github.com/lazypower/decayregion/internal/tick"
	"github.com/lazypower/decayregion/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveWorlds []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decay engine against the sandbox world and serve the admin API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveWorlds, "world", []string{"world"}, "worlds to load in the sandbox host")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Storage failures degrade to an untracked engine rather than exiting.
	var (
		led  ledger.Ledger = ledger.Disabled{}
		rows snapshot.RowStore
	)
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open database (%v), ledger and snapshots disabled\n", err)
	} else {
		defer db.Close()
		rows = db
		led = db
	}
	if cfg.Database.Backend == "badger" {
		kv, err := kvstore.Open(cfg.Database.BadgerDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: open badger ledger (%v), ledger disabled\n", err)
			led = ledger.Disabled{}
		} else {
			defer kv.Close()
			led = kv
		}
	}

	if n, err := ledger.ImportLegacy(led, cfg.LegacyLedgerPath()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: legacy import: %v\n", err)
	} else if n > 0 {
		fmt.Fprintf(os.Stderr, "  imported %d legacy records from %s\n", n, cfg.LegacyLedgerPath())
	}

	regions, err := region.Load(cfg.RegionsFile)
	if err != nil {
		return fmt.Errorf("load regions: %w", err)
	}

	w := world.NewMemory(serveWorlds...)
	for _, r := range regions.All() {
		w.AddWorld(r.World)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	loop := tick.NewLoop()
	eng := engine.New(engine.Deps{
		Regions:   regions,
		Ledger:    led,
		Snapshots: snapshot.New(rows, w, snapshot.Options{MaxVolume: cfg.Snapshot.MaxVolume, NonAirOnly: cfg.Snapshot.NonAirOnly}),
		World:     w,
		Clock:     loop,
		Metrics:   engine.NewMetrics(reg),
	}, cfg)

	eng.Reconcile()
	eng.Start()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx, cfg.Tick.RateHz)
	}()

	srv := server.New(eng, loop, reg, VersionString())
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "decayregion serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s (ledger: %s)\n", cfg.Database.Path, cfg.Database.Backend)
		fmt.Fprintf(os.Stderr, "  regions: %d from %s\n", regions.Len(), cfg.RegionsFile)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	err = httpServer.Shutdown(shutdownCtx)

	loop.Do(eng.Stop)
	cancel()
	wg.Wait()
	return err
}
