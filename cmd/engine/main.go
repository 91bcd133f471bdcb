package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/feed"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

const subscriberBuffer = 16

type emptyLogger struct{}

func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Errorf(string, ...any) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	snapshotPath := flag.String("snapshot-path", "testdata/positions.json", "Position snapshot output")
	recoverEnabled := flag.Bool("recover", false, "Restore positions from the snapshot at startup")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "order-core/engine",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %+v", err)
	}

	metrics := obs.NewMetrics()

	store, err := book.New(loaded.BookLevels, loaded.TradeCapacity)
	if err != nil {
		log.Fatalf("build book store: %+v", err)
	}

	led := ledger.New()
	if *recoverEnabled {
		snapshot, err := ledger.ReadSnapshot(*snapshotPath)
		if err != nil {
			log.Fatalf("recover positions: %+v", err)
		}
		led.ApplySnapshot(snapshot)
		logs.Infof("recovered %d positions from %s", led.Count(), *snapshotPath)
	}

	jnl, err := journal.Open(loaded.JournalDSN)
	if err != nil {
		log.Fatalf("open journal: %+v", err)
	}
	var recorder engine.Recorder
	if jnl != nil {
		recorder = jnl
	}

	eng := engine.New(
		engine.Config{TolerateStale: loaded.TolerateStale},
		loaded.Tiers,
		led,
		recorder,
		metrics,
	)

	broadcaster := bus.NewBroadcaster(subscriberBuffer, metrics)

	source, err := buildSource(ctx, loaded)
	if err != nil {
		log.Fatalf("build feed source: %+v", err)
	}

	driver, err := feed.NewDriver(source, store, loaded.TickPeriod, metrics,
		func(snap book.Snapshot) { eng.EvaluateTick(snap) },
		func(snap book.Snapshot) { led.Revalue(snap.Tick) },
		broadcaster.Publish,
	)
	if err != nil {
		log.Fatalf("build driver: %+v", err)
	}

	driver.Start(ctx)
	logs.Infof("engine running: symbol=%s source=%s period=%s",
		loaded.Symbol, loaded.FeedSource, loaded.TickPeriod)

	<-ctx.Done()
	logs.Info("shutting down")

	driver.Stop()
	broadcaster.Close()
	if closer, ok := source.(interface{ Close() }); ok {
		closer.Close()
	}

	if err := ledger.WriteSnapshot(*snapshotPath, led.Snapshot()); err != nil {
		logs.Errorf("write position snapshot, err: %+v", err)
	} else {
		logs.Infof("positions saved to %s", *snapshotPath)
	}

	if err := jnl.Close(); err != nil {
		logs.Errorf("close journal, err: %+v", err)
	}

	stats := metrics.Snapshot()
	logs.Infof("ticks=%d fills=%d rejects=%d cancels=%d(lost %d) staleSkips=%d",
		stats.Ticks, stats.Fills, stats.Rejects, stats.Cancels, stats.CancelsLost, stats.StaleSkips)
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(ops.FileConfig{})
	}
	return ops.Load(path)
}

func buildSource(ctx context.Context, loaded ops.Loaded) (feed.Source, error) {
	if loaded.FeedSource == ops.SourceExternal {
		external, err := feed.NewExternal(ctx, feed.ExternalConfig{
			URL:        loaded.FeedURL,
			Symbol:     loaded.Symbol,
			StaleAfter: loaded.StaleAfter,
		})
		if err != nil {
			return nil, err
		}
		if err := external.Start(ctx); err != nil {
			return nil, err
		}
		return external, nil
	}
	return feed.NewGenerator(loaded.Generator)
}
