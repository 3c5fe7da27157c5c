package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aristath/filmcrew/internal/backend"
	"github.com/aristath/filmcrew/internal/config"
	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/orchestrator"
	"github.com/aristath/filmcrew/internal/persistence"
	"github.com/aristath/filmcrew/internal/scheduler"
)

// app is the wired runtime shared by the commands.
type app struct {
	cfg         *config.Config
	bus         *events.EventBus
	queue       *scheduler.Queue
	orch        *orchestrator.Orchestrator
	pm          *backend.ProcessManager
	executor    orchestrator.Executor
	concurrency int
	metrics     *prometheus.Registry

	store    *persistence.SQLiteStore
	recorder *persistence.Recorder

	detach   []func()
	watchers sync.WaitGroup
	once     sync.Once
}

// loadConfig reads the explicit config file when given, otherwise the
// conventional global and project files.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.Load("", opts.configPath)
	}
	return config.LoadDefault()
}

// newApp loads config and wires queue, orchestrator, executor, event bus,
// metrics and (when a database is configured) the audit recorder.
func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.concurrency > 0 {
		cfg.Execution.Concurrency = opts.concurrency
	}

	a := &app{
		cfg:         cfg,
		bus:         events.NewEventBus(),
		queue:       scheduler.NewQueue(),
		pm:          backend.NewProcessManager(),
		concurrency: max(cfg.Execution.Concurrency, 1),
		metrics:     prometheus.NewRegistry(),
	}
	a.orch = orchestrator.New(a.queue, cfg.Registry(), orchestrator.Options{})
	a.detach = append(a.detach, orchestrator.BridgeEvents(a.queue, a.bus))

	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "filmcrew",
			Name:      "bus_events_dropped_total",
			Help:      "Event deliveries skipped because a subscriber was full.",
		}, func() float64 { return float64(a.bus.Dropped()) }),
	)
	a.detach = append(a.detach, orchestrator.NewMetrics(a.metrics).Attach(a.queue))
	if cfg.Metrics.Addr != "" {
		orchestrator.StartMetricsServer(ctx, cfg.Metrics.Addr, a.metrics)
	}

	if cfg.Storage.Path != "" {
		store, err := persistence.NewSQLiteStore(ctx, cfg.Storage.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		a.store = store
		a.recorder = persistence.NewRecorder(store, a.queue, 0)
		a.recorder.FollowOutput(a.bus.Subscribe(events.TopicTask, 1024))
	}

	var inner orchestrator.Executor
	if opts.dryRun {
		inner = orchestrator.DryRunExecutor()
	} else {
		workDir, err := os.Getwd()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		inner = orchestrator.NewBackendExecutor(cfg, a.pm, a.bus, workDir)
	}
	retry, breaker := orchestrator.ResilienceFromConfig(cfg.Execution)
	a.executor = orchestrator.NewResilientExecutor(inner, retry, orchestrator.NewCircuitBreakerRegistry(breaker), cfg.Execution.TaskTimeout.Std())
	if cfg.Execution.SerializeAgents {
		a.executor = orchestrator.SerializeByAgent(a.executor, orchestrator.NewAgentLocks())
	}

	return a, nil
}

// watch runs fn on a bus subscription until the bus closes. Close waits for it.
func (a *app) watch(bufSize int, fn func(<-chan events.Event)) {
	ch := a.bus.SubscribeAll(bufSize)
	a.watchers.Add(1)
	go func() {
		defer a.watchers.Done()
		fn(ch)
	}()
}

// execute drains the queue, in parallel when concurrency allows.
func (a *app) execute(ctx context.Context) (orchestrator.Report, error) {
	if a.concurrency > 1 {
		return a.orch.ExecuteParallel(ctx, a.executor, a.concurrency)
	}
	return a.orch.Execute(ctx, a.executor)
}

// Close stops observers, flushes the recorder and kills leftover processes.
func (a *app) Close() {
	a.once.Do(func() {
		for _, fn := range a.detach {
			fn()
		}
		a.bus.Close()
		a.watchers.Wait()
		if n := a.bus.DroppedOn(events.TopicTask); n > 0 {
			log.Printf("WARNING: event bus dropped %d task events", n)
		}

		if a.recorder != nil {
			a.recorder.Close()
			if dropped := a.recorder.Dropped(); dropped > 0 {
				log.Printf("WARNING: audit recorder dropped %d snapshots", dropped)
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				log.Printf("ERROR: closing audit store: %v", err)
			}
		}
		if err := a.pm.KillAll(); err != nil {
			log.Printf("ERROR: killing subprocesses: %v", err)
		}
	})
}
