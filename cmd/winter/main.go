package main

import (
	"context"
	"flag"
	"os"
	"sort"
	"sync"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"winter/internal/archive"
	"winter/internal/backtest"
	"winter/internal/engine"
	"winter/internal/ingest"
	"winter/internal/model"
	"winter/internal/obs"
	"winter/internal/ops"
	"winter/internal/portfolio"
	"winter/internal/report"
	"winter/internal/sim"
	"winter/internal/strategy"
	"winter/internal/strategy/meanrev"
	"winter/internal/strategy/statarb"
)

// defaultStrategyIDs maps ids when the config file carries no mapping.
var defaultStrategyIDs = map[int]string{
	1: meanrev.Name,
	2: statarb.Name,
}

func main() {
	if err := run(); err != nil {
		logs.Errorf("winter exited, err: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	socketEndpoint := flag.String("socket-endpoint", "", "market data websocket endpoint (live mode)")
	initialBalance := flag.Float64("initial-balance", 0, "starting cash, overrides the config file")
	backtestID := flag.Int("backtest", 0, "backtest with this strategy id; the CSV path follows as a positional argument")
	tradeID := flag.Int("trade", 0, "parallel trade simulation with this strategy id; the CSV path follows as a positional argument")
	configPath := flag.String("config", "", "path to the config file")
	output := flag.String("output", "trades.csv", "trade log CSV output path")
	speed := flag.Float64("speed", 0, "trade simulation pacing (0=instant, 1=recorded pace)")
	pyroscopeAddr := flag.String("pyroscope", "", "pyroscope server address for continuous profiling")
	flag.Parse()

	cfg := ops.Default()
	if *configPath != "" {
		loaded, err := ops.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *socketEndpoint != "" {
		cfg.SocketEndpoint = *socketEndpoint
	}
	if *initialBalance > 0 {
		cfg.InitialBalance = *initialBalance
	}

	if *pyroscopeAddr != "" {
		stop, err := startProfiler(*pyroscopeAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	reg := strategy.NewRegistry()
	reg.Register(meanrev.Name, func() strategy.Strategy { return meanrev.New() })
	reg.Register(statarb.Name, func() strategy.Strategy { return statarb.New(statarb.Config{}) })

	switch {
	case *backtestID != 0:
		return runBacktest(cfg, reg, *backtestID, flag.Arg(0), *output)
	case *tradeID != 0:
		return runTradeSim(cfg, reg, *tradeID, flag.Arg(0), *output, *speed)
	default:
		return runLive(cfg, reg, *output)
	}
}

// createStrategy resolves a numeric id to a fresh, configured
// strategy instance.
func createStrategy(cfg ops.Loaded, reg *strategy.Registry, id int) (strategy.Strategy, error) {
	name, ok := cfg.StrategyName(id)
	if !ok {
		name, ok = defaultStrategyIDs[id]
	}
	if !ok {
		return nil, errors.Errorf("unknown strategy id: %d, registered: %v", id, reg.Names())
	}
	st, err := reg.Create(name)
	if err != nil {
		return nil, err
	}
	if c, ok := st.(strategy.Configurable); ok {
		if params := cfg.StrategyParams(name); len(params) > 0 {
			if err := c.Configure(params); err != nil {
				return nil, errors.Wrap(err, "configure strategy").With("strategy", name)
			}
		}
	}
	return st, nil
}

func runBacktest(cfg ops.Loaded, reg *strategy.Registry, id int, csvPath, output string) error {
	if csvPath == "" {
		return errors.New("backtest requires a CSV path argument")
	}
	st, err := createStrategy(cfg, reg, id)
	if err != nil {
		return err
	}
	ticks, err := backtest.Load(csvPath)
	if err != nil {
		return err
	}
	res, err := backtest.Run(st, ticks, cfg.InitialBalance)
	if err != nil {
		return err
	}
	if err := report.WriteTradesFile(output, res.Fills); err != nil {
		return err
	}
	return report.WriteSummary(os.Stdout, res.Metrics)
}

func runTradeSim(cfg ops.Loaded, reg *strategy.Registry, id int, csvPath, output string, speed float64) error {
	if csvPath == "" {
		return errors.New("trade simulation requires a CSV path argument")
	}
	ticks, err := backtest.Load(csvPath)
	if err != nil {
		return err
	}
	runner, err := sim.New(sim.Config{InitialCapital: cfg.InitialBalance, Speed: speed},
		func() (strategy.Strategy, error) { return createStrategy(cfg, reg, id) })
	if err != nil {
		return err
	}
	res, err := runner.Run(context.Background(), ticks)
	if err != nil {
		return err
	}
	if err := report.WriteTradesFile(output, res.Fills); err != nil {
		return err
	}
	return report.WriteSummary(os.Stdout, res.Metrics)
}

func runLive(cfg ops.Loaded, reg *strategy.Registry, output string) error {
	if cfg.SocketEndpoint == "" {
		return errors.New("live mode requires --socket-endpoint or socket_endpoint in the config")
	}

	metrics := obs.NewMetrics()
	pf := portfolio.New(cfg.InitialBalance)
	e, err := engine.New(engine.Config{
		MarketDataCapacity: cfg.MarketDataCapacity,
		OrderCapacity:      cfg.OrderCapacity,
		BatchSize:          cfg.BatchSize,
		StrategyCPU:        cfg.StrategyCPU,
		ExecutionCPU:       cfg.ExecutionCPU,
	}, pf, metrics)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(cfg.Strategies))
	for id := range cfg.Strategies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		ids = []int{1}
	}
	for _, id := range ids {
		st, err := createStrategy(cfg, reg, id)
		if err != nil {
			return err
		}
		if err := e.AddStrategy(st); err != nil {
			return err
		}
		logs.Infof("loaded strategy: %s", st.Name())
	}

	var arch *archive.Archive
	if cfg.ArchiveDSN != "" {
		arch, err = archive.Open(cfg.ArchiveDSN)
		if err != nil {
			return err
		}
		defer arch.Close()
	}

	// Fills are teed to the archive off the execution goroutine; the
	// observer itself must stay non-blocking.
	archCh := make(chan model.Fill, 1024)
	archDone := make(chan struct{})
	go func() {
		defer close(archDone)
		for f := range archCh {
			arch.SaveFill(f)
		}
	}()

	var mu sync.Mutex
	var fills []model.Fill
	e.SetOrderObserver(func(f model.Fill) {
		mu.Lock()
		fills = append(fills, f)
		mu.Unlock()
		select {
		case archCh <- f:
		default:
		}
		if f.HasPnL {
			logs.Infof("SELL %d %s @ %.2f, pnl: %.2f, cash: %.2f", f.Quantity, f.Symbol, f.Price, f.RealizedPnL, pf.Cash())
		} else {
			logs.Infof("BUY %d %s @ %.2f, cash: %.2f", f.Quantity, f.Symbol, f.Price, pf.Cash())
		}
	})

	if err := e.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := ingest.NewFeed(ctx, cfg.SocketEndpoint, metrics)
	if err := feed.Start(ctx); err != nil {
		e.Stop()
		return err
	}
	defer feed.Close()

	unsubscribe := feed.ObserveTicks(ctx, func(tick model.Tick) {
		e.SubmitTick(tick)
	})
	defer unsubscribe()

	logs.Infof("winter live, endpoint: %s, balance: %.2f", cfg.SocketEndpoint, cfg.InitialBalance)
	<-sys.Shutdown()
	logs.Info("shutting down")

	e.Stop()
	close(archCh)
	<-archDone

	snap := metrics.Snapshot()
	logs.Infof("ticks: %d submitted, %d dropped, orders: %d emitted, %d dropped, fills: %d, faults: %d, parse errors: %d",
		snap.TicksSubmitted, snap.TickDrops, snap.OrdersEmitted, snap.OrderDrops, snap.Fills, snap.StrategyFaults, snap.ParseErrors)
	if snap.TickToFill.Count > 0 {
		logs.Infof("tick-to-fill latency, avg: %s, min: %s, max: %s",
			snap.TickToFill.Avg, snap.TickToFill.Min, snap.TickToFill.Max)
	}
	logs.Infof("final cash: %.2f, total value: %.2f", pf.Cash(), pf.TotalValue())

	mu.Lock()
	defer mu.Unlock()
	return report.WriteTradesFile(output, fills)
}

func startProfiler(addr string) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "winter",
		ServerAddress:   addr,
		Tags:            map[string]string{"env": "local"},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return func() { _ = profiler.Stop() }, nil
}
