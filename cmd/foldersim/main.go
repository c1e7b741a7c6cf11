package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/charmbracelet/log"

	"github.com/azargarov/foldersim"
	"github.com/azargarov/foldersim/internal/config"
	"github.com/azargarov/foldersim/internal/report"
	"github.com/azargarov/foldersim/internal/view"
	"github.com/azargarov/foldersim/internal/wshub"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "foldersim",
	})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}
	if cfg.UI {
		// Only faults may draw over the terminal view.
		logger.SetLevel(log.ErrorLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	zl := newCoreLogger(cfg)
	defer func() { _ = zl.Sync() }()
	logCtx := lg.Attach(context.Background(), zl)

	opts := cfg.SimOptions()
	opts.LogContext = logCtx
	opts.OnInternalError = func(err error) {
		logger.Error("internal error", "err", err)
	}
	sim := foldersim.New(opts)

	rec := report.NewRecorder()
	sim.Subscribe(rec)
	if !cfg.UI {
		sim.Subscribe(consoleObserver(logger))
	}

	var hub *wshub.Hub
	var srv *http.Server
	if cfg.WSAddr != "" {
		hub = wshub.New(logCtx, wshub.SnapshotOf(sim))
		sim.Subscribe(hub)
		mux := http.NewServeMux()
		mux.Handle("/events", hub)
		srv = &http.Server{Addr: cfg.WSAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("websocket stream listening", "addr", cfg.WSAddr, "path", "/events")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("websocket server failed", "err", err)
			}
		}()
	}

	genOpts := cfg.GeneratorOptions()
	genOpts.LogContext = logCtx
	gen := foldersim.NewGenerator(sim, genOpts)
	for i := 0; i < cfg.Clients; i++ {
		if _, err := gen.Emit(); err != nil {
			logger.Error("submit initial client", "err", err)
		}
	}

	if err := sim.Start(); err != nil {
		logger.Fatal("start simulation", "err", err)
	}
	if cfg.Arrival > 0 {
		go gen.Run(ctx)
	}

	var stopView func()
	if cfg.UI {
		stopView = view.Run(ctx, os.Stdout, sim, 0, stop)
	}

	<-ctx.Done()
	if stopView != nil {
		stopView()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sim.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out", "err", err)
	}
	sim.Close()
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
		hub.Close()
	}

	ts := rec.Turnarounds()
	m := sim.Metrics()
	logger.Info("run finished",
		"summary", report.Summarize(ts).String(),
		"enqueued", m.Enqueued,
		"requeued", m.Requeued,
		"waiting", sim.Queue().Len(),
		"peak_busy", m.PeakBusy,
		"dropped_events", m.DroppedEvents,
	)

	if cfg.ChartPath != "" {
		if err := writeChart(cfg.ChartPath, ts); err != nil {
			logger.Error("write chart", "path", cfg.ChartPath, "err", err)
			_ = zl.Sync()
			os.Exit(1)
		}
		logger.Info("chart written", "path", cfg.ChartPath)
	}
}

// consoleObserver logs lifecycle events. Per-tick progress is left to
// the debug level.
func consoleObserver(logger *log.Logger) foldersim.Observer {
	return foldersim.ObserverFunc(func(e foldersim.Event) {
		switch e.Kind {
		case foldersim.EventClientChanged:
			logger.Debug(e.Kind.String(), "client", e.Client.ID, "progress", e.Client.Progress)
		case foldersim.EventFolderChanged:
			if e.Folder.Busy() {
				logger.Debug(e.Kind.String(), "folder", e.Folder.Index, "unit", e.Folder.Unit.Name)
			} else {
				logger.Debug(e.Kind.String(), "folder", e.Folder.Index, "unit", "idle")
			}
		case foldersim.EventSimulationStarted, foldersim.EventSimulationStopped:
			logger.Info(e.Kind.String(), "run", e.RunID)
		default:
			if e.Client != nil {
				logger.Info(e.Kind.String(),
					"client", e.Client.ID,
					"files", e.Client.Files,
					"priority", e.Client.Priority,
				)
			}
		}
	})
}

func writeChart(path string, ts []report.Turnaround) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteChart(f, ts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
