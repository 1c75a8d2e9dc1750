package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tv_annotator/internal/api"
	"github.com/dgnsrekt/tv_annotator/internal/browser"
	"github.com/dgnsrekt/tv_annotator/internal/cdpsurface"
	"github.com/dgnsrekt/tv_annotator/internal/config"
	"github.com/dgnsrekt/tv_annotator/internal/controller"
	"github.com/dgnsrekt/tv_annotator/internal/engine"
	"github.com/dgnsrekt/tv_annotator/internal/journal"
	"github.com/dgnsrekt/tv_annotator/internal/metrics"
	"github.com/dgnsrekt/tv_annotator/internal/netutil"
	"github.com/dgnsrekt/tv_annotator/internal/relay"
	"github.com/dgnsrekt/tv_annotator/internal/session"
	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
	"github.com/dgnsrekt/tv_annotator/internal/surface/memsurface"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load annotator config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	layout, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		slog.Error("failed to load pane layout", "file", cfg.LayoutFile, "error", err)
		os.Exit(1)
	}

	slog.Info("annotator config loaded",
		"bind_addr", cfg.BindAddr,
		"backend", cfg.Backend,
		"symbol", cfg.Symbol,
		"layout_file", cfg.LayoutFile,
		"snapshot_dir", cfg.SnapshotDir,
		"journal_dir", cfg.JournalDir,
		"main_pane", layout.Main,
		"panes", len(layout.Panes),
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind control API", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	addr := ln.Addr().String()
	chartURL := cfg.ChartURL
	if chartURL == "" {
		chartURL = "http://" + addr + "/chart/"
	}

	surfaces, mainSurface, chrome, err := buildSurfaces(cfg, layout, chartURL)
	if err != nil {
		slog.Error("failed to build chart surfaces", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	broker := relay.NewBroker()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "annotator_stream_dropped_total",
			Help: "State events dropped for slow stream subscribers",
		}, func() float64 { return float64(broker.Dropped()) }),
	)
	m := metrics.NewMetrics(reg, broker.ClientCount)

	var svcOpts []controller.ServiceOption
	if cfg.SnapshotDir != "" {
		store, err := snapshot.NewStore(cfg.SnapshotDir)
		if err != nil {
			slog.Error("failed to open snapshot store", "dir", cfg.SnapshotDir, "error", err)
			os.Exit(1)
		}
		svcOpts = append(svcOpts, controller.WithSnapshots(store))
	}

	sessOpts := []session.Option{session.WithObserver(m), session.WithPublisher(broker)}
	var jw *journal.Writer
	if cfg.JournalDir != "" {
		jw = journal.New(cfg.JournalDir, "", 256, cfg.JournalMaxSizeMB)
		sessOpts = append(sessOpts, session.WithPublisher(jw))
	}

	sess := session.New(mainSurface, surfaces, session.Config{
		Symbol: cfg.Symbol,
		Thresholds: engine.Thresholds{
			Endpoint:  cfg.HitEndpoint,
			Body:      cfg.HitBody,
			TimeScale: cfg.HitTimeScale,
		},
		Styles:     layout.Styles,
		EchoWindow: time.Duration(cfg.EchoWindowMS) * time.Millisecond,
	}, sessOpts...)

	opts := []api.Option{
		api.WithStream(relay.SSEHandler(broker)),
		api.WithMetrics(m.Handler()),
	}
	if chrome != nil {
		opts = append(opts, api.WithChartPage(cdpsurface.PageHandler()))
	}
	svc := controller.NewService(sess, svcOpts...)
	srv := &http.Server{Handler: api.NewServer(svc, opts...), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error {
		slog.Info("annotator listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("annotator shutdown failed", "error", err)
		}
		return nil
	})
	if chrome != nil {
		g.Go(func() error { return runBrowser(gctx, cfg, chrome, chartURL) })
	}

	err = g.Wait()
	if jw != nil {
		if cerr := jw.Close(); cerr != nil {
			slog.Warn("journal close failed", "error", cerr)
		}
	}
	if err != nil {
		slog.Error("annotator stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("annotator stopped")
}

// buildSurfaces creates one surface per layout pane, main first.
func buildSurfaces(cfg *config.Config, layout *config.LayoutConfig, chartURL string) ([]surface.Surface, surface.Surface, *cdpsurface.Browser, error) {
	ordered := make([]config.PaneEntry, 0, len(layout.Panes))
	for _, p := range layout.Panes {
		if p.ID == layout.Main {
			ordered = append([]config.PaneEntry{p}, ordered...)
			continue
		}
		ordered = append(ordered, p)
	}

	var out []surface.Surface
	switch cfg.Backend {
	case config.BackendCDP:
		specs := make([]cdpsurface.PaneSpec, 0, len(ordered))
		for _, p := range layout.Panes {
			specs = append(specs, cdpsurface.PaneSpec{ID: p.ID, Title: p.Title, Width: int(p.Width), Height: int(p.Height)})
		}
		b, err := cdpsurface.New(cdpsurface.Config{
			CDPURL:      cfg.CDPURL(),
			PageURL:     chartURL,
			TabFilter:   cfg.TabURLFilter,
			EvalTimeout: time.Duration(cfg.EvalTimeoutMS) * time.Millisecond,
		}, specs)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, p := range ordered {
			pane, _ := b.Pane(p.ID)
			out = append(out, pane)
		}
		return out, out[0], b, nil
	default:
		for _, p := range ordered {
			out = append(out, memsurface.New(memsurface.Options{
				ID:       p.ID,
				Width:    p.Width,
				Height:   p.Height,
				PriceMin: p.PriceMin,
				PriceMax: p.PriceMax,
			}))
		}
		return out, out[0], nil, nil
	}
}

// runBrowser optionally launches Chromium, connects the chart tab and
// fails when the CDP connection drops.
func runBrowser(ctx context.Context, cfg *config.Config, chrome *cdpsurface.Browser, chartURL string) error {
	if cfg.LaunchBrowser {
		l := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   chartURL,
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
		})
		if err := l.Launch(ctx); err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer l.Stop()
	}

	if err := chrome.Connect(ctx); err != nil {
		return fmt.Errorf("connect chart tab: %w", err)
	}
	defer func() { _ = chrome.Close() }()

	select {
	case <-ctx.Done():
		return nil
	case <-chrome.Done():
		return errors.New("CDP connection closed")
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
