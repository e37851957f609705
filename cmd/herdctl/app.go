package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"herdcore/internal/adapters/reports"
	"herdcore/internal/blob"
	"herdcore/internal/config"
	"herdcore/internal/core"
)

// app is the per-invocation wiring of store, service and observability.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	service  *core.Service
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	closers  []func() error
}

func (g *globals) open(ctx context.Context) (*app, error) {
	a := &app{cfg: g.cfg, logger: g.logger, registry: prometheus.NewRegistry()}
	opts := []core.Option{
		core.WithLogger(g.logger),
		core.WithThresholds(g.cfg.Thresholds),
		core.WithGrowthTargets(g.cfg.GrowthTargets),
	}

	asOf, err := g.evaluationDate()
	if err != nil {
		return nil, err
	}
	if !asOf.IsZero() {
		opts = append(opts, core.WithClock(core.ClockFunc(func() time.Time { return asOf })))
	}

	if !g.cfg.Cache.Disabled {
		cache, err := core.NewResultCache(g.cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("result cache: %w", err)
		}
		opts = append(opts, core.WithResultCache(cache))
	}

	recorder, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	recorders := core.MultiMetricsRecorder{recorder}
	if g.cfg.Observability.ExpvarFile != "" {
		a.expvar = core.NewExpvarMetricsRecorder("")
		recorders = append(recorders, a.expvar)
	}
	opts = append(opts, core.WithMetricsRecorder(recorders))

	if path := g.cfg.Observability.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	store, err := core.OpenRecordStore(ctx, g.cfg.StorageOptions())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.service = core.NewService(store, opts...)
	g.logger.Debug("record store opened", "driver", g.cfg.Storage.Driver)
	return a, nil
}

// exporter opens the configured blob store for report artifacts.
func (a *app) exporter(ctx context.Context) (*reports.Exporter, error) {
	store, err := blob.Open(ctx, a.cfg.BlobOptions())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return reports.NewExporter(store), nil
}

// Close flushes the metrics textfile and releases the store and trace file.
func (a *app) Close() error {
	var errs []error
	if path := a.cfg.Observability.MetricsTextfile; path != "" && a.service != nil {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if path := a.cfg.Observability.ExpvarFile; path != "" && a.expvar != nil && a.service != nil {
		if err := writeExpvar(path, a.expvar.Name()); err != nil {
			errs = append(errs, fmt.Errorf("write expvar snapshot: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeExpvar stores the published expvar value under name as JSON.
func writeExpvar(path, name string) error {
	v := expvar.Get(name)
	if v == nil {
		return fmt.Errorf("expvar %s not published", name)
	}
	return os.WriteFile(path, []byte(v.String()+"\n"), 0o644)
}

// withApp opens the app, runs fn and closes it, keeping the first error.
func (g *globals) withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
