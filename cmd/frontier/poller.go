package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HatiCode/frontier/cmd/frontier/metrics"
	"github.com/HatiCode/frontier/pkg/readiness"
	"github.com/HatiCode/frontier/pkg/shutdown"
	"github.com/HatiCode/frontier/pkg/sink"
	"github.com/HatiCode/frontier/pkg/storage"
	"github.com/HatiCode/frontier/pkg/telemetry"
)

// Timing controls how the poll loop trims series and paces cycles.
type Timing struct {
	// Margin is the number of most recent entries excluded per series.
	Margin int

	// Interval is the pause between cycles.
	Interval time.Duration

	// QueryTimeout bounds each store query. 0 means no timeout.
	QueryTimeout time.Duration

	// MaxBackoff, when greater than Interval, lets the pause after
	// consecutive failed cycles grow exponentially up to this value.
	MaxBackoff time.Duration
}

// Poller orchestrates the poll loop: query → parse → intersect → emit → wait.
type Poller struct {
	store   storage.Store
	series  []readiness.Series
	timing  Timing
	sink    sink.Sink
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// NewPoller creates a Poller. It fails with an error wrapping
// readiness.ErrConfiguration when series is empty or inconsistent.
func NewPoller(
	store storage.Store,
	series []readiness.Series,
	timing Timing,
	out sink.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Poller, error) {
	if err := readiness.ValidateSeries(series); err != nil {
		return nil, err
	}
	if timing.Margin < 0 {
		return nil, fmt.Errorf("%w: margin must be >= 0, got %d", readiness.ErrConfiguration, timing.Margin)
	}
	if timing.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", timing.Interval)
	}
	if out == nil {
		out = sink.Discard
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		store:   store,
		series:  series,
		timing:  timing,
		sink:    out,
		metrics: m,
		tracer:  telemetry.Tracer(),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run executes poll cycles until shutdown is requested on sig, in which case
// it returns nil, or until ctx is canceled, in which case it returns
// ctx.Err(). The flag is checked before every cycle; an in-flight cycle
// always runs to completion.
func (p *Poller) Run(ctx context.Context, sig *shutdown.Signal) error {
	p.logger.Info("starting poll loop",
		"interval", p.timing.Interval,
		"margin", p.timing.Margin,
		"series", len(p.series),
	)

	bo := p.newBackoff()

	for {
		if sig.Requested() {
			p.logger.Info("shutdown requested, poll loop stopped")
			return nil
		}
		if err := ctx.Err(); err != nil {
			p.logger.Info("poll loop stopped", "reason", err)
			return err
		}

		delay := p.timing.Interval
		if _, err := p.Tick(ctx); err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				p.logger.Warn("poll cycle skipped, store unavailable", "error", err)
			} else {
				p.logger.Error("poll cycle failed", "error", err)
			}
			if bo != nil {
				delay = bo.NextBackOff()
			}
		} else if bo != nil {
			bo.Reset()
		}

		p.wait(ctx, sig, delay)
	}
}

// wait pauses for d, returning early on shutdown or cancellation.
func (p *Poller) wait(ctx context.Context, sig *shutdown.Signal, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-sig.Done():
	case <-ctx.Done():
	}
}

func (p *Poller) newBackoff() *backoff.ExponentialBackOff {
	if p.timing.MaxBackoff <= p.timing.Interval {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.timing.Interval
	b.MaxInterval = p.timing.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Tick performs one poll cycle and returns the emitted snapshot.
// Exported for testing purposes.
func (p *Poller) Tick(ctx context.Context) (sink.Snapshot, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "frontier.tick")
	defer span.End()

	snap, err := p.tick(ctx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle failed")
		result := metrics.ResultError
		if errors.Is(err, storage.ErrUnavailable) {
			result = metrics.ResultStoreError
		}
		p.metrics.RecordCycle(result, duration.Seconds())
		return snap, err
	}

	latest, ok := snap.Latest()
	p.metrics.SetReady(len(snap.Ready), latest, ok)
	p.metrics.RecordCycle(metrics.ResultOK, duration.Seconds())
	span.SetAttributes(attribute.Int("frontier.ready", len(snap.Ready)))

	p.logger.Info("poll cycle complete",
		"ready", len(snap.Ready),
		"latest", latest,
		"skipped", snap.Skipped,
		"total_ms", duration.Milliseconds(),
	)
	return snap, nil
}

func (p *Poller) tick(ctx context.Context) (sink.Snapshot, error) {
	views := make(map[string][]int64, len(p.series))
	lengths := make(map[string]int, len(p.series))
	skipped := 0

	for _, s := range p.series {
		ts, bad, err := p.readSeries(ctx, s)
		if err != nil {
			return sink.Snapshot{}, fmt.Errorf("read series %s: %w", s.Name, err)
		}
		views[s.Name] = ts
		lengths[s.Name] = len(ts)
		skipped += bad
		p.metrics.SetSeriesEntries(s.Name, len(ts))
	}

	ready, err := readiness.Compute(views)
	if err != nil {
		return sink.Snapshot{}, fmt.Errorf("compute: %w", err)
	}

	snap := sink.Snapshot{
		Ready:       ready,
		GeneratedAt: p.now(),
		Margin:      p.timing.Margin,
		Series:      lengths,
		Skipped:     skipped,
	}
	if err := p.sink.Emit(ctx, snap); err != nil {
		return snap, fmt.Errorf("emit: %w", err)
	}
	return snap, nil
}

// readSeries returns the trimmed, parsed timestamps of s and the number of
// entries skipped as unparsable. The query runs detached from ctx
// cancellation so that shutdown never interrupts it; QueryTimeout bounds it.
func (p *Poller) readSeries(ctx context.Context, s readiness.Series) ([]int64, int, error) {
	qctx := context.WithoutCancel(ctx)
	if p.timing.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(qctx, p.timing.QueryTimeout)
		defer cancel()
	}

	qctx, span := p.tracer.Start(qctx, "frontier.range", trace.WithAttributes(
		attribute.String("frontier.series", s.Name),
		attribute.String("frontier.key", s.Key),
	))
	defer span.End()

	start := time.Now()
	raw, err := p.store.Range(qctx, s.Key, 0, -int64(p.timing.Margin)-1)
	p.metrics.ObserveQuery(s.Name, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordStoreError(s.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "range failed")
		if !errors.Is(err, storage.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
		}
		return nil, 0, err
	}

	ts := make([]int64, 0, len(raw))
	skipped := 0
	for _, member := range raw {
		v, err := readiness.ParseTimestamp(s.Name, member)
		if err != nil {
			skipped++
			p.metrics.RecordParseError(s.Name)
			p.logger.Warn("skipping unparsable entry", "series", s.Name, "error", err)
			continue
		}
		ts = append(ts, v)
	}

	p.logger.Debug("read series",
		"series", s.Name,
		"key", s.Key,
		"entries", len(ts),
		"skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ts, skipped, nil
}
