// Package exporter polls segment and list member counts and publishes them
// as Prometheus gauges.
package exporter

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/foxzi/listctl/internal/metrics"
	"github.com/foxzi/listctl/segments"
)

// Source is the part of the segment client the exporter uses
type Source interface {
	GetSegments(ctx context.Context, userKey string, req segments.GetSegmentsRequest) ([]*segments.Segment, error)
	GetCount(ctx context.Context, userKey string, req segments.GetCountRequest) (int64, error)
}

// Config contains exporter settings
type Config struct {
	UserKey  string
	ClientID *int64
	Lists    []int64
	Details  bool
	Interval time.Duration
}

// Exporter periodically refreshes the segment gauges
type Exporter struct {
	source    Source
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
	startTime time.Time

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a new exporter
func New(source Source, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Exporter {
	return &Exporter{
		source:    source,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the polling goroutine. The first poll runs immediately.
func (e *Exporter) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.loop(ctx)

	e.logger.Info("exporter started", "lists", e.cfg.Lists, "interval", e.cfg.Interval)
}

// Stop stops the exporter and waits for the goroutine to finish
func (e *Exporter) Stop() {
	e.once.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Exporter) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Poll(ctx)
		}
	}
}

// Poll refreshes every configured list once. It returns false when any
// list could not be refreshed.
func (e *Exporter) Poll(ctx context.Context) bool {
	ok := true
	for _, listID := range e.cfg.Lists {
		if ctx.Err() != nil {
			return false
		}
		if err := e.pollList(ctx, listID); err != nil {
			e.logger.Warn("failed to poll list", "list_id", listID, "error", err)
			ok = false
		}
	}

	result := "ok"
	if !ok {
		result = "error"
	}
	e.metrics.ExporterPollsTotal.WithLabelValues(result).Inc()
	e.metrics.ExporterLastPollTime.SetToCurrentTime()
	e.collectSystemMetrics()

	return ok
}

// pollList refreshes the gauges of one list. Gauges of segments that no
// longer exist are removed.
func (e *Exporter) pollList(ctx context.Context, listID int64) error {
	count, err := e.source.GetCount(ctx, e.cfg.UserKey, segments.GetCountRequest{
		ListID:   listID,
		ClientID: e.cfg.ClientID,
	})
	if err != nil {
		return err
	}

	details := e.cfg.Details
	segs, err := e.source.GetSegments(ctx, e.cfg.UserKey, segments.GetSegmentsRequest{
		ListID:         listID,
		IncludeDetails: &details,
		ClientID:       e.cfg.ClientID,
	})
	if err != nil {
		return err
	}

	id := strconv.FormatInt(listID, 10)
	e.metrics.ListMembers.WithLabelValues(id).Set(float64(count))

	e.metrics.SegmentMembers.DeletePartialMatch(prometheus.Labels{"list_id": id})
	e.metrics.SegmentEngagement.DeletePartialMatch(prometheus.Labels{"list_id": id})
	for _, seg := range segs {
		segID := strconv.FormatInt(seg.ID, 10)
		e.metrics.SegmentMembers.WithLabelValues(id, segID, seg.Name).Set(float64(seg.Count))
		if seg.Engagement != nil {
			e.metrics.SegmentEngagement.WithLabelValues(id, segID, seg.Name).Set(*seg.Engagement)
		}
	}

	e.logger.Debug("polled list", "list_id", listID, "count", count, "segments", len(segs))
	return nil
}

// collectSystemMetrics updates process gauges
func (e *Exporter) collectSystemMetrics() {
	e.metrics.UptimeSeconds.Set(time.Since(e.startTime).Seconds())
	e.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
}
