package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/tplscope/internal/config"
	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/sink"
	"github.com/roach88/tplscope/internal/store"
)

// sinkSet is the delivery target built from configuration, plus everything
// that must be closed once delivery is over.
type sinkSet struct {
	sink    sink.Fanout
	closers []io.Closer
	stores  []*store.Store
	reader  *sdkmetric.ManualReader
}

// buildSinks opens every configured sink. With metrics enabled each sink is
// wrapped in a metered decorator reporting to a private meter provider whose
// readings are available from collectMetrics.
func buildSinks(cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{}

	var provider metric.MeterProvider
	if cfg.Metrics {
		set.reader = sdkmetric.NewManualReader()
		provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(set.reader))
	}

	for i, sc := range cfg.Sinks {
		s, closer, err := openSink(sc, stdout, logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("sinks[%d] (%s): %w", i, sc.Type, err)
		}
		if closer != nil {
			set.closers = append(set.closers, closer)
		}
		if st, ok := closer.(*store.Store); ok {
			set.stores = append(set.stores, st)
		}
		if provider != nil {
			name := fmt.Sprintf("%s-%d", sc.Type, i)
			if s, err = sink.NewMetered(s, name, provider); err != nil {
				set.Close()
				return nil, err
			}
		}
		set.sink = append(set.sink, s)
	}
	return set, nil
}

func openSink(sc config.SinkConfig, stdout io.Writer, logger *slog.Logger) (engine.Sink, io.Closer, error) {
	switch sc.Type {
	case config.SinkWriter:
		if sc.Path == "-" {
			return sink.NewWriter(stdout), nil, nil
		}
		f, err := os.OpenFile(sc.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewWriter(f), f, nil

	case config.SinkRedis:
		ttl, err := sc.TTLDuration()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid ttl: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: sc.Addr, DB: sc.DB})
		return sink.NewRedis(client, sink.RedisConfig{Key: sc.Key, MaxLen: sc.MaxLen, TTL: ttl}), client, nil

	case config.SinkStore:
		st, err := store.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewStore(st, logger), st, nil
	}
	return nil, nil, fmt.Errorf("unknown sink type %q", sc.Type)
}

// maxSeq is the highest batch sequence number already persisted by any
// store sink, or 0 when none is configured.
func (s *sinkSet) maxSeq(ctx context.Context) (int64, error) {
	var last int64
	for _, st := range s.stores {
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			return 0, err
		}
		last = max(last, seq)
	}
	return last, nil
}

// Close closes every opened sink.
func (s *sinkSet) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// collectMetrics returns the current value of every counter, keyed by
// metric name and summed over attributes. Histograms report their sample
// count. Returns nil when metrics are disabled.
func (s *sinkSet) collectMetrics(ctx context.Context) (map[string]int64, error) {
	if s.reader == nil {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out, nil
}
