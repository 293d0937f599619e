// Package main runs a shardkv demonstration workload against in-process
// stores and prints the resulting Prometheus metrics in text format.
//
// Phases:
//   - direct access: populate key-0..key-N, contend one key with concurrent
//     transactions, read back through the fan-out pool, sweep with ForEach
//   - actor: funnel inserts, lookups, a removal and a clear through one
//     CommandActor, then shut it down
//   - fan-out: per-shard statistics and a batch pass over several stores
//
// Configuration:
//   - SHARDKV_SHARDS: shards per store (default 8)
//   - SHARDKV_WORKERS: fan-out pool size (default 4)
//   - SHARDKV_KEYS: keys inserted in the direct-access phase (default 100)
//   - SHARDKV_LOG_LEVEL: debug, info, warn or error (default info)
//
// Example usage:
//
//	SHARDKV_SHARDS=16 SHARDKV_LOG_LEVEL=debug ./shardkv
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/dreamware/shardkv/internal/actor"
	"github.com/dreamware/shardkv/internal/metrics"
	"github.com/dreamware/shardkv/internal/parallel"
	"github.com/dreamware/shardkv/internal/registry"
	"github.com/dreamware/shardkv/internal/storage"
)

// logFatal is a variable so tests can intercept fatal startup errors.
var logFatal = log.Fatalf

const contendedKey = "key-50"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logFatal("config: %v", err)
	}
	zl, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		logFatal("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	logger := zapr.NewLogger(zl)
	if err := run(context.Background(), cfg, logger, os.Stdout); err != nil {
		logger.Error(err, "demo failed")
		_ = zl.Sync()
		os.Exit(1)
	}
}

// run executes every phase and writes the final metrics to out.
func run(ctx context.Context, cfg config, logger logr.Logger, out io.Writer) error {
	pool, err := parallel.NewPool(cfg.Workers, parallel.WithLogger(logger.WithName("pool")))
	if err != nil {
		return err
	}
	stores := registry.New[string, uint64]()
	opts := []storage.Option[string, uint64]{storage.WithLogger[string, uint64](logger.WithName("store"))}

	primary, err := stores.Create(1, cfg.Shards, opts...)
	if err != nil {
		return err
	}

	if err := directAccess(primary, pool, cfg.Keys, logger); err != nil {
		return err
	}
	if err := actorPhase(ctx, primary, logger); err != nil {
		return err
	}
	if err := fanOutPhase(primary, stores, pool, cfg.Shards, opts, logger); err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	if err := promReg.Register(metrics.NewCollector(stores, pool, logger.WithName("metrics"))); err != nil {
		return err
	}
	return writeMetrics(promReg, out)
}

func directAccess(s *storage.Store[string, uint64], pool *parallel.Pool, numKeys int, logger logr.Logger) error {
	for i := 0; i < numKeys; i++ {
		s.Insert(fmt.Sprintf("key-%d", i), uint64(i))
	}
	logger.Info("populated store", "entries", s.Len())

	before := s.OpCount()
	const contenders = 100
	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := storage.Transaction(s, contendedKey, func(_ string, v *uint64) uint64 {
				*v++
				return *v
			}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	v, _ := s.Get(contendedKey)
	logger.Info("transactions applied", "key", contendedKey, "value", v, "ops", s.OpCount()-before)

	keys := make([]string, 100)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	lines, err := parallel.ProcessKeys(pool, s, keys, func(key string, v uint64, found bool) string {
		if !found {
			return fmt.Sprintf("key %s not found", key)
		}
		return fmt.Sprintf("found %s with value %d", key, v)
	})
	if err != nil {
		return err
	}
	for _, line := range lines[:5] {
		logger.V(1).Info(line)
	}

	return s.ForEach(func(_ string, v *uint64) { *v += 10 })
}

func actorPhase(ctx context.Context, s *storage.Store[string, uint64], logger logr.Logger) error {
	a := actor.New(s, actor.WithLogger(logger.WithName("actor")))

	for i := 1000; i < 1100; i++ {
		if err := a.Insert(fmt.Sprintf("key-%d", i), uint64(i)); err != nil {
			return err
		}
	}
	for i := 1000; i < 1010; i++ {
		v, ok, err := a.Get(ctx, fmt.Sprintf("key-%d", i))
		if err != nil {
			return err
		}
		logger.V(1).Info("actor get", "key", i, "value", v, "found", ok)
	}

	found, err := a.Find(ctx, storage.PredicateFunc[string, uint64](func(_ string, v uint64) bool { return v > 1095 }))
	if err != nil {
		return err
	}
	logger.Info("actor find", "matches", len(found))

	if err := a.Remove("key-1050"); err != nil {
		return err
	}
	if _, ok, err := a.Get(ctx, "key-1050"); err != nil {
		return err
	} else if ok {
		return errors.New("key-1050 still present after remove")
	}

	if err := a.Shutdown(); err != nil {
		return err
	}
	select {
	case <-a.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Info("actor stopped", "processed", a.Processed())
	return nil
}

func fanOutPhase(primary *storage.Store[string, uint64], stores *registry.Registry[string, uint64], pool *parallel.Pool, numShards int, opts []storage.Option[string, uint64], logger logr.Logger) error {
	type shardStat struct {
		index int
		count int
		mean  float64
	}
	stats, err := parallel.ScopedSegmentProcess(pool, primary, func(sh *storage.Shard[string, uint64]) shardStat {
		st := shardStat{index: sh.Index()}
		var sum uint64
		sh.Range(func(_ string, v uint64) bool {
			st.count++
			sum += v
			return true
		})
		if st.count > 0 {
			st.mean = float64(sum) / float64(st.count)
		}
		return st
	})
	if err != nil {
		return err
	}
	for _, st := range stats {
		logger.V(1).Info("shard stats", "shard", st.index, "entries", st.count, "mean", st.mean)
	}

	for i := 0; i < 3; i++ {
		s, err := stores.Create(i+2, numShards, opts...)
		if err != nil {
			return err
		}
		for j := 0; j < 10; j++ {
			s.Insert(fmt.Sprintf("ds%d-key-%d", i, j), uint64(i*100+j))
		}
	}
	return parallel.BatchProcess(pool, stores.List(), func(s *storage.Store[string, uint64]) {
		logger.Info("store summary", "store", s.ID(), "entries", s.Len(), "ops", s.OpCount())
	})
}

func writeMetrics(g prometheus.Gatherer, out io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
