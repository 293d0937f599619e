package metrics

import (
	"fmt"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardkv/internal/parallel"
	"github.com/dreamware/shardkv/internal/registry"
)

func newTestCollector(t *testing.T) (*Collector[string, int], *registry.Registry[string, int]) {
	t.Helper()
	reg := registry.New[string, int]()
	pool, err := parallel.NewPool(2)
	require.NoError(t, err)
	return NewCollector(reg, pool, testr.New(t)), reg
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestCollector(t *testing.T) {
	c, reg := newTestCollector(t)

	a, err := reg.Create(1, 8)
	require.NoError(t, err)
	b, err := reg.Create(2, 4)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		a.Insert(fmt.Sprintf("key-%d", i), i)
	}
	for i := 0; i < 10; i++ {
		b.Insert(fmt.Sprintf("key-%d", i), i)
	}
	b.Remove("key-0")

	promReg := prometheus.NewPedanticRegistry()
	require.NoError(t, promReg.Register(c))

	assert.Equal(t, 12, testutil.CollectAndCount(c, "shardkv_shard_entries"))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "shardkv_store_operations_total"))

	families, err := promReg.Gather()
	require.NoError(t, err)

	entries := map[string]float64{}
	ops := map[string]float64{}
	shards := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			id := labelValue(m, "store_id")
			switch mf.GetName() {
			case "shardkv_shard_entries":
				entries[id] += m.GetGauge().GetValue()
			case "shardkv_store_operations_total":
				ops[id] = m.GetCounter().GetValue()
			case "shardkv_store_shards":
				shards[id] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, map[string]float64{"1": 100, "2": 9}, entries)
	assert.Equal(t, map[string]float64{"1": 100, "2": 11}, ops)
	assert.Equal(t, map[string]float64{"1": 8, "2": 4}, shards)
}

func TestCollectorEmptyRegistry(t *testing.T) {
	c, _ := newTestCollector(t)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
