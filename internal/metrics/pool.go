package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exports pgxpool statistics for every postgres backend that
// hosts document shards. Stats are read during each scrape.
type PoolCollector struct {
	pools map[string]*pgxpool.Pool

	acquireCount     *prometheus.Desc
	acquireDuration  *prometheus.Desc
	acquiredConns    *prometheus.Desc
	idleConns        *prometheus.Desc
	maxConns         *prometheus.Desc
	totalConns       *prometheus.Desc
	emptyAcquires    *prometheus.Desc
	canceledAcquires *prometheus.Desc
}

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pgxpool", name),
		help,
		[]string{"backend"}, nil,
	)
}

// NewPoolCollector creates a collector keyed by backend name.
func NewPoolCollector(pools map[string]*pgxpool.Pool) *PoolCollector {
	return &PoolCollector{
		pools:            pools,
		acquireCount:     poolDesc("acquire_count", "Cumulative count of successful connection acquires."),
		acquireDuration:  poolDesc("acquire_duration_seconds", "Cumulative time spent acquiring connections."),
		acquiredConns:    poolDesc("acquired_conns", "Number of currently acquired connections."),
		idleConns:        poolDesc("idle_conns", "Number of idle connections in the pool."),
		maxConns:         poolDesc("max_conns", "Maximum number of connections allowed."),
		totalConns:       poolDesc("total_conns", "Total number of connections in the pool."),
		emptyAcquires:    poolDesc("empty_acquire_count", "Cumulative count of acquires that waited on an empty pool."),
		canceledAcquires: poolDesc("canceled_acquire_count", "Cumulative count of acquires canceled by context."),
	}
}

func (c *PoolCollector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.acquireCount, c.acquireDuration, c.acquiredConns, c.idleConns,
		c.maxConns, c.totalConns, c.emptyAcquires, c.canceledAcquires,
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for name, pool := range c.pools {
		stat := pool.Stat()
		values := []struct {
			desc  *prometheus.Desc
			kind  prometheus.ValueType
			value float64
		}{
			{c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount())},
			{c.acquireDuration, prometheus.CounterValue, stat.AcquireDuration().Seconds()},
			{c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns())},
			{c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns())},
			{c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns())},
			{c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns())},
			{c.emptyAcquires, prometheus.CounterValue, float64(stat.EmptyAcquireCount())},
			{c.canceledAcquires, prometheus.CounterValue, float64(stat.CanceledAcquireCount())},
		}
		for _, v := range values {
			ch <- prometheus.MustNewConstMetric(v.desc, v.kind, v.value, name)
		}
	}
}
