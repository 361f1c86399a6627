package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// MatcherStats gives the collector access to the live working set size.
type MatcherStats interface {
	Len() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool    *pgxpool.Pool
	matcher MatcherStats

	workingSetSize  *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil (db gauges report 0). matcher may be nil if no working set exists.
func NewCollector(pool *pgxpool.Pool, matcher MatcherStats) *Collector {
	return &Collector{
		pool:    pool,
		matcher: matcher,
		workingSetSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "working_set_segments"),
			"Current number of segments held by the matcher working set.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workingSetSize
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var segments float64
	if c.matcher != nil {
		segments = float64(c.matcher.Len())
	}
	ch <- prometheus.MustNewConstMetric(c.workingSetSize, prometheus.GaugeValue, segments)

	var total, acquired, idle float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
