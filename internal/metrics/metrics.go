package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "db_merge"

// Collector records merge outcomes as prometheus series.
type Collector struct {
	rows       *prometheus.CounterVec
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewCollector returns an unregistered Collector.
func NewCollector() *Collector {
	return &Collector{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows affected by merges, by table and action.",
		}, []string{"table", "action"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Merge invocations, by table and outcome.",
		}, []string{"table", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of merge invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"table"}),
	}
}

// Register adds every series of c to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.rows, c.operations, c.duration} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRows adds n rows for table and action. Zero counts still create the series.
func (c *Collector) ObserveRows(table, action string, n int) {
	c.rows.WithLabelValues(table, action).Add(float64(n))
}

// ObserveMerge counts one invocation with its outcome and duration.
func (c *Collector) ObserveMerge(table, outcome string, elapsed time.Duration) {
	c.operations.WithLabelValues(table, outcome).Inc()
	c.duration.WithLabelValues(table).Observe(elapsed.Seconds())
}

// WriteTextfile dumps everything gathered by g in the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
