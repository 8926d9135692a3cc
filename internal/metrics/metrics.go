// Package metrics exposes engine observations as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

const namespace = "pairarb"

// Collector implements engine.Metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	decisions      *prometheus.CounterVec
	orders         *prometheus.CounterVec
	ordersVolume   *prometheus.CounterVec
	exchangeErrors *prometheus.CounterVec
	positions      *prometheus.GaugeVec
	lastCycle      prometheus.Gauge
}

// New creates a Collector with the Go and process collectors registered
// alongside the engine metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cycles_total", Help: "Engine cycles by result."},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one engine cycle.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "decisions_total", Help: "Pair decisions by outcome."},
			[]string{"pair", "outcome"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "orders_total", Help: "Orders sent."},
			[]string{"instrument", "side", "type"},
		),
		ordersVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "orders_volume_total", Help: "Lots sent."},
			[]string{"instrument", "side"},
		),
		exchangeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "exchange_errors_total", Help: "Failed exchange calls by operation."},
			[]string{"op"},
		),
		positions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "position", Help: "Net position per instrument."},
			[]string{"instrument"},
		),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cycles, c.cycleDuration, c.decisions, c.orders, c.ordersVolume,
		c.exchangeErrors, c.positions, c.lastCycle,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveCycle(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(d.Seconds())
	c.lastCycle.SetToCurrentTime()
}

func (c *Collector) ObserveDecision(pair string, outcome domain.Outcome) {
	if pair == "" {
		pair = "-"
	}
	c.decisions.WithLabelValues(pair, string(outcome)).Inc()
}

func (c *Collector) ObserveOrder(o domain.Order) {
	c.orders.WithLabelValues(o.InstrumentID, string(o.Side), string(o.Type)).Inc()
	c.ordersVolume.WithLabelValues(o.InstrumentID, string(o.Side)).Add(float64(o.Volume))
}

func (c *Collector) ObserveExchangeError(op string) {
	c.exchangeErrors.WithLabelValues(op).Inc()
}

// SetPositions overwrites the position gauges. Instruments absent from
// positions keep their last value.
func (c *Collector) SetPositions(positions map[string]int) {
	for id, pos := range positions {
		c.positions.WithLabelValues(id).Set(float64(pos))
	}
}
