// Package metrics exposes fleet lifecycle metrics in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives lifecycle events from the launcher.
type Recorder interface {
	Spawned(node string, err error)
	Killed(node string, err error)
	LauncherState(state string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Spawned(string, error) {}
func (Nop) Killed(string, error)  {}
func (Nop) LauncherState(string)  {}

var launcherStates = []string{"created", "starting", "running", "shutting-down", "stopped"}

// Collector implements Recorder with Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	spawns *prometheus.CounterVec
	kills  *prometheus.CounterVec
	up     *prometheus.GaugeVec
	state  *prometheus.GaugeVec

	mu     sync.Mutex
	uptime func() time.Duration
}

// NewCollector creates a collector. An empty namespace defaults to "pendulum_launch".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "pendulum_launch"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.spawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_spawns_total",
			Help:      "Total number of node spawn attempts",
		},
		[]string{"node", "result"},
	)

	c.kills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_kills_total",
			Help:      "Total number of node termination attempts",
		},
		[]string{"node", "result"},
	)

	c.up = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_up",
			Help:      "Whether the node process is running (1) or not (0)",
		},
		[]string{"node"},
	)

	c.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "launcher_state",
			Help:      "Current launcher state (1 for the active state)",
		},
		[]string{"state"},
	)

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the fleet was started",
		},
		func() float64 {
			c.mu.Lock()
			fn := c.uptime
			c.mu.Unlock()
			if fn == nil {
				return 0
			}
			return fn().Seconds()
		},
	)

	c.registry.MustRegister(c.spawns, c.kills, c.up, c.state, uptime)
	return c
}

// TrackUptime sets the source for the uptime gauge.
func (c *Collector) TrackUptime(fn func() time.Duration) {
	c.mu.Lock()
	c.uptime = fn
	c.mu.Unlock()
}

// Spawned records a spawn attempt.
func (c *Collector) Spawned(node string, err error) {
	c.spawns.WithLabelValues(node, result(err)).Inc()
	if err == nil {
		c.up.WithLabelValues(node).Set(1)
	}
}

// Killed records a termination attempt. The node is down afterwards either way.
func (c *Collector) Killed(node string, err error) {
	c.kills.WithLabelValues(node, result(err)).Inc()
	c.up.WithLabelValues(node).Set(0)
}

// LauncherState marks state as the active launcher state.
func (c *Collector) LauncherState(state string) {
	for _, s := range launcherStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.state.WithLabelValues(s).Set(v)
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
