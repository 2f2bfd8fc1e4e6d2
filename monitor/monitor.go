// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	WaitingPlayers   prometheus.Gauge
	OpenRooms        prometheus.Gauge
	CommandsReceived *prometheus.CounterVec
	CommandLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		WaitingPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_players",
			Help:      "Number of players currently waiting for a game",
		}),
		OpenRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_rooms",
			Help:      "Number of matchmaking rooms still filling",
		}),
		CommandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Total number of game commands received",
		}, []string{"command"}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Game command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.WaitingPlayers,
		m.OpenRooms,
		m.CommandsReceived,
		m.CommandLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) IncWaitingPlayers() {
	m.metrics.WaitingPlayers.Inc()
}

func (m *Monitor) DecWaitingPlayers() {
	m.metrics.WaitingPlayers.Dec()
}

func (m *Monitor) SetOpenRooms(count int) {
	m.metrics.OpenRooms.Set(float64(count))
}

func (m *Monitor) IncCommandsReceived(command string) {
	m.metrics.CommandsReceived.WithLabelValues(command).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveCommandLatency(duration time.Duration) {
	m.metrics.CommandLatency.Observe(duration.Seconds())
}
