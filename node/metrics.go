package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 节点运行指标（用于监控与调试）。nil 接收者上的方法均为空操作
type Metrics struct {
	Registry *prometheus.Registry

	received      *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	sendErrors    prometheus.Counter
	ticksSent     prometheus.Counter
	joinsHandled  prometheus.Counter
	joinsRejected prometheus.Counter
	peers         prometheus.Gauge
	remotes       prometheus.Gauge
}

// NewMetrics 在独立的 registry 上注册指标，便于同进程多节点与测试
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "datagrams_received_total",
			Help:      "Decoded datagrams received, by message kind",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "decode_errors_total",
			Help:      "Datagrams dropped because they did not decode",
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "send_errors_total",
			Help:      "Per-destination send failures",
		}),
		ticksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "ticks_sent_total",
			Help:      "Position broadcasts started by this node",
		}),
		joinsHandled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "joins_handled_total",
			Help:      "Join requests answered by this node as host",
		}),
		joinsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpeer",
			Name:      "joins_rejected_total",
			Help:      "Join requests refused because the session was full",
		}),
		peers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridpeer",
			Name:      "peers",
			Help:      "Entries in the local peer table",
		}),
		remotes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridpeer",
			Name:      "remote_players",
			Help:      "Remote players with a cached snapshot",
		}),
	}
}

func (m *Metrics) IncReceived(k Kind) {
	if m != nil {
		m.received.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) IncDecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) IncSendError() {
	if m != nil {
		m.sendErrors.Inc()
	}
}

func (m *Metrics) IncTick() {
	if m != nil {
		m.ticksSent.Inc()
	}
}

func (m *Metrics) IncJoin() {
	if m != nil {
		m.joinsHandled.Inc()
	}
}

func (m *Metrics) IncJoinRejected() {
	if m != nil {
		m.joinsRejected.Inc()
	}
}

func (m *Metrics) SetPeers(n int) {
	if m != nil {
		m.peers.Set(float64(n))
	}
}

func (m *Metrics) SetRemotes(n int) {
	if m != nil {
		m.remotes.Set(float64(n))
	}
}
