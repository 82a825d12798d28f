package janusproxy

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExtension exports registry and connection activity to prometheus.
type MetricsExtension struct {
	channels            prometheus.Gauge
	streams             prometheus.Gauge
	connections         prometheus.Gauge
	transactionTimeouts prometheus.Counter
	errorReplies        *prometheus.CounterVec
}

func NewMetricsExtension(registerer prometheus.Registerer) (*MetricsExtension, error) {
	m := &MetricsExtension{
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "janusproxy",
			Name:      "channels_current",
			Help:      "The current number of registered channels",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "janusproxy",
			Name:      "streams_current",
			Help:      "The current number of registered streams",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "janusproxy",
			Name:      "connections_current",
			Help:      "The current number of client connections",
		}),
		transactionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "janusproxy",
			Name:      "transaction_timeouts_total",
			Help:      "The total number of gateway transactions that were never answered",
		}),
		errorReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "janusproxy",
			Name:      "error_replies_total",
			Help:      "The total number of error replies synthesized by the proxy",
		}, []string{"code"}),
	}

	for _, collector := range []prometheus.Collector{
		m.channels,
		m.streams,
		m.connections,
		m.transactionTimeouts,
		m.errorReplies,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *MetricsExtension) OnChannelAdded(registry *Registry, channel *Channel) {
	m.channels.Inc()
}

func (m *MetricsExtension) OnChannelRemoved(registry *Registry, channel *Channel) {
	m.channels.Dec()
}

func (m *MetricsExtension) OnStreamAdded(registry *Registry, stream *Stream) {
	m.streams.Inc()
}

func (m *MetricsExtension) OnStreamRemoved(registry *Registry, stream *Stream) {
	m.streams.Dec()
}

func (m *MetricsExtension) OnConnectionOpened(proxy *Proxy, conn *Connection) {
	m.connections.Inc()
}

func (m *MetricsExtension) OnConnectionClosed(proxy *Proxy, conn *Connection) {
	m.connections.Dec()
}

func (m *MetricsExtension) OnTransactionTimeout(conn *Connection, transaction string) {
	m.transactionTimeouts.Inc()
}

func (m *MetricsExtension) OnErrorReply(conn *Connection, err *Error) {
	m.errorReplies.WithLabelValues(strconv.Itoa(err.Code)).Inc()
}
