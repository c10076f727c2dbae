package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	OpenAttempts     prometheus.Counter     // 串口打开尝试次数
	BytesTransmitted prometheus.Counter     // 发出的帧字节数
	BytesReceived    prometheus.Counter     // 收到的应答字节数
	Transactions     *prometheus.CounterVec // labels: result=ok|not_open|tx_fault|rx_fault|timeout
	Commands         *prometheus.CounterVec // labels: cmd
	LinkOpen         prometheus.Gauge       // 链路是否打开（0/1）
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		OpenAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_open_attempts_total",
			Help: "Total serial open attempts.",
		}),
		BytesTransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_transmitted_total",
			Help: "Total bytes written to the serial link.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_received_total",
			Help: "Total bytes read from the serial link.",
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serial_transactions_total",
			Help: "Request/response transactions by result.",
		}, []string{"result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_commands_total",
			Help: "Device commands issued by name.",
		}, []string{"cmd"}),
		LinkOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serial_link_open",
			Help: "Whether the serial link is currently open.",
		}),
	}
	reg.MustRegister(m.OpenAttempts, m.BytesTransmitted, m.BytesReceived, m.Transactions, m.Commands, m.LinkOpen)
	return m
}
