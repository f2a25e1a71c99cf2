package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contadores Prometheus del servicio.
type Metrics struct {
	requestCounter  *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	movementCounter *prometheus.CounterVec
	lowStockCounter prometheus.Counter
}

// NewMetrics crea y registra los colectores en el registry por defecto.
func NewMetrics() *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_ledger_http_requests_total",
				Help: "Total de requests HTTP por ruta, método y status",
			},
			[]string{"path", "method", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pos_ledger_http_request_duration_seconds",
				Help:    "Latencia de requests HTTP",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		movementCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pos_ledger_movements_total",
				Help: "Movimientos de stock confirmados por tipo",
			},
			[]string{"type"},
		),
		lowStockCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pos_ledger_low_stock_warnings_total",
				Help: "Alertas de stock bajo emitidas",
			},
		),
	}
	prometheus.MustRegister(m.requestCounter, m.requestLatency, m.movementCounter, m.lowStockCounter)
	return m
}

// Middleware instrumenta cada request HTTP.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		path := c.Route().Path
		m.requestCounter.WithLabelValues(path, c.Method(), strconv.Itoa(c.Response().StatusCode())).Inc()
		m.requestLatency.WithLabelValues(path, c.Method()).Observe(time.Since(start).Seconds())
		return err
	}
}

// MovementRecorded cuenta un movimiento confirmado.
func (m *Metrics) MovementRecorded(movementType string) {
	m.movementCounter.WithLabelValues(movementType).Inc()
}

// LowStockWarned cuenta una alerta de stock bajo.
func (m *Metrics) LowStockWarned() {
	m.lowStockCounter.Inc()
}
