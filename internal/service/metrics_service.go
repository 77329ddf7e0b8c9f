package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the fee pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	feesGenerated   prometheus.Counter
	remindersSent   *prometheus.CounterVec
	remindersFailed prometheus.Counter
	paymentsTotal   prometheus.Counter
	paymentsAmount  prometheus.Counter
	smsEnqueued     prometheus.Counter
	jobDuration     *prometheus.HistogramVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	feesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monthly_fees_generated_total",
		Help: "Monthly fee records created",
	})

	remindersSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fee_reminders_sent_total",
		Help: "Fee reminders sent, by reminder type",
	}, []string{"type"})

	remindersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_reminders_failed_total",
		Help: "Fee reminders that failed to send",
	})

	paymentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payments recorded against monthly fees",
	})

	paymentsAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_amount_paise_total",
		Help: "Total amount collected, in paise",
	})

	smsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sms_enqueued_total",
		Help: "SMS jobs placed on the background queue",
	})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_job_duration_seconds",
		Help:    "Duration of scheduled jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, feesGenerated, remindersSent,
		remindersFailed, paymentsTotal, paymentsAmount, smsEnqueued, jobDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		feesGenerated:   feesGenerated,
		remindersSent:   remindersSent,
		remindersFailed: remindersFailed,
		paymentsTotal:   paymentsTotal,
		paymentsAmount:  paymentsAmount,
		smsEnqueued:     smsEnqueued,
		jobDuration:     jobDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// FeeGenerated counts one created monthly fee record.
func (m *MetricsService) FeeGenerated() {
	if m == nil {
		return
	}
	m.feesGenerated.Inc()
}

// ReminderSent counts one sent reminder of the given type.
func (m *MetricsService) ReminderSent(reminderType string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(reminderType).Inc()
}

// ReminderFailed counts one failed reminder send.
func (m *MetricsService) ReminderFailed() {
	if m == nil {
		return
	}
	m.remindersFailed.Inc()
}

// PaymentRecorded counts one payment and its amount.
func (m *MetricsService) PaymentRecorded(amount int64) {
	if m == nil {
		return
	}
	m.paymentsTotal.Inc()
	if amount > 0 {
		m.paymentsAmount.Add(float64(amount))
	}
}

// SMSEnqueued counts one queued SMS job.
func (m *MetricsService) SMSEnqueued() {
	if m == nil {
		return
	}
	m.smsEnqueued.Inc()
}

// ObserveJob records the duration of one scheduled job run.
func (m *MetricsService) ObserveJob(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}
