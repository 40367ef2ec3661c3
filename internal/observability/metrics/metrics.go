package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "waterbill_"

	resultSuccess = "success"
	resultError   = "error"

	quoteResultPriced   = "priced"
	quoteResultUnpriced = "unpriced"
	quoteResultInvalid  = "invalid"
)

var (
	registerOnce sync.Once

	quoteTotal *prometheus.CounterVec

	readingIngestTotal   *prometheus.CounterVec
	readingIngestLatency *prometheus.HistogramVec

	billGenerateTotal   *prometheus.CounterVec
	billGenerateLatency *prometheus.HistogramVec
	billSkippedTotal    *prometheus.CounterVec
	billOverdueTotal    prometheus.Counter
	billExportTotal     *prometheus.CounterVec
	billExportLatency   *prometheus.HistogramVec

	paymentRecordTotal *prometheus.CounterVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		quoteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_quote_total",
				Help: "Total rate quotes by result",
			},
			[]string{"result"},
		)

		readingIngestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_ingest_total",
				Help: "Total meter reading uploads by result",
			},
			[]string{"result"},
		)
		readingIngestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reading_ingest_latency_seconds",
				Help:    "Meter reading upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		billGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_generate_total",
				Help: "Total bill generation runs by result",
			},
			[]string{"result"},
		)
		billGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "bill_generate_latency_seconds",
				Help:    "Bill generation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		billSkippedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_skipped_total",
				Help: "Customers skipped during bill generation by reason",
			},
			[]string{"reason"},
		)
		billOverdueTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_overdue_marked_total",
				Help: "Bills moved to overdue by the sweep",
			},
		)
		billExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_export_total",
				Help: "Total bill export operations by format and result",
			},
			[]string{"format", "result"},
		)
		billExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "bill_export_latency_seconds",
				Help:    "Bill export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		paymentRecordTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_record_total",
				Help: "Total payment recordings by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			quoteTotal,
			readingIngestTotal,
			readingIngestLatency,
			billGenerateTotal,
			billGenerateLatency,
			billSkippedTotal,
			billOverdueTotal,
			billExportTotal,
			billExportLatency,
			paymentRecordTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncQuote counts a rate quote outcome.
func IncQuote(result string) {
	if result == "" {
		result = "unknown"
	}
	if quoteTotal != nil {
		quoteTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReadingIngest records reading upload duration and result.
func ObserveReadingIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if readingIngestTotal != nil {
		readingIngestTotal.WithLabelValues(result).Inc()
	}
	if readingIngestLatency != nil {
		readingIngestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveBillGenerate records generation run latency and result.
func ObserveBillGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if billGenerateTotal != nil {
		billGenerateTotal.WithLabelValues(result).Inc()
	}
	if billGenerateLatency != nil {
		billGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBillSkipped counts a customer skipped by bill generation.
func IncBillSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if billSkippedTotal != nil {
		billSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// AddBillsOverdue counts bills moved to overdue.
func AddBillsOverdue(count int) {
	if count <= 0 {
		return
	}
	if billOverdueTotal != nil {
		billOverdueTotal.Add(float64(count))
	}
}

// ObserveBillExport records export latency and result.
func ObserveBillExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if billExportTotal != nil {
		billExportTotal.WithLabelValues(format, result).Inc()
	}
	if billExportLatency != nil {
		billExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPaymentRecord counts a payment recording outcome.
func IncPaymentRecord(result string) {
	if result == "" {
		result = resultSuccess
	}
	if paymentRecordTotal != nil {
		paymentRecordTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	QuoteResultPriced   = quoteResultPriced
	QuoteResultUnpriced = quoteResultUnpriced
	QuoteResultInvalid  = quoteResultInvalid
)
