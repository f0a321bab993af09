package node

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics are process-wide, mirroring the teacher's own
// prometheus.MustRegister-at-init-time pattern (plugin/util_test.go)
// rather than threading a registry handle through every Sink/Source.
var (
	sampleNumberGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shmdf",
		Name:      "sample_number",
		Help:      "Most recently published sample number, by node address.",
	}, []string{"address"})

	sourceCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shmdf",
		Name:      "source_count",
		Help:      "Number of attached Sources, by node address.",
	}, []string{"address"})

	ackLagHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shmdf",
		Name:      "ack_lag_seconds",
		Help:      "Time a Sink spent blocked in Wait for source acknowledgement.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"address"})

	endOfStreamCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmdf",
		Name:      "end_of_stream_total",
		Help:      "Number of nodes that have transitioned to end-of-stream.",
	}, []string{"address"})

	poisonedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmdf",
		Name:      "poisoned_total",
		Help:      "Number of times a node was marked poisoned after a peer died.",
	}, []string{"address"})
)

func init() {
	prometheus.MustRegister(sampleNumberGauge, sourceCountGauge, ackLagHistogram, endOfStreamCounter, poisonedCounter)
}

var tracer = otel.Tracer("github.com/oatfabric/shmdf/pkg/node")

func startSpan(ctx context.Context, name, address string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("shmdf.address", address)))
}

// meter and samplesProcessed count, through the OTel metrics API, every
// sample a Sink posts and every sample a Source acknowledges, for
// processes that export via an OTel pipeline. There is no Prometheus
// counterpart of this counter; Sink.Post updates it alongside the
// sample_number gauge above.
var meter = otel.Meter("github.com/oatfabric/shmdf/pkg/node")

var samplesProcessed, _ = meter.Int64Counter(
	"shmdf.node.samples_processed",
	metric.WithDescription("Samples posted by a Sink or acknowledged by a Source, by role and address."),
	metric.WithUnit("{sample}"),
)

func recordSampleProcessed(ctx context.Context, address, role string) {
	samplesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("shmdf.address", address),
		attribute.String("shmdf.role", role),
	))
}
