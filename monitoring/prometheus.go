package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SubmissionRejectedReason string

var (
	RejectedAlreadyPending   SubmissionRejectedReason = "already_pending"
	RejectedNoPendingRequest SubmissionRejectedReason = "no_pending_request"
	RejectedInvalidSignature SubmissionRejectedReason = "invalid_signature"
	RejectedNotAuthorized    SubmissionRejectedReason = "not_authorized"
	RejectedInvalidPayload   SubmissionRejectedReason = "invalid_payload"
	RejectedStoreFailure     SubmissionRejectedReason = "store_failure"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds   prometheus.Gauge
	blockHeight         prometheus.Gauge
	blockSizeBytes      prometheus.Histogram
	mempoolSize         prometheus.Gauge
	challengeCount      prometheus.Counter
	verifiedCount       prometheus.Counter
	expiredCount        prometheus.Counter
	rejectedCount       *prometheus.CounterVec
	validationRuns      prometheus.Counter
	validationOffending prometheus.Gauge
	validationDuration  prometheus.Histogram
	panicCount          prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starnotary_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starnotary_block_height",
				Help: "Number of blocks persisted in the chain",
			},
		),
		blockSizeBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "starnotary_block_size_bytes",
				Help:    "Serialized size of appended blocks",
				Buckets: prometheus.ExponentialBuckets(128, 2, 10),
			},
		),
		mempoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starnotary_mempool_size",
				Help: "Live notarization requests waiting for signature or submission",
			},
		),
		challengeCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starnotary_challenges_issued_total",
				Help: "Challenges handed out to claimants",
			},
		),
		verifiedCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starnotary_signatures_verified_total",
				Help: "Challenges whose signature verified",
			},
		),
		expiredCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starnotary_requests_expired_total",
				Help: "Requests removed by the validation window timer",
			},
		),
		rejectedCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starnotary_rejected_total",
				Help: "Rejected admission or submission calls",
			},
			[]string{"reason"},
		),
		validationRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starnotary_chain_validations_total",
				Help: "Completed whole-chain audits",
			},
		),
		validationOffending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "starnotary_chain_offending_blocks",
				Help: "Offending heights found by the last whole-chain audit",
			},
		),
		validationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "starnotary_chain_validation_seconds",
				Help: "Duration of whole-chain audits",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starnotary_recovered_panics_total",
				Help: "Panics recovered in background goroutines",
			},
		),
	}
}

var nodeMetrics = newNodePromMetrics()

// InitMetrics stamps the node start time.
func InitMetrics() {
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetBlockHeight(height uint64) {
	nodeMetrics.blockHeight.Set(float64(height))
}

func RecordBlockSizeBytes(sizeBytes int) {
	nodeMetrics.blockSizeBytes.Observe(float64(sizeBytes))
}

func SetMempoolSize(size int) {
	nodeMetrics.mempoolSize.Set(float64(size))
}

func IncreaseChallengeCount() {
	nodeMetrics.challengeCount.Inc()
}

func IncreaseVerifiedCount() {
	nodeMetrics.verifiedCount.Inc()
}

func IncreaseExpiredCount() {
	nodeMetrics.expiredCount.Inc()
}

func RecordRejected(reason SubmissionRejectedReason) {
	nodeMetrics.rejectedCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func RecordChainValidation(offending int, duration time.Duration) {
	nodeMetrics.validationRuns.Inc()
	nodeMetrics.validationOffending.Set(float64(offending))
	nodeMetrics.validationDuration.Observe(duration.Seconds())
}

func IncreasePanicCount() {
	nodeMetrics.panicCount.Inc()
}
