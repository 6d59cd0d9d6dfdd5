package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotcall_frames_processed_total",
		Help: "Total number of detector frames fed to a trajectory tracker, by camera angle",
	}, []string{"angle"})

	SequencesClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotcall_sequences_closed_total",
		Help: "Total number of finalized shot sequences, by camera angle and close reason",
	}, []string{"angle", "reason"})

	RecordsClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotcall_records_classified_total",
		Help: "Total number of per-angle shot records, by camera angle and outcome",
	}, []string{"angle", "outcome"})

	FusedShotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotcall_fused_shots_total",
		Help: "Total number of fused shot verdicts, by fusion method and outcome",
	}, []string{"method", "outcome"})

	FusionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shotcall_fusion_confidence",
		Help:    "Distribution of fused shot confidence",
		Buckets: []float64{0.1, 0.25, 0.5, 0.65, 0.75, 0.85, 0.9, 0.95, 1},
	})
)

// WriteMetricsFile writes the default registry in the Prometheus text format
// to path, for node_exporter textfile collection after a batch run.
func WriteMetricsFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
