package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pqueue_size",
		Help: "Committed number of records in the queue as of the last operation on this handle",
	}, []string{"queue"})

	queuePutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_put_total",
		Help: "Total number of records committed by put",
	})

	queuePutBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_put_bytes_total",
		Help: "Total payload bytes committed by put",
	})

	queueGetTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_get_total",
		Help: "Total number of records consumed by get",
	})

	queueGetBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_get_bytes_total",
		Help: "Total payload bytes consumed by get",
	})

	queueGetEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_get_empty_total",
		Help: "Total number of get calls that found the queue empty",
	})

	queueIntegrityErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_integrity_errors_total",
		Help: "Total number of get calls that found an unreadable record at the tail",
	})

	chunkRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_chunk_rotations_total",
		Help: "Total number of times the head rolled into a new chunk file",
	})

	chunkDeletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_chunk_deletions_total",
		Help: "Total number of fully consumed chunk files deleted",
	})

	recoveryTruncatedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_recovery_truncated_bytes_total",
		Help: "Total uncommitted bytes discarded from head chunks at open",
	})

	recoveryOrphanChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_recovery_orphan_chunks_total",
		Help: "Total chunk files outside the tail..head range removed at open",
	})

	metaSavesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pqueue_meta_saves_total",
		Help: "Total number of metadata commits",
	})

	lockWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pqueue_lock_wait_seconds",
		Help:    "Time spent waiting for the queue directory lock",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

func init() {
	prometheus.MustRegister(queueSize)
	prometheus.MustRegister(queuePutTotal)
	prometheus.MustRegister(queuePutBytesTotal)
	prometheus.MustRegister(queueGetTotal)
	prometheus.MustRegister(queueGetBytesTotal)
	prometheus.MustRegister(queueGetEmptyTotal)
	prometheus.MustRegister(queueIntegrityErrorsTotal)
	prometheus.MustRegister(chunkRotationsTotal)
	prometheus.MustRegister(chunkDeletionsTotal)
	prometheus.MustRegister(recoveryTruncatedBytesTotal)
	prometheus.MustRegister(recoveryOrphanChunksTotal)
	prometheus.MustRegister(metaSavesTotal)
	prometheus.MustRegister(lockWaitSeconds)
}

// SetSize records the committed size of the queue at path.
func SetSize(path string, size int64) {
	queueSize.WithLabelValues(path).Set(float64(size))
}

// DeleteSize drops the size series of the queue at path.
func DeleteSize(path string) {
	queueSize.DeleteLabelValues(path)
}

// IncrementPut records a committed put of n payload bytes.
func IncrementPut(n int) {
	queuePutTotal.Inc()
	queuePutBytesTotal.Add(float64(n))
}

// IncrementGet records a committed get of n payload bytes.
func IncrementGet(n int) {
	queueGetTotal.Inc()
	queueGetBytesTotal.Add(float64(n))
}

// IncrementGetEmpty records a get on an empty queue.
func IncrementGetEmpty() {
	queueGetEmptyTotal.Inc()
}

// IncrementIntegrityError records an unreadable tail record.
func IncrementIntegrityError() {
	queueIntegrityErrorsTotal.Inc()
}

// IncrementChunkRotation records the head entering a new chunk.
func IncrementChunkRotation() {
	chunkRotationsTotal.Inc()
}

// IncrementChunkDeletion records a consumed chunk being removed.
func IncrementChunkDeletion() {
	chunkDeletionsTotal.Inc()
}

// AddRecoveryTruncatedBytes records bytes discarded during recovery.
func AddRecoveryTruncatedBytes(n int64) {
	recoveryTruncatedBytesTotal.Add(float64(n))
}

// IncrementRecoveryOrphanChunk records an orphan chunk removed during recovery.
func IncrementRecoveryOrphanChunk() {
	recoveryOrphanChunksTotal.Inc()
}

// IncrementMetaSave records a metadata commit.
func IncrementMetaSave() {
	metaSavesTotal.Inc()
}

// ObserveLockWait records time spent acquiring the directory lock.
func ObserveLockWait(seconds float64) {
	lockWaitSeconds.Observe(seconds)
}
