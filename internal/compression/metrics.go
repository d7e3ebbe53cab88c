package compression

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	compressCalls     atomic.Int64
	compressBytesIn   atomic.Int64
	compressBytesOut  atomic.Int64
	decompressCalls   atomic.Int64
	decompressBytesIn atomic.Int64
)

func init() {
	prometheus.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pqueue_compression_compress_total",
			Help: "Record payloads compressed",
		}, func() float64 { return float64(compressCalls.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pqueue_compression_uncompressed_bytes_total",
			Help: "Payload bytes handed to the compressor",
		}, func() float64 { return float64(compressBytesIn.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pqueue_compression_compressed_bytes_total",
			Help: "Bytes produced by the compressor",
		}, func() float64 { return float64(compressBytesOut.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pqueue_compression_decompress_total",
			Help: "Record payloads decompressed",
		}, func() float64 { return float64(decompressCalls.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pqueue_compression_decompressed_input_bytes_total",
			Help: "Compressed bytes handed to the decompressor",
		}, func() float64 { return float64(decompressBytesIn.Load()) }),
	)
}

func recordCompress(in, out int) {
	compressCalls.Add(1)
	compressBytesIn.Add(int64(in))
	compressBytesOut.Add(int64(out))
}

func recordDecompress(in, _ int) {
	decompressCalls.Add(1)
	decompressBytesIn.Add(int64(in))
}

// Ratio returns compressed/uncompressed bytes over the process lifetime, or 0.
func Ratio() float64 {
	in := compressBytesIn.Load()
	if in == 0 {
		return 0
	}
	return float64(compressBytesOut.Load()) / float64(in)
}
