package observability

import (
	"errors"
	"sync"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igtl",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Frames read or written, by type name.",
		},
		[]string{"direction", "type"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igtl",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Frame errors by kind.",
		},
		[]string{"direction", "kind"},
	)
	bodyBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "igtl",
			Subsystem: "stream",
			Name:      "body_bytes",
			Help:      "Body size of frames in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, frameErrors, bodyBytes)
	})
}

func RecordFrame(direction, typeName string, bodySize uint64) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, typeName).Inc()
	bodyBytes.WithLabelValues(direction).Observe(float64(bodySize))
}

func RecordError(direction string, err error) {
	RegisterMetrics()
	frameErrors.WithLabelValues(direction, ErrorKind(err)).Inc()
}

// ErrorKind maps err onto a small fixed label set.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, protocol.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, protocol.ErrChecksum):
		return "checksum"
	case errors.Is(err, protocol.ErrVersion):
		return "version"
	case errors.Is(err, protocol.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, protocol.ErrSizeMismatch):
		return "size_mismatch"
	case errors.Is(err, protocol.ErrFormat):
		return "format"
	default:
		return "io"
	}
}
