// Package metrics exposes the Prometheus metrics of the attendance service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const namespace = "chamada"

// Cycle and enrollment result labels.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
	ResultFailed  = "failed"
)

// Recorder holds every collector of the service.
type Recorder struct {
	framesAcquired prometheus.Counter
	framesFailed   prometheus.Counter
	cameraReopens  *prometheus.CounterVec

	recognitionCycles   *prometheus.CounterVec
	recognitionDuration prometheus.Histogram
	faceOutcomes        *prometheus.CounterVec

	attendanceWritten prometheus.Counter
	attendanceFailed  prometheus.Counter

	enrollments        *prometheus.CounterVec
	enrollmentDuration prometheus.Histogram

	identities      prometheus.Gauge
	framesDropped   prometheus.Gauge
	cooldownEntries prometheus.Gauge
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		framesAcquired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "frames_acquired_total",
			Help:      "Frames read from the camera source.",
		}),
		framesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "frame_failures_total",
			Help:      "Failed camera reads.",
		}),
		cameraReopens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "reopens_total",
			Help:      "Camera reopen attempts by result.",
		}, []string{"result"}),
		recognitionCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "cycles_total",
			Help:      "Recognition cycles by result.",
		}, []string{"result"}),
		recognitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a recognition cycle.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		faceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "faces_total",
			Help:      "Detected faces by annotation kind.",
		}, []string{"kind"}),
		attendanceWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "events_written_total",
			Help:      "Attendance events persisted.",
		}),
		attendanceFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "write_failures_total",
			Help:      "Attendance events accepted but not persisted.",
		}),
		enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "total",
			Help:      "Enrollment attempts by result.",
		}, []string{"result"}),
		enrollmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "duration_seconds",
			Help:      "Duration of enrollment attempts.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		identities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities_enrolled",
			Help:      "Identities currently available for matching.",
		}),
		framesDropped: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "frames_dropped",
			Help:      "Frames overwritten in the slot before any consumer read them.",
		}),
		cooldownEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "cooldown_entries",
			Help:      "Identities tracked by the cooldown ledger.",
		}),
	}
}

func (r *Recorder) FrameAcquired() { r.framesAcquired.Inc() }

func (r *Recorder) FrameFailed() { r.framesFailed.Inc() }

func (r *Recorder) CameraReopened(ok bool) {
	if ok {
		r.cameraReopens.WithLabelValues(ResultOK).Inc()
		return
	}
	r.cameraReopens.WithLabelValues(ResultFailed).Inc()
}

func (r *Recorder) RecognitionCycle(result string, d time.Duration) {
	r.recognitionCycles.WithLabelValues(result).Inc()
	if result == ResultOK {
		r.recognitionDuration.Observe(d.Seconds())
	}
}

func (r *Recorder) FaceOutcome(kind domain.AnnotationKind) {
	r.faceOutcomes.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) AttendanceWritten() { r.attendanceWritten.Inc() }

func (r *Recorder) AttendanceFailed() { r.attendanceFailed.Inc() }

func (r *Recorder) Enrollment(result string, d time.Duration) {
	r.enrollments.WithLabelValues(result).Inc()
	r.enrollmentDuration.Observe(d.Seconds())
}

func (r *Recorder) SetIdentities(n int) { r.identities.Set(float64(n)) }

func (r *Recorder) SetFramesDropped(n uint64) { r.framesDropped.Set(float64(n)) }

func (r *Recorder) SetCooldownEntries(n int) { r.cooldownEntries.Set(float64(n)) }
