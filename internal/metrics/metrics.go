// Package metrics exports notification sync instrumentation to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/sync"
)

const namespace = "workhub"

// Recorder implements sync.Recorder on a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	frames     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	reconnects prometheus.Counter
	refreshes  prometheus.Counter
	mutations  *prometheus.CounterVec
	state      *prometheus.GaugeVec
	unread     prometheus.Gauge
}

var _ sync.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Stream frames received, by event name.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_dropped_total",
			Help:      "Stream frames discarded, by reason.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Reconnect attempts scheduled after a stream error.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_failures_total",
			Help:      "Snapshot refreshes that failed.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_failures_total",
			Help:      "Server mutations that failed after the optimistic update, by operation.",
		}, []string{"op"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unread_notifications",
			Help:      "Last published unread count.",
		}),
	}

	r.registry.MustRegister(
		r.frames, r.dropped, r.reconnects, r.refreshes,
		r.mutations, r.state, r.unread,
	)
	for _, s := range sync.States {
		r.state.WithLabelValues(s.String()).Set(0)
	}
	r.state.WithLabelValues(sync.StateDisabled.String()).Set(1)
	return r
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) FrameReceived(event string) { r.frames.WithLabelValues(event).Inc() }
func (r *Recorder) FrameDropped(reason string) { r.dropped.WithLabelValues(reason).Inc() }
func (r *Recorder) ReconnectScheduled()        { r.reconnects.Inc() }
func (r *Recorder) RefreshFailed()             { r.refreshes.Inc() }
func (r *Recorder) MutationFailed(op string)   { r.mutations.WithLabelValues(op).Inc() }
func (r *Recorder) UnreadPublished(n int)      { r.unread.Set(float64(n)) }

func (r *Recorder) StateChanged(state string) {
	for _, s := range sync.States {
		v := 0.0
		if s.String() == state {
			v = 1
		}
		r.state.WithLabelValues(s.String()).Set(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (r *Recorder) Serve(ctx context.Context, addr string, l *slog.Logger) error {
	if l == nil {
		l = logger.WithComponent("metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	l.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
