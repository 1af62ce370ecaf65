// Package metrics exposes keybswitch counters in the prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	deviceEvents   *prometheus.CounterVec
	layoutSwitches *prometheus.CounterVec
	sourceErrors   *prometheus.CounterVec
	sweeps         prometheus.Counter
	present        prometheus.Gauge
}

func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		deviceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keybswitch_device_events_total",
			Help: "USB device notifications received, by action",
		}, []string{"action"}),
		layoutSwitches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keybswitch_layout_switches_total",
			Help: "Layout switches attempted, by direction and result",
		}, []string{"direction", "result"}),
		sourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keybswitch_source_errors_total",
			Help: "USB subsystem failures, by operation",
		}, []string{"op"}),
		sweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "keybswitch_sweeps_total",
			Help: "Full enumerations run to confirm keyboards are still attached",
		}),
		present: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keybswitch_present_keyboards",
			Help: "Configured keyboards currently believed to be attached",
		}),
	}
}

func (m *Metrics) DeviceEvent(action string) {
	if m == nil {
		return
	}
	m.deviceEvents.WithLabelValues(action).Inc()
}

func (m *Metrics) LayoutSwitch(direction string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.layoutSwitches.WithLabelValues(direction, result).Inc()
}

func (m *Metrics) SourceError(op string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Sweep() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

func (m *Metrics) SetPresent(n int) {
	if m == nil {
		return
	}
	m.present.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	}
}
