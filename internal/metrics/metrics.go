// Package metrics exposes the running service's per-fan state as
// Prometheus metrics, scraped rather than pushed: a collector reads
// straight from the live Service on every Collect instead of caching
// gauges that could drift from the fan state between ticks.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nbfc-linux/nbfcd/internal/fan"
	"github.com/nbfc-linux/nbfcd/internal/service"
)

var (
	temperatureDesc = prometheus.NewDesc(
		"nbfc_fan_temperature_celsius", "Filtered temperature feeding a fan's threshold table.",
		[]string{"fan"}, nil)
	currentSpeedDesc = prometheus.NewDesc(
		"nbfc_fan_current_speed_percent", "Fan speed read back from the embedded controller.",
		[]string{"fan"}, nil)
	targetSpeedDesc = prometheus.NewDesc(
		"nbfc_fan_target_speed_percent", "Fan speed last written to the embedded controller.",
		[]string{"fan"}, nil)
	requestedSpeedDesc = prometheus.NewDesc(
		"nbfc_fan_requested_speed_percent", "Fan speed the threshold table or an IPC override last requested.",
		[]string{"fan"}, nil)
	criticalDesc = prometheus.NewDesc(
		"nbfc_fan_critical", "1 if the fan is in the latched critical-temperature state.",
		[]string{"fan"}, nil)
	autoModeDesc = prometheus.NewDesc(
		"nbfc_fan_auto_mode", "1 if the fan is under automatic threshold control, 0 if pinned by an IPC override.",
		[]string{"fan"}, nil)
)

type collector struct {
	svc *service.Service
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- temperatureDesc
	ch <- currentSpeedDesc
	ch <- targetSpeedDesc
	ch <- requestedSpeedDesc
	ch <- criticalDesc
	ch <- autoModeDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	c.svc.Lock.Lock()
	defer c.svc.Lock.Unlock()

	for _, f := range c.svc.Fans {
		name := f.Config.FanDisplayName
		ch <- prometheus.MustNewConstMetric(temperatureDesc, prometheus.GaugeValue, f.Temperature, name)
		ch <- prometheus.MustNewConstMetric(currentSpeedDesc, prometheus.GaugeValue, f.CurrentSpeed, name)
		ch <- prometheus.MustNewConstMetric(targetSpeedDesc, prometheus.GaugeValue, f.TargetSpeed, name)
		ch <- prometheus.MustNewConstMetric(requestedSpeedDesc, prometheus.GaugeValue, f.RequestedSpeed, name)
		ch <- prometheus.MustNewConstMetric(criticalDesc, prometheus.GaugeValue, boolToFloat(f.IsCritical), name)
		ch <- prometheus.MustNewConstMetric(autoModeDesc, prometheus.GaugeValue, boolToFloat(f.Mode == fan.Auto), name)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Register builds a collector over svc and adds it to the default
// Prometheus registry.
func Register(svc *service.Service) {
	prometheus.MustRegister(&collector{svc: svc})
}

// Serve starts an HTTP server exposing /metrics on addr and blocks
// until ctx is cancelled, at which point it shuts down gracefully.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
