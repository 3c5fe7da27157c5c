package orchestrator

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// Metrics holds the task counters exported to Prometheus.
type Metrics struct {
	TasksAdded    *prometheus.CounterVec
	TasksFinished *prometheus.CounterVec
	Tasks         *prometheus.GaugeVec
	TaskDuration  *prometheus.HistogramVec
}

// NewMetrics registers the task metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filmcrew",
			Name:      "tasks_added_total",
			Help:      "Total tasks added to the queue, by target agent.",
		}, []string{"agent"}),

		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filmcrew",
			Name:      "tasks_finished_total",
			Help:      "Total tasks that reached a terminal status, by agent and status.",
		}, []string{"agent", "status"}),

		Tasks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "filmcrew",
			Name:      "tasks",
			Help:      "Tasks currently in the queue, by status.",
		}, []string{"status"}),

		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "filmcrew",
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds, by agent.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"agent"}),
	}
}

// Attach updates the metrics from queue events. The returned function detaches.
func (m *Metrics) Attach(queue *scheduler.Queue) func() {
	return queue.On(scheduler.EventAll, func(ev scheduler.Event) {
		if t := ev.Task; t != nil {
			switch ev.Name {
			case scheduler.EventTaskAdded:
				m.TasksAdded.WithLabelValues(t.AgentID).Inc()
			case scheduler.EventTaskCompleted, scheduler.EventTaskFailed, scheduler.EventTaskCancelled:
				m.TasksFinished.WithLabelValues(t.AgentID, t.Status.String()).Inc()
				if d := t.Duration(); d > 0 {
					m.TaskDuration.WithLabelValues(t.AgentID).Observe(d.Seconds())
				}
			}
		}

		s := queue.Stats()
		for _, status := range scheduler.AllStatuses {
			m.Tasks.WithLabelValues(status.String()).Set(float64(s.Count(status)))
		}
	})
}

// StartMetricsServer serves /metrics for gatherer on addr until ctx ends.
func StartMetricsServer(ctx context.Context, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: metrics server: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
}
