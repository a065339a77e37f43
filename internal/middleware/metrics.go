package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_messages_received_total",
		Help: "Total number of messages received by input type",
	}, []string{"input_type"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	sentimentsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_sentiments_total",
		Help: "Sentiment labels assigned to interactions",
	}, []string{"sentiment"})

	recommendationSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_recommendations_total",
		Help: "Recommendations served by pipeline stage",
	}, []string{"source"})

	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menta_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_ai_requests_total",
		Help: "Total number of AI requests",
	}, []string{"model", "status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menta_cache_hits_total",
		Help: "Total number of sentiment cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menta_cache_misses_total",
		Help: "Total number of sentiment cache misses",
	})

	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menta_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menta_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	dashboardsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menta_dashboards_generated_total",
		Help: "Dashboards rendered, split by whether data was available",
	}, []string{"result"})

	knownUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menta_users",
		Help: "Number of distinct users with recorded interactions",
	})

	storedInteractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menta_interactions",
		Help: "Number of interactions stored in SQLite",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message
func (m *Metrics) RecordMessageReceived(inputType string) {
	messagesReceived.WithLabelValues(inputType).Inc()
}

// RecordMessageProcessed records a processed message
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordSentiment counts a resolved sentiment label
func (m *Metrics) RecordSentiment(sentiment string) {
	sentimentsDetected.WithLabelValues(sentiment).Inc()
}

// RecordRecommendation counts which pipeline stage produced the reply
func (m *Metrics) RecordRecommendation(source string) {
	recommendationSources.WithLabelValues(source).Inc()
}

// RecordAIRequest records an AI request
func (m *Metrics) RecordAIRequest(model, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDashboard records a dashboard render; empty marks the "no data" stub
func (m *Metrics) RecordDashboard(empty bool) {
	result := "rendered"
	if empty {
		result = "empty"
	}
	dashboardsGenerated.WithLabelValues(result).Inc()
}

// SetUsage sets the user and interaction gauges
func (m *Metrics) SetUsage(users, interactions int) {
	knownUsers.Set(float64(users))
	storedInteractions.Set(float64(interactions))
}

// DashboardRenderer renders a user's dashboard and returns the HTML file path
type DashboardRenderer interface {
	Generate(ctx context.Context, userID int64) (string, error)
}

// NewRouter builds the HTTP routes for metrics, health and dashboards.
// dashboards may be nil, in which case the dashboard route is not registered.
func NewRouter(path string, dashboards DashboardRenderer, logger logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	if dashboards != nil {
		router.HandleFunc("/dashboards/{user_id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
			userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
			if err != nil {
				http.Error(w, "invalid user id", http.StatusBadRequest)
				return
			}

			file, err := dashboards.Generate(r.Context(), userID)
			if err != nil {
				logger.WithError(err).WithField("user_id", userID).Error("Failed to render dashboard")
				http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			http.ServeFile(w, r, file)
		}).Methods(http.MethodGet)
	}

	return router
}

// StartMetricsServer serves the router until ctx is cancelled
func StartMetricsServer(ctx context.Context, port int, handler http.Handler) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
