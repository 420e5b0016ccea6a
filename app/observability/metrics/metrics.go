package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal metric.Int64Counter
	LoginRequestsTotal    metric.Int64Counter
	AuthDurationSeconds   metric.Float64Histogram
	TaskOperationsTotal   metric.Int64Counter
	TaskOpDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal    metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so the
// provider must be set up first (see InitProviders).
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("go-task-tracker")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.LoginRequestsTotal, err = meter.Int64Counter(
			"login_requests_total",
			metric.WithDescription("Total number of login requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_requests_total: %v", err)
		}

		m.AuthDurationSeconds, err = meter.Float64Histogram(
			"auth_duration_seconds",
			metric.WithDescription("Duration of auth requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_duration_seconds: %v", err)
		}

		m.TaskOperationsTotal, err = meter.Int64Counter(
			"task_operations_total",
			metric.WithDescription("Total number of task CRUD operations completed"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create task_operations_total: %v", err)
		}

		m.TaskOpDurationSeconds, err = meter.Float64Histogram(
			"task_operation_duration_seconds",
			metric.WithDescription("Duration of task CRUD operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create task_operation_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized instruments, or nil before InitAppMetrics runs
// (handlers tolerate nil so unit tests don't need a meter provider).
func Get() *AppMetrics {
	return appMetrics
}

// RecordDBError counts a failed database operation. Safe to call before init.
func RecordDBError(ctx context.Context, operation string) {
	if appMetrics == nil {
		return
	}
	appMetrics.DbQueryErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", operation)))
}
