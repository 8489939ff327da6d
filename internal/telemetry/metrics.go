package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	StatusChecks        metric.Int64Counter
	ProvisioningCalls   metric.Int64Counter
	SnippetServes       metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("spotfix-widget-service")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	statusChecks, err := meter.Int64Counter(
		"widget.status_checks.total",
		metric.WithDescription("Widget status checks by outcome"),
	)
	if err != nil {
		return nil, err
	}

	provisioningCalls, err := meter.Int64Counter(
		"provisioning.calls.total",
		metric.WithDescription("Outbound provisioning API calls by endpoint and outcome"),
	)
	if err != nil {
		return nil, err
	}

	snippetServes, err := meter.Int64Counter(
		"widget.snippet_serves.total",
		metric.WithDescription("Public snippet responses by decision"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		StatusChecks:        statusChecks,
		ProvisioningCalls:   provisioningCalls,
		SnippetServes:       snippetServes,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordStatusCheck records one status check outcome
func (m *Metrics) RecordStatusCheck(status, stage string) {
	attrs := []attribute.KeyValue{
		attribute.String("widget.status", status),
		attribute.String("widget.stage", stage),
	}

	m.StatusChecks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordProvisioningCall records one outbound provisioning call
func (m *Metrics) RecordProvisioningCall(endpoint string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provisioning.endpoint", endpoint),
		attribute.Bool("provisioning.success", success),
	}

	m.ProvisioningCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSnippetServe records a public snippet response decision
func (m *Metrics) RecordSnippetServe(decision string) {
	attrs := []attribute.KeyValue{
		attribute.String("widget.decision", decision),
	}

	m.SnippetServes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
