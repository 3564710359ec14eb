// Package telemetry holds the OpenTelemetry instruments for the service.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts authentication and authorization outcomes. A nil
// *AuthMetrics is valid and records nothing, so tests can skip wiring it.
type AuthMetrics struct {
	outcomes metric.Int64Counter
	denials  metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on meter.
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	outcomes, err := meter.Int64Counter("auth.session.validations",
		metric.WithDescription("Session validation outcomes by result"))
	if err != nil {
		return nil, err
	}
	denials, err := meter.Int64Counter("auth.permission.denials",
		metric.WithDescription("Requests rejected by the authorization gate"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{outcomes: outcomes, denials: denials}, nil
}

// RecordValidation counts one session validation with its outcome label.
func (m *AuthMetrics) RecordValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDenial counts one authorization denial for role on resource.
func (m *AuthMetrics) RecordDenial(ctx context.Context, role, resource string) {
	if m == nil {
		return
	}
	m.denials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("resource", resource),
	))
}
