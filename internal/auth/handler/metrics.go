package handler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the auth counters. A nil *Metrics is a no-op, so handlers
// never guard their calls.
type Metrics struct {
	logins    metric.Int64Counter
	rotations metric.Int64Counter
}

// NewMetrics registers the auth instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("authgate/auth")
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	rotations, err := meter.Int64Counter("auth.refresh_rotations",
		metric.WithDescription("Refresh-token rotations persisted"))
	if err != nil {
		return nil, err
	}
	return &Metrics{logins: logins, rotations: rotations}, nil
}

// CountLogin records one login attempt with its outcome.
func (m *Metrics) CountLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// CountRotation records one persisted refresh rotation.
func (m *Metrics) CountRotation(ctx context.Context) {
	if m == nil {
		return
	}
	m.rotations.Add(ctx, 1)
}
