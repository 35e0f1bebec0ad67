package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authgate/internal/events"
)

// NewEventEmitter returns an events.Emitter that records auth events as OTel
// log records via the given LoggerProvider, giving operators a searchable
// trail of failed and throttled logins alongside the alert channel. If
// provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) events.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("authgate.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *events.AuthEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the auth event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, event *events.AuthEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.At.IsZero() {
		rec.SetTimestamp(event.At)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(event.Message()))
	if event.ID != "" {
		rec.AddAttributes(otellog.String("event_id", event.ID))
	}
	if event.Kind != "" {
		rec.AddAttributes(otellog.String("kind", event.Kind))
	}
	if event.Username != "" {
		rec.AddAttributes(otellog.String("username", event.Username))
	}
	if event.Fingerprint != "" {
		rec.AddAttributes(otellog.String("fingerprint", event.Fingerprint))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
