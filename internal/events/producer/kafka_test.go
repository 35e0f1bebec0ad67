package producer

import (
	"context"
	"testing"

	"authgate/internal/events"
)

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if NewKafkaProducer(nil, "topic") != nil {
		t.Error("no brokers should disable the producer")
	}
	if NewKafkaProducer([]string{"localhost:9092"}, "") != nil {
		t.Error("no topic should disable the producer")
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &events.AuthEvent{Kind: events.KindLoginFailure}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}
