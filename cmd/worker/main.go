// Worker consumes auth events from Kafka and forwards them to the alert
// webhook. Set KAFKA_BROKERS, ALERT_KAFKA_TOPIC, KAFKA_GROUP_ID, and
// WEBHOOK_URL.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"authgate/internal/config"
	"authgate/internal/events"
	"authgate/internal/notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.AlertKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	wh := notifier.NewWebhook(cfg.WebhookURL)
	if wh == nil {
		log.Fatal("worker: WEBHOOK_URL is required")
	}

	topic := cfg.AlertKafkaTopic
	if topic == "" {
		topic = "authgate-alerts"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "authgate-alert-worker"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var event events.AuthEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("worker: bad event payload: %v", err)
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := wh.Notify(pushCtx, event.Message()); err != nil {
			log.Printf("worker: webhook notify failed: %v", err)
		}
		pushCancel()
	}
}
