// Worker consumes notification messages from Kafka and delivers them via the
// email API. Set KAFKA_BROKERS, NOTIFICATION_KAFKA_TOPIC, KAFKA_GROUP_ID,
// EMAIL_API_URL, and EMAIL_API_KEY.
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

	"firmdesk/backend/internal/config"
	"firmdesk/backend/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.NotificationKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.EmailAPIURL == "" {
		log.Fatal("worker: EMAIL_API_URL is required")
	}

	topic := cfg.NotificationKafkaTopic
	if topic == "" {
		topic = "firmdesk-notifications"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "firmdesk-notification-worker"
	}

	emails := notification.NewEmailClient(cfg.EmailAPIKey, cfg.EmailAPIURL, cfg.EmailFrom)

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

	log.Printf("worker: consuming from %s (group %s), delivering via %s", topic, groupID, cfg.EmailAPIURL)

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

		var m notification.Message
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			log.Printf("worker: skipping malformed message at offset %d: %v", msg.Offset, err)
			continue
		}

		deliverCtx, deliverCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := emails.Deliver(deliverCtx, &m); err != nil {
			log.Printf("worker: email delivery to %s failed: %v", m.To, err)
		}
		deliverCancel()
	}
}
