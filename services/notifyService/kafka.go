package notifyService

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"streakEngine/pkg/contracts/events"
)

type KafkaNotifier struct {
	w *kafka.Writer
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaNotifier(w *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{w: w}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

// Notify keys messages by user id so one user's events stay on one partition, in order.
func (k *KafkaNotifier) Notify(ctx context.Context, ev events.Envelope) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.UserID), 10)),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Type)},
		},
	})
}

func (k *KafkaNotifier) Close() error {
	return k.w.Close()
}
