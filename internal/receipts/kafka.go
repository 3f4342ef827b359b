// carefund - Community donation campaigns
// Copyright (C) 2025  carefund contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

const (
	// OutboxTopic is where the campaigns service publishes receipts that
	// should go out as SMS.
	OutboxTopic = "sms-outbox"

	// DLQTopic holds receipts that failed every attempt. They stay there for
	// inspection and manual replay while the consumer keeps moving.
	DLQTopic = "sms-dlq"

	// GroupID is the consumer group of receipt-sender. Running several
	// replicas splits the outbox partitions between them.
	GroupID = "carefund-receipt-sender"

	// maxRetries is the number of send attempts before a receipt is routed
	// to the DLQ. Attempts are spaced by a linear backoff.
	maxRetries = 3
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads OutboundMessages from the sms-outbox topic and delivers
// them through a Sender. The offset of a message is committed only once it
// has been sent or written to sms-dlq, which gives at-least-once delivery.
//
// Notes:
//   - segmentio/kafka-go is pure Go, so receipt-sender builds without CGO
//     or librdkafka and ships as a small static image.
//   - At-least-once is enough for receipts. A crash between send and commit
//     repeats a "thank you" text; it never drops one. Message IDs are the
//     donation IDs when one exists, so a downstream dedupe has a stable key.
//   - A message that keeps failing goes to sms-dlq instead of blocking the
//     partition.
type Consumer struct {
	reader  messageReader
	dlq     messageWriter
	sender  Sender
	backoff func(attempt int) time.Duration
}

// NewConsumer creates a Consumer connected to the given Kafka brokers, e.g.
// []string{"kafka:9092"}. Consumption starts at the newest offset when the
// group has no committed position.
func NewConsumer(brokers []string, sender Sender) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          OutboxTopic,
		GroupID:        GroupID,
		MinBytes:       1,
		MaxBytes:       1 << 20, // 1 MiB
		CommitInterval: 0,       // explicit commits only
		StartOffset:    kafka.LastOffset,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return newConsumer(reader, dlq, sender)
}

func newConsumer(r messageReader, dlq messageWriter, sender Sender) *Consumer {
	return &Consumer{
		reader: r,
		dlq:    dlq,
		sender: sender,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

// Run blocks, consuming messages until ctx is cancelled. Retries and DLQ
// routing happen inside dispatch; a cancelled context is a clean shutdown
// and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	log.Printf("receipt-sender: consuming from topic %q", OutboxTopic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Clean shutdown.
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		// A dispatch error means the message was dead-lettered. Commit anyway
		// so the partition does not stall on it.
		if err := c.dispatch(ctx, m); err != nil {
			log.Printf("receipt-sender: routed message key=%s to DLQ: %v", string(m.Key), err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("receipt-sender: commit failed (message may be redelivered): %v", err)
		}
	}
}

// Close releases the reader and the DLQ writer. The reader's error wins
// when both fail.
func (c *Consumer) Close() error {
	rerr := c.reader.Close()
	werr := c.dlq.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// dispatch sends one message, retrying up to maxRetries times. A message
// that cannot be decoded, or that fails every attempt, is written to the DLQ
// and the reason is returned. A cancelled ctx aborts the backoff and returns
// ctx.Err() without dead-lettering.
func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) error {
	var msg OutboundMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return c.sendToDLQ(ctx, m, fmt.Errorf("unmarshal: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = c.sender.Send(ctx, msg)
		if lastErr == nil {
			log.Printf("receipt-sender: sent id=%s (attempt %d)", msg.ID, attempt)
			return nil
		}

		log.Printf("receipt-sender: attempt %d/%d failed for id=%s: %v", attempt, maxRetries, msg.ID, lastErr)

		if attempt < maxRetries {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return c.sendToDLQ(ctx, m, lastErr)
}

// sendToDLQ copies the raw Kafka message, key and value untouched, to the
// dead-letter topic so it can be replayed as is. It returns reason. A failed
// DLQ write is logged; the message is committed regardless and is lost from
// the pipeline, hence the CRITICAL marker.
func (c *Consumer) sendToDLQ(ctx context.Context, original kafka.Message, reason error) error {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   original.Key,
		Value: original.Value,
	})
	if err != nil {
		log.Printf("receipt-sender: CRITICAL could not write to DLQ: %v", err)
	}
	return reason
}
