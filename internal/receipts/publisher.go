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

	kafka "github.com/segmentio/kafka-go"
)

// Publisher hands receipts to the delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
	Close() error
}

// KafkaPublisher writes OutboundMessages to OutboxTopic keyed by message ID.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        OutboxTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, msg OutboundMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.ID), Value: value})
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs receipts. It is used when no brokers are configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, msg OutboundMessage) error {
	log.Printf("receipts: kafka disabled, not sending id=%s", msg.ID)
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }
