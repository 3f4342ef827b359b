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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

func TestReceipt_Message(t *testing.T) {
	msg := Receipt{
		DonationID:   "3f2a9c10-1111-2222-3333-444455556666",
		To:           "+919999999999",
		DonorName:    "Meera",
		Amount:       decimal.NewFromInt(100),
		CampaignName: "Asha's surgery",
	}.Message()

	want := "CareFund: Thank you Meera! We recorded your donation of Rs 100.00 to Asha's surgery. Ref 3F2A9C10"
	if msg.Body != want {
		t.Errorf("Body = %q\nwant %q", msg.Body, want)
	}
	if msg.ID != "3f2a9c10-1111-2222-3333-444455556666" || msg.To != "+919999999999" {
		t.Errorf("msg = %+v", msg)
	}

	general := Receipt{To: "+919999999999", Amount: decimal.RequireFromString("50.5")}.Message()
	if !strings.HasPrefix(general.Body, "CareFund: Thank you! We recorded your donation of Rs 50.50 to the Community Care fund.") {
		t.Errorf("general body = %q", general.Body)
	}
	if general.ID == "" {
		t.Error("expected generated id")
	}
}

type fakeReader struct {
	msgs      []kafka.Message
	committed int
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		close(r.drained)
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(context.Context, ...kafka.Message) error {
	r.committed++
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct{ written []kafka.Message }

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type flakySender struct {
	failures int
	calls    int
	sent     []OutboundMessage
}

func (s *flakySender) Send(_ context.Context, msg OutboundMessage) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("carrier unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func kafkaMsg(t *testing.T, msg OutboundMessage) kafka.Message {
	t.Helper()
	v, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(msg.ID), Value: v}
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestConsumer_RetriesThenSends(t *testing.T) {
	r := newFakeReader(kafkaMsg(t, OutboundMessage{ID: "a", To: "+91", Body: "hi"}))
	dlq := &fakeWriter{}
	s := &flakySender{failures: 2}
	c := newConsumer(r, dlq, s)
	c.backoff = func(int) time.Duration { return 0 }

	runConsumer(t, c, r)

	if len(s.sent) != 1 || s.calls != 3 {
		t.Errorf("sent = %d, calls = %d", len(s.sent), s.calls)
	}
	if len(dlq.written) != 0 {
		t.Errorf("dlq = %d, want 0", len(dlq.written))
	}
	if r.committed != 1 {
		t.Errorf("committed = %d, want 1", r.committed)
	}
}

func TestConsumer_DeadLetters(t *testing.T) {
	good := kafkaMsg(t, OutboundMessage{ID: "b", To: "+91", Body: "hi"})
	r := newFakeReader(kafka.Message{Key: []byte("bad"), Value: []byte("not json")}, good)
	dlq := &fakeWriter{}
	s := &flakySender{failures: 10}
	c := newConsumer(r, dlq, s)
	c.backoff = func(int) time.Duration { return 0 }

	runConsumer(t, c, r)

	if len(dlq.written) != 2 {
		t.Fatalf("dlq = %d, want 2", len(dlq.written))
	}
	if string(dlq.written[0].Value) != "not json" {
		t.Errorf("first dlq value = %q", dlq.written[0].Value)
	}
	if s.calls != maxRetries {
		t.Errorf("calls = %d, want %d", s.calls, maxRetries)
	}
}

func TestTelnyxSender(t *testing.T) {
	var got telnyxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/messages" || r.Header.Get("Authorization") != "Bearer KEY123" {
			t.Errorf("%s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		if got.To == "+910000000000" {
			w.Write([]byte(`{"errors":[{"code":"40310","detail":"invalid to number"}]}`))
			return
		}
		w.Write([]byte(`{"data":{"id":"msg_1"}}`))
	}))
	defer srv.Close()

	s := NewTelnyxSender("KEY123", "+15550001234")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), OutboundMessage{ID: "1", To: "+919999999999", Body: "thanks"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.From != "+15550001234" || got.Text != "thanks" {
		t.Errorf("request = %+v", got)
	}

	err := s.Send(context.Background(), OutboundMessage{ID: "2", To: "+910000000000", Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid to number") {
		t.Errorf("err = %v", err)
	}
}
