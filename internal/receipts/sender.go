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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const telnyxBaseURL = "https://api.telnyx.com"

// Sender is what any SMS backend implements. The Kafka consumer only sees
// this interface, so a backend can be swapped without touching it.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// TelnyxSender sends SMS through the Telnyx v2 messages API with plain
// net/http. Telnyx has no maintained Go SDK and the API is a single POST.
//
// Any other provider, such as an SMS gateway running on an Android phone,
// can take its place by implementing Sender.
type TelnyxSender struct {
	apiKey     string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewTelnyxSender creates a TelnyxSender ready to use.
//
// apiKey is the Telnyx API v2 key (starts with "KEY").
// fromNumber is the provisioned Telnyx number in E.164 form, e.g. "+15550001234".
func NewTelnyxSender(apiKey, fromNumber string) *TelnyxSender {
	return &TelnyxSender{
		apiKey:     apiKey,
		fromNumber: fromNumber,
		baseURL:    telnyxBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// telnyxRequest is the JSON body of POST /v2/messages.
type telnyxRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// telnyxResponse keeps only the fields used for error reporting.
type telnyxResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Send posts msg to Telnyx. It returns an error when the request fails, the
// status is not 2xx, or the body carries API errors. The consumer decides
// whether to retry or dead-letter.
func (s *TelnyxSender) Send(ctx context.Context, msg OutboundMessage) error {
	body, err := json.Marshal(telnyxRequest{
		From: s.fromNumber,
		To:   msg.To,
		Text: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.baseURL, "/")+"/v2/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telnyx returned %d: %s", resp.StatusCode, string(respBody))
	}

	var telResp telnyxResponse
	if err := json.Unmarshal(respBody, &telResp); err == nil && len(telResp.Errors) > 0 {
		return fmt.Errorf("telnyx error %s: %s", telResp.Errors[0].Code, telResp.Errors[0].Detail)
	}
	return nil
}

// LogSender prints messages instead of sending them. receipt-sender uses it
// when DRY_RUN=true, so local runs and staging never text real donors.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, msg OutboundMessage) error {
	log.Printf("receipt-sender: dry run id=%s to=%s body=%q", msg.ID, msg.To, msg.Body)
	return nil
}
