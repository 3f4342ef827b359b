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

// Package receipts delivers donation receipts by SMS. The web service
// publishes OutboundMessages to Kafka; receipt-sender consumes and sends them.
package receipts

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutboundMessage is the JSON schema of the sms-outbox topic:
//
//	{"id": "<uuid>", "to": "+919876543210", "body": "..."}
type OutboundMessage struct {
	// ID correlates the receipt with the donation it acknowledges.
	ID string `json:"id"`

	// To is an E.164 number.
	To string `json:"to"`

	Body string `json:"body"`
}

// Receipt describes one recorded donation.
type Receipt struct {
	DonationID   string
	To           string // E.164
	DonorName    string
	Amount       decimal.Decimal
	CampaignName string // empty for the general fund
}

// Message renders r as an SMS.
func (r Receipt) Message() OutboundMessage {
	var b strings.Builder
	b.WriteString("CareFund: Thank you")
	if name := strings.TrimSpace(r.DonorName); name != "" {
		b.WriteString(" " + name)
	}
	target := "the Community Care fund"
	if r.CampaignName != "" {
		target = r.CampaignName
	}
	fmt.Fprintf(&b, "! We recorded your donation of Rs %s to %s.", r.Amount.StringFixedBank(2), target)

	id := r.DonationID
	if id == "" {
		id = uuid.NewString()
	}
	fmt.Fprintf(&b, " Ref %s", strings.ToUpper(strings.SplitN(id, "-", 2)[0]))

	return OutboundMessage{ID: id, To: r.To, Body: b.String()}
}
