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

// receipt-sender consumes donation receipts from the "sms-outbox" topic and
// delivers them by SMS.
//
// Environment:
//
//	KAFKA_BROKERS       comma-separated broker list, e.g. "kafka:9092"
//	TELNYX_API_KEY      Telnyx API v2 key
//	TELNYX_FROM_NUMBER  E.164 sending number
//	DRY_RUN             "true" logs receipts instead of sending them
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/communitycare/carefund/internal/receipts"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("receipt-sender %s (commit %s, built %s)\n", version, commit, buildTime)
		return
	}

	brokers := requireEnv("KAFKA_BROKERS")

	var sender receipts.Sender
	if os.Getenv("DRY_RUN") == "true" {
		sender = receipts.LogSender{}
		log.Println("receipt-sender: DRY_RUN enabled, messages will only be logged")
	} else {
		sender = receipts.NewTelnyxSender(requireEnv("TELNYX_API_KEY"), requireEnv("TELNYX_FROM_NUMBER"))
	}

	consumer := receipts.NewConsumer(strings.Split(brokers, ","), sender)
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Printf("receipt-sender: error closing consumer: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("receipt-sender: starting %s (brokers=%s)", version, brokers)
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("receipt-sender: fatal error: %v", err)
	}
	log.Println("receipt-sender: shutdown complete")
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("receipt-sender: required environment variable %q is not set", key)
	}
	return v
}
