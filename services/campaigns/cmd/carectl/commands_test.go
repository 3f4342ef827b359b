package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

func seed(t *testing.T, path string) string {
	t.Helper()
	db, err := database.New(path)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()

	c := &models.Campaign{
		Name:         "Flood relief",
		Story:        "Our village lost everything.",
		TargetAmount: decimal.NewFromInt(10000),
		UPIID:        "village@okaxis",
		Phone:        "919876543210",
	}
	if err := db.CreateCampaign(context.Background(), c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return c.ID
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReviewCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carectl.db")
	id := seed(t, path)

	out, err := run(t, "--db", path, "pending")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Flood relief") {
		t.Errorf("pending output missing campaign:\n%s", out)
	}

	if _, err := run(t, "--db", path, "approve", "--emergency", id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	out, err = run(t, "--db", path, "--json", "approved")
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	var list []models.Campaign
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(list) != 1 || !list[0].IsEmergency {
		t.Errorf("approved = %+v", list)
	}

	if _, err := run(t, "--db", path, "reject", id); err == nil {
		t.Error("rejecting an approved campaign should fail")
	}

	out, err = run(t, "--db", path, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Approved") || !strings.Contains(out, "Emergency") {
		t.Errorf("stats output:\n%s", out)
	}
}

func TestUPICommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carectl.db")
	id := seed(t, path)
	if _, err := run(t, "--db", path, "approve", id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	qr := filepath.Join(t.TempDir(), "qr.png")
	out, err := run(t, "--db", path, "upi", id, "--amount", "100", "--qr", qr)
	if err != nil {
		t.Fatalf("upi: %v", err)
	}
	if !strings.HasPrefix(out, "upi://pay?") || !strings.Contains(out, "am=100") {
		t.Errorf("upi output = %q", out)
	}
	if data, err := os.ReadFile(qr); err != nil || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("qr file not written as PNG: %v", err)
	}

	if _, err := run(t, "--db", path, "upi", "--amount", "abc"); err == nil {
		t.Error("invalid amount should fail")
	}
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "hash-password", "s3cret")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if err := auth.CheckPassword("s3cret", strings.TrimSpace(out)); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}
