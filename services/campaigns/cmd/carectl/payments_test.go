package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/payment"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
)

func TestDonationsAndOrderCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carectl.db")
	id := seed(t, path)

	db, err := database.New(path)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	ctx := context.Background()
	db.Approve(ctx, id, false)
	if _, err := db.RecordDonation(ctx, &models.Donation{CampaignID: id, Amount: decimal.NewFromInt(250), Method: models.MethodUPIManual}); err != nil {
		t.Fatalf("RecordDonation: %v", err)
	}
	if _, err := db.RecordDonation(ctx, &models.Donation{Amount: decimal.NewFromInt(40), Method: models.MethodUPIManual}); err != nil {
		t.Fatalf("RecordDonation: %v", err)
	}
	if err := db.CreatePaymentOrder(ctx, &models.PaymentOrder{ID: "order_1", CampaignID: id, Amount: decimal.NewFromInt(500), Currency: "INR"}); err != nil {
		t.Fatalf("CreatePaymentOrder: %v", err)
	}
	db.Close()

	out, err := run(t, "--db", path, "--json", "donations", id)
	if err != nil {
		t.Fatalf("donations: %v", err)
	}
	var list []models.Donation
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(list) != 1 || !list[0].Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("donations for campaign = %+v", list)
	}

	out, err = run(t, "--db", path, "donations")
	if err != nil {
		t.Fatalf("donations: %v", err)
	}
	if !strings.Contains(out, "(general)") || !strings.Contains(out, "250") {
		t.Errorf("donations output:\n%s", out)
	}

	out, err = run(t, "--db", path, "order", "order_1")
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if !strings.Contains(out, "created") || !strings.Contains(out, "500") {
		t.Errorf("order output:\n%s", out)
	}
	if _, err := run(t, "--db", path, "order", "order_missing"); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("missing order err = %v", err)
	}
}

// checkoutServer answers the config, order and verify endpoints the way the
// campaigns server does, accepting only signature "good".
func checkoutServer(t *testing.T, enabled bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/payments/config":
			json.NewEncoder(w).Encode(map[string]bool{"enabled": enabled})
		case "/api/payments/orders":
			var req payment.CheckoutRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(payment.CheckoutOrder{
				KeyID: "rzp_test", Amount: database.ToPaise(req.Amount), Currency: "INR", OrderID: "order_7",
			})
		case "/api/payments/verify":
			var req payment.VerifyRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.OrderID != "order_7" || req.Signature != "good" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(map[string]string{"error": "payment verification failed"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "applied": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPayCommand(t *testing.T) {
	srv := checkoutServer(t, true)

	tests := []struct {
		name    string
		input   string
		want    payment.Outcome
		wantErr bool
	}{
		{"success", "pay_1 good\n", payment.OutcomeSuccess, false},
		{"cancelled", "\n", payment.OutcomeCancelled, false},
		{"bad signature", "pay_1 forged\n", payment.OutcomeVerificationFailed, true},
		{"malformed input", "pay_1\n", payment.OutcomeFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runWithInput(t, tt.input, "pay", "--server", srv.URL, "--amount", "500", "--name", "Meera")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, "Rs 500") || !strings.Contains(out, "order_7") {
				t.Errorf("checkout details missing:\n%s", out)
			}
			if !strings.Contains(out, tt.want.Message()) {
				t.Errorf("output missing %q:\n%s", tt.want.Message(), out)
			}
		})
	}
}

func TestPayCommand_GatewayDisabled(t *testing.T) {
	srv := checkoutServer(t, false)

	out, err := runWithInput(t, "", "pay", "--server", srv.URL, "--amount", "500")
	if !errors.Is(err, payment.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if !strings.Contains(out, payment.OutcomeSDKLoadFailed.Message()) {
		t.Errorf("output:\n%s", out)
	}

	if _, err := runWithInput(t, "", "pay", "--server", srv.URL, "--amount", "lots"); err == nil {
		t.Error("invalid amount should fail")
	}
}
