package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "carefund-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	db, err := New(tmpFile.Name())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func seedCampaign(t *testing.T, db *DB, name string, target int64) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Name:         name,
		Story:        "Help " + name,
		TargetAmount: decimal.NewFromInt(target),
		UPIID:        "fund@okaxis",
		Phone:        "9999999999",
	}
	if err := db.CreateCampaign(context.Background(), c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return c
}

func TestDB_CreateAndGetCampaign(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := seedCampaign(t, db, "Asha", 25000)
	if c.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := db.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got == nil {
		t.Fatal("GetCampaign returned nil")
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.IsEmergency {
		t.Error("new campaign should not be emergency")
	}
	if !got.TargetAmount.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("TargetAmount = %s, want 25000", got.TargetAmount)
	}
}

func TestDB_GetCampaignNotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetCampaign(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent campaign")
	}
}

func TestDB_Transitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("approve with emergency", func(t *testing.T) {
		c := seedCampaign(t, db, "A", 1000)
		got, err := db.Approve(ctx, c.ID, true)
		if err != nil {
			t.Fatalf("Approve: %v", err)
		}
		if got.Status != models.StatusApproved || !got.IsEmergency {
			t.Errorf("got status=%s emergency=%v, want approved/true", got.Status, got.IsEmergency)
		}
	})

	t.Run("approve without emergency", func(t *testing.T) {
		c := seedCampaign(t, db, "B", 1000)
		got, err := db.Approve(ctx, c.ID, false)
		if err != nil {
			t.Fatalf("Approve: %v", err)
		}
		if got.IsEmergency {
			t.Error("expected emergency=false")
		}
	})

	t.Run("reject is terminal", func(t *testing.T) {
		c := seedCampaign(t, db, "C", 1000)
		if _, err := db.Reject(ctx, c.ID); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		if _, err := db.Approve(ctx, c.ID, false); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Approve after reject: err = %v, want ErrInvalidTransition", err)
		}
		if _, err := db.ToggleEmergency(ctx, c.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Toggle after reject: err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("toggle twice restores flag", func(t *testing.T) {
		c := seedCampaign(t, db, "D", 1000)
		if _, err := db.Approve(ctx, c.ID, false); err != nil {
			t.Fatalf("Approve: %v", err)
		}
		first, err := db.ToggleEmergency(ctx, c.ID)
		if err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if !first.IsEmergency {
			t.Error("first toggle should set emergency")
		}
		second, err := db.ToggleEmergency(ctx, c.ID)
		if err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if second.IsEmergency {
			t.Error("second toggle should clear emergency")
		}
	})

	t.Run("toggle pending rejected", func(t *testing.T) {
		c := seedCampaign(t, db, "E", 1000)
		if _, err := db.ToggleEmergency(ctx, c.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := db.Approve(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDB_ListCampaignsOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	insert := func(name string, offset time.Duration, status models.CampaignStatus, emergency bool) {
		c := &models.Campaign{
			Name:         name,
			Story:        "s",
			TargetAmount: decimal.NewFromInt(100),
			UPIID:        "x@upi",
			Phone:        "9999999999",
			Status:       status,
			IsEmergency:  emergency,
			CreatedAt:    base.Add(offset),
		}
		if err := db.CreateCampaign(ctx, c); err != nil {
			t.Fatalf("CreateCampaign(%s): %v", name, err)
		}
	}

	insert("old-normal", 1*time.Hour, models.StatusApproved, false)
	insert("new-normal", 3*time.Hour, models.StatusApproved, false)
	insert("old-emergency", 0, models.StatusApproved, true)
	insert("pending", 5*time.Hour, models.StatusPending, false)
	insert("rejected", 6*time.Hour, models.StatusRejected, false)

	list, err := db.ListCampaigns(ctx, models.StatusApproved, 0)
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	want := []string{"old-emergency", "new-normal", "old-normal"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, name)
		}
	}

	limited, err := db.ListCampaigns(ctx, models.StatusApproved, 2)
	if err != nil {
		t.Fatalf("ListCampaigns limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}

	if _, err := db.ListCampaigns(ctx, "archived", 0); err == nil {
		t.Error("unknown status should fail")
	}

	counts, err := db.CountCampaigns(ctx)
	if err != nil {
		t.Fatalf("CountCampaigns: %v", err)
	}
	if counts.Approved != 3 || counts.Pending != 1 || counts.Rejected != 1 || counts.Emergency != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestDB_RecordDonationDecrementsTarget(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	c := seedCampaign(t, db, "Asha", 25000)

	got, err := db.RecordDonation(ctx, &models.Donation{
		CampaignID:  c.ID,
		Amount:      decimal.NewFromInt(100),
		DonorMobile: "9999999999",
		Method:      models.MethodUPIManual,
	})
	if err != nil {
		t.Fatalf("RecordDonation: %v", err)
	}
	if !got.TargetAmount.Equal(decimal.NewFromInt(24900)) {
		t.Errorf("target = %s, want 24900", got.TargetAmount)
	}

	donations, err := db.ListDonations(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	if len(donations) != 1 {
		t.Fatalf("donations = %d, want 1", len(donations))
	}
	if !donations[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("amount = %s, want 100", donations[0].Amount)
	}
	if donations[0].Status != models.DonationCompleted {
		t.Errorf("status = %q, want completed", donations[0].Status)
	}
}

func TestDB_RecordDonationClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	c := seedCampaign(t, db, "Small", 500)

	for _, amt := range []int64{300, 300} {
		if _, err := db.RecordDonation(ctx, &models.Donation{
			CampaignID: c.ID,
			Amount:     decimal.NewFromInt(amt),
			Method:     models.MethodUPIManual,
		}); err != nil {
			t.Fatalf("RecordDonation: %v", err)
		}
	}

	got, _ := db.GetCampaign(ctx, c.ID)
	if !got.TargetAmount.IsZero() {
		t.Errorf("target = %s, want 0", got.TargetAmount)
	}

	totals, err := db.DonationTotals(ctx)
	if err != nil {
		t.Fatalf("DonationTotals: %v", err)
	}
	if !totals.Total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("total = %s, want 600", totals.Total)
	}
	if !totals.Raised(c.ID).Equal(decimal.NewFromInt(600)) {
		t.Errorf("raised = %s, want 600", totals.Raised(c.ID))
	}
}

func TestDB_RecordDonationGeneralFund(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.RecordDonation(context.Background(), &models.Donation{
		Amount: decimal.NewFromInt(250),
		Method: models.MethodRazorpay,
	})
	if err != nil {
		t.Fatalf("RecordDonation: %v", err)
	}
	if got != nil {
		t.Error("general fund donation should not return a campaign")
	}
}

func TestDB_RecordDonationUnknownCampaign(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.RecordDonation(ctx, &models.Donation{
		CampaignID: "missing",
		Amount:     decimal.NewFromInt(10),
		Method:     models.MethodUPIManual,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The ledger insert must have been rolled back.
	donations, _ := db.ListDonations(ctx, "missing", 0)
	if len(donations) != 0 {
		t.Errorf("donations = %d, want 0", len(donations))
	}
}

func TestDB_ConcurrentDonationsNoLostUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	c := seedCampaign(t, db, "Busy", 10000)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.RecordDonation(ctx, &models.Donation{
				CampaignID: c.ID,
				Amount:     decimal.NewFromInt(150),
				Method:     models.MethodUPIManual,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordDonation: %v", err)
		}
	}

	got, _ := db.GetCampaign(ctx, c.ID)
	if want := decimal.NewFromInt(10000 - n*150); !got.TargetAmount.Equal(want) {
		t.Errorf("target = %s, want %s", got.TargetAmount, want)
	}
}

func TestDB_CompletePaymentOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	c := seedCampaign(t, db, "Card", 1000)

	order := &models.PaymentOrder{
		ID:         "order_abc",
		CampaignID: c.ID,
		Amount:     decimal.NewFromInt(250),
		DonorName:  "Ravi",
	}
	if err := db.CreatePaymentOrder(ctx, order); err != nil {
		t.Fatalf("CreatePaymentOrder: %v", err)
	}

	o, applied, err := db.CompletePaymentOrder(ctx, "order_abc", "pay_1", &models.Donation{
		DonorName: "Ravi",
		Method:    models.MethodRazorpay,
	})
	if err != nil {
		t.Fatalf("CompletePaymentOrder: %v", err)
	}
	if !applied || o.Status != models.OrderPaid || o.PaymentID != "pay_1" {
		t.Errorf("applied=%v order=%+v", applied, o)
	}

	// Replay is a no-op.
	_, applied, err = db.CompletePaymentOrder(ctx, "order_abc", "pay_1", &models.Donation{Method: models.MethodRazorpay})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if applied {
		t.Error("replay should not apply twice")
	}

	got, _ := db.GetCampaign(ctx, c.ID)
	if !got.TargetAmount.Equal(decimal.NewFromInt(750)) {
		t.Errorf("target = %s, want 750", got.TargetAmount)
	}
	donations, _ := db.ListDonations(ctx, c.ID, 0)
	if len(donations) != 1 || donations[0].PaymentRef != "pay_1" {
		t.Errorf("donations = %+v", donations)
	}

	if _, _, err := db.CompletePaymentOrder(ctx, "order_missing", "pay_2", &models.Donation{}); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestPaiseConversion(t *testing.T) {
	if got := ToPaise(decimal.RequireFromString("100.255")); got != 10026 {
		t.Errorf("ToPaise = %d, want 10026", got)
	}
	if got := FromPaise(2490000); !got.Equal(decimal.NewFromInt(24900)) {
		t.Errorf("FromPaise = %s", got)
	}
}
