package campaign

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

func TestListPublic_OrderAndLimit(t *testing.T) {
	e := setupService(t, Options{PageSize: 6})
	ctx := context.Background()

	e.submit(t, validSubmission()) // pending, never listed
	var normal []string
	for i := 0; i < 5; i++ {
		normal = append(normal, e.submitApproved(t, fmt.Sprintf("Normal %d", i), false))
		time.Sleep(2 * time.Millisecond)
	}
	urgentOld := e.submitApproved(t, "Urgent old", true)
	time.Sleep(2 * time.Millisecond)
	urgentNew := e.submitApproved(t, "Urgent new", true)

	list, err := e.svc.ListPublic(ctx)
	if err != nil {
		t.Fatalf("ListPublic: %v", err)
	}
	if len(list) != 6 {
		t.Fatalf("len = %d, want 6", len(list))
	}
	if list[0].ID != urgentNew || list[1].ID != urgentOld {
		t.Errorf("emergencies should come first, newest first: %s, %s", list[0].Name, list[1].Name)
	}
	if list[2].ID != normal[4] || list[5].ID != normal[1] {
		t.Errorf("normal campaigns out of order: %s .. %s", list[2].Name, list[5].Name)
	}
	for _, c := range list {
		if c.Name == "Help Asha walk again" {
			t.Error("pending campaign listed")
		}
	}
}

func TestListPublic_Raised(t *testing.T) {
	e := setupService(t, Options{})
	ctx := context.Background()
	id := e.submitApproved(t, "Raised", false)

	for _, amt := range []string{"100", "250.50"} {
		if _, err := e.svc.Donate(ctx, ManualDonation{CampaignID: id, Amount: amt, Mobile: "9999999999"}); err != nil {
			t.Fatalf("Donate: %v", err)
		}
	}

	list, _ := e.svc.ListPublic(ctx)
	if len(list) != 1 {
		t.Fatalf("len = %d", len(list))
	}
	if !list[0].Raised.Equal(decimal.RequireFromString("350.50")) {
		t.Errorf("raised = %s", list[0].Raised)
	}
	if !list[0].TargetAmount.Equal(decimal.RequireFromString("24649.50")) {
		t.Errorf("target = %s", list[0].TargetAmount)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		counts models.CampaignCounts
		want   int
	}{
		{models.CampaignCounts{}, 0},
		{models.CampaignCounts{Pending: 5}, 0},
		{models.CampaignCounts{Approved: 3}, 100},
		{models.CampaignCounts{Approved: 2, Rejected: 1}, 67},
		{models.CampaignCounts{Approved: 1, Rejected: 7, Pending: 9}, 13},
	}
	for _, tt := range tests {
		if got := SuccessRate(tt.counts); got != tt.want {
			t.Errorf("SuccessRate(%+v) = %d, want %d", tt.counts, got, tt.want)
		}
	}
}

func TestPublicStats(t *testing.T) {
	e := setupService(t, Options{})
	ctx := context.Background()
	id := e.submitApproved(t, "One", false)
	e.submitApproved(t, "Two", true)
	r := e.submit(t, validSubmission())
	e.svc.Reject(ctx, r)
	e.svc.Donate(ctx, ManualDonation{CampaignID: id, Amount: "150000", Mobile: "9999999999"})

	st, err := e.svc.PublicStats(ctx)
	if err != nil {
		t.Fatalf("PublicStats: %v", err)
	}
	if st.ActiveCampaigns != 2 || st.SuccessRate != 67 || st.TotalRaisedLakh != "1.5" {
		t.Errorf("stats = %+v", st)
	}
}
