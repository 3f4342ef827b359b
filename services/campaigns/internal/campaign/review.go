package campaign

import (
	"context"
	"fmt"
	"log"

	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

// AdminStats summarises the review queue and money raised.
type AdminStats struct {
	Pending            int             `json:"pending"`
	Approved           int             `json:"approved"`
	Rejected           int             `json:"rejected"`
	Emergency          int             `json:"emergency"`
	TotalDonations     decimal.Decimal `json:"total_donations"`
	TotalDonationsLakh string          `json:"total_donations_lakh"`
}

// Overview is everything the admin panel shows.
type Overview struct {
	Pending  []models.Campaign `json:"pending"`
	Approved []models.Campaign `json:"approved"`
	Stats    AdminStats        `json:"stats"`
}

// Approve publishes a pending campaign.
func (s *Service) Approve(ctx context.Context, id string, emergency bool) (*models.Campaign, error) {
	c, err := s.store.Approve(ctx, id, emergency)
	if err != nil {
		return nil, err
	}
	log.Printf("campaign: approved %s (emergency=%v)", id, emergency)
	return c, nil
}

// Reject turns a pending campaign down for good.
func (s *Service) Reject(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.store.Reject(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("campaign: rejected %s", id)
	return c, nil
}

// ToggleEmergency flips the emergency flag of an approved campaign.
func (s *Service) ToggleEmergency(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.store.ToggleEmergency(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("campaign: %s emergency=%v", id, c.IsEmergency)
	return c, nil
}

// Overview re-reads the review queue, the published campaigns and the
// dashboard stats.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	pending, err := s.store.ListCampaigns(ctx, models.StatusPending, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	approved, err := s.store.ListCampaigns(ctx, models.StatusApproved, 0)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	counts, err := s.store.CountCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}
	totals, err := s.store.DonationTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("donation totals: %w", err)
	}

	return &Overview{
		Pending:  pending,
		Approved: approved,
		Stats: AdminStats{
			Pending:            counts.Pending,
			Approved:           counts.Approved,
			Rejected:           counts.Rejected,
			Emergency:          counts.Emergency,
			TotalDonations:     totals.Total,
			TotalDonationsLakh: Lakh(totals.Total),
		},
	}, nil
}

var lakh = decimal.NewFromInt(100000)

// Donations returns the newest recorded donations, for one campaign or for
// all of them when campaignID is empty.
func (s *Service) Donations(ctx context.Context, campaignID string, limit int) ([]models.Donation, error) {
	list, err := s.store.ListDonations(ctx, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return list, nil
}

// Lakh formats an INR amount in lakh with one decimal, e.g. 250000 → "2.5".
func Lakh(d decimal.Decimal) string {
	return d.Div(lakh).StringFixed(1)
}
