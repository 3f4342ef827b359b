package campaign

import (
	"context"
	"fmt"

	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

// PublicStats are the landing page counters.
type PublicStats struct {
	ActiveCampaigns int             `json:"active_campaigns"`
	TotalRaised     decimal.Decimal `json:"total_raised"`
	TotalRaisedLakh string          `json:"total_raised_lakh"`
	SuccessRate     int             `json:"success_rate"` // percent of decided campaigns that were approved
}

// Listing is the public landing page payload.
type Listing struct {
	Campaigns []models.PublicCampaign `json:"campaigns"`
	Stats     PublicStats             `json:"stats"`
}

// ListPublic returns the first page of approved campaigns, emergencies
// first and newest first, each with the amount raised so far.
func (s *Service) ListPublic(ctx context.Context) ([]models.PublicCampaign, error) {
	list, err := s.store.ListCampaigns(ctx, models.StatusApproved, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	totals, err := s.store.DonationTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("donation totals: %w", err)
	}

	out := make([]models.PublicCampaign, 0, len(list))
	for i := range list {
		out = append(out, list[i].Public(totals.Raised(list[i].ID)))
	}
	return out, nil
}

// PublicStats computes the landing page counters.
func (s *Service) PublicStats(ctx context.Context) (*PublicStats, error) {
	counts, err := s.store.CountCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}
	totals, err := s.store.DonationTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("donation totals: %w", err)
	}

	return &PublicStats{
		ActiveCampaigns: counts.Approved,
		TotalRaised:     totals.Total,
		TotalRaisedLakh: Lakh(totals.Total),
		SuccessRate:     SuccessRate(counts),
	}, nil
}

// Listing returns the public campaigns together with the stats.
func (s *Service) Listing(ctx context.Context) (*Listing, error) {
	campaigns, err := s.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.PublicStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Listing{Campaigns: campaigns, Stats: *stats}, nil
}

// SuccessRate is approved / (approved + rejected) as a rounded percentage,
// or 0 when nothing has been decided yet.
func SuccessRate(c models.CampaignCounts) int {
	decided := c.Approved + c.Rejected
	if decided == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(c.Approved * 100)).Div(decimal.NewFromInt(int64(decided))).Round(0).IntPart())
}

// PublicCampaign returns one approved campaign, or nil when it does not
// exist or is not published.
func (s *Service) PublicCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.IsPublic() {
		return nil, nil
	}
	return c, nil
}
