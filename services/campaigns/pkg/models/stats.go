package models

import "github.com/shopspring/decimal"

// CampaignCounts holds per-status campaign totals.
type CampaignCounts struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Emergency int `json:"emergency"` // approved and flagged emergency
}

// Add folds n campaigns with the given status and flag into the counts.
func (c *CampaignCounts) Add(status CampaignStatus, emergency bool, n int) {
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
		if emergency {
			c.Emergency += n
		}
	case StatusRejected:
		c.Rejected += n
	}
}

// DonationTotals sums completed donations.
type DonationTotals struct {
	Total      decimal.Decimal
	ByCampaign map[string]decimal.Decimal
}

// Raised returns the amount donated to one campaign.
func (t DonationTotals) Raised(campaignID string) decimal.Decimal {
	if v, ok := t.ByCampaign[campaignID]; ok {
		return v
	}
	return decimal.Zero
}
