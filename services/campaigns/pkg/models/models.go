package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, matching what browser clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// MaxAmount is the largest target or donation accepted, ₹10 crore. Amounts
// are stored as int64 paise.
var MaxAmount = decimal.NewFromInt(100_000_000)

// CampaignStatus is the review state of a campaign.
type CampaignStatus string

const (
	StatusPending  CampaignStatus = "pending"
	StatusApproved CampaignStatus = "approved"
	StatusRejected CampaignStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Campaign is a fundraising request submitted by a member of the public.
// TargetAmount is the amount still to be raised; donations decrement it
// and it never drops below zero.
type Campaign struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Story           string          `json:"story"`
	BeneficiaryName string          `json:"beneficiary_name,omitempty"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	UPIID           string          `json:"upi_id,omitempty"`
	BankAccount     string          `json:"bank_account,omitempty"`
	IFSCCode        string          `json:"ifsc_code,omitempty"`
	Phone           string          `json:"phone"`
	PhotoURL        string          `json:"photo_url,omitempty"`
	Status          CampaignStatus  `json:"status"`
	IsEmergency     bool            `json:"is_emergency"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsPublic reports whether the campaign may appear on public pages.
func (c *Campaign) IsPublic() bool {
	return c.Status == StatusApproved
}

// PublicCampaign is the donor-facing view of a campaign. The submitter's
// phone number and bank details are never exposed.
type PublicCampaign struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Story           string          `json:"story"`
	BeneficiaryName string          `json:"beneficiary_name,omitempty"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	Raised          decimal.Decimal `json:"raised"`
	UPIID           string          `json:"upi_id,omitempty"`
	PhotoURL        string          `json:"photo_url,omitempty"`
	IsEmergency     bool            `json:"is_emergency"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Public returns the donor-facing view of c.
func (c *Campaign) Public(raised decimal.Decimal) PublicCampaign {
	return PublicCampaign{
		ID:              c.ID,
		Name:            c.Name,
		Story:           c.Story,
		BeneficiaryName: c.BeneficiaryName,
		TargetAmount:    c.TargetAmount,
		Raised:          raised,
		UPIID:           c.UPIID,
		PhotoURL:        c.PhotoURL,
		IsEmergency:     c.IsEmergency,
		CreatedAt:       c.CreatedAt,
	}
}
