package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationMethod records how a donation was paid.
type DonationMethod string

const (
	// MethodUPIManual is a donor-confirmed UPI transfer. It is trust-based:
	// nothing reconciles it against the bank.
	MethodUPIManual DonationMethod = "upi_manual"
	MethodRazorpay  DonationMethod = "razorpay"
)

// DonationStatus is the settlement state of a donation.
type DonationStatus string

const (
	DonationCompleted DonationStatus = "completed"
)

// Donation is an append-only ledger entry. An empty CampaignID means the
// gift went to the general community fund.
type Donation struct {
	ID            string          `json:"id"`
	CampaignID    string          `json:"campaign_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	DonorName     string          `json:"donor_name,omitempty"`
	DonorEmail    string          `json:"donor_email,omitempty"`
	DonorMobile   string          `json:"donor_mobile,omitempty"`
	ScreenshotURL string          `json:"screenshot_url,omitempty"`
	Method        DonationMethod  `json:"method"`
	PaymentRef    string          `json:"payment_ref,omitempty"`
	Status        DonationStatus  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderStatus tracks a gateway order from creation to capture.
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// PaymentOrder mirrors an order created with the card-payment gateway so a
// verified callback can be tied back to its amount and campaign.
type PaymentOrder struct {
	ID         string          `json:"id"` // gateway order id
	CampaignID string          `json:"campaign_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DonorName  string          `json:"donor_name,omitempty"`
	DonorEmail string          `json:"donor_email,omitempty"`
	Status     OrderStatus     `json:"status"`
	PaymentID  string          `json:"payment_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
