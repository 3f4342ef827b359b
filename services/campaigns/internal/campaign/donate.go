package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/communitycare/carefund/internal/receipts"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/storage"
	"github.com/communitycare/carefund/services/campaigns/internal/upi"
	"github.com/communitycare/carefund/services/campaigns/pkg/identity"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

// ManualDonation is a donor's "I Paid" confirmation of a UPI transfer.
type ManualDonation struct {
	CampaignID string // empty for the general fund
	Amount     string
	Mobile     string
	Name       string
	Screenshot []byte
}

// DonationResult is the recorded donation and the campaign after the
// target was reduced.
type DonationResult struct {
	Donation        *models.Donation `json:"donation"`
	Campaign        *models.Campaign `json:"-"`
	RemainingTarget *decimal.Decimal `json:"remaining_target,omitempty"`
	Message         string           `json:"message"`
}

// Donate records a manual UPI donation and reduces the campaign target by
// its amount, never below zero. Nothing verifies the transfer itself.
func (s *Service) Donate(ctx context.Context, in ManualDonation) (*DonationResult, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || !amount.Round(2).IsPositive() {
		return nil, invalid("amount", "enter a valid donation amount")
	}
	amount = amount.Round(2)
	if amount.GreaterThan(models.MaxAmount) {
		return nil, invalid("amount", "donation must be ₹10 crore or less")
	}
	if strings.TrimSpace(in.Mobile) == "" {
		return nil, invalid("mobile", "mobile number is required")
	}
	if !identity.ValidMobile(in.Mobile) {
		return nil, invalid("mobile", "enter a valid 10-digit mobile number")
	}

	var campaign *models.Campaign
	if in.CampaignID != "" {
		campaign, err = s.PublicCampaign(ctx, in.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("load campaign: %w", err)
		}
		if campaign == nil {
			return nil, database.ErrNotFound
		}
	}

	if s.opts.DonationLimiter != nil {
		ok, err := s.opts.DonationLimiter.Allow(ctx, identity.MobileHash(in.Mobile))
		if err != nil {
			log.Printf("campaign: rate limiter: %v", err)
		} else if !ok {
			return nil, ErrRateLimited
		}
	}

	d := &models.Donation{
		CampaignID:  in.CampaignID,
		Amount:      amount,
		DonorName:   s.clean(in.Name),
		DonorMobile: identity.NormalizeMobile(in.Mobile),
		Method:      models.MethodUPIManual,
	}

	if len(in.Screenshot) > 0 && s.files != nil {
		url, err := storage.SaveImage(ctx, s.files, "screenshots", in.Screenshot)
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrNotImage) {
			return nil, invalid("screenshot", err.Error())
		}
		if err != nil {
			return nil, fmt.Errorf("save screenshot: %w", err)
		}
		d.ScreenshotURL = url
	}

	updated, err := s.store.RecordDonation(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("record donation: %w", err)
	}
	log.Printf("campaign: donation %s of ₹%s to %q from %s", d.ID, d.Amount, d.CampaignID, identity.Mask(in.Mobile))

	s.sendReceipt(d, updated)

	res := &DonationResult{
		Donation: d,
		Campaign: updated,
		Message:  "Thank you! Your donation has been recorded.",
	}
	if updated != nil {
		res.RemainingTarget = &updated.TargetAmount
	}
	return res, nil
}

// sendReceipt publishes an SMS receipt. Failures are only logged.
func (s *Service) sendReceipt(d *models.Donation, c *models.Campaign) {
	r := receipts.Receipt{
		DonationID: d.ID,
		To:         identity.E164(d.DonorMobile),
		DonorName:  d.DonorName,
		Amount:     d.Amount,
	}
	if c != nil {
		r.CampaignName = c.Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.receipts.Publish(ctx, r.Message()); err != nil {
		log.Printf("campaign: receipt for donation %s not published: %v", d.ID, err)
	}
}

// UPIInfo is the payment link shown next to a QR code.
type UPIInfo struct {
	URI              string          `json:"uri"`
	UPIID            string          `json:"upi_id"`
	PayeeName        string          `json:"payee_name"`
	Amount           decimal.Decimal `json:"amount"`
	BeneficiaryUPIID string          `json:"beneficiary_upi_id,omitempty"`
}

// UPI returns the pay link for a campaign, or for the general fund when
// campaignID is empty. QR payments go to the merchant account and carry the
// campaign name; a zero amount lets the donor choose.
func (s *Service) UPI(ctx context.Context, campaignID string, amount decimal.Decimal) (*UPIInfo, error) {
	if amount.IsNegative() {
		return nil, invalid("amount", "amount cannot be negative")
	}
	if amount.GreaterThan(models.MaxAmount) {
		return nil, invalid("amount", "amount must be ₹10 crore or less")
	}

	info := &UPIInfo{UPIID: s.opts.MerchantUPI, PayeeName: s.opts.MerchantName, Amount: amount}
	if campaignID != "" {
		c, err := s.PublicCampaign(ctx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("load campaign: %w", err)
		}
		if c == nil {
			return nil, database.ErrNotFound
		}
		info.PayeeName = c.Name
		info.BeneficiaryUPIID = c.UPIID
	}

	info.URI = upi.BuildURI(upi.Payment{
		PayeeAddress: info.UPIID,
		PayeeName:    info.PayeeName,
		Amount:       amount,
	})
	return info, nil
}

// QRCode renders the UPI link for a campaign as a PNG with the payee name
// as caption.
func (s *Service) QRCode(ctx context.Context, campaignID string, amount decimal.Decimal) ([]byte, *UPIInfo, error) {
	info, err := s.UPI(ctx, campaignID, amount)
	if err != nil {
		return nil, nil, err
	}
	png, err := upi.RenderPNG(info.URI, upi.QROptions{Caption: info.PayeeName})
	if err != nil {
		return nil, nil, fmt.Errorf("render qr: %w", err)
	}
	return png, info, nil
}
