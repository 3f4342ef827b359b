// Package campaign implements the campaign lifecycle: public submission,
// admin review, the public listing and manually confirmed UPI donations.
package campaign

import (
	"context"
	"html"
	"strings"

	"github.com/communitycare/carefund/internal/receipts"
	"github.com/communitycare/carefund/services/campaigns/internal/ratelimit"
	"github.com/communitycare/carefund/services/campaigns/internal/storage"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/microcosm-cc/bluemonday"
)

// Store is the persistence the campaign flows need. Both database backends
// satisfy it.
type Store interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, status models.CampaignStatus, limit int) ([]models.Campaign, error)
	Approve(ctx context.Context, id string, emergency bool) (*models.Campaign, error)
	Reject(ctx context.Context, id string) (*models.Campaign, error)
	ToggleEmergency(ctx context.Context, id string) (*models.Campaign, error)
	CountCampaigns(ctx context.Context) (models.CampaignCounts, error)
	RecordDonation(ctx context.Context, d *models.Donation) (*models.Campaign, error)
	DonationTotals(ctx context.Context) (models.DonationTotals, error)
	ListDonations(ctx context.Context, campaignID string, limit int) ([]models.Donation, error)
}

// Options configures a Service.
type Options struct {
	PageSize     int
	MerchantUPI  string // payee address for QR donations
	MerchantName string
	// DonationLimiter bounds "I Paid" confirmations per donor mobile.
	DonationLimiter ratelimit.Limiter
}

// Service coordinates the campaign flows.
type Service struct {
	store     Store
	files     storage.Store
	receipts  receipts.Publisher
	sanitizer *bluemonday.Policy
	opts      Options
}

// NewService creates a Service. files and pub may be nil: photo uploads are
// then rejected and receipts are not sent.
func NewService(store Store, files storage.Store, pub receipts.Publisher, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 6
	}
	if opts.MerchantName == "" {
		opts.MerchantName = "Community Care Fund"
	}
	if pub == nil {
		pub = receipts.LogPublisher{}
	}
	return &Service{
		store:     store,
		files:     files,
		receipts:  pub,
		sanitizer: bluemonday.StrictPolicy(),
		opts:      opts,
	}
}

// PageSize is the number of campaigns on the public listing.
func (s *Service) PageSize() int {
	return s.opts.PageSize
}

// clean strips markup from user text. The policy escapes entities, which
// are unescaped again because templates escape on output.
func (s *Service) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(v)))
}
