package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/communitycare/carefund/services/campaigns/internal/storage"
	"github.com/communitycare/carefund/services/campaigns/internal/story"
	"github.com/communitycare/carefund/services/campaigns/internal/upi"
	"github.com/communitycare/carefund/services/campaigns/pkg/identity"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	// SubmitMessage confirms a stored submission.
	SubmitMessage = "Campaign submitted! It will be reviewed by our team and published once approved."
	// SubmitFailedMessage is shown for any store failure.
	SubmitFailedMessage = "Submission failed. Please try again or contact support if the problem persists."

	// RedirectTo and RedirectAfterMS tell the client where to go after a
	// successful submission.
	RedirectTo      = "/"
	RedirectAfterMS = 1500
)

var (
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// Submission is the raw form input of a new campaign.
type Submission struct {
	Name            string `json:"name"`
	BeneficiaryName string `json:"beneficiary_name"`
	Story           string `json:"story"`
	TargetAmount    string `json:"target_amount"`
	UPIID           string `json:"upi_id"`
	BankAccount     string `json:"bank_account"`
	IFSCCode        string `json:"ifsc_code"`
	Phone           string `json:"phone"`
	Photo           []byte `json:"-"`
}

// SubmitResult is returned for a stored submission.
type SubmitResult struct {
	Campaign        *models.Campaign `json:"campaign"`
	Message         string           `json:"message"`
	RedirectTo      string           `json:"redirect_to"`
	RedirectAfterMS int              `json:"redirect_after_ms"`
}

// Submit validates a submission and stores it as a pending campaign.
// Validation problems are returned as *ValidationError.
func (s *Service) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	c, err := s.validate(sub)
	if err != nil {
		return nil, err
	}

	if len(sub.Photo) > 0 {
		if s.files == nil {
			return nil, invalid("photo", "photo uploads are not available")
		}
		url, err := storage.SaveImage(ctx, s.files, "photos", sub.Photo)
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrNotImage) {
			return nil, invalid("photo", err.Error())
		}
		if err != nil {
			return nil, fmt.Errorf("save photo: %w", err)
		}
		c.PhotoURL = url
	} else {
		c.PhotoURL = story.FallbackImage(c.Name + " " + c.Story)
	}

	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	log.Printf("campaign: submitted %s (%q, target ₹%s)", c.ID, c.Name, c.TargetAmount)

	return &SubmitResult{
		Campaign:        c,
		Message:         SubmitMessage,
		RedirectTo:      RedirectTo,
		RedirectAfterMS: RedirectAfterMS,
	}, nil
}

func (s *Service) validate(sub Submission) (*models.Campaign, error) {
	c := &models.Campaign{
		Name:            s.clean(sub.Name),
		BeneficiaryName: s.clean(sub.BeneficiaryName),
		Story:           s.clean(sub.Story),
		UPIID:           strings.TrimSpace(sub.UPIID),
		BankAccount:     strings.ReplaceAll(strings.TrimSpace(sub.BankAccount), " ", ""),
		IFSCCode:        strings.ToUpper(strings.TrimSpace(sub.IFSCCode)),
	}

	if c.Name == "" {
		return nil, invalid("name", "campaign name is required")
	}
	if c.Story == "" {
		return nil, invalid("story", "story is required")
	}
	if utf8.RuneCountInString(c.Story) > story.MaxLength {
		return nil, invalid("story", fmt.Sprintf("story must be %d characters or fewer", story.MaxLength))
	}

	target, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(sub.TargetAmount), ",", ""))
	if err != nil {
		return nil, invalid("target_amount", "target amount must be a number")
	}
	target = target.Round(2)
	if !target.IsPositive() {
		return nil, invalid("target_amount", "target amount must be greater than zero")
	}
	if target.GreaterThan(models.MaxAmount) {
		return nil, invalid("target_amount", "target amount must be ₹10 crore or less")
	}
	c.TargetAmount = target

	if c.UPIID == "" && c.BankAccount == "" {
		return nil, invalid("upi_id", "provide a UPI ID or bank account details")
	}
	if c.UPIID != "" && !upi.ValidAddress(c.UPIID) {
		return nil, invalid("upi_id", "UPI ID must look like name@bank")
	}
	if c.BankAccount != "" || c.IFSCCode != "" {
		if !accountPattern.MatchString(c.BankAccount) {
			return nil, invalid("bank_account", "bank account number must be 9 to 18 digits")
		}
		if !ifscPattern.MatchString(c.IFSCCode) {
			return nil, invalid("ifsc_code", "IFSC code must look like ABCD0123456")
		}
	}

	if strings.TrimSpace(sub.Phone) == "" {
		return nil, invalid("phone", "contact phone is required")
	}
	if !identity.ValidMobile(sub.Phone) {
		return nil, invalid("phone", "enter a valid 10-digit mobile number")
	}
	c.Phone = identity.NormalizeMobile(sub.Phone)

	return c, nil
}
