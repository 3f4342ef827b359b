package payment

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be at least ₹1")
	ErrAmountTooLarge      = errors.New("amount must be ₹10 crore or less")
	ErrCampaignUnavailable = errors.New("campaign is not accepting donations")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrNotConfigured       = errors.New("payment gateway is not configured")
)
