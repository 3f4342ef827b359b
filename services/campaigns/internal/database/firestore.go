package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	campaignsCollection = "campaigns"
	donationsCollection = "donations"
	ordersCollection    = "payment_orders"
)

// FirestoreDB stores campaigns, donations and payment orders in Cloud
// Firestore. It implements the same operations as DB; writes that touch more
// than one document run inside a Firestore transaction.
type FirestoreDB struct {
	client *firestore.Client
}

// NewFirestore connects to the given Firestore database. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*FirestoreDB, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreDB{client: client}, nil
}

// Close releases the Firestore client.
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

type campaignDoc struct {
	Name            string    `firestore:"name"`
	Story           string    `firestore:"story"`
	BeneficiaryName string    `firestore:"beneficiary_name"`
	TargetPaise     int64     `firestore:"target_paise"`
	UPIID           string    `firestore:"upi_id"`
	BankAccount     string    `firestore:"bank_account"`
	IFSCCode        string    `firestore:"ifsc_code"`
	Phone           string    `firestore:"phone"`
	PhotoURL        string    `firestore:"photo_url"`
	Status          string    `firestore:"status"`
	IsEmergency     bool      `firestore:"is_emergency"`
	CreatedAt       time.Time `firestore:"created_at"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

func (d campaignDoc) model(id string) *models.Campaign {
	return &models.Campaign{
		ID:              id,
		Name:            d.Name,
		Story:           d.Story,
		BeneficiaryName: d.BeneficiaryName,
		TargetAmount:    FromPaise(d.TargetPaise),
		UPIID:           d.UPIID,
		BankAccount:     d.BankAccount,
		IFSCCode:        d.IFSCCode,
		Phone:           d.Phone,
		PhotoURL:        d.PhotoURL,
		Status:          models.CampaignStatus(d.Status),
		IsEmergency:     d.IsEmergency,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type donationDoc struct {
	CampaignID    string    `firestore:"campaign_id"`
	AmountPaise   int64     `firestore:"amount_paise"`
	DonorName     string    `firestore:"donor_name"`
	DonorEmail    string    `firestore:"donor_email"`
	DonorMobile   string    `firestore:"donor_mobile"`
	ScreenshotURL string    `firestore:"screenshot_url"`
	Method        string    `firestore:"method"`
	PaymentRef    string    `firestore:"payment_ref"`
	Status        string    `firestore:"status"`
	CreatedAt     time.Time `firestore:"created_at"`
}

type orderDoc struct {
	CampaignID  string    `firestore:"campaign_id"`
	AmountPaise int64     `firestore:"amount_paise"`
	Currency    string    `firestore:"currency"`
	DonorName   string    `firestore:"donor_name"`
	DonorEmail  string    `firestore:"donor_email"`
	Status      string    `firestore:"status"`
	PaymentID   string    `firestore:"payment_id"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func (d orderDoc) model(id string) *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:         id,
		CampaignID: d.CampaignID,
		Amount:     FromPaise(d.AmountPaise),
		Currency:   d.Currency,
		DonorName:  d.DonorName,
		DonorEmail: d.DonorEmail,
		Status:     models.OrderStatus(d.Status),
		PaymentID:  d.PaymentID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// --- Campaign operations ---

// CreateCampaign inserts a new campaign document.
func (db *FirestoreDB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	prepareCampaign(c)
	_, err := db.client.Collection(campaignsCollection).Doc(c.ID).Create(ctx, campaignDoc{
		Name:            c.Name,
		Story:           c.Story,
		BeneficiaryName: c.BeneficiaryName,
		TargetPaise:     ToPaise(c.TargetAmount),
		UPIID:           c.UPIID,
		BankAccount:     c.BankAccount,
		IFSCCode:        c.IFSCCode,
		Phone:           c.Phone,
		PhotoURL:        c.PhotoURL,
		Status:          string(c.Status),
		IsEmergency:     c.IsEmergency,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	})
	return err
}

// GetCampaign returns a campaign by ID, or nil if it does not exist.
func (db *FirestoreDB) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	snap, err := db.client.Collection(campaignsCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc campaignDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(snap.Ref.ID), nil
}

// ListCampaigns returns campaigns with the given status, emergencies first
// and then newest first. Requires a composite index on
// (status, is_emergency DESC, created_at DESC).
func (db *FirestoreDB) ListCampaigns(ctx context.Context, st models.CampaignStatus, limit int) ([]models.Campaign, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("unknown campaign status %q", st)
	}
	q := db.client.Collection(campaignsCollection).
		Where("status", "==", string(st)).
		OrderBy("is_emergency", firestore.Desc).
		OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []models.Campaign
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc campaignDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.model(snap.Ref.ID))
	}
	return out, nil
}

// Approve moves a pending campaign to approved and sets its emergency flag.
func (db *FirestoreDB) Approve(ctx context.Context, id string, emergency bool) (*models.Campaign, error) {
	return db.transition(ctx, id, models.StatusPending, func(doc *campaignDoc) {
		doc.Status = string(models.StatusApproved)
		doc.IsEmergency = emergency
	})
}

// Reject moves a pending campaign to rejected.
func (db *FirestoreDB) Reject(ctx context.Context, id string) (*models.Campaign, error) {
	return db.transition(ctx, id, models.StatusPending, func(doc *campaignDoc) {
		doc.Status = string(models.StatusRejected)
	})
}

// ToggleEmergency flips the emergency flag of an approved campaign.
func (db *FirestoreDB) ToggleEmergency(ctx context.Context, id string) (*models.Campaign, error) {
	return db.transition(ctx, id, models.StatusApproved, func(doc *campaignDoc) {
		doc.IsEmergency = !doc.IsEmergency
	})
}

func (db *FirestoreDB) transition(ctx context.Context, id string, from models.CampaignStatus, apply func(*campaignDoc)) (*models.Campaign, error) {
	ref := db.client.Collection(campaignsCollection).Doc(id)
	var result *models.Campaign

	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var doc campaignDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Status != string(from) {
			return ErrInvalidTransition
		}

		apply(&doc)
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: doc.Status},
			{Path: "is_emergency", Value: doc.IsEmergency},
			{Path: "updated_at", Value: doc.UpdatedAt},
		}); err != nil {
			return err
		}
		result = doc.model(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountCampaigns returns per-status totals for the admin dashboard.
func (db *FirestoreDB) CountCampaigns(ctx context.Context) (models.CampaignCounts, error) {
	var counts models.CampaignCounts
	iter := db.client.Collection(campaignsCollection).Select("status", "is_emergency").Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return counts, err
		}
		var doc campaignDoc
		if err := snap.DataTo(&doc); err != nil {
			return counts, err
		}
		counts.Add(models.CampaignStatus(doc.Status), doc.IsEmergency, 1)
	}
	return counts, nil
}

// --- Donation operations ---

// RecordDonation appends d and lowers the campaign target in one
// transaction. Firestore retries the transaction on contention, so
// concurrent donations cannot overwrite each other.
func (db *FirestoreDB) RecordDonation(ctx context.Context, d *models.Donation) (*models.Campaign, error) {
	prepareDonation(d)
	var result *models.Campaign

	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		c, err := db.applyDonation(tx, d)
		result = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyDonation performs the campaign read first and then both writes,
// following Firestore's reads-before-writes rule for transactions.
func (db *FirestoreDB) applyDonation(tx *firestore.Transaction, d *models.Donation) (*models.Campaign, error) {
	var campaign *models.Campaign
	var campaignRef *firestore.DocumentRef
	if d.CampaignID != "" {
		campaignRef = db.client.Collection(campaignsCollection).Doc(d.CampaignID)
		snap, err := tx.Get(campaignRef)
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		var doc campaignDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		doc.TargetPaise -= ToPaise(d.Amount)
		if doc.TargetPaise < 0 {
			doc.TargetPaise = 0
		}
		doc.UpdatedAt = d.CreatedAt
		campaign = doc.model(d.CampaignID)
	}

	donationRef := db.client.Collection(donationsCollection).Doc(d.ID)
	if err := tx.Create(donationRef, donationDoc{
		CampaignID:    d.CampaignID,
		AmountPaise:   ToPaise(d.Amount),
		DonorName:     d.DonorName,
		DonorEmail:    d.DonorEmail,
		DonorMobile:   d.DonorMobile,
		ScreenshotURL: d.ScreenshotURL,
		Method:        string(d.Method),
		PaymentRef:    d.PaymentRef,
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt,
	}); err != nil {
		return nil, err
	}

	if campaignRef != nil {
		if err := tx.Update(campaignRef, []firestore.Update{
			{Path: "target_paise", Value: ToPaise(campaign.TargetAmount)},
			{Path: "updated_at", Value: campaign.UpdatedAt},
		}); err != nil {
			return nil, err
		}
	}
	return campaign, nil
}

// DonationTotals sums completed donations overall and per campaign.
func (db *FirestoreDB) DonationTotals(ctx context.Context) (models.DonationTotals, error) {
	totals := models.DonationTotals{ByCampaign: make(map[string]decimal.Decimal)}
	iter := db.client.Collection(donationsCollection).
		Where("status", "==", string(models.DonationCompleted)).
		Select("campaign_id", "amount_paise").
		Documents(ctx)
	defer iter.Stop()

	var all int64
	perCampaign := make(map[string]int64)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return totals, err
		}
		var doc donationDoc
		if err := snap.DataTo(&doc); err != nil {
			return totals, err
		}
		all += doc.AmountPaise
		if doc.CampaignID != "" {
			perCampaign[doc.CampaignID] += doc.AmountPaise
		}
	}

	totals.Total = FromPaise(all)
	for id, p := range perCampaign {
		totals.ByCampaign[id] = FromPaise(p)
	}
	return totals, nil
}

// ListDonations returns the newest donations, optionally for one campaign.
func (db *FirestoreDB) ListDonations(ctx context.Context, campaignID string, limit int) ([]models.Donation, error) {
	q := db.client.Collection(donationsCollection).Query
	if campaignID != "" {
		q = q.Where("campaign_id", "==", campaignID)
	}
	q = q.OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []models.Donation
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc donationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, models.Donation{
			ID:            snap.Ref.ID,
			CampaignID:    doc.CampaignID,
			Amount:        FromPaise(doc.AmountPaise),
			DonorName:     doc.DonorName,
			DonorEmail:    doc.DonorEmail,
			DonorMobile:   doc.DonorMobile,
			ScreenshotURL: doc.ScreenshotURL,
			Method:        models.DonationMethod(doc.Method),
			PaymentRef:    doc.PaymentRef,
			Status:        models.DonationStatus(doc.Status),
			CreatedAt:     doc.CreatedAt,
		})
	}
	return out, nil
}

// --- Payment order operations ---

// CreatePaymentOrder records a gateway order awaiting payment.
func (db *FirestoreDB) CreatePaymentOrder(ctx context.Context, o *models.PaymentOrder) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = models.OrderCreated
	}
	if o.Currency == "" {
		o.Currency = "INR"
	}
	_, err := db.client.Collection(ordersCollection).Doc(o.ID).Create(ctx, orderDoc{
		CampaignID:  o.CampaignID,
		AmountPaise: ToPaise(o.Amount),
		Currency:    o.Currency,
		DonorName:   o.DonorName,
		DonorEmail:  o.DonorEmail,
		Status:      string(o.Status),
		PaymentID:   o.PaymentID,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	})
	return err
}

// GetPaymentOrder returns an order by gateway id, or nil if unknown.
func (db *FirestoreDB) GetPaymentOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	snap, err := db.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.model(id), nil
}

// CompletePaymentOrder marks a created order paid and records d against
// it in one transaction. Replays of a paid order report applied=false.
func (db *FirestoreDB) CompletePaymentOrder(ctx context.Context, orderID, paymentID string, d *models.Donation) (*models.PaymentOrder, bool, error) {
	ref := db.client.Collection(ordersCollection).Doc(orderID)
	var order *models.PaymentOrder
	var applied bool

	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		var doc orderDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		order = doc.model(orderID)
		if order.Status == models.OrderPaid {
			return nil
		}

		d.ID = ""
		prepareDonation(d)
		d.CampaignID = order.CampaignID
		d.Amount = order.Amount
		d.PaymentRef = paymentID
		if d.DonorName == "" {
			d.DonorName = order.DonorName
		}
		if d.DonorEmail == "" {
			d.DonorEmail = order.DonorEmail
		}
		if _, err := db.applyDonation(tx, d); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(models.OrderPaid)},
			{Path: "payment_id", Value: paymentID},
			{Path: "updated_at", Value: now},
		}); err != nil {
			return err
		}
		order.Status = models.OrderPaid
		order.PaymentID = paymentID
		order.UpdatedAt = now
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, applied, nil
}
