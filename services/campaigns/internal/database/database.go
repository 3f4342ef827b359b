package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they do not exist. Money is stored in paise.
func migrate(conn *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS campaigns (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		story            TEXT NOT NULL,
		beneficiary_name TEXT NOT NULL DEFAULT '',
		target_paise     INTEGER NOT NULL CHECK (target_paise >= 0),
		upi_id           TEXT NOT NULL DEFAULT '',
		bank_account     TEXT NOT NULL DEFAULT '',
		ifsc_code        TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL,
		photo_url        TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		is_emergency     INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
	CREATE INDEX IF NOT EXISTS idx_campaigns_listing ON campaigns(status, is_emergency, created_at);

	CREATE TABLE IF NOT EXISTS donations (
		id             TEXT PRIMARY KEY,
		campaign_id    TEXT NOT NULL DEFAULT '',
		amount_paise   INTEGER NOT NULL CHECK (amount_paise > 0),
		donor_name     TEXT NOT NULL DEFAULT '',
		donor_email    TEXT NOT NULL DEFAULT '',
		donor_mobile   TEXT NOT NULL DEFAULT '',
		screenshot_url TEXT NOT NULL DEFAULT '',
		method         TEXT NOT NULL,
		payment_ref    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'completed',
		created_at     DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_donations_campaign_id ON donations(campaign_id);

	CREATE TABLE IF NOT EXISTS payment_orders (
		id           TEXT PRIMARY KEY,
		campaign_id  TEXT NOT NULL DEFAULT '',
		amount_paise INTEGER NOT NULL,
		currency     TEXT NOT NULL DEFAULT 'INR',
		donor_name   TEXT NOT NULL DEFAULT '',
		donor_email  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'created',
		payment_id   TEXT NOT NULL DEFAULT '',
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	);
	`
	_, err := conn.Exec(ddl)
	return err
}

// ToPaise converts a rupee amount to integer paise, rounding half away from zero.
func ToPaise(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromPaise converts integer paise back to rupees.
func FromPaise(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

// --- Campaign operations ---

const campaignColumns = `id, name, story, beneficiary_name, target_paise, upi_id, bank_account, ifsc_code, phone, photo_url, status, is_emergency, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*models.Campaign, error) {
	c := &models.Campaign{}
	var target int64
	err := row.Scan(
		&c.ID, &c.Name, &c.Story, &c.BeneficiaryName, &target,
		&c.UPIID, &c.BankAccount, &c.IFSCCode, &c.Phone, &c.PhotoURL,
		&c.Status, &c.IsEmergency, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.TargetAmount = FromPaise(target)
	return c, nil
}

// CreateCampaign inserts a new campaign. ID and timestamps are filled in
// when empty; status defaults to pending.
func (db *DB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	prepareCampaign(c)
	const q = `INSERT INTO campaigns (` + campaignColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, q,
		c.ID, c.Name, c.Story, c.BeneficiaryName, ToPaise(c.TargetAmount),
		c.UPIID, c.BankAccount, c.IFSCCode, c.Phone, c.PhotoURL,
		c.Status, c.IsEmergency, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCampaign returns a campaign by ID, or nil if it does not exist.
func (db *DB) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`
	return scanCampaign(db.conn.QueryRowContext(ctx, q, id))
}

// ListCampaigns returns campaigns with the given status, emergencies first
// and then newest first. A limit of zero or less returns every match.
func (db *DB) ListCampaigns(ctx context.Context, status models.CampaignStatus, limit int) ([]models.Campaign, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown campaign status %q", status)
	}
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = ?
	      ORDER BY is_emergency DESC, created_at DESC`
	args := []interface{}{string(status)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Approve moves a pending campaign to approved and sets its emergency flag.
func (db *DB) Approve(ctx context.Context, id string, emergency bool) (*models.Campaign, error) {
	const q = `UPDATE campaigns SET status = 'approved', is_emergency = ?, updated_at = ?
	           WHERE id = ? AND status = 'pending'`
	return db.transition(ctx, id, q, emergency, time.Now().UTC(), id)
}

// Reject moves a pending campaign to rejected. Rejection is terminal.
func (db *DB) Reject(ctx context.Context, id string) (*models.Campaign, error) {
	const q = `UPDATE campaigns SET status = 'rejected', updated_at = ?
	           WHERE id = ? AND status = 'pending'`
	return db.transition(ctx, id, q, time.Now().UTC(), id)
}

// ToggleEmergency flips the emergency flag of an approved campaign.
func (db *DB) ToggleEmergency(ctx context.Context, id string) (*models.Campaign, error) {
	const q = `UPDATE campaigns SET is_emergency = NOT is_emergency, updated_at = ?
	           WHERE id = ? AND status = 'approved'`
	return db.transition(ctx, id, q, time.Now().UTC(), id)
}

// transition runs a conditional update and distinguishes a missing row
// from one in the wrong state.
func (db *DB) transition(ctx context.Context, id, q string, args ...interface{}) (*models.Campaign, error) {
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	c, err := db.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if n == 0 {
		return nil, ErrInvalidTransition
	}
	return c, nil
}

// CountCampaigns returns per-status totals for the admin dashboard.
func (db *DB) CountCampaigns(ctx context.Context) (models.CampaignCounts, error) {
	var counts models.CampaignCounts
	const q = `SELECT status, is_emergency, COUNT(*) FROM campaigns GROUP BY status, is_emergency`
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var status models.CampaignStatus
		var emergency bool
		var n int
		if err := rows.Scan(&status, &emergency, &n); err != nil {
			return counts, err
		}
		counts.Add(status, emergency, n)
	}
	return counts, rows.Err()
}

// --- Donation operations ---

const donationColumns = `id, campaign_id, amount_paise, donor_name, donor_email, donor_mobile, screenshot_url, method, payment_ref, status, created_at`

func scanDonation(row interface{ Scan(...interface{}) error }) (*models.Donation, error) {
	d := &models.Donation{}
	var amount int64
	err := row.Scan(
		&d.ID, &d.CampaignID, &amount, &d.DonorName, &d.DonorEmail, &d.DonorMobile,
		&d.ScreenshotURL, &d.Method, &d.PaymentRef, &d.Status, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Amount = FromPaise(amount)
	return d, nil
}

// RecordDonation appends d to the ledger and, when it names a campaign,
// lowers that campaign's remaining target by the donated amount (never
// below zero). Both writes commit together. The updated campaign is
// returned, or nil for a general-fund donation.
func (db *DB) RecordDonation(ctx context.Context, d *models.Donation) (*models.Campaign, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	c, err := applyDonation(ctx, tx, d)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit donation: %w", err)
	}
	return c, nil
}

// applyDonation does the ledger insert and target decrement inside tx.
func applyDonation(ctx context.Context, tx *sql.Tx, d *models.Donation) (*models.Campaign, error) {
	prepareDonation(d)

	const ins = `INSERT INTO donations (` + donationColumns + `)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		d.ID, d.CampaignID, ToPaise(d.Amount), d.DonorName, d.DonorEmail, d.DonorMobile,
		d.ScreenshotURL, d.Method, d.PaymentRef, d.Status, d.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}

	if d.CampaignID == "" {
		return nil, nil
	}

	// Single statement so concurrent donations cannot lose updates.
	const dec = `UPDATE campaigns SET target_paise = MAX(0, target_paise - ?), updated_at = ?
	             WHERE id = ?`
	res, err := tx.ExecContext(ctx, dec, ToPaise(d.Amount), d.CreatedAt, d.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("decrement target: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`
	return scanCampaign(tx.QueryRowContext(ctx, q, d.CampaignID))
}

// DonationTotals sums completed donations overall and per campaign.
func (db *DB) DonationTotals(ctx context.Context) (models.DonationTotals, error) {
	totals := models.DonationTotals{ByCampaign: make(map[string]decimal.Decimal)}
	const q = `SELECT campaign_id, SUM(amount_paise) FROM donations
	           WHERE status = 'completed' GROUP BY campaign_id`
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return totals, err
	}
	defer rows.Close()

	var all int64
	for rows.Next() {
		var campaignID string
		var sum int64
		if err := rows.Scan(&campaignID, &sum); err != nil {
			return totals, err
		}
		all += sum
		if campaignID != "" {
			totals.ByCampaign[campaignID] = FromPaise(sum)
		}
	}
	totals.Total = FromPaise(all)
	return totals, rows.Err()
}

// ListDonations returns the newest donations, optionally for one campaign.
func (db *DB) ListDonations(ctx context.Context, campaignID string, limit int) ([]models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations`
	var args []interface{}
	if campaignID != "" {
		q += ` WHERE campaign_id = ?`
		args = append(args, campaignID)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// --- Payment order operations ---

const orderColumns = `id, campaign_id, amount_paise, currency, donor_name, donor_email, status, payment_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.PaymentOrder, error) {
	o := &models.PaymentOrder{}
	var amount int64
	err := row.Scan(
		&o.ID, &o.CampaignID, &amount, &o.Currency, &o.DonorName, &o.DonorEmail,
		&o.Status, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Amount = FromPaise(amount)
	return o, nil
}

// CreatePaymentOrder records a gateway order awaiting payment.
func (db *DB) CreatePaymentOrder(ctx context.Context, o *models.PaymentOrder) error {
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
	const q = `INSERT INTO payment_orders (` + orderColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, q,
		o.ID, o.CampaignID, ToPaise(o.Amount), o.Currency, o.DonorName, o.DonorEmail,
		o.Status, o.PaymentID, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// GetPaymentOrder returns an order by gateway id, or nil if unknown.
func (db *DB) GetPaymentOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id = ?`
	return scanOrder(db.conn.QueryRowContext(ctx, q, id))
}

// CompletePaymentOrder marks a created order paid, records d against the
// order's campaign and applies the target decrement, all in one
// transaction. A second call for an already-paid order changes nothing and
// reports applied=false.
func (db *DB) CompletePaymentOrder(ctx context.Context, orderID, paymentID string, d *models.Donation) (*models.PaymentOrder, bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback() //nolint:errcheck

	q := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id = ?`
	o, err := scanOrder(tx.QueryRowContext(ctx, q, orderID))
	if err != nil {
		return nil, false, err
	}
	if o == nil {
		return nil, false, ErrOrderNotFound
	}
	if o.Status == models.OrderPaid {
		return o, false, nil
	}

	now := time.Now().UTC()
	const upd = `UPDATE payment_orders SET status = 'paid', payment_id = ?, updated_at = ?
	             WHERE id = ? AND status = 'created'`
	if _, err := tx.ExecContext(ctx, upd, paymentID, now, orderID); err != nil {
		return nil, false, fmt.Errorf("mark order paid: %w", err)
	}
	o.Status = models.OrderPaid
	o.PaymentID = paymentID
	o.UpdatedAt = now

	d.CampaignID = o.CampaignID
	d.Amount = o.Amount
	d.PaymentRef = paymentID
	if d.DonorName == "" {
		d.DonorName = o.DonorName
	}
	if d.DonorEmail == "" {
		d.DonorEmail = o.DonorEmail
	}
	if _, err := applyDonation(ctx, tx, d); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit payment: %w", err)
	}
	return o, true, nil
}

func prepareCampaign(c *models.Campaign) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func prepareDonation(d *models.Donation) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DonationCompleted
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
}
