package campaign

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/communitycare/carefund/internal/receipts"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/storage"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []receipts.OutboundMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg receipts.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	svc  *Service
	db   *database.DB
	pub  *recordingPublisher
	dir  string
	opts Options
}

func setupService(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "campaigns.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocal(filepath.Join(dir, "uploads"), "/uploads")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if opts.MerchantUPI == "" {
		opts.MerchantUPI = "communitycare@upi"
	}

	pub := &recordingPublisher{}
	return &testEnv{svc: NewService(db, files, pub, opts), db: db, pub: pub, dir: dir, opts: opts}
}

func validSubmission() Submission {
	return Submission{
		Name:         "Help Asha walk again",
		Story:        "Asha needs knee surgery after an accident.",
		TargetAmount: "25000",
		UPIID:        "asha@okaxis",
		Phone:        "98765 43210",
	}
}

func (e *testEnv) submit(t *testing.T, sub Submission) string {
	t.Helper()
	res, err := e.svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return res.Campaign.ID
}

func (e *testEnv) submitApproved(t *testing.T, name string, emergency bool) string {
	t.Helper()
	sub := validSubmission()
	sub.Name = name
	id := e.submit(t, sub)
	if _, err := e.svc.Approve(context.Background(), id, emergency); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return id
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Field != field {
		t.Errorf("field = %q, want %q (%s)", ve.Field, field, ve.Message)
	}
}
