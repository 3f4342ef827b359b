package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeAPI struct {
	createErr error
	verifyErr error
	verified  []VerifyRequest
}

func (a *fakeAPI) CreateOrder(_ context.Context, req CheckoutRequest) (*CheckoutOrder, error) {
	if a.createErr != nil {
		return nil, a.createErr
	}
	return &CheckoutOrder{KeyID: "k", Amount: req.Amount.Shift(2).IntPart(), Currency: "INR", OrderID: "order_1"}, nil
}

func (a *fakeAPI) Verify(_ context.Context, req VerifyRequest) error {
	a.verified = append(a.verified, req)
	return a.verifyErr
}

type widgetFunc func(ctx context.Context, opts WidgetOptions) (*VerifyRequest, error)

func (f widgetFunc) Open(ctx context.Context, opts WidgetOptions) (*VerifyRequest, error) {
	return f(ctx, opts)
}

func paidWidget(_ context.Context, opts WidgetOptions) (*VerifyRequest, error) {
	return &VerifyRequest{OrderID: opts.Order.OrderID, PaymentID: "pay_1", Signature: "sig"}, nil
}

func TestAdapter_Pay(t *testing.T) {
	loadOK := NewOnceLoader(func(context.Context) error { return nil })
	loadFail := NewOnceLoader(func(context.Context) error { return errors.New("script blocked") })

	tests := []struct {
		name   string
		loader Loader
		api    *fakeAPI
		widget Widget
		want   Outcome
	}{
		{"success", loadOK, &fakeAPI{}, widgetFunc(paidWidget), OutcomeSuccess},
		{"sdk load fails", loadFail, &fakeAPI{}, widgetFunc(paidWidget), OutcomeSDKLoadFailed},
		{"order fails", loadOK, &fakeAPI{createErr: errors.New("boom")}, widgetFunc(paidWidget), OutcomeFailed},
		{"dismissed", loadOK, &fakeAPI{}, widgetFunc(func(context.Context, WidgetOptions) (*VerifyRequest, error) {
			return nil, ErrDismissed
		}), OutcomeCancelled},
		{"widget error", loadOK, &fakeAPI{}, widgetFunc(func(context.Context, WidgetOptions) (*VerifyRequest, error) {
			return nil, errors.New("card declined")
		}), OutcomeFailed},
		{"verification fails", loadOK, &fakeAPI{verifyErr: errors.New("payment verification failed")}, widgetFunc(paidWidget), OutcomeVerificationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.loader, tt.api, tt.widget, "CareFund")
			res := a.Pay(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(100)})
			if res.Outcome != tt.want {
				t.Errorf("outcome = %s (%v), want %s", res.Outcome, res.Err, tt.want)
			}
		})
	}
}

func TestOutcome_MessagesDistinct(t *testing.T) {
	seen := map[string]Outcome{}
	for _, o := range []Outcome{OutcomeSuccess, OutcomeVerificationFailed, OutcomeCancelled, OutcomeFailed, OutcomeSDKLoadFailed} {
		msg := o.Message()
		if prev, ok := seen[msg]; ok {
			t.Errorf("%s and %s share message %q", prev, o, msg)
		}
		seen[msg] = o
	}
	if OutcomeSDKLoadFailed.Message() != "failed to load SDK" {
		t.Errorf("sdk message = %q", OutcomeSDKLoadFailed.Message())
	}
}

func TestOnceLoader(t *testing.T) {
	calls := 0
	fail := true
	l := NewOnceLoader(func(context.Context) error {
		calls++
		if fail {
			return errors.New("offline")
		}
		return nil
	})
	ctx := context.Background()

	if err := l.Load(ctx); err == nil {
		t.Fatal("first load should fail")
	}
	fail = false
	for i := 0; i < 3; i++ {
		if err := l.Load(ctx); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHTTPCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/payments/orders":
			json.NewEncoder(w).Encode(CheckoutOrder{KeyID: "k", Amount: 10000, Currency: "INR", OrderID: "order_9"})
		case "/api/payments/config":
			json.NewEncoder(w).Encode(map[string]bool{"enabled": false})
		case "/api/payments/verify":
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": "payment verification failed"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPCheckout(srv.URL)
	if err := c.Ready(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Ready err = %v, want ErrNotConfigured", err)
	}
	order, err := c.CreateOrder(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderID != "order_9" || order.Amount != 10000 {
		t.Errorf("order = %+v", order)
	}

	err = c.Verify(context.Background(), VerifyRequest{OrderID: "order_9"})
	if err == nil || err.Error() != "payment verification failed (422)" {
		t.Errorf("Verify err = %v", err)
	}
}
