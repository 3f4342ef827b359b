package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Outcome is the terminal state of one checkout attempt.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeFailed             Outcome = "failed"
	OutcomeSDKLoadFailed      Outcome = "sdk_load_failed"
)

// Message is the user-facing text for each outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeSuccess:
		return "Thank you! Your donation was received."
	case OutcomeVerificationFailed:
		return "We could not verify your payment. If money was deducted, please contact support."
	case OutcomeCancelled:
		return "Payment cancelled."
	case OutcomeSDKLoadFailed:
		return "failed to load SDK"
	}
	return "Payment failed. Please try again."
}

// Result is what Adapter.Pay reports back to the caller.
type Result struct {
	Outcome Outcome
	OrderID string
	Err     error
}

// Loader makes the checkout widget available. Implementations must be safe
// to call repeatedly.
type Loader interface {
	Load(ctx context.Context) error
}

// CheckoutAPI is the server side of the checkout flow.
type CheckoutAPI interface {
	CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutOrder, error)
	Verify(ctx context.Context, req VerifyRequest) error
}

// WidgetOptions is what the widget is opened with.
type WidgetOptions struct {
	Order       *CheckoutOrder
	Name        string
	Description string
	DonorName   string
	DonorEmail  string
}

// ErrDismissed is returned by a Widget when the donor closes it.
var ErrDismissed = errors.New("checkout dismissed")

// Widget opens the gateway checkout and blocks until the donor completes
// or dismisses it.
type Widget interface {
	Open(ctx context.Context, opts WidgetOptions) (*VerifyRequest, error)
}

// Adapter drives a single checkout: load the widget, create an order, open
// the widget, verify the signed response.
type Adapter struct {
	loader Loader
	api    CheckoutAPI
	widget Widget
	name   string
}

// NewAdapter wires an adapter. name is shown in the widget header.
func NewAdapter(loader Loader, api CheckoutAPI, widget Widget, name string) *Adapter {
	return &Adapter{loader: loader, api: api, widget: widget, name: name}
}

// Pay runs the checkout flow and maps every path to exactly one outcome.
func (a *Adapter) Pay(ctx context.Context, req CheckoutRequest) Result {
	if err := a.loader.Load(ctx); err != nil {
		return Result{Outcome: OutcomeSDKLoadFailed, Err: err}
	}

	order, err := a.api.CreateOrder(ctx, req)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	resp, err := a.widget.Open(ctx, WidgetOptions{
		Order:       order,
		Name:        a.name,
		Description: "Donation",
		DonorName:   req.DonorName,
		DonorEmail:  req.DonorEmail,
	})
	if errors.Is(err, ErrDismissed) {
		return Result{Outcome: OutcomeCancelled, OrderID: order.OrderID}
	}
	if err != nil {
		return Result{Outcome: OutcomeFailed, OrderID: order.OrderID, Err: err}
	}

	if err := a.api.Verify(ctx, *resp); err != nil {
		return Result{Outcome: OutcomeVerificationFailed, OrderID: order.OrderID, Err: err}
	}
	return Result{Outcome: OutcomeSuccess, OrderID: order.OrderID}
}

// OnceLoader runs fn at most once successfully. A failed load is retried on
// the next call.
type OnceLoader struct {
	mu     sync.Mutex
	loaded bool
	fn     func(ctx context.Context) error
}

// NewOnceLoader wraps fn.
func NewOnceLoader(fn func(ctx context.Context) error) *OnceLoader {
	return &OnceLoader{fn: fn}
}

// Load implements Loader.
func (l *OnceLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	if err := l.fn(ctx); err != nil {
		return err
	}
	l.loaded = true
	return nil
}

// HTTPCheckout calls this service's own order and verify endpoints.
type HTTPCheckout struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCheckout creates a client for the service at baseURL.
func NewHTTPCheckout(baseURL string) *HTTPCheckout {
	return &HTTPCheckout{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Ready reports whether the service has a gateway configured. It fits
// NewOnceLoader.
func (c *HTTPCheckout) Ready(ctx context.Context) error {
	var cfg struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/payments/config", nil, &cfg); err != nil {
		return err
	}
	if !cfg.Enabled {
		return ErrNotConfigured
	}
	return nil
}

// CreateOrder implements CheckoutAPI.
func (c *HTTPCheckout) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutOrder, error) {
	var order CheckoutOrder
	if err := c.do(ctx, http.MethodPost, "/api/payments/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Verify implements CheckoutAPI.
func (c *HTTPCheckout) Verify(ctx context.Context, req VerifyRequest) error {
	return c.do(ctx, http.MethodPost, "/api/payments/verify", req, nil)
}

func (c *HTTPCheckout) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http %s: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
