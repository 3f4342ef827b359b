package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/communitycare/carefund/services/campaigns/internal/payment"
)

// APIPaymentConfig handles GET /api/payments/config.
func (h *Handler) APIPaymentConfig(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]interface{}{
		"enabled": h.payments.Enabled(),
		"presets": payment.PresetAmounts,
	})
}

// APICreateOrder handles POST /api/payments/orders.
func (h *Handler) APICreateOrder(w http.ResponseWriter, r *http.Request) {
	var req payment.CheckoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.payments.CreateOrder(r.Context(), req)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	jsonResponse(w, order)
}

// APIVerifyPayment handles POST /api/payments/verify.
func (h *Handler) APIVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req payment.VerifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.payments.Verify(r.Context(), req)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"status":  "ok",
		"applied": res.Applied,
		"order":   res.Order,
	})
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrAmountTooLarge):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payment.ErrCampaignUnavailable):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payment.ErrVerificationFailed):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, payment.ErrNotConfigured):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, payment.ErrGatewayUnavailable):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("Payment error: %v", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}
