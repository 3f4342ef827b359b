package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/communitycare/carefund/services/campaigns/config"
	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/campaign"
	"github.com/communitycare/carefund/services/campaigns/internal/database"
	"github.com/communitycare/carefund/services/campaigns/internal/payment"
	"github.com/communitycare/carefund/services/campaigns/internal/ratelimit"
	"github.com/communitycare/carefund/services/campaigns/internal/story"
	"github.com/communitycare/carefund/services/campaigns/internal/upi"
	"github.com/communitycare/carefund/services/campaigns/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cfg       *config.Config
	campaigns *campaign.Service
	payments  *payment.Service
	stories   story.Generator
	auth      *auth.Service
	templates map[string]*template.Template
}

// New creates a handler with parsed templates.
func New(cfg *config.Config, campaigns *campaign.Service, payments *payment.Service, stories story.Generator, authService *auth.Service) *Handler {
	tmplMap := make(map[string]*template.Template)

	shared := []string{"base.html"}
	partials, err := fs.Glob(templates.FS, "partials/*.html")
	if err != nil {
		log.Fatalf("Error globbing partials: %v", err)
	}
	shared = append(shared, partials...)

	for _, page := range []string{"home.html", "submit.html", "admin.html", "admin_login.html"} {
		files := make([]string, 0, len(shared)+1)
		files = append(files, shared...)
		files = append(files, page)

		tmplMap[page] = template.Must(
			template.New(page).Funcs(funcs).ParseFS(templates.FS, files...),
		)
	}

	return &Handler{
		cfg:       cfg,
		campaigns: campaigns,
		payments:  payments,
		stories:   stories,
		auth:      authService,
		templates: tmplMap,
	}
}

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	// SubmitLimiter bounds campaign submissions per client IP.
	SubmitLimiter ratelimit.Limiter
	// UploadDir is served at /uploads when files are stored locally.
	UploadDir string
}

// Routes registers every page and API route on r.
func (h *Handler) Routes(r chi.Router, opts RouteOptions) {
	limitSubmit := func(next http.Handler) http.Handler { return next }
	if opts.SubmitLimiter != nil {
		limitSubmit = ratelimit.Middleware(opts.SubmitLimiter, clientIP, time.Hour)
	}

	if opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	// Pages.
	r.Get("/", h.Home)
	r.Get("/submit", h.SubmitPage)
	r.With(limitSubmit).Post("/submit", h.SubmitForm)
	r.Get("/admin", h.AdminPage)
	r.Post("/admin/login", h.AdminLogin)
	r.Post("/admin/login/firebase", h.AdminLoginFirebase)
	r.Post("/admin/logout", h.AdminLogout)

	r.Group(func(r chi.Router) {
		r.Use(AdminMiddleware(h.auth))
		r.Post("/admin/campaigns/{id}/approve", h.AdminApprove)
		r.Post("/admin/campaigns/{id}/reject", h.AdminReject)
		r.Post("/admin/campaigns/{id}/toggle-emergency", h.AdminToggleEmergency)
	})

	// Public JSON API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/campaigns", h.APIListCampaigns)
		r.Get("/stats", h.APIStats)
		r.With(limitSubmit).Post("/campaigns", h.APISubmitCampaign)
		r.Post("/generate-story", h.APIGenerateStory)

		r.Get("/campaigns/{id}/upi", h.APIUPI)
		r.Get("/campaigns/{id}/qr.png", h.APIQRCode)
		r.Post("/campaigns/{id}/donations", h.APIDonate)
		r.Get("/upi", h.APIUPI)
		r.Get("/qr.png", h.APIQRCode)
		r.Post("/donations", h.APIDonate)

		r.Get("/payments/config", h.APIPaymentConfig)
		r.Post("/payments/orders", h.APICreateOrder)
		r.Post("/payments/verify", h.APIVerifyPayment)

		r.Group(func(r chi.Router) {
			r.Use(AdminMiddleware(h.auth))
			r.Get("/admin/session", h.APIAdminSession)
			r.Get("/admin/overview", h.APIAdminOverview)
			r.Post("/admin/campaigns/{id}/approve", h.AdminApprove)
			r.Post("/admin/campaigns/{id}/reject", h.AdminReject)
			r.Post("/admin/campaigns/{id}/toggle-emergency", h.AdminToggleEmergency)
		})
	})
}

// Home renders the public landing page.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	listing, err := h.campaigns.Listing(r.Context())
	if err != nil {
		log.Printf("Error loading listing: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.renderTemplate(w, http.StatusOK, "home.html", map[string]interface{}{
		"Title":           "Community Care",
		"Year":            time.Now().Year(),
		"IsAdmin":         h.isAdmin(r),
		"Campaigns":       listing.Campaigns,
		"Stats":           listing.Stats,
		"MerchantUPI":     h.cfg.UPI.MerchantID,
		"Presets":         payment.PresetAmounts,
		"PaymentsEnabled": h.payments.Enabled(),
	})
}

// --- helpers ---

var funcs = template.FuncMap{
	"rupees": func(d decimal.Decimal) string {
		return "₹" + upi.FormatAmount(d)
	},
}

func (h *Handler) isAdmin(r *http.Request) bool {
	_, err := h.auth.Authenticate(sessionToken(r))
	return err == nil
}

func (h *Handler) renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	tmpl, ok := h.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %s not found", name), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// wantsJSON reports whether the client posted JSON or asked for it.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func clientIP(r *http.Request) string {
	// RemoteAddr is already rewritten by middleware.RealIP.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonStatus(w, status, map[string]string{"error": message})
}

// writeError maps domain errors to JSON responses.
func writeError(w http.ResponseWriter, err error) {
	var ve *campaign.ValidationError
	if errors.As(err, &ve) {
		jsonStatus(w, http.StatusBadRequest, ve)
		return
	}
	status, msg := errorStatus(err)
	jsonError(w, msg, status)
}

// errorStatus maps a service error to an HTTP status and a message that is
// safe to show.
func errorStatus(err error) (int, string) {
	var ve *campaign.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Campaign not found"
	case errors.Is(err, database.ErrInvalidTransition):
		return http.StatusConflict, "Campaign is not in a state that allows this action"
	case errors.Is(err, campaign.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	default:
		log.Printf("Internal error: %v", err)
		return http.StatusInternalServerError, "Internal server error"
	}
}
