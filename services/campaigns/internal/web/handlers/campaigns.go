package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/communitycare/carefund/services/campaigns/internal/campaign"
	"github.com/communitycare/carefund/services/campaigns/internal/storage"
	"github.com/communitycare/carefund/services/campaigns/internal/story"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// maxFormBytes bounds a multipart body: one image plus the text fields.
const maxFormBytes = storage.MaxUploadBytes + 1<<20

// APIListCampaigns handles GET /api/campaigns.
func (h *Handler) APIListCampaigns(w http.ResponseWriter, r *http.Request) {
	listing, err := h.campaigns.Listing(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, listing)
}

// APIStats handles GET /api/stats.
func (h *Handler) APIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.campaigns.PublicStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, stats)
}

// submissionJSON accepts the target as either a JSON number or a string.
type submissionJSON struct {
	campaign.Submission
	TargetAmount json.RawMessage `json:"target_amount"`
}

// parseSubmission reads a submission from a JSON body or a multipart form.
func parseSubmission(w http.ResponseWriter, r *http.Request) (campaign.Submission, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in submissionJSON
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			return campaign.Submission{}, fmt.Errorf("decode body: %w", err)
		}
		sub := in.Submission
		sub.TargetAmount = strings.Trim(string(in.TargetAmount), `"`)
		return sub, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return campaign.Submission{}, fmt.Errorf("parse form: %w", err)
	}

	sub := campaign.Submission{
		Name:            r.FormValue("name"),
		BeneficiaryName: r.FormValue("beneficiary_name"),
		Story:           r.FormValue("story"),
		TargetAmount:    r.FormValue("target_amount"),
		UPIID:           r.FormValue("upi_id"),
		BankAccount:     r.FormValue("bank_account"),
		IFSCCode:        r.FormValue("ifsc_code"),
		Phone:           r.FormValue("phone"),
	}
	photo, err := readUpload(r, "photo")
	if err != nil {
		return campaign.Submission{}, err
	}
	sub.Photo = photo
	return sub, nil
}

// readUpload returns the bytes of an optional file field. Oversized files
// are returned one byte too long so storage rejects them with ErrTooLarge.
func readUpload(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return data, nil
}

// APISubmitCampaign handles POST /api/campaigns.
func (h *Handler) APISubmitCampaign(w http.ResponseWriter, r *http.Request) {
	sub, err := parseSubmission(w, r)
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.campaigns.Submit(r.Context(), sub)
	if err != nil {
		var ve *campaign.ValidationError
		if errors.As(err, &ve) {
			jsonStatus(w, http.StatusBadRequest, ve)
			return
		}
		log.Printf("Error submitting campaign: %v", err)
		jsonError(w, campaign.SubmitFailedMessage, http.StatusInternalServerError)
		return
	}
	jsonStatus(w, http.StatusCreated, res)
}

// SubmitPage renders the empty submission form.
func (h *Handler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	h.renderSubmit(w, r, http.StatusOK, campaign.Submission{}, "", "")
}

// SubmitForm handles the HTML form post of a new campaign.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	sub, err := parseSubmission(w, r)
	if err != nil {
		h.renderSubmit(w, r, http.StatusBadRequest, sub, "Could not read the form. Is the photo under 5 MB?", "")
		return
	}

	res, err := h.campaigns.Submit(r.Context(), sub)
	if err != nil {
		var ve *campaign.ValidationError
		if errors.As(err, &ve) {
			h.renderSubmit(w, r, http.StatusBadRequest, sub, ve.Message, "")
			return
		}
		log.Printf("Error submitting campaign: %v", err)
		h.renderSubmit(w, r, http.StatusInternalServerError, sub, campaign.SubmitFailedMessage, "")
		return
	}
	h.renderSubmit(w, r, http.StatusCreated, campaign.Submission{}, "", res.Message)
}

func (h *Handler) renderSubmit(w http.ResponseWriter, r *http.Request, status int, sub campaign.Submission, errMsg, success string) {
	data := map[string]interface{}{
		"Title":     "Start a Campaign",
		"IsAdmin":   h.isAdmin(r),
		"Form":      sub,
		"Error":     errMsg,
		"Success":   success,
		"MaxStory":  story.MaxLength,
		"StoryLen":  len([]rune(sub.Story)),
		"Redirect":  campaign.RedirectTo,
		"RedirectS": float64(campaign.RedirectAfterMS) / 1000,
	}
	h.renderTemplate(w, status, "submit.html", data)
}

// APIGenerateStory handles POST /api/generate-story.
func (h *Handler) APIGenerateStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords      string `json:"keywords"`
		Mode          string `json:"mode"`
		ExistingStory string `json:"existingStory"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode, err := story.ParseMode(req.Mode)
	if err != nil {
		jsonError(w, "Invalid mode", http.StatusBadRequest)
		return
	}

	text := h.stories.Generate(r.Context(), story.Request{
		Mode:          mode,
		Keywords:      req.Keywords,
		ExistingStory: req.ExistingStory,
	})
	jsonResponse(w, map[string]string{"story": text})
}

// amountParam reads the optional ?amount= query value.
func amountParam(r *http.Request) (decimal.Decimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get("amount"))
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

// APIUPI handles GET /api/campaigns/{id}/upi and GET /api/upi.
func (h *Handler) APIUPI(w http.ResponseWriter, r *http.Request) {
	amount, err := amountParam(r)
	if err != nil {
		jsonError(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	info, err := h.campaigns.UPI(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, info)
}

// APIQRCode handles GET /api/campaigns/{id}/qr.png and GET /api/qr.png.
// With ?download=1 the image is sent as an attachment.
func (h *Handler) APIQRCode(w http.ResponseWriter, r *http.Request) {
	amount, err := amountParam(r)
	if err != nil {
		jsonError(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	png, info, err := h.campaigns.QRCode(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": info.PayeeName + "-QR-Code.png",
		}))
	}
	if _, err := w.Write(png); err != nil {
		log.Printf("Error writing QR code: %v", err)
	}
}

// APIDonate handles the "I Paid" confirmation for a campaign
// (POST /api/campaigns/{id}/donations) or the general fund
// (POST /api/donations). Accepts JSON or a multipart form with an
// optional payment screenshot.
func (h *Handler) APIDonate(w http.ResponseWriter, r *http.Request) {
	in := campaign.ManualDonation{CampaignID: chi.URLParam(r, "id")}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Amount json.RawMessage `json:"amount"`
			Mobile string          `json:"mobile"`
			Name   string          `json:"name"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		in.Amount = strings.Trim(string(body.Amount), `"`)
		in.Mobile = body.Mobile
		in.Name = body.Name
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			jsonError(w, "Invalid form", http.StatusBadRequest)
			return
		}
		in.Amount = r.FormValue("amount")
		in.Mobile = r.FormValue("mobile")
		in.Name = r.FormValue("name")
		shot, err := readUpload(r, "screenshot")
		if err != nil {
			jsonError(w, "Invalid screenshot", http.StatusBadRequest)
			return
		}
		in.Screenshot = shot
	}

	res, err := h.campaigns.Donate(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonStatus(w, http.StatusCreated, res)
}
