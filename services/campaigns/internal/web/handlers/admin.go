package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/communitycare/carefund/services/campaigns/internal/auth"
	"github.com/communitycare/carefund/services/campaigns/internal/token"
	"github.com/communitycare/carefund/services/campaigns/pkg/models"
	"github.com/go-chi/chi/v5"
)

// AdminPage renders the review panel, or the login form without a session.
func (h *Handler) AdminPage(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(sessionToken(r))
	if err != nil {
		h.renderLogin(w, r, http.StatusOK, "")
		return
	}

	h.renderAdmin(w, r, claims, http.StatusOK, "")
}

// renderAdmin draws the panel with an optional error banner, used when a
// form post from the panel fails.
func (h *Handler) renderAdmin(w http.ResponseWriter, r *http.Request, claims *token.Claims, status int, errMsg string) {
	overview, err := h.campaigns.Overview(r.Context())
	if err != nil {
		log.Printf("Error loading admin overview: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.renderTemplate(w, status, "admin.html", map[string]interface{}{
		"Title":    "Admin Panel",
		"IsAdmin":  true,
		"Admin":    claims.Info(),
		"Overview": overview,
		"Error":    errMsg,
	})
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	h.renderTemplate(w, status, "admin_login.html", map[string]interface{}{
		"Title":           "Admin Login",
		"Error":           errMsg,
		"PasswordEnabled": h.auth.PasswordEnabled(),
		"FirebaseEnabled": h.auth.FirebaseEnabled(),
		"FirebaseProject": h.cfg.Firebase.ProjectID,
	})
}

// AdminLogin handles POST /admin/login with a form or JSON body.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var username, password string
	if wantsJSON(r) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		username, password = req.Username, req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			h.renderLogin(w, r, http.StatusBadRequest, "Invalid form data")
			return
		}
		username, password = r.FormValue("username"), r.FormValue("password")
	}

	tok, err := h.auth.Login(username, password)
	if err != nil {
		log.Printf("Admin login failed for %q", username)
		if wantsJSON(r) {
			jsonError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		h.renderLogin(w, r, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	h.setSessionCookie(w, tok)
	if wantsJSON(r) {
		jsonResponse(w, map[string]interface{}{"token": tok, "expires_in": int(h.auth.TTL().Seconds())})
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// AdminLoginFirebase handles POST /admin/login/firebase. The body carries a
// Firebase ID token whose verified email must be on the admin list.
func (h *Handler) AdminLoginFirebase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil || req.IDToken == "" {
		jsonError(w, "id_token is required", http.StatusBadRequest)
		return
	}

	tok, err := h.auth.LoginFirebase(r.Context(), req.IDToken)
	switch {
	case errors.Is(err, auth.ErrNotAdmin):
		jsonError(w, "This account is not an administrator", http.StatusForbidden)
		return
	case err != nil:
		jsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.setSessionCookie(w, tok)
	jsonResponse(w, map[string]interface{}{"token": tok, "expires_in": int(h.auth.TTL().Seconds())})
}

// AdminLogout handles POST /admin/logout.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	if wantsJSON(r) {
		jsonResponse(w, map[string]string{"status": "logged out"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// APIAdminSession handles GET /api/admin/session.
func (h *Handler) APIAdminSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := GetClaimsFromContext(r.Context())
	jsonResponse(w, claims.Info())
}

// APIAdminOverview handles GET /api/admin/overview.
func (h *Handler) APIAdminOverview(w http.ResponseWriter, r *http.Request) {
	h.respondOverview(w, r)
}

// AdminApprove publishes a pending campaign. The emergency flag comes from
// ?emergency=, a form field or a JSON body {"is_emergency": true}.
func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	emergency, err := emergencyFlag(r)
	if err != nil {
		if isFormPost(r) {
			claims, _ := GetClaimsFromContext(r.Context())
			h.renderAdmin(w, r, claims, http.StatusBadRequest, "Invalid emergency flag")
			return
		}
		jsonError(w, "Invalid emergency flag", http.StatusBadRequest)
		return
	}
	h.review(w, r, func(id string) (*models.Campaign, error) {
		return h.campaigns.Approve(r.Context(), id, emergency)
	})
}

// AdminReject rejects a pending campaign.
func (h *Handler) AdminReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(id string) (*models.Campaign, error) {
		return h.campaigns.Reject(r.Context(), id)
	})
}

// AdminToggleEmergency flips the emergency flag of an approved campaign.
func (h *Handler) AdminToggleEmergency(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(id string) (*models.Campaign, error) {
		return h.campaigns.ToggleEmergency(r.Context(), id)
	})
}

// review applies an admin action and answers with the refreshed overview.
// HTML form posts are redirected back to the panel, or get the panel
// re-rendered with the error when the action fails.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, action func(id string) (*models.Campaign, error)) {
	if _, err := action(chi.URLParam(r, "id")); err != nil {
		if isFormPost(r) {
			status, msg := errorStatus(err)
			claims, _ := GetClaimsFromContext(r.Context())
			h.renderAdmin(w, r, claims, status, msg)
			return
		}
		writeError(w, err)
		return
	}
	if isFormPost(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.respondOverview(w, r)
}

// isFormPost reports whether r came from an admin panel form rather than
// an API client.
func isFormPost(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/") && !wantsJSON(r)
}

func (h *Handler) respondOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.campaigns.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, overview)
}

func emergencyFlag(r *http.Request) (bool, error) {
	if wantsJSON(r) && r.ContentLength != 0 {
		var body struct {
			IsEmergency bool `json:"is_emergency"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		return body.IsEmergency, nil
	}
	v := r.FormValue("emergency")
	if v == "" || v == "on" {
		return v == "on", nil
	}
	return strconv.ParseBool(v)
}
