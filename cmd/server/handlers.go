package main

import (
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/bipedhq/armor/pkg/auth"
	"github.com/bipedhq/armor/pkg/config"
	"github.com/bipedhq/armor/pkg/csrf"
	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/metrics"
	"github.com/bipedhq/armor/pkg/middleware"
	"github.com/bipedhq/armor/pkg/ratelimit"
	"github.com/bipedhq/armor/pkg/sanitize"
)

const sessionCookieName = "biped_session"

// application holds the demo server's wiring. The route handlers here stand
// in for the business routes that would sit behind the middleware in a real
// deployment; they exist to exercise every component end to end.
type application struct {
	cfg       *config.Config
	logger    logging.Logger
	authority *auth.Authority
	guard     *csrf.Guard
	limiter   *ratelimit.Limiter
	sanitizer *sanitize.Sanitizer
	metrics   *metrics.Registry
}

// clientKey builds the rate-limit key function for the configured proxies.
func (app *application) clientKey(trusted []*net.IPNet) middleware.ClientKeyFunc {
	return func(r *http.Request) string {
		return middleware.ClientIP(r, trusted)
	}
}

func sessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin validates credentials' shape, then issues a bearer token, a
// session cookie, and a CSRF token. Credential verification itself belongs
// to the identity layer, which is outside this middleware.
func (app *application) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unreadable request body"})
		return
	}

	if _, verr := app.sanitizer.ValidateJSON(body); verr != nil {
		app.metrics.RecordValidationFailure("body")
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Malformed login payload"})
		return
	}

	var reasons []string
	if !app.sanitizer.ValidateEmail(req.Email) {
		reasons = append(reasons, "email: invalid format")
	}
	if ok, missing := app.sanitizer.ValidatePasswordStrength(req.Password); !ok {
		for _, m := range missing {
			reasons = append(reasons, "password: "+m)
		}
	}
	if len(reasons) > 0 {
		app.metrics.RecordValidationFailure("credentials")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"reasons": reasons,
		})
		return
	}

	role := "member"
	if req.Email == "admin@biped.app" {
		role = "admin"
	}

	token, err := app.authority.Issue(req.Email, role, app.cfg.Audience, app.cfg.TokenTTL)
	if err != nil {
		app.logger.Error("token issuance failed", logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Could not issue token"})
		return
	}
	app.metrics.RecordTokenIssued()

	sessionID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	csrfToken, err := app.guard.IssueToken(sessionID)
	if err != nil {
		app.logger.Error("csrf issuance failed", logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Could not issue CSRF token"})
		return
	}
	app.metrics.RecordCSRFIssued()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(app.cfg.TokenTTL.Seconds()),
		"csrf_token":   csrfToken,
	})
}

// handleRefresh trades a still-valid token for a fresh one. The old token is
// revoked so a refresh chain leaves exactly one live credential.
func (app *application) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Authentication required"})
		return
	}

	token, err := app.authority.Issue(claims.Subject, claims.Role, app.cfg.Audience, app.cfg.TokenTTL)
	if err != nil {
		app.logger.Error("token refresh failed", logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Could not issue token"})
		return
	}
	app.metrics.RecordTokenIssued()

	app.authority.RevokeClaims(claims)
	app.metrics.RecordTokenRevoked()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(app.cfg.TokenTTL.Seconds()),
	})
}

// handleLogout revokes the presented token and drops the CSRF session.
func (app *application) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Authentication required"})
		return
	}

	app.authority.RevokeClaims(claims)
	app.metrics.RecordTokenRevoked()

	if sessionID := sessionFromRequest(r); sessionID != "" {
		app.guard.InvalidateSession(sessionID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "logged out"})
}

// handleCSRFToken issues a fresh anti-forgery token for the session.
func (app *application) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFromRequest(r)
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No session"})
		return
	}

	token, err := app.guard.IssueToken(sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Could not issue CSRF token"})
		return
	}
	app.metrics.RecordCSRFIssued()

	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": token})
}

// handleMe echoes the verified claims.
func (app *application) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": claims.Subject,
		"role":    claims.Role,
		"jti":     claims.JTI,
	})
}

type listingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// handleCreateListing demonstrates field-level sanitization on a
// state-changing route: cleaned values are accepted, violations reported.
func (app *application) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unreadable request body"})
		return
	}

	if _, verr := app.sanitizer.ValidateJSON(body); verr != nil {
		app.metrics.RecordValidationFailure("body")
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}

	var req listingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Malformed listing payload"})
		return
	}

	title := app.sanitizer.Inspect("title", req.Title, 200)
	description := app.sanitizer.Inspect("description", req.Description, 5000)

	if !app.sanitizer.ValidateLength(title.Cleaned, 1, 200) {
		app.metrics.RecordValidationFailure("title")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"reasons": []string{"title: must be 1-200 characters"},
		})
		return
	}

	for _, res := range []sanitize.Result{title, description} {
		if !res.OK() {
			app.metrics.RecordValidationFailure(res.Field)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"title":       title.Cleaned,
		"description": description.Cleaned,
		"sanitized": map[string]any{
			"title":       title.Violations,
			"description": description.Violations,
		},
	})
}

// handleStats exposes component counters to admins.
func (app *application) handleStats(w http.ResponseWriter, r *http.Request) {
	app.metrics.UpdateGauges(app.limiter.TrackedClients(), app.authority.RevokedCount())

	writeJSON(w, http.StatusOK, map[string]any{
		"tracked_clients": app.limiter.TrackedClients(),
		"revoked_tokens":  app.authority.RevokedCount(),
		"csrf_sessions":   app.guard.ActiveSessions(),
	})
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
