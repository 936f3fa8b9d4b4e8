package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/pkg/services"
)

// VerifyResponse is the body of the verify-pending endpoint
type VerifyResponse struct {
	Success bool   `json:"success,omitempty"`
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) runAutomations(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.TryRun(r.Context())
	if errors.Is(err, services.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "ran": 0})
		return
	} else if err != nil {
		log.Error().Err(err).Msg("Automation run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "ran": 0})
		return
	}

	if report.Ran == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"ran": 0, "message": "No automations due"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.appURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		http.Redirect(w, r, s.appURL+"/auth/login?redirect="+url.QueryEscape(accountsPage), http.StatusFound)
		return
	}

	state := uuid.NewString()
	s.setCookie(w, stateCookie, state, int(cookieTTL.Seconds()))
	s.setCookie(w, userCookie, userID, int(cookieTTL.Seconds()))
	http.Redirect(w, r, s.connections.AuthURL(state), http.StatusFound)
}

func (s *Server) redirectToAccounts(w http.ResponseWriter, r *http.Request, query url.Values) {
	http.Redirect(w, r, s.appURL+accountsPage+"?"+query.Encode(), http.StatusFound)
}

func (s *Server) callbackError(w http.ResponseWriter, r *http.Request, reason string) {
	s.redirectToAccounts(w, r, url.Values{"error": {reason}})
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		log.Warn().Str("error", providerErr).Msg("Monzo returned an OAuth error")
		s.callbackError(w, r, providerErr)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		s.callbackError(w, r, "missing_params")
		return
	}

	storedState, _ := r.Cookie(stateCookie)
	user, _ := r.Cookie(userCookie)
	if storedState == nil || storedState.Value != state || user == nil || user.Value == "" {
		log.Warn().Msg("OAuth callback with invalid state")
		s.callbackError(w, r, "invalid_state")
		return
	}

	s.setCookie(w, stateCookie, "", -1)
	s.setCookie(w, userCookie, "", -1)

	result, err := s.connections.Complete(r.Context(), code, user.Value)
	if err != nil {
		log.Error().Err(err).Str("user", user.Value).Msg("Failed to complete Monzo connection")
		switch {
		case errors.Is(err, services.ErrTokenExchange), errors.Is(err, services.ErrMissingRefreshToken):
			s.callbackError(w, r, "token_exchange_failed")
		case errors.Is(err, services.ErrPendingNotStored):
			s.callbackError(w, r, "monzo_pending_approval")
		default:
			s.callbackError(w, r, "sync_failed")
		}
		return
	}

	if result.Status == services.StatusPendingApproval {
		s.redirectToAccounts(w, r, url.Values{
			"monzo":      {string(services.StatusPendingApproval)},
			"pending_id": {result.PendingID},
		})
		return
	}
	s.redirectToAccounts(w, r, url.Values{"monzo": {string(services.StatusConnected)}})
}

func (s *Server) verifyPending(w http.ResponseWriter, r *http.Request) {
	pendingID := r.URL.Query().Get("pending_id")
	if pendingID == "" {
		writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: "missing_pending_id"})
		return
	}

	userID := r.Header.Get(UserHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, VerifyResponse{Error: "unauthorized"})
		return
	}

	status, err := s.connections.Verify(r.Context(), pendingID, userID)
	switch {
	case errors.Is(err, services.ErrPendingNotFound):
		writeJSON(w, http.StatusNotFound, VerifyResponse{Error: "pending_not_found"})
	case errors.Is(err, services.ErrPendingForbidden):
		writeJSON(w, http.StatusForbidden, VerifyResponse{Error: "forbidden"})
	case err != nil:
		log.Error().Err(err).Str("pending", pendingID).Msg("Failed to verify pending approval")
		writeJSON(w, http.StatusInternalServerError, VerifyResponse{Error: err.Error()})
	case status == services.StatusExpired:
		writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: "token_expired"})
	case status == services.StatusPending:
		writeJSON(w, http.StatusOK, VerifyResponse{Pending: true})
	default:
		writeJSON(w, http.StatusOK, VerifyResponse{Success: true})
	}
}

type checkResponse struct {
	Configured         bool   `json:"configured"`
	RedirectURI        string `json:"redirectUri"`
	ExpectedCallback   string `json:"expectedCallback"`
	RedirectURIMatches bool   `json:"redirectUriMatches"`
	Hint               string `json:"hint"`
}

// check reports whether the OAuth client is configured without exposing secrets
func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	expected := s.appURL + "/api/auth/monzo/callback"
	redirectURI := s.monzo.RedirectURI

	resp := checkResponse{
		Configured:         s.monzo.ClientID != "" && s.monzo.ClientSecret != "" && redirectURI != "",
		RedirectURI:        redirectURI,
		ExpectedCallback:   expected,
		RedirectURIMatches: redirectURI != "" && redirectURI == expected,
	}
	switch {
	case redirectURI == "":
		resp.RedirectURI = "(not set)"
		resp.Hint = "Set monzo.redirectUri or MONZO_REDIRECT_URI, e.g. " + expected
	case s.monzo.ClientID == "" || s.monzo.ClientSecret == "":
		resp.Hint = "Set monzo.clientId and monzo.clientSecret or MONZO_CLIENT_ID and MONZO_CLIENT_SECRET"
	case !resp.RedirectURIMatches:
		resp.Hint = "The redirect URI must match exactly the one registered in the Monzo developer console: " + redirectURI
	default:
		resp.Hint = "Configuration looks correct"
	}
	writeJSON(w, http.StatusOK, resp)
}
