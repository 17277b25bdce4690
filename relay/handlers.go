package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ryoshumei/add-to-calendar/internal/event"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	maxSelectedTextBytes = 10 * 1024
)

// eventExtractor abstracts the model call so handlers can be tested
// without a live provider.
type eventExtractor interface {
	ExtractEvents(ctx context.Context, text string) (*event.ExtractionResult, error)
}

type RelayService struct {
	config    *Config
	auths     *AuthStore
	tokens    *TokenMinter
	quota     *QuotaStore
	model     eventExtractor
	templates *template.Template

	httpClient *http.Client
}

func (s *RelayService) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}

func (s *RelayService) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"service": "add-to-calendar relay",
		"status":  "healthy",
		"docs":    "https://github.com/ryoshumei/add-to-calendar",
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("failed to encode root response", "error", err)
	}
}

func (s *RelayService) handleAuthInit(w http.ResponseWriter, r *http.Request) {
	clientIP := extractRealIP(r)
	flow, err := s.auths.Create(clientIP)
	if err != nil {
		switch err {
		case ErrMaxSessionsReached:
			writeError(w, r, http.StatusServiceUnavailable, "too many pending sign-ins, try again later")
		case ErrMaxSessionsPerIP:
			writeError(w, r, http.StatusTooManyRequests, "too many pending sign-ins from this address")
		default:
			writeInternalError(w, r, err, "auth flow creation")
		}
		return
	}

	// PKCE code challenge
	h := sha256.Sum256([]byte(flow.CodeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(h[:])

	params := url.Values{}
	params.Set("client_id", s.config.GoogleClientID)
	params.Set("redirect_uri", s.config.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "openid email")
	params.Set("state", flow.State)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")

	response := map[string]string{
		"auth_url":   googleAuthURL + "?" + params.Encode(),
		"session_id": flow.ID,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode auth init response", "error", err)
	}

	slog.Info("auth initiated", "session_id", flow.ID)
}

func (s *RelayService) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		slog.Warn("invalid callback", "has_code", code != "", "has_state", state != "")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	flow, found := s.auths.GetByState(state)
	if !found {
		writeError(w, r, http.StatusBadRequest, "sign-in session expired, start again", "state_length", len(state))
		return
	}

	googleToken, err := s.exchangeCode(r.Context(), code, flow.CodeVerifier)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, sanitizeOAuthError(err), "session_id", flow.ID)
		return
	}

	user, err := s.fetchUserInfo(r.Context(), googleToken)
	if err != nil {
		writeInternalError(w, r, err, "userinfo fetch")
		return
	}

	tokens, err := s.tokens.Mint(user)
	if err != nil {
		writeInternalError(w, r, err, "token mint")
		return
	}
	s.auths.SetTokens(flow.ID, tokens)

	w.Header().Set("Content-Type", "text/html")
	if err := s.templates.ExecuteTemplate(w, "success.html", nil); err != nil {
		slog.Error("failed to execute success template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("auth callback successful", "session_id", flow.ID, "user", user.Email)
}

func (s *RelayService) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing session id")
		return
	}

	tokens, pending, found := s.auths.TakeTokens(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "sign-in session expired, start again")
		return
	}
	if pending {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tokens); err != nil {
		slog.Error("failed to encode poll response", "error", err)
	}
}

func (s *RelayService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "missing refresh token")
		return
	}

	user, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "session expired", "reason", err.Error())
		return
	}

	tokens, err := s.tokens.Mint(user)
	if err != nil {
		writeInternalError(w, r, err, "token mint")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tokens); err != nil {
		slog.Error("failed to encode refresh response", "error", err)
	}

	slog.Info("tokens refreshed", "user", user.Email)
}

func (s *RelayService) handleProcessText(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		SelectedText string `json:"selectedText"`
	}
	body := http.MaxBytesReader(w, r.Body, maxSelectedTextBytes*2)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.SelectedText)
	if text == "" {
		writeError(w, r, http.StatusBadRequest, "selectedText is required")
		return
	}
	if len(text) > maxSelectedTextBytes {
		writeError(w, r, http.StatusBadRequest, "selectedText too long")
		return
	}

	now := time.Now()
	count, err := s.quota.Check(user.ID, now)
	if err == ErrQuotaExceeded {
		writeError(w, r, http.StatusBadRequest, quotaMessage(count, s.quota.Limit()), "user", user.ID)
		return
	}
	if err != nil {
		writeInternalError(w, r, err, "quota check")
		return
	}

	result, err := s.model.ExtractEvents(r.Context(), text)
	if err != nil {
		// Contract: 401 for auth only, 400 for every processing failure
		writeError(w, r, http.StatusBadRequest, "failed to extract events from text", "cause", err.Error(), "user", user.ID)
		return
	}

	snapshot, err := s.quota.Increment(user.ID, now)
	if err != nil {
		writeInternalError(w, r, err, "quota increment")
		return
	}

	response := map[string]any{
		"eventDetails": result,
		"usage":        snapshot,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode process-text response", "error", err)
	}

	slog.Info("text processed",
		"user", user.ID,
		"events", len(result.Events),
		"usage", fmt.Sprintf("%d/%d", snapshot.UsageCount, snapshot.Limit),
	)
}

// exchangeCode trades the authorization code for Google tokens using the
// flow's PKCE verifier.
func (s *RelayService) exchangeCode(ctx context.Context, code, codeVerifier string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", s.config.GoogleClientID)
	form.Set("client_secret", s.config.GoogleClientSecret)
	form.Set("redirect_uri", s.config.RedirectURI)
	form.Set("grant_type", "authorization_code")
	form.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close token response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		return "", fmt.Errorf("invalid token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return tokenResp.AccessToken, nil
}

func (s *RelayService) fetchUserInfo(ctx context.Context, accessToken string) (*userIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close userinfo response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var user userIdentity
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("invalid userinfo response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("userinfo response missing id")
	}
	return &user, nil
}
