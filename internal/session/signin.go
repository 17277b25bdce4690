package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/ryoshumei/add-to-calendar/internal/logger"
)

// pollInterval is how often the sign-in flow asks the relay whether the
// browser-side consent has completed.
const pollInterval = 2 * time.Second

// Authenticator drives the relay-assisted OAuth flow: ask the relay for a
// consent URL, open the browser, then poll until the relay has tokens.
type Authenticator struct {
	store      *Store
	relayURL   string
	httpClient *http.Client
	openURL    func(string) error
}

func NewAuthenticator(store *Store, relayURL string, timeout time.Duration) *Authenticator {
	return &Authenticator{
		store:      store,
		relayURL:   strings.TrimSuffix(relayURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		openURL:    browser.OpenURL,
	}
}

type initResponse struct {
	AuthURL   string `json:"auth_url"`
	SessionID string `json:"session_id"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	User         *Identity `json:"user"`
}

// SignIn runs the full flow and installs the resulting session in the
// store. The context bounds the whole operation; cancelling it abandons
// the pending relay session.
func (a *Authenticator) SignIn(ctx context.Context) (*Identity, error) {
	init, err := a.initFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start sign-in: %w", err)
	}

	logger.Info("opening browser for sign-in", "session_id", init.SessionID)
	if err := a.openURL(init.AuthURL); err != nil {
		// Not fatal: the user can open the URL manually
		logger.Warn("failed to open browser", "error", err)
		fmt.Printf("Open this URL to sign in:\n%s\n", init.AuthURL)
	}

	tokens, err := a.poll(ctx, init.SessionID)
	if err != nil {
		return nil, err
	}

	sess := sessionFromTokens(tokens)
	if err := a.store.Set(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return sess.User, nil
}

// SignOut clears the local session. The relay keeps no client state to
// revoke.
func (a *Authenticator) SignOut() error {
	return a.store.Clear()
}

// Refresh exchanges the refresh token for a new access token and persists
// the updated session.
func (a *Authenticator) Refresh(ctx context.Context) error {
	current := a.store.Current()
	if current == nil || current.Token == nil || current.Token.RefreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	body := fmt.Sprintf(`{"refresh_token":%q}`, current.Token.RefreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.relayURL+"/auth/refresh", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request failed: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("invalid refresh response: missing access token")
	}

	sess := sessionFromTokens(&tokens)
	if sess.User == nil {
		// Refresh responses may omit the identity; keep the known one
		sess.User = current.User
	}
	if sess.Token.RefreshToken == "" {
		sess.Token.RefreshToken = current.Token.RefreshToken
	}

	return a.store.Set(sess)
}

func (a *Authenticator) initFlow(ctx context.Context) (*initResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.relayURL+"/auth/init", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	var init initResponse
	if err := json.NewDecoder(resp.Body).Decode(&init); err != nil {
		return nil, fmt.Errorf("invalid init response: %w", err)
	}
	if init.AuthURL == "" || init.SessionID == "" {
		return nil, fmt.Errorf("incomplete init response")
	}
	return &init, nil
}

func (a *Authenticator) poll(ctx context.Context, sessionID string) (*tokenResponse, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("sign-in cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/auth/poll/%s", a.relayURL, sessionID), nil)
		if err != nil {
			return nil, err
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll request failed: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusAccepted:
			closeBody(resp.Body)
			continue
		case http.StatusOK:
			var tokens tokenResponse
			err := json.NewDecoder(resp.Body).Decode(&tokens)
			closeBody(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("invalid poll response: %w", err)
			}
			if tokens.AccessToken == "" {
				return nil, fmt.Errorf("poll response missing access token")
			}
			return &tokens, nil
		default:
			closeBody(resp.Body)
			return nil, fmt.Errorf("sign-in session rejected with status %d", resp.StatusCode)
		}
	}
}

func sessionFromTokens(tokens *tokenResponse) *Session {
	token := &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
	}
	if tokens.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	return &Session{Token: token, User: tokens.User}
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logger.Warn("failed to close response body", "error", err)
	}
}
