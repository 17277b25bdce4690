package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

// TokenSource supplies the bearer token for relay calls. An empty string
// means no token is available.
type TokenSource interface {
	AccessToken() string
}

// RemoteExtractor calls the backend relay, which holds the service model
// credential and enforces the per-user monthly quota.
type RemoteExtractor struct {
	relayURL   string
	tokens     TokenSource
	httpClient *http.Client
	usageStore *usage.Store
}

// NewRemoteExtractor builds the relay-backed strategy. usageStore may be
// nil; when present the reported quota is mirrored after each success.
func NewRemoteExtractor(relayURL string, tokens TokenSource, client *http.Client, usageStore *usage.Store) *RemoteExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteExtractor{
		relayURL:   strings.TrimSuffix(relayURL, "/"),
		tokens:     tokens,
		httpClient: client,
		usageStore: usageStore,
	}
}

func (r *RemoteExtractor) Strategy() Strategy {
	return StrategyRemote
}

type processTextRequest struct {
	SelectedText string `json:"selectedText"`
}

type processTextResponse struct {
	EventDetails json.RawMessage `json:"eventDetails"`
	Usage        *usage.Snapshot `json:"usage"`
}

type relayErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (r *RemoteExtractor) Extract(ctx context.Context, text string) (*event.ExtractionResult, error) {
	token := r.tokens.AccessToken()
	if token == "" {
		return nil, NewAuthError("sign in required")
	}

	body, err := json.Marshal(processTextRequest{SelectedText: text})
	if err != nil {
		return nil, NewError(StrategyRemote, "failed to encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.relayURL+"/v1/process-text", bytes.NewReader(body))
	if err != nil {
		return nil, NewError(StrategyRemote, "failed to create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, NewError(StrategyRemote, "relay request failed").WithCause(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close relay response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, r.classifyFailure(resp)
	}

	var payload processTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewError(StrategyRemote, "malformed relay response").WithCause(err)
	}

	result, err := event.ParseResult(payload.EventDetails)
	if err != nil {
		return nil, NewError(StrategyRemote, "invalid event payload").WithCause(err)
	}

	if payload.Usage != nil && r.usageStore != nil {
		if err := r.usageStore.Save(payload.Usage); err != nil {
			logger.Warn("failed to save usage snapshot", "error", err)
		}
	}

	return result, nil
}

// classifyFailure maps a non-200 relay response onto the error taxonomy.
// 401 is always an auth failure; quota errors are recognized by the
// marker phrase in the error string; everything else is generic.
func (r *RemoteExtractor) classifyFailure(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var relayErr relayErrorResponse
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &relayErr); err == nil && relayErr.Error != "" {
		message = relayErr.Error
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if message == "" {
			message = "unauthorized"
		}
		return NewAuthError(message)
	}

	if IsQuotaMessage(message) {
		quotaErr := &QuotaError{Limit: usage.MonthlyLimit, Message: message}
		// Best effort: recover the reported count from the message
		var count, limit int
		if _, err := fmt.Sscanf(message[strings.Index(message, "used")+5:], "%d/%d", &count, &limit); err == nil {
			quotaErr.UsageCount = count
			quotaErr.Limit = limit
		}
		return quotaErr
	}

	if IsAuthMessage(message) {
		return NewAuthError(message)
	}

	if message == "" {
		message = fmt.Sprintf("relay returned status %d", resp.StatusCode)
	}
	return NewError(StrategyRemote, message)
}
