package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ryoshumei/add-to-calendar/internal/config"
	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/extract"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/session"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

func init() {
	logger.Init(false)
}

type surfaceCall struct {
	kind      string
	message   string
	requestID string
	urls      []string
}

type fakeSurface struct {
	mu         sync.Mutex
	calls      []surfaceCall
	confirmErr error
}

func (f *fakeSurface) record(c surfaceCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeSurface) ShowStatus(_ int64, message, _ string) {
	f.record(surfaceCall{kind: "status", message: message})
}

func (f *fakeSurface) UpdateStatus(_ int64, message, detail string) {
	f.record(surfaceCall{kind: "update", message: message + "/" + detail})
}

func (f *fakeSurface) HideStatus(int64) {
	f.record(surfaceCall{kind: "hide"})
}

func (f *fakeSurface) ShowConfirmation(_ int64, requestID string, events []event.Event, _ string, urls []string) error {
	f.record(surfaceCall{kind: "confirmation", requestID: requestID, urls: urls})
	return f.confirmErr
}

func (f *fakeSurface) ShowAuthError(_ int64, message string) {
	f.record(surfaceCall{kind: "auth_error", message: message})
}

func (f *fakeSurface) ShowSetupRequired(int64) {
	f.record(surfaceCall{kind: "setup_required"})
}

func (f *fakeSurface) ShowError(_ int64, message string) {
	f.record(surfaceCall{kind: "error", message: message})
}

func (f *fakeSurface) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.kind
	}
	return out
}

func (f *fakeSurface) terminal() []surfaceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []surfaceCall
	for _, c := range f.calls {
		switch c.kind {
		case "confirmation", "auth_error", "setup_required", "error":
			out = append(out, c)
		}
	}
	return out
}

type fakeExtractor struct {
	strategy extract.Strategy
	result   *event.ExtractionResult
	err      error
	calls    atomic.Int32
	block    chan struct{}
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*event.ExtractionResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeExtractor) Strategy() extract.Strategy { return f.strategy }

func singleEventResult(title string) *event.ExtractionResult {
	return &event.ExtractionResult{Events: []event.Event{{
		Title:     title,
		StartTime: "2025-06-02T09:00:00",
		EndTime:   "2025-06-02T09:15:00",
	}}}
}

type harness struct {
	orch       *Orchestrator
	surface    *fakeSurface
	extractors map[extract.Strategy]*fakeExtractor
	openedURLs []string
}

func newHarness(t *testing.T, authenticated bool, credential string, placeholderEnabled bool) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.Fallback.PlaceholderEnabled = placeholderEnabled
	cfg.Relay.Timeout = 5 * time.Second

	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	if authenticated {
		require.NoError(t, sessions.Set(&session.Session{
			Token: &oauth2.Token{AccessToken: "tok"},
			User:  &session.Identity{ID: "user-1", Email: "user@example.com"},
		}))
	}

	surface := &fakeSurface{}
	h := &harness{
		surface: surface,
		extractors: map[extract.Strategy]*fakeExtractor{
			extract.StrategyRemote:      {strategy: extract.StrategyRemote, result: singleEventResult("Remote")},
			extract.StrategyModel:       {strategy: extract.StrategyModel, result: singleEventResult("Model")},
			extract.StrategyPlaceholder: {strategy: extract.StrategyPlaceholder, result: singleEventResult("Placeholder")},
		},
	}

	orch := NewOrchestrator(cfg, sessions, usage.NewStore(t.TempDir()), surface)
	orch.credential = func() string { return credential }
	orch.timezone = func() string { return "" }
	orch.openURL = func(u string) error {
		h.openedURLs = append(h.openedURLs, u)
		return nil
	}
	orch.newExtractor = func(strategy extract.Strategy, _ string) extract.Extractor {
		return h.extractors[strategy]
	}
	h.orch = orch
	return h
}

func TestHandleRemoteSuccess(t *testing.T) {
	h := newHarness(t, true, "", true)

	h.orch.Handle(context.Background(), NewRequest(7, "standup monday 9am"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "confirmation", terminal[0].kind)
	require.Len(t, terminal[0].urls, 1)
	assert.Contains(t, terminal[0].urls[0], "calendar.google.com")
	assert.Equal(t, []string{"status", "update", "hide", "confirmation"}, h.surface.kinds())
	assert.Equal(t, int32(1), h.extractors[extract.StrategyRemote].calls.Load())
	assert.Zero(t, h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleCredentialWinsOverSession(t *testing.T) {
	h := newHarness(t, true, "api-key", true)

	h.orch.Handle(context.Background(), NewRequest(1, "text"))

	assert.Equal(t, int32(1), h.extractors[extract.StrategyModel].calls.Load())
	assert.Zero(t, h.extractors[extract.StrategyRemote].calls.Load())
}

func TestHandleDedupPerTab(t *testing.T) {
	h := newHarness(t, true, "", true)

	block := make(chan struct{})
	h.extractors[extract.StrategyRemote].block = block

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.orch.Handle(context.Background(), NewRequest(3, "first"))
	}()

	// Wait until the first request is inside the extractor
	require.Eventually(t, func() bool {
		return h.extractors[extract.StrategyRemote].calls.Load() == 1
	}, time.Second, time.Millisecond)

	// Second trigger for the same tab must be a no-op
	h.orch.Handle(context.Background(), NewRequest(3, "second"))
	assert.Equal(t, int32(1), h.extractors[extract.StrategyRemote].calls.Load())

	close(block)
	wg.Wait()

	require.Len(t, h.surface.terminal(), 1)
}

func TestHandleReleasesTabAfterFailure(t *testing.T) {
	h := newHarness(t, true, "", true)
	h.extractors[extract.StrategyRemote].err = extract.NewAuthError("session expired")
	h.extractors[extract.StrategyRemote].result = nil

	h.orch.Handle(context.Background(), NewRequest(5, "text"))

	h.orch.mu.Lock()
	assert.Empty(t, h.orch.active)
	h.orch.mu.Unlock()

	// Tab is reusable immediately
	h.extractors[extract.StrategyRemote].err = nil
	h.extractors[extract.StrategyRemote].result = singleEventResult("Retry")
	h.orch.Handle(context.Background(), NewRequest(5, "text"))
	assert.Equal(t, int32(2), h.extractors[extract.StrategyRemote].calls.Load())
}

func TestHandleQuotaErrorNoFallback(t *testing.T) {
	h := newHarness(t, true, "", true)
	message := "Monthly limit exceeded. You have used 50/50 requests this month."
	h.extractors[extract.StrategyRemote].err = &extract.QuotaError{UsageCount: 50, Limit: 50, Message: message}
	h.extractors[extract.StrategyRemote].result = nil

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "error", terminal[0].kind)
	assert.Equal(t, message, terminal[0].message)
	assert.Zero(t, h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleAuthErrorNoFallback(t *testing.T) {
	h := newHarness(t, true, "", true)
	h.extractors[extract.StrategyRemote].err = extract.NewAuthError("session expired")
	h.extractors[extract.StrategyRemote].result = nil

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "auth_error", terminal[0].kind)
	assert.Zero(t, h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleTransportFailureDegradesToPlaceholder(t *testing.T) {
	h := newHarness(t, true, "", true)
	h.extractors[extract.StrategyRemote].err = extract.NewError(extract.StrategyRemote, "relay request failed").
		WithCause(errors.New("connection refused"))
	h.extractors[extract.StrategyRemote].result = nil

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "confirmation", terminal[0].kind)
	assert.Equal(t, int32(1), h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleModelFailureDoesNotDegrade(t *testing.T) {
	h := newHarness(t, false, "api-key", true)
	h.extractors[extract.StrategyModel].err = extract.NewError(extract.StrategyModel, "model request failed")
	h.extractors[extract.StrategyModel].result = nil

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "error", terminal[0].kind)
	assert.Contains(t, terminal[0].message, "Error: ")
	assert.Zero(t, h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleSetupRequired(t *testing.T) {
	h := newHarness(t, false, "", false)

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "setup_required", terminal[0].kind)
	for _, e := range h.extractors {
		assert.Zero(t, e.calls.Load())
	}
}

func TestHandlePlaceholderWhenAnonymous(t *testing.T) {
	h := newHarness(t, false, "", true)

	h.orch.Handle(context.Background(), NewRequest(2, "Lunch with Sam tomorrow at noon"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, "confirmation", terminal[0].kind)
	assert.Equal(t, int32(1), h.extractors[extract.StrategyPlaceholder].calls.Load())
}

func TestHandleUndeliverableConfirmationOpensDirectly(t *testing.T) {
	h := newHarness(t, true, "", true)
	h.surface.confirmErr = errors.New("page surface did not acknowledge delivery")

	h.orch.Handle(context.Background(), NewRequest(2, "text"))

	require.Len(t, h.openedURLs, 1)
	assert.Contains(t, h.openedURLs[0], "calendar.google.com")
}

func TestNewRequestIDFormat(t *testing.T) {
	req := NewRequest(42, "text")
	assert.Regexp(t, `^42-\d+$`, req.RequestID)
	assert.Equal(t, int64(42), req.TabID)
}

func TestHandleMultiEventURLs(t *testing.T) {
	h := newHarness(t, true, "", true)
	h.extractors[extract.StrategyRemote].result = &event.ExtractionResult{Events: []event.Event{
		{Title: "One", StartTime: "2025-06-02T09:00:00", EndTime: "2025-06-02T10:00:00"},
		{Title: "Two", StartTime: "2025-06-03T09:00:00", EndTime: "2025-06-03T10:00:00"},
	}}

	h.orch.Handle(context.Background(), NewRequest(2, "two meetings"))

	terminal := h.surface.terminal()
	require.Len(t, terminal, 1)
	assert.Len(t, terminal[0].urls, 2)
}
