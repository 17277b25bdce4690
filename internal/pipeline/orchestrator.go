// Package pipeline coordinates one extraction request end to end: dedup,
// strategy selection, extraction, URL building and exactly one terminal
// surface directive per request.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/ryoshumei/add-to-calendar/internal/calurl"
	"github.com/ryoshumei/add-to-calendar/internal/config"
	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/extract"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/session"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

// Surface is the UI channel the orchestrator reports into. Exactly one
// of the terminal calls (ShowConfirmation, ShowAuthError,
// ShowSetupRequired, ShowError) fires per request.
type Surface interface {
	ShowStatus(tabID int64, message, detail string)
	UpdateStatus(tabID int64, message, detail string)
	HideStatus(tabID int64)
	ShowConfirmation(tabID int64, requestID string, events []event.Event, calendarURL string, calendarURLs []string) error
	ShowAuthError(tabID int64, message string)
	ShowSetupRequired(tabID int64)
	ShowError(tabID int64, message string)
}

// Request is one extraction trigger from a tab.
type Request struct {
	TabID        int64
	RequestID    string
	SelectedText string
}

// NewRequest assigns the correlation ID used by confirmation delivery
// and the replay guard.
func NewRequest(tabID int64, selectedText string) Request {
	return Request{
		TabID:        tabID,
		RequestID:    fmt.Sprintf("%d-%d", tabID, time.Now().UnixMilli()),
		SelectedText: selectedText,
	}
}

type extractorFactory func(strategy extract.Strategy, credential string) extract.Extractor

// Orchestrator serializes requests per tab and drives each one through
// the pipeline. Safe for concurrent Handle calls.
type Orchestrator struct {
	mu     sync.Mutex
	active map[int64]struct{}

	cfg      *config.Config
	sessions *session.Store
	surface  Surface

	credential   func() string
	timezone     func() string
	openURL      func(url string) error
	newExtractor extractorFactory
}

func NewOrchestrator(cfg *config.Config, sessions *session.Store, usageStore *usage.Store, surface Surface) *Orchestrator {
	o := &Orchestrator{
		active:     make(map[int64]struct{}),
		cfg:        cfg,
		sessions:   sessions,
		surface:    surface,
		credential: config.Credential,
		timezone:   calurl.DetectTimezone,
		openURL:    browser.OpenURL,
	}
	o.newExtractor = func(strategy extract.Strategy, credential string) extract.Extractor {
		switch strategy {
		case extract.StrategyModel:
			return extract.NewGeminiExtractor(credential, cfg.Model.Name)
		case extract.StrategyRemote:
			client := &http.Client{Timeout: cfg.Relay.Timeout}
			return extract.NewRemoteExtractor(cfg.Relay.URL, sessions, client, usageStore)
		default:
			return extract.NewPlaceholderExtractor()
		}
	}
	return o
}

// Handle runs one request to completion. A tab with a request already in
// flight is dropped immediately, without any surface output: the page
// already shows that request's status.
func (o *Orchestrator) Handle(ctx context.Context, req Request) {
	if !o.claim(req.TabID) {
		logger.Debug("request already in flight for tab", "tab", req.TabID, "requestId", req.RequestID)
		return
	}
	defer o.release(req.TabID)

	logger.Info("processing request", "requestId", req.RequestID, "length", len(req.SelectedText))
	o.surface.ShowStatus(req.TabID, "Processing selected text...", "")

	state := o.sessions.Resolve()
	credential := o.credential()

	strategy, err := extract.Choose(state.IsAuthenticated, credential != "", o.cfg.Fallback.PlaceholderEnabled)
	if err != nil {
		o.surface.HideStatus(req.TabID)
		o.surface.ShowSetupRequired(req.TabID)
		return
	}

	o.surface.UpdateStatus(req.TabID, "Analyzing text...", describe(strategy))

	result, err := o.extract(ctx, strategy, credential, req.SelectedText)
	if err != nil {
		o.fail(req, err)
		return
	}

	timezone := o.timezone()
	urls := make([]string, 0, len(result.Events))
	for _, ev := range result.Events {
		u, err := calurl.Build(ev, timezone)
		if err != nil {
			o.fail(req, err)
			return
		}
		urls = append(urls, u)
	}

	o.surface.HideStatus(req.TabID)
	if err := o.surface.ShowConfirmation(req.TabID, req.RequestID, result.Events, urls[0], urls); err != nil {
		// The page cannot render the card. Opening the first event's URL
		// directly still completes the user's intent.
		logger.Warn("confirmation undeliverable, opening calendar directly", "requestId", req.RequestID, "error", err)
		if openErr := o.openURL(urls[0]); openErr != nil {
			logger.Error("Failed to open calendar URL", "error", openErr)
		}
	}
}

// extract runs the chosen strategy. Only the remote strategy degrades to
// the placeholder, and only on generic failures: auth and quota errors
// carry meaning the user must see, and the model strategy was an
// explicit opt-in.
func (o *Orchestrator) extract(ctx context.Context, strategy extract.Strategy, credential, text string) (*event.ExtractionResult, error) {
	result, err := o.newExtractor(strategy, credential).Extract(ctx, text)
	if err == nil {
		return result, nil
	}

	if strategy == extract.StrategyRemote && !extract.IsAuthError(err) && !extract.IsQuotaError(err) {
		logger.Warn("remote extraction failed, using placeholder", "error", err)
		return o.newExtractor(extract.StrategyPlaceholder, "").Extract(ctx, text)
	}
	return nil, err
}

// fail maps an error onto exactly one terminal directive.
func (o *Orchestrator) fail(req Request, err error) {
	o.surface.HideStatus(req.TabID)

	switch {
	case extract.IsAuthError(err):
		logger.Warn("authentication failure", "requestId", req.RequestID, "error", err)
		o.surface.ShowAuthError(req.TabID, err.Error())
	case extract.IsQuotaError(err):
		// Quota messages pass through verbatim so the usage figures the
		// backend reported stay intact.
		logger.Warn("quota exceeded", "requestId", req.RequestID)
		o.surface.ShowError(req.TabID, err.Error())
	default:
		logger.Error("Request failed", "requestId", req.RequestID, "error", err)
		o.surface.ShowError(req.TabID, "Error: "+err.Error())
	}
}

func (o *Orchestrator) claim(tabID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[tabID]; busy {
		return false
	}
	o.active[tabID] = struct{}{}
	return true
}

func (o *Orchestrator) release(tabID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, tabID)
}

func describe(strategy extract.Strategy) string {
	switch strategy {
	case extract.StrategyModel:
		return "using your API key"
	case extract.StrategyRemote:
		return "using your account"
	default:
		return "creating placeholder event"
	}
}
