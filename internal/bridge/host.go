package bridge

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryoshumei/add-to-calendar/internal/config"
	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/notify"
)

// ErrSurfaceUnreachable reports that a tracked frame was never
// acknowledged, even after reinjecting the surface and retrying. The
// caller decides the fallback, e.g. opening the calendar URL directly.
var ErrSurfaceUnreachable = errors.New("page surface did not acknowledge delivery")

// Handler processes one extraction trigger. Invoked on its own goroutine
// per frame so a slow extraction never blocks the read loop.
type Handler func(ctx context.Context, tabID int64, selectedText string)

// Host speaks the native-messaging protocol on a reader/writer pair,
// normally stdin/stdout. It owns frame framing, acknowledgment tracking,
// the single reinject-and-retry on silent delivery, and the replay guard
// that keeps a retried confirmation from acting twice.
type Host struct {
	in  io.Reader
	out io.Writer

	writeMu sync.Mutex

	ackMu sync.Mutex
	acks  map[string]chan struct{}

	seenMu sync.Mutex
	seen   map[string]time.Time

	ackTimeout  time.Duration
	retryDelay  time.Duration
	replayGuard time.Duration

	notifier *notify.Notifier
}

func NewHost(in io.Reader, out io.Writer, cfg config.BridgeConfig, notifier *notify.Notifier) *Host {
	return &Host{
		in:          in,
		out:         out,
		acks:        make(map[string]chan struct{}),
		seen:        make(map[string]time.Time),
		ackTimeout:  cfg.AckTimeout,
		retryDelay:  cfg.RetryDelay,
		replayGuard: cfg.ReplayGuard,
		notifier:    notifier,
	}
}

// Run reads frames until EOF or a transport error. EOF is the normal
// shutdown: the browser closes the pipe when the extension unloads.
func (h *Host) Run(ctx context.Context, handle Handler) error {
	reader := bufio.NewReader(h.in)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := readFrame(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Info("bridge closed")
				return nil
			}
			return err
		}

		switch msg.Type {
		case MsgExtractSelection:
			logger.Debug("extraction trigger received", "tab", msg.TabID, "length", len(msg.SelectedText))
			go handle(ctx, msg.TabID, msg.SelectedText)
		case MsgAck:
			h.signalAck(msg.RequestID)
		default:
			logger.Debug("ignoring unexpected frame", "type", msg.Type)
		}
	}
}

// ShowStatus displays the progress overlay. Fire and forget: a status
// the page never renders is not worth a retry.
func (h *Host) ShowStatus(tabID int64, message, detail string) {
	h.sendLogged(&Message{Type: MsgShowStatus, TabID: tabID, Message: message, Detail: detail})
}

func (h *Host) UpdateStatus(tabID int64, message, detail string) {
	h.sendLogged(&Message{Type: MsgUpdateStatus, TabID: tabID, Message: message, Detail: detail})
}

func (h *Host) HideStatus(tabID int64) {
	h.sendLogged(&Message{Type: MsgHideStatus, TabID: tabID})
}

// ShowConfirmation delivers the confirmation card with tracked delivery.
// A requestID already delivered inside the replay window is dropped, so
// the retry path cannot pop two cards for one request.
func (h *Host) ShowConfirmation(tabID int64, requestID string, events []event.Event, calendarURL string, calendarURLs []string) error {
	if h.replayed(requestID) {
		logger.Debug("dropping duplicate confirmation", "requestId", requestID)
		return nil
	}

	msg := &Message{
		Type:         MsgShowConfirmation,
		TabID:        tabID,
		RequestID:    requestID,
		Events:       events,
		CalendarURL:  calendarURL,
		CalendarURLs: calendarURLs,
	}
	if !h.deliver(msg) {
		return ErrSurfaceUnreachable
	}
	return nil
}

// ShowAuthError tells the page the session is unusable and sign-in is
// needed again.
func (h *Host) ShowAuthError(tabID int64, message string) {
	msg := &Message{Type: MsgShowAuthError, TabID: tabID, RequestID: uuid.NewString(), Message: message}
	if !h.deliver(msg) {
		_ = h.notifier.Send("Sign-in required", message, notify.UrgencyCritical)
	}
}

// ShowSetupRequired tells the page that no processing path is available.
func (h *Host) ShowSetupRequired(tabID int64) {
	msg := &Message{Type: MsgShowSetupRequired, TabID: tabID, RequestID: uuid.NewString()}
	if !h.deliver(msg) {
		_ = h.notifier.Send("Setup required",
			"Sign in or configure an API key to process selected text", notify.UrgencyCritical)
	}
}

// ShowError reports a terminal failure for the request.
func (h *Host) ShowError(tabID int64, message string) {
	msg := &Message{Type: MsgError, TabID: tabID, RequestID: uuid.NewString(), Message: message}
	if !h.deliver(msg) {
		_ = h.notifier.Send("Add to Calendar failed", message, notify.UrgencyCritical)
	}
}

// deliver sends a tracked frame and waits for its acknowledgment. On
// silence it asks the extension to reinject the page surface, waits
// briefly, and retries exactly once.
func (h *Host) deliver(msg *Message) bool {
	ch := h.registerAck(msg.RequestID)
	defer h.releaseAck(msg.RequestID)

	if err := h.send(msg); err == nil && h.awaitAck(ch) {
		return true
	}

	logger.Debug("no acknowledgment, reinjecting surface", "tab", msg.TabID, "requestId", msg.RequestID)
	h.sendLogged(&Message{Type: MsgInjectSurface, TabID: msg.TabID})
	time.Sleep(h.retryDelay)

	if err := h.send(msg); err == nil && h.awaitAck(ch) {
		return true
	}

	logger.Warn("surface unreachable", "tab", msg.TabID, "type", msg.Type)
	return false
}

func (h *Host) send(msg *Message) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return writeFrame(h.out, msg)
}

func (h *Host) sendLogged(msg *Message) {
	if err := h.send(msg); err != nil {
		logger.Warn("failed to send frame", "type", msg.Type, "error", err)
	}
}

func (h *Host) registerAck(requestID string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.ackMu.Lock()
	h.acks[requestID] = ch
	h.ackMu.Unlock()
	return ch
}

func (h *Host) releaseAck(requestID string) {
	h.ackMu.Lock()
	delete(h.acks, requestID)
	h.ackMu.Unlock()
}

func (h *Host) signalAck(requestID string) {
	h.ackMu.Lock()
	ch, ok := h.acks[requestID]
	h.ackMu.Unlock()
	if !ok {
		logger.Debug("acknowledgment for unknown request", "requestId", requestID)
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *Host) awaitAck(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(h.ackTimeout):
		return false
	}
}

// replayed records the requestID and reports whether it was already
// recorded inside the guard window. Stale entries are pruned on each
// call; the map stays tiny because requests are short-lived.
func (h *Host) replayed(requestID string) bool {
	now := time.Now()

	h.seenMu.Lock()
	defer h.seenMu.Unlock()

	for id, at := range h.seen {
		if now.Sub(at) > h.replayGuard {
			delete(h.seen, id)
		}
	}

	if _, dup := h.seen[requestID]; dup {
		return true
	}
	h.seen[requestID] = now
	return false
}
