// Package extract turns raw selected text into validated calendar events.
// Three interchangeable strategies exist: the authenticated relay, a
// direct model call with the user's own credential, and a synthetic
// placeholder that needs no network at all.
package extract

import (
	"context"

	"github.com/ryoshumei/add-to-calendar/internal/event"
)

// Strategy names which extraction path handles a request.
type Strategy string

const (
	// StrategyRemote calls the backend relay with the user's bearer
	// token; subject to the monthly quota.
	StrategyRemote Strategy = "remote"
	// StrategyModel calls the model provider directly using a
	// credential the user supplied.
	StrategyModel Strategy = "model"
	// StrategyPlaceholder fabricates a single event without consulting
	// any model.
	StrategyPlaceholder Strategy = "placeholder"
)

// Extractor is one extraction strategy.
type Extractor interface {
	Extract(ctx context.Context, text string) (*event.ExtractionResult, error)
	Strategy() Strategy
}

// ErrSetupRequired is returned by Choose when no processing path is
// available and the placeholder fallback is disabled: the user must
// either sign in or configure a credential.
type ErrSetupRequired struct{}

func (ErrSetupRequired) Error() string {
	return "sign in or configure an API key to process text"
}

// Choose applies the strict strategy priority:
//
//  1. A user credential always wins, signed in or not: the user
//     explicitly opted into that path.
//  2. Otherwise an authenticated user must use the relay. No silent
//     placeholder downgrade: a signed-in user expects real extraction.
//  3. Otherwise the placeholder, unless disabled, in which case the
//     caller shows setup guidance instead.
func Choose(isAuthenticated, hasCredential, placeholderEnabled bool) (Strategy, error) {
	switch {
	case hasCredential:
		return StrategyModel, nil
	case isAuthenticated:
		return StrategyRemote, nil
	case placeholderEnabled:
		return StrategyPlaceholder, nil
	default:
		return "", ErrSetupRequired{}
	}
}
