package services

import "context"

// EventSink receives domain events for delivery to external consumers
// (floor displays, messaging). Emit is fire-and-forget: implementations
// must not block the caller, and services never retry delivery.
type EventSink interface {
	Emit(ctx context.Context, event string, tournamentID int, payload interface{})
}

// NopEventSink discards all events. Used when no live hub is wired.
type NopEventSink struct{}

func (NopEventSink) Emit(context.Context, string, int, interface{}) {}
