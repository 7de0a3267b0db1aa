package studio

import (
	"context"

	"personastudio/internal/domain"
)

// EventKind classifies what an Event reports.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventSaved      EventKind = "saved"
	EventSaveFailed EventKind = "save_failed"
	EventReset      EventKind = "reset"
	EventDiscarded  EventKind = "discarded"
)

// Event is delivered to observers after the state change it describes.
// EventDiscarded closes out a run whose results were dropped because the
// sequence was reset while it was in flight; Run is the discarded run and From
// is the step it was on.
type Event struct {
	Kind     EventKind
	Run      int
	From     domain.RunStatus
	To       domain.RunStatus
	Err      error
	Snapshot Snapshot
}

// Observer receives sequence events. It runs on the goroutine that caused the
// event and cannot influence the run. Events of one run arrive in order, but a
// Reset from another goroutine is delivered concurrently with the run's own
// events, so observers should key what they record on Event.Run.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }
