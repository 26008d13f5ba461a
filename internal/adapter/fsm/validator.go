package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events is the seller transition table in looplab/fsm form. Transitions
// sharing an event and destination are merged into one EventDesc with
// several sources.
var events = buildEvents(domain.Transitions)

func buildEvents(transitions []domain.Transition) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0, len(transitions))

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// looplab/fsm keeps the current state internally, so each call builds a
// short-lived machine seeded with the seller's stored status.
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply returns the destination status of event from current, or a
// domain.TransitionError when the seller cannot take that event.
func (v *Validator) Apply(ctx context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var (
			invalidEvent loopfsm.InvalidEventError
			unknownEvent loopfsm.UnknownEventError
			noTransition loopfsm.NoTransitionError
		)
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{
				Event:   event,
				Current: current,
			}
		}
		return "", err
	}

	return domain.Status(machine.Current()), nil
}

// Permitted reports whether event is valid from current without applying it.
func (v *Validator) Permitted(current domain.Status, event domain.Event) bool {
	return loopfsm.NewFSM(string(current), events, nil).Can(string(event))
}
