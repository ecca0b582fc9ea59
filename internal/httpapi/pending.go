// Package httpapi exposes the reminder engine over HTTP. Reminders raised
// while the server runs wait in a Pending set until a client answers them.
package httpapi

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/dosewatch/internal/engine"
)

// ErrUnknownFiring is returned when answering a firing that is not waiting.
var ErrUnknownFiring = errors.New("firing is not awaiting an answer")

// Pending is an engine.Responder that parks each firing until Answer is
// called for its ID or the engine's context ends.
type Pending struct {
	mu      sync.Mutex
	waiting map[string]*pendingFiring
	order   []string
}

type pendingFiring struct {
	firing engine.Firing
	answer chan bool
}

// NewPending creates an empty pending set.
func NewPending() *Pending {
	return &Pending{waiting: make(map[string]*pendingFiring)}
}

// Respond implements engine.Responder.
func (p *Pending) Respond(ctx context.Context, f engine.Firing) (bool, error) {
	pf := &pendingFiring{firing: f, answer: make(chan bool, 1)}

	p.mu.Lock()
	p.waiting[f.ID] = pf
	p.order = append(p.order, f.ID)
	p.mu.Unlock()

	defer p.remove(f.ID)

	select {
	case taken := <-pf.answer:
		return taken, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Answer delivers the user's answer to the firing with the given ID.
func (p *Pending) Answer(id string, taken bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pf, ok := p.waiting[id]
	if !ok {
		return ErrUnknownFiring
	}
	select {
	case pf.answer <- taken:
	default:
		// Already answered; the responder has not picked it up yet.
		return ErrUnknownFiring
	}
	return nil
}

// List returns the firings awaiting an answer, oldest first.
func (p *Pending) List() []engine.Firing {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]engine.Firing, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.waiting[id].firing)
	}
	return out
}

func (p *Pending) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.waiting, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
