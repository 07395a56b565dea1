// Package transfer implements the state machine at the heart of every
// content exchange. A Transfer lives in exactly one process; the remote
// side holds its own instance bound to the same id, and the two are kept
// consistent by treating every inbound notification as an idempotent,
// identity-keyed upsert.
package transfer

import (
	"errors"
	"sync"

	"github.com/sharedesk/contenthub/internal/content"
)

var (
	// ErrAborted is returned for local transitions attempted after the
	// transfer reached Aborted.
	ErrAborted = errors.New("transfer aborted")

	// ErrInvalidTransition is returned for local transitions that would
	// move the state machine backwards.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Event describes one committed state transition. Remote is set when the
// transition was applied from a bus notification rather than local code;
// subscribers that forward state over the bus use it to break the loop.
type Event struct {
	State  State
	Remote bool
}

// Listener receives committed transitions. Each logical transition is
// delivered exactly once, in commit order, even when a listener itself
// transitions the transfer; duplicate notifications never re-fire.
type Listener func(Event)

// Transfer is one in-flight content exchange. The id never changes after
// construction and is shared with the remote instance of the same
// logical transfer.
type Transfer struct {
	id          string
	direction   Direction
	source      content.Peer
	destination content.Peer
	contentType content.ContentType
	selection   Selection

	mu          sync.Mutex
	state       State
	staged      []content.Item
	committed   []content.Item
	charged     bool
	listeners   []Listener
	queued      []Event
	dispatching bool
}

// New builds a transfer in the Created state.
func New(id string, dir Direction, source, destination content.Peer, t content.ContentType, sel Selection) *Transfer {
	return &Transfer{
		id:          id,
		direction:   dir,
		source:      source,
		destination: destination,
		contentType: t,
		selection:   sel,
	}
}

func (t *Transfer) ID() string                       { return t.id }
func (t *Transfer) Direction() Direction             { return t.direction }
func (t *Transfer) Source() content.Peer             { return t.source }
func (t *Transfer) Destination() content.Peer        { return t.destination }
func (t *Transfer) ContentType() content.ContentType { return t.contentType }
func (t *Transfer) Selection() Selection             { return t.selection }

func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Items returns the committed item list. It is empty for every state
// strictly before Charged; staged items are never visible until the
// Charged transition commits them atomically.
func (t *Transfer) Items() []content.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.charged {
		return nil
	}
	items := make([]content.Item, len(t.committed))
	copy(items, t.committed)
	return items
}

// Subscribe registers a listener for committed transitions.
func (t *Transfer) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// SetItems stages the item list. Staged items are not observable, locally
// or remotely, until Charge commits them.
func (t *Transfer) SetItems(items []content.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged = make([]content.Item, len(items))
	copy(t.staged, items)
}

// Charge commits the staged items (or the given ones, when non-nil) and
// moves the transfer to Charged. With Single selection only the first
// item is kept.
func (t *Transfer) Charge(items []content.Item) error {
	t.mu.Lock()
	if items != nil {
		t.staged = items
	}
	staged := t.staged
	if t.selection == Single && len(staged) > 1 {
		staged = staged[:1]
	}
	err := t.transitionLocked(Charged, staged, false)
	t.mu.Unlock()
	return err
}

// SetState performs a local forward transition. Charging through SetState
// commits whatever was staged with SetItems.
func (t *Transfer) SetState(s State) error {
	t.mu.Lock()
	var items []content.Item
	if s == Charged {
		items = t.staged
		if t.selection == Single && len(items) > 1 {
			items = items[:1]
		}
	}
	err := t.transitionLocked(s, items, false)
	t.mu.Unlock()
	return err
}

// Abort moves the transfer to its terminal failure state. Aborting an
// already-aborted transfer is a no-op.
func (t *Transfer) Abort() {
	t.mu.Lock()
	_ = t.transitionLocked(Aborted, nil, false)
	t.mu.Unlock()
}

// Collect returns the charged items and marks the transfer Collected.
// It returns nil when the transfer has not been charged yet.
func (t *Transfer) Collect() []content.Item {
	t.mu.Lock()
	if !t.charged || t.state == Aborted {
		t.mu.Unlock()
		return nil
	}
	items := make([]content.Item, len(t.committed))
	copy(items, t.committed)
	_ = t.transitionLocked(Collected, nil, false)
	t.mu.Unlock()
	return items
}

// ApplyRemote upserts a state observed on the bus. Duplicates, regressions,
// and anything delivered after Aborted are absorbed without effect. It
// reports whether a transition was committed.
func (t *Transfer) ApplyRemote(s State, items []content.Item) bool {
	t.mu.Lock()
	err := t.transitionLocked(s, items, true)
	t.mu.Unlock()
	return err == nil
}

// transitionLocked enforces the state machine rules: Aborted is sticky and
// dominant, everything else only moves forward (skipping intermediate
// states is allowed, InProgress in particular is optional).
//
// Committed events are queued and drained in commit order by whichever
// call holds the dispatching flag. A listener that transitions the
// transfer again only enqueues; its event is delivered by the active
// drain after the current one, so every listener observes transitions in
// the order they committed.
func (t *Transfer) transitionLocked(s State, items []content.Item, remote bool) error {
	if t.state == Aborted {
		return ErrAborted
	}
	if s == Aborted {
		if t.state == Finalized {
			return ErrInvalidTransition
		}
	} else if s <= t.state {
		return ErrInvalidTransition
	}

	t.state = s
	if s == Charged && !t.charged {
		t.committed = make([]content.Item, len(items))
		copy(t.committed, items)
		t.charged = true
	}

	t.queued = append(t.queued, Event{State: s, Remote: remote})
	if t.dispatching {
		return nil
	}
	t.dispatching = true
	for len(t.queued) > 0 {
		ev := t.queued[0]
		t.queued = t.queued[1:]
		listeners := make([]Listener, len(t.listeners))
		copy(listeners, t.listeners)

		t.mu.Unlock()
		for _, l := range listeners {
			l(ev)
		}
		t.mu.Lock()
	}
	t.dispatching = false
	return nil
}
