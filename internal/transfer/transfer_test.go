package transfer

import (
	"errors"
	"testing"

	"github.com/sharedesk/contenthub/internal/content"
)

func newTestTransfer(sel Selection) *Transfer {
	return New("t-1", Import, content.NewPeer("app.requester"), content.NewPeer("app.gallery"), content.TypePictures, sel)
}

func TestNewTransferStartsCreated(t *testing.T) {
	tr := newTestTransfer(Multiple)

	if tr.State() != Created {
		t.Errorf("expected Created, got %s", tr.State())
	}
	if tr.Items() != nil {
		t.Error("expected no items before charging")
	}
}

func TestForwardTransitions(t *testing.T) {
	tr := newTestTransfer(Multiple)

	for _, s := range []State{Initiated, InProgress, Charged, Collected, Finalized} {
		if err := tr.SetState(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
		if tr.State() != s {
			t.Fatalf("expected %s, got %s", s, tr.State())
		}
	}
}

func TestSkippingIntermediateStates(t *testing.T) {
	tr := newTestTransfer(Multiple)

	tr.SetItems([]content.Item{{URI: "file:///a.jpg", Name: "a.jpg"}})
	if err := tr.SetState(Initiated); err != nil {
		t.Fatalf("Initiated failed: %v", err)
	}
	// InProgress is optional; charging straight away is allowed.
	if err := tr.SetState(Charged); err != nil {
		t.Fatalf("Charged failed: %v", err)
	}
	if len(tr.Items()) != 1 {
		t.Errorf("expected 1 committed item, got %d", len(tr.Items()))
	}
}

func TestBackwardTransitionRejected(t *testing.T) {
	tr := newTestTransfer(Multiple)

	if err := tr.SetState(Charged); err != nil {
		t.Fatalf("Charged failed: %v", err)
	}
	if err := tr.SetState(Initiated); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if err := tr.SetState(Charged); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for duplicate state, got %v", err)
	}
}

func TestAbortIsSticky(t *testing.T) {
	tr := newTestTransfer(Multiple)

	_ = tr.SetState(Initiated)
	tr.Abort()

	if tr.State() != Aborted {
		t.Fatalf("expected Aborted, got %s", tr.State())
	}
	if err := tr.SetState(Charged); !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if tr.ApplyRemote(Charged, nil) {
		t.Error("remote transition after abort must be absorbed")
	}
	if tr.State() != Aborted {
		t.Errorf("abort did not stick, got %s", tr.State())
	}
}

func TestAbortAfterFinalizedRejected(t *testing.T) {
	tr := newTestTransfer(Multiple)

	_ = tr.SetState(Finalized)
	tr.Abort()

	if tr.State() != Finalized {
		t.Errorf("expected Finalized to stand, got %s", tr.State())
	}
}

func TestItemsHiddenUntilCharged(t *testing.T) {
	tr := newTestTransfer(Multiple)
	tr.SetItems([]content.Item{{URI: "file:///a.jpg"}, {URI: "file:///b.jpg"}})

	if tr.Items() != nil {
		t.Fatal("staged items must not be visible before Charged")
	}
	if got := tr.Collect(); got != nil {
		t.Fatal("collecting before Charged must return nil")
	}

	if err := tr.Charge(nil); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	if len(tr.Items()) != 2 {
		t.Errorf("expected 2 items, got %d", len(tr.Items()))
	}
}

func TestChargeCommitsOnce(t *testing.T) {
	tr := newTestTransfer(Multiple)

	if err := tr.Charge([]content.Item{{URI: "file:///a.jpg"}}); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}

	// A duplicate charged notification must not replace the committed list.
	if tr.ApplyRemote(Charged, []content.Item{{URI: "file:///other.jpg"}}) {
		t.Error("duplicate Charged must be absorbed")
	}
	items := tr.Items()
	if len(items) != 1 || items[0].URI != "file:///a.jpg" {
		t.Errorf("committed items changed: %+v", items)
	}
}

func TestSingleSelectionTruncates(t *testing.T) {
	tr := newTestTransfer(Single)

	err := tr.Charge([]content.Item{{URI: "file:///a.jpg"}, {URI: "file:///b.jpg"}})
	if err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	items := tr.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item for Single selection, got %d", len(items))
	}
	if items[0].URI != "file:///a.jpg" {
		t.Errorf("expected first item kept, got %s", items[0].URI)
	}
}

func TestCollect(t *testing.T) {
	tr := newTestTransfer(Multiple)
	_ = tr.Charge([]content.Item{{URI: "file:///a.jpg"}})

	items := tr.Collect()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if tr.State() != Collected {
		t.Errorf("expected Collected, got %s", tr.State())
	}
}

func TestCollectAfterAbortReturnsNil(t *testing.T) {
	tr := newTestTransfer(Multiple)
	_ = tr.Charge([]content.Item{{URI: "file:///a.jpg"}})
	tr.Abort()

	if got := tr.Collect(); got != nil {
		t.Errorf("expected nil after abort, got %+v", got)
	}
}

func TestListenersFireExactlyOncePerTransition(t *testing.T) {
	tr := newTestTransfer(Multiple)

	var events []Event
	tr.Subscribe(func(ev Event) { events = append(events, ev) })

	if !tr.ApplyRemote(Initiated, nil) {
		t.Fatal("first Initiated should commit")
	}
	if tr.ApplyRemote(Initiated, nil) {
		t.Fatal("duplicate Initiated should be absorbed")
	}
	_ = tr.SetState(Charged)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Remote || events[0].State != Initiated {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Remote || events[1].State != Charged {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestApplyRemoteRegressionAbsorbed(t *testing.T) {
	tr := newTestTransfer(Multiple)
	_ = tr.SetState(Charged)

	if tr.ApplyRemote(Initiated, nil) {
		t.Error("regression must be absorbed")
	}
	if tr.State() != Charged {
		t.Errorf("state regressed to %s", tr.State())
	}
}

func TestListenerMayReenterTransfer(t *testing.T) {
	tr := newTestTransfer(Multiple)

	// Listeners run outside the lock; reading back must not deadlock.
	var seen State
	tr.Subscribe(func(ev Event) { seen = tr.State() })

	_ = tr.SetState(Initiated)
	if seen != Initiated {
		t.Errorf("listener observed %s", seen)
	}
}

func TestReentrantTransitionDeliversInCommitOrder(t *testing.T) {
	tr := newTestTransfer(Multiple)

	// The first listener reacts to Initiated by advancing the transfer.
	// Listeners subscribed after it must still see both transitions, in
	// the order they committed, each exactly once.
	tr.Subscribe(func(ev Event) {
		if ev.State == Initiated {
			if err := tr.SetState(InProgress); err != nil {
				t.Errorf("reentrant transition failed: %v", err)
			}
		}
	})
	var events []Event
	tr.Subscribe(func(ev Event) { events = append(events, ev) })

	if err := tr.SetState(Initiated); err != nil {
		t.Fatalf("Initiated failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].State != Initiated || events[1].State != InProgress {
		t.Errorf("events out of commit order: %+v", events)
	}
	if tr.State() != InProgress {
		t.Errorf("expected InProgress, got %s", tr.State())
	}
}
