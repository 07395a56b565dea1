package hub

import (
	"fmt"

	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sharedesk/contenthub/internal/transfer"
)

// dispatch is the single goroutine that consumes routed messages. All
// transfer tracking happens here, so a notification can never race the
// creation reply for the same id.
func (h *Hub) dispatch() {
	for {
		select {
		case <-h.router.Done():
			return
		case m := <-h.createdCh:
			t := h.track(m.Transfer)
			h.resolve(m.RequestID, reply{transfer: t})
		case m := <-h.errCh:
			h.resolve(m.RequestID, reply{err: fmt.Errorf("hub error %s: %s", m.Code, m.Message)})
		case m := <-h.peersCh:
			h.resolve(m.RequestID, reply{peers: m.Peers})
		case m := <-h.defaultCh:
			h.resolve(m.RequestID, reply{peerID: m.PeerID})
		case m := <-h.stateCh:
			h.applyState(m)
		case m := <-h.importCh:
			h.notify(transfer.Import, m.Transfer)
		case m := <-h.exportCh:
			h.notify(transfer.Export, m.Transfer)
		case m := <-h.shareCh:
			h.notify(transfer.Share, m.Transfer)
		}
	}
}

// track returns the tracked transfer for a record, building one when the
// id is new. New instances forward their local transitions onto the bus
// and join the finished list on their terminal transition.
func (h *Hub) track(rec protocol.TransferRecord) *transfer.Transfer {
	h.mu.Lock()
	if t, ok := h.active[rec.ID]; ok {
		h.mu.Unlock()
		return t
	}
	h.mu.Unlock()

	t := transfer.New(
		rec.ID,
		rec.Direction,
		content.NewPeer(rec.Source),
		content.NewPeer(rec.Destination),
		rec.ContentType,
		rec.Selection,
	)
	t.Subscribe(h.forwardListener(t))
	t.Subscribe(h.evictListener(t))

	h.mu.Lock()
	h.active[rec.ID] = t
	h.mu.Unlock()

	if rec.State > transfer.Created {
		t.ApplyRemote(rec.State, rec.Items)
	}
	return t
}

// forwardListener propagates local transitions to the daemon. Remote
// transitions came from the bus already and are never echoed back.
func (h *Hub) forwardListener(t *transfer.Transfer) transfer.Listener {
	return func(ev transfer.Event) {
		if ev.Remote {
			return
		}
		msg := &protocol.StateChanged{TransferID: t.ID(), State: ev.State}
		if ev.State == transfer.Charged {
			msg.Items = t.Items()
		}
		if err := h.router.WriteMessage(msg); err != nil {
			h.logger.Warnf("Failed to publish %s for transfer %s: %v", ev.State, t.ID(), err)
		}
	}
}

// evictListener drops a transfer from the active index once no further
// transitions are possible. Late notifications for the id are absorbed.
// The transfer is listed as finished if no notification got there first.
func (h *Hub) evictListener(t *transfer.Transfer) transfer.Listener {
	return func(ev transfer.Event) {
		if !ev.State.Terminal() {
			return
		}
		h.mu.Lock()
		delete(h.active, t.ID())
		h.gone[t.ID()] = true
		h.mu.Unlock()
		h.addFinished(t)
	}
}

// addFinished appends a transfer to the finished list the first time a
// handler notification names its id, then fires the change callback.
func (h *Hub) addFinished(t *transfer.Transfer) {
	h.mu.Lock()
	if h.finishedSet[t.ID()] {
		h.mu.Unlock()
		return
	}
	h.finishedSet[t.ID()] = true
	h.finished = append(h.finished, t)
	h.mu.Unlock()

	if h.opts.OnFinishedTransfersChanged != nil {
		h.opts.OnFinishedTransfersChanged()
	}
}

// notify processes one incoming handler notification. A tracked id means
// this process already owns an instance of the transfer (it created it,
// or handled it before); the notification is then an echo that only
// advances state and never re-announces the transfer to the handler.
// Either way the transfer joins the finished list on its first
// notification, so observers see every exchange this process took part
// in without waiting for a terminal state.
func (h *Hub) notify(dir transfer.Direction, rec protocol.TransferRecord) {
	h.mu.Lock()
	t, tracked := h.active[rec.ID]
	gone := h.gone[rec.ID]
	handler := h.handler
	h.mu.Unlock()

	if !tracked && gone {
		h.logger.Debugf("Ignoring notification for finished transfer %s", rec.ID)
		return
	}
	if tracked {
		if t.ApplyRemote(rec.State, rec.Items) {
			h.logger.Debugf("Transfer %s advanced to %s", rec.ID, rec.State)
		}
		h.addFinished(t)
		return
	}

	t = h.track(rec)
	h.addFinished(t)
	h.logger.Infof("Incoming %s transfer %s (%s -> %s)", dir, rec.ID, rec.Source, rec.Destination)

	if handler == nil {
		h.logger.Warnf("No handler configured, %s transfer %s left untouched", dir, rec.ID)
		return
	}

	go func() {
		switch dir {
		case transfer.Export:
			handler.HandleExport(t)
		case transfer.Share:
			handler.HandleShare(t)
		default:
			handler.HandleImport(t)
		}
	}()
}

// applyState upserts a state notification into the tracked instance. An
// unknown id is tracked best-effort instead of dropped, matching the
// daemon's own handling of half-seen transfers.
func (h *Hub) applyState(m *protocol.StateChanged) {
	h.mu.Lock()
	t, ok := h.active[m.TransferID]
	gone := h.gone[m.TransferID]
	h.mu.Unlock()

	if !ok {
		if gone {
			h.logger.Debugf("Ignoring %s for finished transfer %s", m.State, m.TransferID)
			return
		}
		h.logger.Warnf("State change for untracked transfer %s, tracking best-effort", m.TransferID)
		t = h.track(protocol.TransferRecord{ID: m.TransferID, Selection: transfer.Multiple})
	}

	if !t.ApplyRemote(m.State, m.Items) {
		h.logger.Debugf("Absorbed duplicate %s notification for transfer %s", m.State, m.TransferID)
	}
}
