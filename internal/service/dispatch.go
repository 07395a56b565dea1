package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sharedesk/contenthub/internal/store"
	"github.com/sharedesk/contenthub/internal/transfer"
)

func (s *Service) handleRegister(ctx context.Context, c *peerConn, msg *protocol.Register) {
	if msg.PeerID == "" {
		_ = c.send(&protocol.Error{Code: protocol.ErrInvalidMsg, Message: "register requires a peer id"})
		return
	}

	if err := s.peers.RegisterPeer(ctx, msg.PeerID, msg.Name, msg.Roles, msg.ContentTypes); err != nil {
		s.logger.Warnf("Failed to register peer %s: %v", msg.PeerID, err)
		_ = c.send(&protocol.Error{Code: protocol.ErrInternal, Message: "registration failed"})
		return
	}

	c.setPeerID(msg.PeerID)
	s.mu.Lock()
	s.conns[msg.PeerID] = c
	s.mu.Unlock()

	s.logger.Infof("Registered handler for peer %s", msg.PeerID)

	pending := s.replayPending(ctx, c, msg.PeerID)
	if err := c.send(&protocol.RegisterAck{PeerID: msg.PeerID, Pending: pending}); err != nil {
		s.logger.Warnf("Failed to send RegisterAck to %s: %v", msg.PeerID, err)
	}
}

// replayPending redelivers outstanding work to a freshly registered
// handler: creation notifications the peer missed while offline, and
// charged transfers it created and still has to collect.
func (s *Service) replayPending(ctx context.Context, c *peerConn, peerID string) []protocol.TransferRecord {
	rows, err := s.transfers.ListActiveInvolving(ctx, peerID)
	if err != nil {
		s.logger.Warnf("Failed to list pending transfers for %s: %v", peerID, err)
		return nil
	}

	var pending []protocol.TransferRecord
	for _, row := range rows {
		t := s.reviveTransfer(row)
		rec := recordOf(t)

		switch {
		case targetPeerID(t) == peerID && t.State() == transfer.Initiated:
			s.logger.Debugf("Replaying creation notification for transfer %s to %s", t.ID(), peerID)
			if err := c.send(handleMessageFor(t.Direction(), rec)); err != nil {
				s.logger.Warnf("Failed to replay transfer %s: %v", t.ID(), err)
				continue
			}
			pending = append(pending, rec)
		case creatorPeerID(t) == peerID && t.State() == transfer.Charged:
			s.logger.Debugf("Replaying charged transfer %s to creator %s", t.ID(), peerID)
			_ = c.send(&protocol.StateChanged{TransferID: t.ID(), State: transfer.Charged, Items: rec.Items})
			if err := c.send(handleMessageFor(t.Direction(), rec)); err != nil {
				s.logger.Warnf("Failed to replay transfer %s: %v", t.ID(), err)
				continue
			}
			pending = append(pending, rec)
		}
	}
	return pending
}

func (s *Service) handleCreateTransfer(ctx context.Context, c *peerConn, msg *protocol.CreateTransfer) {
	requester := c.getPeerID()
	if requester == "" {
		_ = c.send(&protocol.Error{
			RequestID: msg.RequestID,
			Code:      protocol.ErrNotRegistered,
			Message:   "register a handler before creating transfers",
		})
		return
	}

	target := msg.PeerID
	if target == "" {
		def, err := s.peers.ResolveDefault(ctx, msg.ContentType)
		if err != nil {
			s.logger.Warnf("Default peer lookup failed: %v", err)
		}
		target = def.ID()
	}

	known, err := s.peers.HasPeer(ctx, target)
	if err != nil {
		s.logger.Warnf("Peer lookup failed for %s: %v", target, err)
	}
	if target == "" || !known {
		s.logger.Infof("Rejecting %s transfer from %s: no peer for %q",
			msg.Direction, requester, msg.PeerID)
		_ = c.send(&protocol.Error{
			RequestID: msg.RequestID,
			Code:      protocol.ErrPeerNotFound,
			Message:   "no registered peer matches the request",
		})
		return
	}

	s.abortStaleTransfers(ctx, target)

	// Direction names the action requested of the target: import and
	// share deliver the requester's items to the target, export asks the
	// target to produce items for the requester.
	source, destination := requester, target
	if msg.Direction == transfer.Export {
		source, destination = target, requester
	}

	t := transfer.New(
		uuid.NewString(),
		msg.Direction,
		content.NewPeer(source),
		content.NewPeer(destination),
		msg.ContentType,
		msg.Selection,
	)
	_ = t.SetState(transfer.Initiated)

	if err := s.transfers.CreateTransfer(ctx, t); err != nil {
		s.logger.Errorf("Failed to persist transfer %s: %v", t.ID(), err)
		_ = c.send(&protocol.Error{
			RequestID: msg.RequestID,
			Code:      protocol.ErrInternal,
			Message:   "failed to create transfer",
		})
		return
	}

	s.mu.Lock()
	s.active[t.ID()] = t
	s.mu.Unlock()

	rec := recordOf(t)
	s.logger.Infof("Created %s transfer %s: %s -> %s", t.Direction(), t.ID(), source, destination)

	if err := c.send(&protocol.TransferCreated{RequestID: msg.RequestID, Transfer: rec}); err != nil {
		s.logger.Warnf("Failed to answer create request: %v", err)
	}

	if target := s.liveConn(targetPeerID(t)); target != nil {
		if err := target.send(handleMessageFor(t.Direction(), rec)); err != nil {
			s.logger.Warnf("Failed to notify target of transfer %s: %v", t.ID(), err)
		}
	} else {
		s.logger.Infof("Target %s offline, transfer %s held for registration", targetPeerID(t), t.ID())
	}
}

// abortStaleTransfers aborts transfers the target peer left hanging in
// InProgress so a new handshake starts clean.
func (s *Service) abortStaleTransfers(ctx context.Context, peerID string) {
	s.mu.Lock()
	var stale []*transfer.Transfer
	for _, t := range s.active {
		if t.State() != transfer.InProgress {
			continue
		}
		if t.Source().ID() == peerID || t.Destination().ID() == peerID {
			stale = append(stale, t)
		}
	}
	s.mu.Unlock()

	for _, t := range stale {
		s.logger.Infof("Aborting stale in-progress transfer %s for peer %s", t.ID(), peerID)
		t.Abort()
		if err := s.transfers.UpdateState(ctx, t.ID(), transfer.Aborted); err != nil {
			s.logger.Warnf("Failed to persist abort of %s: %v", t.ID(), err)
		}
		s.notifyEndpoints(t, "", &protocol.StateChanged{TransferID: t.ID(), State: transfer.Aborted})
	}
}

func (s *Service) handleStateChanged(ctx context.Context, c *peerConn, msg *protocol.StateChanged) {
	s.mu.Lock()
	t, ok := s.active[msg.TransferID]
	s.mu.Unlock()

	if !ok {
		row, err := s.transfers.GetTransfer(ctx, msg.TransferID)
		if store.IsNotFound(err) {
			// Unknown identity with no plausible owner. Tell the sender,
			// then track a best-effort instance instead of failing, to
			// stay compatible with transfers created through other paths.
			s.logger.Warnf("State change for unknown transfer %s from %s, tracking best-effort",
				msg.TransferID, c.remoteAddr())
			_ = c.send(&protocol.Error{
				Code:    protocol.ErrTransferNotFound,
				Message: "transfer " + msg.TransferID + " is not known to the hub",
			})
			t = transfer.New(msg.TransferID, transfer.Import, content.Unknown(), content.Unknown(), content.TypeUnknown, transfer.Multiple)
		} else if err != nil {
			s.logger.Errorf("Failed to load transfer %s: %v", msg.TransferID, err)
			return
		} else {
			t = s.reviveTransfer(row)
		}
		s.mu.Lock()
		s.active[msg.TransferID] = t
		s.mu.Unlock()
	}

	if !t.ApplyRemote(msg.State, msg.Items) {
		s.logger.Debugf("Absorbed duplicate or stale %s notification for transfer %s", msg.State, msg.TransferID)
		if t.State().Terminal() {
			s.mu.Lock()
			delete(s.active, t.ID())
			s.mu.Unlock()
		}
		return
	}

	if err := s.transfers.UpdateState(ctx, t.ID(), t.State()); err != nil && !store.IsNotFound(err) {
		s.logger.Warnf("Failed to persist state of %s: %v", t.ID(), err)
	}

	s.logger.Infof("Transfer %s moved to %s", t.ID(), t.State())

	relay := &protocol.StateChanged{TransferID: t.ID(), State: t.State(), Items: t.Items()}
	s.notifyEndpoints(t, c.getPeerID(), relay)

	// The charged item list is what the consuming side has been waiting
	// for; redeliver the handshake notification so its handler can
	// collect (its active-transfer index absorbs the echo).
	if t.State() == transfer.Charged {
		s.notifyEndpoints(t, c.getPeerID(), handleMessageFor(t.Direction(), recordOf(t)))
	}

	if t.State().Terminal() {
		s.mu.Lock()
		delete(s.active, t.ID())
		s.mu.Unlock()
	}
}

// notifyEndpoints sends a message to both endpoints of a transfer except
// the one named by exclude.
func (s *Service) notifyEndpoints(t *transfer.Transfer, exclude string, msg protocol.Message) {
	for _, id := range []string{t.Source().ID(), t.Destination().ID()} {
		if id == "" || id == exclude {
			continue
		}
		if conn := s.liveConn(id); conn != nil {
			if err := conn.send(msg); err != nil {
				s.logger.Warnf("Failed to notify %s about transfer %s: %v", id, t.ID(), err)
			}
		}
	}
}

func (s *Service) handleKnownPeers(ctx context.Context, c *peerConn, msg *protocol.KnownPeersRequest) {
	peers, err := s.peers.ListKnown(ctx, msg.ContentType)
	if err != nil {
		s.logger.Warnf("Known peer lookup failed: %v", err)
		_ = c.send(&protocol.Error{RequestID: msg.RequestID, Code: protocol.ErrInternal, Message: "peer lookup failed"})
		return
	}

	infos := make([]protocol.PeerInfo, 0, len(peers))
	for _, p := range peers {
		info := protocol.PeerInfo{ID: p.ID()}
		if row, err := s.peers.GetPeer(ctx, p.ID()); err == nil {
			info.Name = row.Name
			info.Roles = content.Role(row.Roles)
		}
		infos = append(infos, info)
	}

	if err := c.send(&protocol.KnownPeersResponse{RequestID: msg.RequestID, Peers: infos}); err != nil {
		s.logger.Warnf("Failed to send known peers: %v", err)
	}
}

func (s *Service) handleDefaultPeer(ctx context.Context, c *peerConn, msg *protocol.DefaultPeerRequest) {
	peer, err := s.peers.ResolveDefault(ctx, msg.ContentType)
	if err != nil {
		s.logger.Warnf("Default peer lookup failed: %v", err)
		_ = c.send(&protocol.Error{RequestID: msg.RequestID, Code: protocol.ErrInternal, Message: "peer lookup failed"})
		return
	}

	if err := c.send(&protocol.DefaultPeerResponse{RequestID: msg.RequestID, PeerID: peer.ID()}); err != nil {
		s.logger.Warnf("Failed to send default peer: %v", err)
	}
}

// reviveTransfer rebuilds an in-memory transfer from its persisted row,
// reusing the live instance when one exists. Item lists are not
// persisted, so a revived charged transfer carries an empty committed
// list until the producer's notification is seen again.
func (s *Service) reviveTransfer(row store.Transfer) *transfer.Transfer {
	s.mu.Lock()
	if t, ok := s.active[row.TransferID]; ok {
		s.mu.Unlock()
		return t
	}
	s.mu.Unlock()

	t := transfer.New(
		row.TransferID,
		transfer.Direction(row.Direction),
		content.NewPeer(row.Source),
		content.NewPeer(row.Destination),
		content.ContentType(row.TypeCode),
		transfer.Selection(row.Selection),
	)
	t.ApplyRemote(transfer.State(row.State), nil)

	s.mu.Lock()
	s.active[row.TransferID] = t
	s.mu.Unlock()
	return t
}

// targetPeerID is the peer the creation notification is addressed to:
// the destination for import and share, the producing source for export.
func targetPeerID(t *transfer.Transfer) string {
	if t.Direction() == transfer.Export {
		return t.Source().ID()
	}
	return t.Destination().ID()
}

// creatorPeerID is the requesting application's peer id.
func creatorPeerID(t *transfer.Transfer) string {
	if t.Direction() == transfer.Export {
		return t.Destination().ID()
	}
	return t.Source().ID()
}

func handleMessageFor(dir transfer.Direction, rec protocol.TransferRecord) protocol.Message {
	switch dir {
	case transfer.Export:
		return &protocol.HandleExport{Transfer: rec}
	case transfer.Share:
		return &protocol.HandleShare{Transfer: rec}
	default:
		return &protocol.HandleImport{Transfer: rec}
	}
}

func recordOf(t *transfer.Transfer) protocol.TransferRecord {
	return protocol.TransferRecord{
		ID:          t.ID(),
		Direction:   t.Direction(),
		State:       t.State(),
		Source:      t.Source().ID(),
		Destination: t.Destination().ID(),
		ContentType: t.ContentType(),
		Selection:   t.Selection(),
		Items:       t.Items(),
	}
}
