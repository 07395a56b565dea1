// Package protocol defines the messages exchanged between applications
// and the hub daemon. Delivery is at-least-once and unordered; the cores
// on both ends deduplicate by transfer identity.
package protocol

import (
	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/transfer"
)

type Message interface {
	Type() MessageType
}

// TransferRecord is the wire snapshot of a transfer: enough for the
// receiving process to reconstruct a local instance bound to the same id.
type TransferRecord struct {
	ID          string
	Direction   transfer.Direction
	State       transfer.State
	Source      string
	Destination string
	ContentType content.ContentType
	Selection   transfer.Selection
	Items       []content.Item
}

// PeerInfo describes one registered peer.
type PeerInfo struct {
	ID    string
	Name  string
	Roles content.Role
}

// Register announces this connection as the live handler for a peer and
// records its capabilities in the hub's directory.
type Register struct {
	PeerID       string
	Name         string
	Roles        content.Role
	ContentTypes []content.ContentType
}

func (Register) Type() MessageType { return MsgRegister }

// RegisterAck confirms registration. Pending carries the non-terminal
// transfers already addressed to the peer; each is also redelivered as a
// regular Handle* notification.
type RegisterAck struct {
	PeerID  string
	Pending []TransferRecord
}

func (RegisterAck) Type() MessageType { return MsgRegisterAck }

// CreateTransfer asks the hub to broker a new transfer with PeerID as the
// target. An empty PeerID lets the hub pick the default peer for the type.
type CreateTransfer struct {
	RequestID   string
	Direction   transfer.Direction
	PeerID      string
	ContentType content.ContentType
	Selection   transfer.Selection
}

func (CreateTransfer) Type() MessageType { return MsgCreateTransfer }

// TransferCreated answers a CreateTransfer with the brokered transfer.
type TransferCreated struct {
	RequestID string
	Transfer  TransferRecord
}

func (TransferCreated) Type() MessageType { return MsgTransferCreated }

// StateChanged propagates one state transition. Items is only populated
// for the Charged transition, which commits the list atomically.
type StateChanged struct {
	TransferID string
	State      transfer.State
	Items      []content.Item
}

func (StateChanged) Type() MessageType { return MsgStateChanged }

// HandleImport asks the receiving peer's handler to deal with an import
// transfer (ingest the items once charged).
type HandleImport struct {
	Transfer TransferRecord
}

func (HandleImport) Type() MessageType { return MsgHandleImport }

// HandleExport asks the receiving peer's handler to deal with an export
// transfer (produce items and charge).
type HandleExport struct {
	Transfer TransferRecord
}

func (HandleExport) Type() MessageType { return MsgHandleExport }

// HandleShare asks the receiving peer's handler to deal with a share
// transfer.
type HandleShare struct {
	Transfer TransferRecord
}

func (HandleShare) Type() MessageType { return MsgHandleShare }

type KnownPeersRequest struct {
	RequestID   string
	ContentType content.ContentType
}

func (KnownPeersRequest) Type() MessageType { return MsgKnownPeersRequest }

type KnownPeersResponse struct {
	RequestID string
	Peers     []PeerInfo
}

func (KnownPeersResponse) Type() MessageType { return MsgKnownPeersResponse }

type DefaultPeerRequest struct {
	RequestID   string
	ContentType content.ContentType
}

func (DefaultPeerRequest) Type() MessageType { return MsgDefaultPeerRequest }

// DefaultPeerResponse carries the recommended peer id, empty when the hub
// has no recommendation.
type DefaultPeerResponse struct {
	RequestID string
	PeerID    string
}

func (DefaultPeerResponse) Type() MessageType { return MsgDefaultPeerReply }

type Ping struct{}

func (Ping) Type() MessageType { return MsgPing }

type Pong struct{}

func (Pong) Type() MessageType { return MsgPong }

// Error is the only failure shape that crosses the bus.
type Error struct {
	RequestID string
	Code      ErrorCode
	Message   string
}

func (Error) Type() MessageType { return MsgError }
