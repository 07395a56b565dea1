// Package hub is the application-side library. A Hub owns the bus
// connection to the daemon, registers the process as a peer, creates
// transfers on request, and dispatches incoming handshake notifications
// to the application's handler.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sharedesk/contenthub/internal/bus"
	"github.com/sharedesk/contenthub/internal/content"
	"github.com/sharedesk/contenthub/internal/protocol"
	"github.com/sharedesk/contenthub/internal/transfer"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 10 * time.Second

// Handler is implemented by applications that can be the target of a
// transfer. Handlers run on their own goroutine and may block.
type Handler interface {
	HandleImport(t *transfer.Transfer)
	HandleExport(t *transfer.Transfer)
	HandleShare(t *transfer.Transfer)
}

type Options struct {
	SocketPath string
	// Conn, when set, is used instead of dialing SocketPath.
	Conn net.Conn

	PeerID       string
	Name         string
	Roles        content.Role
	ContentTypes []content.ContentType

	Handler Handler
	Logger  *logrus.Logger

	// OnFinishedTransfersChanged fires when a transfer joins the
	// finished list, on its first handler notification.
	OnFinishedTransfersChanged func()
}

// reply carries the answer to one correlated request.
type reply struct {
	transfer *transfer.Transfer
	peers    []protocol.PeerInfo
	peerID   string
	err      error
}

type Hub struct {
	opts   Options
	logger *logrus.Logger
	router *bus.Router

	ackCh     chan *protocol.RegisterAck
	createdCh chan *protocol.TransferCreated
	stateCh   chan *protocol.StateChanged
	importCh  chan *protocol.HandleImport
	exportCh  chan *protocol.HandleExport
	shareCh   chan *protocol.HandleShare
	peersCh   chan *protocol.KnownPeersResponse
	defaultCh chan *protocol.DefaultPeerResponse
	errCh     chan *protocol.Error

	mu          sync.Mutex
	handler     Handler
	pending     map[string]chan reply
	active      map[string]*transfer.Transfer
	finished    []*transfer.Transfer
	finishedSet map[string]bool
	gone        map[string]bool // terminal ids evicted from active
}

func New(opts Options) (*Hub, error) {
	if opts.PeerID == "" {
		return nil, errors.New("hub: peer id is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	conn := opts.Conn
	if conn == nil {
		if opts.SocketPath == "" {
			return nil, errors.New("hub: socket path is required")
		}
		c, err := bus.Dial(opts.SocketPath)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	h := &Hub{
		opts:    opts,
		logger:  logger,
		handler: opts.Handler,

		ackCh:     make(chan *protocol.RegisterAck, 1),
		createdCh: make(chan *protocol.TransferCreated, 16),
		stateCh:   make(chan *protocol.StateChanged, 16),
		importCh:  make(chan *protocol.HandleImport, 16),
		exportCh:  make(chan *protocol.HandleExport, 16),
		shareCh:   make(chan *protocol.HandleShare, 16),
		peersCh:   make(chan *protocol.KnownPeersResponse, 16),
		defaultCh: make(chan *protocol.DefaultPeerResponse, 16),
		errCh:     make(chan *protocol.Error, 16),

		pending:     make(map[string]chan reply),
		active:      make(map[string]*transfer.Transfer),
		finishedSet: make(map[string]bool),
		gone:        make(map[string]bool),
	}

	router := bus.NewRouter(conn, logger)
	router.AddRoute(h.ackCh, matchType(protocol.MsgRegisterAck))
	router.AddRoute(h.createdCh, matchType(protocol.MsgTransferCreated))
	router.AddRoute(h.stateCh, matchType(protocol.MsgStateChanged))
	router.AddRoute(h.importCh, matchType(protocol.MsgHandleImport))
	router.AddRoute(h.exportCh, matchType(protocol.MsgHandleExport))
	router.AddRoute(h.shareCh, matchType(protocol.MsgHandleShare))
	router.AddRoute(h.peersCh, matchType(protocol.MsgKnownPeersResponse))
	router.AddRoute(h.defaultCh, matchType(protocol.MsgDefaultPeerReply))
	router.AddRoute(h.errCh, matchType(protocol.MsgError))
	h.router = router

	router.Start()
	go h.dispatch()

	return h, nil
}

func matchType(t protocol.MessageType) func(protocol.Message) bool {
	return func(m protocol.Message) bool { return m.Type() == t }
}

// RegisterHandler installs the handler notified of incoming transfers.
// Calling it again replaces the previous handler.
func (h *Hub) RegisterHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Register announces this process as the live handler for its peer id.
// Pending transfers addressed to the peer arrive as regular handler
// notifications right before the acknowledgement.
func (h *Hub) Register(ctx context.Context) error {
	msg := &protocol.Register{
		PeerID:       h.opts.PeerID,
		Name:         h.opts.Name,
		Roles:        h.opts.Roles,
		ContentTypes: h.opts.ContentTypes,
	}
	if err := h.router.WriteMessage(msg); err != nil {
		return fmt.Errorf("sending register: %w", err)
	}

	select {
	case ack := <-h.ackCh:
		if len(ack.Pending) > 0 {
			h.logger.Infof("Registered as %s with %d pending transfers", ack.PeerID, len(ack.Pending))
		} else {
			h.logger.Infof("Registered as %s", ack.PeerID)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(requestTimeout):
		return errors.New("hub: registration timed out")
	case <-h.router.Done():
		return errors.New("hub: connection closed")
	}
}

// CreateImportTransfer asks the hub to broker an import to the named
// peer. An empty peer id lets the daemon pick the default peer for the
// content type.
func (h *Hub) CreateImportTransfer(ctx context.Context, peerID string, t content.ContentType, sel transfer.Selection) (*transfer.Transfer, error) {
	return h.create(ctx, transfer.Import, peerID, t, sel)
}

// CreateExportTransfer asks the named peer to produce items of the type.
func (h *Hub) CreateExportTransfer(ctx context.Context, peerID string, t content.ContentType, sel transfer.Selection) (*transfer.Transfer, error) {
	return h.create(ctx, transfer.Export, peerID, t, sel)
}

// CreateShareTransfer offers items of the type to the named peer.
func (h *Hub) CreateShareTransfer(ctx context.Context, peerID string, t content.ContentType, sel transfer.Selection) (*transfer.Transfer, error) {
	return h.create(ctx, transfer.Share, peerID, t, sel)
}

func (h *Hub) create(ctx context.Context, dir transfer.Direction, peerID string, ct content.ContentType, sel transfer.Selection) (*transfer.Transfer, error) {
	requestID := uuid.NewString()
	r, err := h.roundTrip(ctx, requestID, &protocol.CreateTransfer{
		RequestID:   requestID,
		Direction:   dir,
		PeerID:      peerID,
		ContentType: ct,
		Selection:   sel,
	})
	if err != nil {
		return nil, err
	}
	return r.transfer, nil
}

// KnownPeersForType lists every peer registered for the content type.
func (h *Hub) KnownPeersForType(ctx context.Context, t content.ContentType) ([]protocol.PeerInfo, error) {
	requestID := uuid.NewString()
	r, err := h.roundTrip(ctx, requestID, &protocol.KnownPeersRequest{RequestID: requestID, ContentType: t})
	if err != nil {
		return nil, err
	}
	return r.peers, nil
}

// DefaultPeerForType returns the daemon's recommended peer id for the
// content type, empty when it has no recommendation.
func (h *Hub) DefaultPeerForType(ctx context.Context, t content.ContentType) (string, error) {
	requestID := uuid.NewString()
	r, err := h.roundTrip(ctx, requestID, &protocol.DefaultPeerRequest{RequestID: requestID, ContentType: t})
	if err != nil {
		return "", err
	}
	return r.peerID, nil
}

func (h *Hub) roundTrip(ctx context.Context, requestID string, msg protocol.Message) (reply, error) {
	ch := make(chan reply, 1)
	h.mu.Lock()
	h.pending[requestID] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, requestID)
		h.mu.Unlock()
	}()

	if err := h.router.WriteMessage(msg); err != nil {
		return reply{}, fmt.Errorf("sending %s: %w", msg.Type(), err)
	}

	select {
	case r := <-ch:
		return r, r.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-time.After(requestTimeout):
		return reply{}, fmt.Errorf("hub: %s request timed out", msg.Type())
	case <-h.router.Done():
		return reply{}, errors.New("hub: connection closed")
	}
}

func (h *Hub) resolve(requestID string, r reply) {
	h.mu.Lock()
	ch := h.pending[requestID]
	delete(h.pending, requestID)
	h.mu.Unlock()

	if ch == nil {
		if r.err != nil {
			h.logger.Warnf("Hub reported: %v", r.err)
		}
		return
	}
	ch <- r
}

// ActiveTransfer returns the tracked in-flight transfer for an id.
func (h *Hub) ActiveTransfer(id string) (*transfer.Transfer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.active[id]
	return t, ok
}

// FinishedTransfers returns the transfers this process has been notified
// about, in arrival order. Each transfer appears exactly once.
func (h *Hub) FinishedTransfers() []*transfer.Transfer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*transfer.Transfer, len(h.finished))
	copy(out, h.finished)
	return out
}

// Done is closed when the bus connection is gone.
func (h *Hub) Done() <-chan struct{} {
	return h.router.Done()
}

func (h *Hub) Close() {
	h.router.Close()
}
